package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"sales-collector/internal/domain"
)

type loginRequest struct {
	SalesID  string `json:"salesId" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type submitResponse struct {
	Success bool            `json:"success"`
	Receipt *domain.Receipt `json:"receipt,omitempty"`
}

// submit renders and delivers the notification for one outlet visit. The
// delivery keeps running if the client goes away.
func (s *Server) submit(c *gin.Context) {
	var sub domain.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		badRequest(c, err)
		return
	}

	receipt, err := s.submissions.Submit(context.WithoutCancel(c.Request.Context()), &sub)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, submitResponse{Success: true, Receipt: receipt})
}

func (s *Server) salesLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	valid, err := s.catalog.VerifySales(c.Request.Context(), req.SalesID, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !valid {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid sales id or password"})
		return
	}
	c.JSON(http.StatusOK, messageResponse{Success: true})
}

func (s *Server) listSalesNames(c *gin.Context) {
	names, err := s.catalog.SalesNames(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, names)
}

func (s *Server) listOutlets(c *gin.Context) {
	outlets, err := s.catalog.ListOutlets(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, outlets)
}

func (s *Server) listProducts(c *gin.Context) {
	products, err := s.catalog.ListProducts(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, products)
}
