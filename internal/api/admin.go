package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sales-collector/internal/domain"
)

type addSalesRequest struct {
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type addNamedRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *Server) adminListSales(c *gin.Context) {
	sales, err := s.catalog.ListSales(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, sales)
}

func (s *Server) adminAddSales(c *gin.Context) {
	var req addSalesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	created, err := s.catalog.AddSales(c.Request.Context(), req.Name, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dataResponse{Success: true, Data: created})
}

func (s *Server) adminDeleteSales(c *gin.Context) {
	if err := s.catalog.DeleteSales(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Success: true})
}

func (s *Server) adminResetSales(c *gin.Context) {
	if err := s.catalog.ResetSales(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Success: true})
}

func (s *Server) adminAddOutlet(c *gin.Context) {
	var req addNamedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	created, err := s.catalog.AddOutlet(c.Request.Context(), req.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dataResponse{Success: true, Data: created})
}

func (s *Server) adminDeleteOutlet(c *gin.Context) {
	if err := s.catalog.DeleteOutlet(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Success: true})
}

func (s *Server) adminResetOutlets(c *gin.Context) {
	if err := s.catalog.ResetOutlets(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Success: true})
}

func (s *Server) adminAddProduct(c *gin.Context) {
	var req addNamedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	created, err := s.catalog.AddProduct(c.Request.Context(), req.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dataResponse{Success: true, Data: created})
}

func (s *Server) adminDeleteProduct(c *gin.Context) {
	if err := s.catalog.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Success: true})
}

func (s *Server) adminResetProducts(c *gin.Context) {
	if err := s.catalog.ResetProducts(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Success: true})
}

func (s *Server) adminGetSettings(c *gin.Context) {
	settings, err := s.catalog.Settings(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, settings)
}

func (s *Server) adminPutSettings(c *gin.Context) {
	var req domain.AdminConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.catalog.UpdateSettings(c.Request.Context(), req); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Success: true})
}
