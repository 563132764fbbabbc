// Package service holds the application use cases behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"sales-collector/internal/domain"
	"sales-collector/internal/ports"
)

// SubmissionService turns a form submission into an admin notification.
type SubmissionService struct {
	store    ports.ReferenceStore
	catalog  *Catalog
	renderer ports.TemplateRenderer
	notifier ports.Notifier
	logger   *slog.Logger
}

// NewSubmissionService creates a SubmissionService with injected dependencies.
func NewSubmissionService(
	store ports.ReferenceStore,
	catalog *Catalog,
	renderer ports.TemplateRenderer,
	notifier ports.Notifier,
	logger *slog.Logger,
) *SubmissionService {
	return &SubmissionService{
		store:    store,
		catalog:  catalog,
		renderer: renderer,
		notifier: notifier,
		logger:   logger,
	}
}

// Submit renders the notification for sub and sends it to the admin.
func (s *SubmissionService) Submit(ctx context.Context, sub *domain.Submission) (*domain.Receipt, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}

	logger := s.logger.With(
		"sales_id", sub.SalesID,
		"outlet_id", sub.OutletID,
		"products", len(sub.SelectedProducts),
		"images", len(sub.Images),
	)

	admin, err := s.store.GetAdminNumber(ctx)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && strings.TrimSpace(admin) == "") {
		return nil, domain.ErrAdminNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("load admin number: %w", err)
	}

	template, err := s.catalog.Template(ctx)
	if err != nil {
		return nil, err
	}

	enriched := s.enrich(ctx, sub, logger)
	text := s.renderer.Render(template, enriched)

	logger.Info("dispatching submission notification")

	receipt, err := s.notifier.Send(ctx, admin, text, sub.Images)
	if err != nil {
		logger.Error("submission notification failed", "error", err)
		return nil, err
	}

	logger.Info("submission notification delivered", "messages", len(receipt.MessageIDs), "attempts", receipt.Attempts)
	return receipt, nil
}

// enrich resolves display names. Each lookup is independent and a failed
// lookup leaves the raw id in place.
func (s *SubmissionService) enrich(ctx context.Context, sub *domain.Submission, logger *slog.Logger) *domain.EnrichedSubmission {
	enriched := &domain.EnrichedSubmission{
		Submission:   *sub,
		ProductNames: make(map[string]string),
	}

	if acc, err := s.store.GetSales(ctx, sub.SalesID); err == nil {
		enriched.SalesName = acc.Name
	} else {
		logger.Warn("sales name not resolved", "error", err)
	}

	if outlet, err := s.store.GetOutlet(ctx, sub.OutletID); err == nil {
		enriched.OutletName = outlet.Name
	} else {
		logger.Warn("outlet name not resolved", "error", err)
	}

	if len(sub.SelectedProducts) > 0 {
		products, err := s.store.ListProducts(ctx)
		if err != nil {
			logger.Warn("product names not resolved", "error", err)
		}
		for _, p := range products {
			enriched.ProductNames[p.ID] = p.Name
		}
	}

	return enriched
}

func validateSubmission(sub *domain.Submission) error {
	if sub == nil {
		return domain.NewValidationError("", "submission is required")
	}
	var errs []error
	if strings.TrimSpace(sub.SalesID) == "" {
		errs = append(errs, domain.NewValidationError("sales", "is required"))
	}
	if strings.TrimSpace(sub.OutletID) == "" {
		errs = append(errs, domain.NewValidationError("namaOutlet", "is required"))
	}
	return errors.Join(errs...)
}
