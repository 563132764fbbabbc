package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"sales-collector/internal/dispatch"
	"sales-collector/internal/domain"
	"sales-collector/internal/ports"
)

// SalesSummary is a sales account without its password.
type SalesSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Catalog manages the reference data behind the form and the admin screens.
type Catalog struct {
	store           ports.ReferenceStore
	defaultTemplate string
	logger          *slog.Logger
}

// NewCatalog creates a catalog over the reference store.
func NewCatalog(store ports.ReferenceStore, defaultTemplate string, logger *slog.Logger) *Catalog {
	return &Catalog{
		store:           store,
		defaultTemplate: defaultTemplate,
		logger:          logger,
	}
}

// ListSales returns every account without passwords.
func (c *Catalog) ListSales(ctx context.Context) ([]SalesSummary, error) {
	accounts, err := c.store.ListSales(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	out := make([]SalesSummary, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, SalesSummary{ID: a.ID, Name: a.Name})
	}
	return out, nil
}

// SalesNames maps sales ids to display names for the form dropdown.
func (c *Catalog) SalesNames(ctx context.Context) (map[string]string, error) {
	accounts, err := c.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(accounts))
	for _, a := range accounts {
		names[a.ID] = a.Name
	}
	return names, nil
}

// AddSales creates an account. Name and password are both required.
func (c *Catalog) AddSales(ctx context.Context, name, password string) (*SalesSummary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("name", "is required")
	}
	if password == "" {
		return nil, domain.NewValidationError("password", "is required")
	}

	acc, err := c.store.AddSales(ctx, name, password)
	if err != nil {
		return nil, err
	}
	c.logger.Info("sales account added", "sales_id", acc.ID)
	return &SalesSummary{ID: acc.ID, Name: acc.Name}, nil
}

// DeleteSales removes an account.
func (c *Catalog) DeleteSales(ctx context.Context, id string) error {
	if err := c.store.DeleteSales(ctx, id); err != nil {
		return err
	}
	c.logger.Info("sales account deleted", "sales_id", id)
	return nil
}

// ResetSales removes every account.
func (c *Catalog) ResetSales(ctx context.Context) error {
	if err := c.store.ResetSales(ctx); err != nil {
		return err
	}
	c.logger.Warn("all sales accounts removed")
	return nil
}

// VerifySales reports whether password matches the stored one. Unknown
// accounts simply do not match.
func (c *Catalog) VerifySales(ctx context.Context, id, password string) (bool, error) {
	acc, err := c.store.GetSales(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load sales %s: %w", id, err)
	}
	return subtle.ConstantTimeCompare([]byte(acc.Password), []byte(password)) == 1, nil
}

func (c *Catalog) ListOutlets(ctx context.Context) ([]domain.Outlet, error) {
	outlets, err := c.store.ListOutlets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list outlets: %w", err)
	}
	return outlets, nil
}

// AddOutlet creates an outlet under the next sequential id.
func (c *Catalog) AddOutlet(ctx context.Context, name string) (*domain.Outlet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("name", "is required")
	}
	outlet, err := c.store.AddOutlet(ctx, name)
	if err != nil {
		return nil, err
	}
	c.logger.Info("outlet added", "outlet_id", outlet.ID)
	return outlet, nil
}

func (c *Catalog) DeleteOutlet(ctx context.Context, id string) error {
	return c.store.DeleteOutlet(ctx, id)
}

func (c *Catalog) ResetOutlets(ctx context.Context) error {
	if err := c.store.ResetOutlets(ctx); err != nil {
		return err
	}
	c.logger.Warn("all outlets removed")
	return nil
}

func (c *Catalog) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := c.store.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// AddProduct creates a product keyed by the slug of its name.
func (c *Catalog) AddProduct(ctx context.Context, name string) (*domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("name", "is required")
	}
	if domain.ProductSlug(name) == "" {
		return nil, domain.NewValidationError("name", "must contain letters or digits")
	}
	product, err := c.store.AddProduct(ctx, name)
	if err != nil {
		return nil, err
	}
	c.logger.Info("product added", "product_id", product.ID)
	return product, nil
}

func (c *Catalog) DeleteProduct(ctx context.Context, id string) error {
	return c.store.DeleteProduct(ctx, id)
}

func (c *Catalog) ResetProducts(ctx context.Context) error {
	if err := c.store.ResetProducts(ctx); err != nil {
		return err
	}
	c.logger.Warn("all products removed")
	return nil
}

// Settings returns the admin number, empty when unset, and the template,
// falling back to the default one.
func (c *Catalog) Settings(ctx context.Context) (*domain.AdminConfig, error) {
	number, err := c.store.GetAdminNumber(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load admin number: %w", err)
	}

	template, err := c.Template(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.AdminConfig{
		PhoneNumber:          number,
		NotificationTemplate: template,
	}, nil
}

// Template returns the stored template or the default one.
func (c *Catalog) Template(ctx context.Context) (string, error) {
	template, err := c.store.GetTemplate(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return c.defaultTemplate, nil
	}
	if err != nil {
		return "", fmt.Errorf("load template: %w", err)
	}
	return template, nil
}

// UpdateSettings stores whichever of the two fields is set.
func (c *Catalog) UpdateSettings(ctx context.Context, cfg domain.AdminConfig) error {
	number := strings.TrimSpace(cfg.PhoneNumber)
	template := cfg.NotificationTemplate
	if number == "" && strings.TrimSpace(template) == "" {
		return domain.NewValidationError("", "phoneNumber or notificationTemplate is required")
	}

	if number != "" {
		digits := dispatch.PhoneDigits(number)
		if digits == "" {
			return domain.NewValidationError("phoneNumber", "must contain digits")
		}
		if err := c.store.SetAdminNumber(ctx, digits); err != nil {
			return err
		}
		c.logger.Info("admin number updated")
	}

	if strings.TrimSpace(template) != "" {
		if err := c.store.SetTemplate(ctx, template); err != nil {
			return err
		}
		c.logger.Info("notification template updated")
	}
	return nil
}
