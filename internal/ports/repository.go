package ports

import (
	"context"

	"sales-collector/internal/domain"
)

// ReferenceStore persists the reference data the form and the notifier read.
type ReferenceStore interface {
	// ListSales returns every sales account, passwords included.
	ListSales(ctx context.Context) ([]domain.SalesAccount, error)

	// GetSales returns one sales account or domain.ErrNotFound.
	GetSales(ctx context.Context, id string) (*domain.SalesAccount, error)

	// AddSales stores a new account under the next "salesN" id.
	AddSales(ctx context.Context, name, password string) (*domain.SalesAccount, error)

	// DeleteSales removes an account. Missing ids yield domain.ErrNotFound.
	DeleteSales(ctx context.Context, id string) error

	// ResetSales removes every sales account.
	ResetSales(ctx context.Context) error

	ListOutlets(ctx context.Context) ([]domain.Outlet, error)
	GetOutlet(ctx context.Context, id string) (*domain.Outlet, error)
	AddOutlet(ctx context.Context, name string) (*domain.Outlet, error)
	DeleteOutlet(ctx context.Context, id string) error
	ResetOutlets(ctx context.Context) error

	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	AddProduct(ctx context.Context, name string) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ResetProducts(ctx context.Context) error

	// GetAdminNumber returns domain.ErrNotFound when no number is stored.
	GetAdminNumber(ctx context.Context) (string, error)
	SetAdminNumber(ctx context.Context, number string) error

	// GetTemplate returns domain.ErrNotFound when no template is stored.
	GetTemplate(ctx context.Context) (string, error)
	SetTemplate(ctx context.Context, template string) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}
