package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"sales-collector/internal/domain"
	"sales-collector/internal/ports"
)

// maxTxRetries bounds optimistic-lock retries on concurrent writers.
const maxTxRetries = 5

// stringGetter is satisfied by both the client and a watched transaction.
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Repository implements ports.ReferenceStore using Redis.
type Repository struct {
	client *Client
	logger *slog.Logger
}

var _ ports.ReferenceStore = (*Repository)(nil)

// NewRepository creates a new Redis repository.
func NewRepository(client *Client, logger *slog.Logger) *Repository {
	return &Repository{
		client: client,
		logger: logger,
	}
}

// Ping checks that Redis answers.
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

// ListSales returns every sales account ordered by id.
func (r *Repository) ListSales(ctx context.Context) ([]domain.SalesAccount, error) {
	accounts, err := r.loadSales(ctx, r.client.Native())
	if err != nil {
		return nil, err
	}

	out := make([]domain.SalesAccount, 0, len(accounts))
	for id, acc := range accounts {
		acc.ID = id
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool {
		return lessSequential(domain.SalesIDPrefix, out[i].ID, out[j].ID)
	})
	return out, nil
}

// GetSales retrieves one account.
func (r *Repository) GetSales(ctx context.Context, id string) (*domain.SalesAccount, error) {
	accounts, err := r.loadSales(ctx, r.client.Native())
	if err != nil {
		return nil, err
	}
	acc, ok := accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	acc.ID = id
	return &acc, nil
}

// AddSales stores a new account under the next sequential id.
func (r *Repository) AddSales(ctx context.Context, name, password string) (*domain.SalesAccount, error) {
	var created domain.SalesAccount

	err := r.watch(ctx, func(tx *redis.Tx) error {
		accounts, err := r.loadSales(ctx, tx)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(accounts))
		for id, acc := range accounts {
			if sameName(acc.Name, name) {
				return fmt.Errorf("sales %q: %w", name, domain.ErrDuplicate)
			}
			ids = append(ids, id)
		}

		created = domain.SalesAccount{
			ID:       domain.NextSequentialID(domain.SalesIDPrefix, ids),
			Name:     name,
			Password: password,
		}
		accounts[created.ID] = created

		return r.storeSales(ctx, tx, accounts)
	}, KeySalesData)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// DeleteSales removes one account.
func (r *Repository) DeleteSales(ctx context.Context, id string) error {
	return r.watch(ctx, func(tx *redis.Tx) error {
		accounts, err := r.loadSales(ctx, tx)
		if err != nil {
			return err
		}
		if _, ok := accounts[id]; !ok {
			return domain.ErrNotFound
		}
		delete(accounts, id)
		return r.storeSales(ctx, tx, accounts)
	}, KeySalesData)
}

// ResetSales removes every account.
func (r *Repository) ResetSales(ctx context.Context) error {
	if err := r.client.Del(ctx, KeySalesData); err != nil {
		return fmt.Errorf("reset sales: %w", err)
	}
	return nil
}

// ListOutlets returns every outlet ordered by id.
func (r *Repository) ListOutlets(ctx context.Context) ([]domain.Outlet, error) {
	entries, err := r.client.Native().HGetAll(ctx, KeyOutlets).Result()
	if err != nil {
		return nil, fmt.Errorf("list outlets: %w", err)
	}

	out := make([]domain.Outlet, 0, len(entries))
	for id, name := range entries {
		out = append(out, domain.Outlet{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool {
		return lessSequential(domain.OutletIDPrefix, out[i].ID, out[j].ID)
	})
	return out, nil
}

// GetOutlet retrieves one outlet.
func (r *Repository) GetOutlet(ctx context.Context, id string) (*domain.Outlet, error) {
	name, err := r.client.Native().HGet(ctx, KeyOutlets, id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get outlet: %w", err)
	}
	return &domain.Outlet{ID: id, Name: name}, nil
}

// AddOutlet stores a new outlet under the next sequential id.
func (r *Repository) AddOutlet(ctx context.Context, name string) (*domain.Outlet, error) {
	var created domain.Outlet

	err := r.watch(ctx, func(tx *redis.Tx) error {
		entries, err := tx.HGetAll(ctx, KeyOutlets).Result()
		if err != nil {
			return fmt.Errorf("load outlets: %w", err)
		}

		ids := make([]string, 0, len(entries))
		for id, existing := range entries {
			if sameName(existing, name) {
				return fmt.Errorf("outlet %q: %w", name, domain.ErrDuplicate)
			}
			ids = append(ids, id)
		}

		created = domain.Outlet{ID: domain.NextSequentialID(domain.OutletIDPrefix, ids), Name: name}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, KeyOutlets, created.ID, created.Name)
			return nil
		})
		return err
	}, KeyOutlets)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// DeleteOutlet removes one outlet.
func (r *Repository) DeleteOutlet(ctx context.Context, id string) error {
	return r.hdel(ctx, KeyOutlets, id)
}

// ResetOutlets removes every outlet.
func (r *Repository) ResetOutlets(ctx context.Context) error {
	if err := r.client.Del(ctx, KeyOutlets); err != nil {
		return fmt.Errorf("reset outlets: %w", err)
	}
	return nil
}

// ListProducts returns every product ordered by name. Malformed entries are
// skipped.
func (r *Repository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	entries, err := r.client.Native().HGetAll(ctx, KeyProducts).Result()
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	out := make([]domain.Product, 0, len(entries))
	for id, raw := range entries {
		p, err := decodeProduct(id, raw)
		if err != nil {
			r.logger.Warn("skipping malformed product", "product_id", id, "error", err)
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// GetProduct retrieves one product.
func (r *Repository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	raw, err := r.client.Native().HGet(ctx, KeyProducts, id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return decodeProduct(id, raw)
}

// AddProduct stores a product keyed by the slug of its name.
func (r *Repository) AddProduct(ctx context.Context, name string) (*domain.Product, error) {
	id := domain.ProductSlug(name)
	if id == "" {
		return nil, domain.NewValidationError("name", "product name must contain letters or digits")
	}
	created := domain.Product{ID: id, Name: name}

	err := r.watch(ctx, func(tx *redis.Tx) error {
		entries, err := tx.HGetAll(ctx, KeyProducts).Result()
		if err != nil {
			return fmt.Errorf("load products: %w", err)
		}

		if _, exists := entries[id]; exists {
			return fmt.Errorf("product %q: %w", id, domain.ErrDuplicate)
		}
		for existingID, raw := range entries {
			p, err := decodeProduct(existingID, raw)
			if err == nil && sameName(p.Name, name) {
				return fmt.Errorf("product %q: %w", name, domain.ErrDuplicate)
			}
		}

		data, err := json.Marshal(created)
		if err != nil {
			return fmt.Errorf("marshal product: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, KeyProducts, id, string(data))
			return nil
		})
		return err
	}, KeyProducts)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// DeleteProduct removes one product.
func (r *Repository) DeleteProduct(ctx context.Context, id string) error {
	return r.hdel(ctx, KeyProducts, id)
}

// ResetProducts removes every product.
func (r *Repository) ResetProducts(ctx context.Context) error {
	if err := r.client.Del(ctx, KeyProducts); err != nil {
		return fmt.Errorf("reset products: %w", err)
	}
	return nil
}

// GetAdminNumber returns the notification destination.
func (r *Repository) GetAdminNumber(ctx context.Context) (string, error) {
	return r.getString(ctx, KeyAdminWhatsAppNumber)
}

// SetAdminNumber stores the notification destination.
func (r *Repository) SetAdminNumber(ctx context.Context, number string) error {
	if err := r.client.Set(ctx, KeyAdminWhatsAppNumber, number, 0); err != nil {
		return fmt.Errorf("save admin number: %w", err)
	}
	return nil
}

// GetTemplate returns the notification template.
func (r *Repository) GetTemplate(ctx context.Context) (string, error) {
	return r.getString(ctx, KeyNotificationTemplate)
}

// SetTemplate stores the notification template.
func (r *Repository) SetTemplate(ctx context.Context, template string) error {
	if err := r.client.Set(ctx, KeyNotificationTemplate, template, 0); err != nil {
		return fmt.Errorf("save notification template: %w", err)
	}
	return nil
}

func (r *Repository) getString(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	if v == "" {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (r *Repository) hdel(ctx context.Context, key, field string) error {
	n, err := r.client.Native().HDel(ctx, key, field).Result()
	if err != nil {
		return fmt.Errorf("delete %s[%s]: %w", key, field, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// watch runs fn in an optimistic transaction on keys, retrying when another
// writer touched them first.
func (r *Repository) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Native().Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			r.logger.Debug("transaction conflict, retrying", "keys", keys, "attempt", i+1)
			continue
		}
		return err
	}
	return fmt.Errorf("update %s: too many concurrent writers", strings.Join(keys, ","))
}

func (r *Repository) loadSales(ctx context.Context, c stringGetter) (map[string]domain.SalesAccount, error) {
	raw, err := c.Get(ctx, KeySalesData).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return make(map[string]domain.SalesAccount), nil
		}
		return nil, fmt.Errorf("get sales data: %w", err)
	}

	accounts := make(map[string]domain.SalesAccount)
	if raw == "" {
		return accounts, nil
	}
	if err := json.Unmarshal([]byte(raw), &accounts); err != nil {
		return nil, fmt.Errorf("unmarshal sales data: %w", err)
	}
	return accounts, nil
}

func (r *Repository) storeSales(ctx context.Context, tx *redis.Tx, accounts map[string]domain.SalesAccount) error {
	data, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("marshal sales data: %w", err)
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, KeySalesData, string(data), 0)
		return nil
	})
	return err
}

func decodeProduct(id, raw string) (*domain.Product, error) {
	var p domain.Product
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("unmarshal product %s: %w", id, err)
	}
	if p.ID == "" {
		p.ID = id
	}
	if p.Name == "" {
		return nil, fmt.Errorf("product %s has no name", id)
	}
	return &p, nil
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func lessSequential(prefix, a, b string) bool {
	na, nb := domain.SequenceNumber(prefix, a), domain.SequenceNumber(prefix, b)
	if na != nb {
		return na < nb
	}
	return a < b
}
