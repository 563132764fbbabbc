package redis

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"sales-collector/internal/config"
	"sales-collector/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// getTestRepository starts an in-memory Redis and a repository on top of it.
func getTestRepository(t *testing.T) (*Repository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := NewClient(config.RedisConfig{
		Addr:         mr.Addr(),
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     2,
	})
	if err != nil {
		t.Fatalf("failed to connect to miniredis: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return NewRepository(client, newTestLogger()), mr
}

func TestSales_AddListGetDelete(t *testing.T) {
	repo, mr := getTestRepository(t)
	ctx := context.Background()

	first, err := repo.AddSales(ctx, "Budi", "rahasia")
	if err != nil {
		t.Fatalf("failed to add sales: %v", err)
	}
	if first.ID != "sales1" {
		t.Errorf("ID mismatch: got %s, want sales1", first.ID)
	}

	second, err := repo.AddSales(ctx, "Siti", "pw")
	if err != nil {
		t.Fatalf("failed to add sales: %v", err)
	}
	if second.ID != "sales2" {
		t.Errorf("ID mismatch: got %s, want sales2", second.ID)
	}

	raw, err := mr.Get(KeySalesData)
	if err != nil {
		t.Fatalf("sales_data missing: %v", err)
	}
	want := `{"sales1":{"name":"Budi","password":"rahasia"},"sales2":{"name":"Siti","password":"pw"}}`
	if raw != want {
		t.Errorf("stored blob mismatch:\ngot  %s\nwant %s", raw, want)
	}

	got, err := repo.GetSales(ctx, "sales2")
	if err != nil {
		t.Fatalf("failed to get sales: %v", err)
	}
	if got.Name != "Siti" || got.Password != "pw" {
		t.Errorf("sales mismatch: got %+v", got)
	}

	if err := repo.DeleteSales(ctx, "sales1"); err != nil {
		t.Fatalf("failed to delete sales: %v", err)
	}
	list, err := repo.ListSales(ctx)
	if err != nil {
		t.Fatalf("failed to list sales: %v", err)
	}
	if len(list) != 1 || list[0].ID != "sales2" {
		t.Errorf("list mismatch: got %+v", list)
	}

	third, err := repo.AddSales(ctx, "Andi", "pw")
	if err != nil {
		t.Fatalf("failed to add sales: %v", err)
	}
	if third.ID != "sales3" {
		t.Errorf("ID should follow the highest existing id: got %s, want sales3", third.ID)
	}
}

func TestSales_DuplicateNameAndMissing(t *testing.T) {
	repo, _ := getTestRepository(t)
	ctx := context.Background()

	if _, err := repo.AddSales(ctx, "Budi", "a"); err != nil {
		t.Fatalf("failed to add sales: %v", err)
	}
	if _, err := repo.AddSales(ctx, " budi ", "b"); !errors.Is(err, domain.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	if _, err := repo.GetSales(ctx, "sales9"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := repo.DeleteSales(ctx, "sales9"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOutlets_SequentialIDsAndOrder(t *testing.T) {
	repo, mr := getTestRepository(t)
	ctx := context.Background()

	mr.HSet(KeyOutlets, "outlet9", "Toko Lama")
	mr.HSet(KeyOutlets, "outlet10", "Toko Baru")

	created, err := repo.AddOutlet(ctx, "Warung Bu Ani")
	if err != nil {
		t.Fatalf("failed to add outlet: %v", err)
	}
	if created.ID != "outlet11" {
		t.Errorf("ID mismatch: got %s, want outlet11", created.ID)
	}

	if _, err := repo.AddOutlet(ctx, "TOKO LAMA"); !errors.Is(err, domain.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	list, err := repo.ListOutlets(ctx)
	if err != nil {
		t.Fatalf("failed to list outlets: %v", err)
	}
	wantIDs := []string{"outlet9", "outlet10", "outlet11"}
	if len(list) != len(wantIDs) {
		t.Fatalf("list length mismatch: got %d, want %d", len(list), len(wantIDs))
	}
	for i, id := range wantIDs {
		if list[i].ID != id {
			t.Errorf("list[%d] mismatch: got %s, want %s", i, list[i].ID, id)
		}
	}

	if err := repo.DeleteOutlet(ctx, "outlet9"); err != nil {
		t.Fatalf("failed to delete outlet: %v", err)
	}
	if _, err := repo.GetOutlet(ctx, "outlet9"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := repo.DeleteOutlet(ctx, "outlet9"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}

	if err := repo.ResetOutlets(ctx); err != nil {
		t.Fatalf("failed to reset outlets: %v", err)
	}
	if mr.Exists(KeyOutlets) {
		t.Error("outlets hash should be gone after reset")
	}
}

func TestProducts_SlugAndMalformedEntries(t *testing.T) {
	repo, mr := getTestRepository(t)
	ctx := context.Background()

	created, err := repo.AddProduct(ctx, "Kopi Susu (Botol) 250ml")
	if err != nil {
		t.Fatalf("failed to add product: %v", err)
	}
	if created.ID != "kopi_susu_botol_250ml" {
		t.Errorf("ID mismatch: got %s, want kopi_susu_botol_250ml", created.ID)
	}

	if _, err := repo.AddProduct(ctx, "kopi susu (botol) 250ML"); !errors.Is(err, domain.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	if _, err := repo.AddProduct(ctx, "!!!"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	mr.HSet(KeyProducts, "broken", "{not json")
	mr.HSet(KeyProducts, "teh", `{"id":"teh","name":"Teh Manis"}`)

	list, err := repo.ListProducts(ctx)
	if err != nil {
		t.Fatalf("failed to list products: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("malformed entry should be skipped: got %+v", list)
	}
	if list[0].Name != "Kopi Susu (Botol) 250ml" || list[1].Name != "Teh Manis" {
		t.Errorf("order mismatch: got %+v", list)
	}

	got, err := repo.GetProduct(ctx, "teh")
	if err != nil {
		t.Fatalf("failed to get product: %v", err)
	}
	if got.Name != "Teh Manis" {
		t.Errorf("Name mismatch: got %s, want Teh Manis", got.Name)
	}
}

func TestAdminSettings(t *testing.T) {
	repo, _ := getTestRepository(t)
	ctx := context.Background()

	if _, err := repo.GetAdminNumber(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetTemplate(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := repo.SetAdminNumber(ctx, "628111"); err != nil {
		t.Fatalf("failed to set number: %v", err)
	}
	if err := repo.SetTemplate(ctx, "Order {outlet_name}"); err != nil {
		t.Fatalf("failed to set template: %v", err)
	}

	number, err := repo.GetAdminNumber(ctx)
	if err != nil || number != "628111" {
		t.Errorf("number mismatch: got %q (%v)", number, err)
	}
	tmpl, err := repo.GetTemplate(ctx)
	if err != nil || tmpl != "Order {outlet_name}" {
		t.Errorf("template mismatch: got %q (%v)", tmpl, err)
	}
}

func TestPing_Offline(t *testing.T) {
	repo, mr := getTestRepository(t)

	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
	mr.Close()
	if err := repo.Ping(context.Background()); err == nil {
		t.Error("expected ping error after shutdown")
	}
}
