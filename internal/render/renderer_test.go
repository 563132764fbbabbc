package render

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"time"

	"sales-collector/internal/config"
	"sales-collector/internal/domain"
)

var fixedNow = func() time.Time {
	return time.Date(2026, time.October, 19, 20, 30, 0, 0, time.UTC)
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		t.Skipf("tzdata not available: %v", err)
	}
	return New(loc, fixedNow)
}

func decodeSubmission(t *testing.T, raw string) *domain.EnrichedSubmission {
	t.Helper()
	var sub domain.Submission
	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		t.Fatalf("decode submission: %v", err)
	}
	return &domain.EnrichedSubmission{Submission: sub}
}

const fullSubmission = `{
	"sales": "sales1",
	"namaOutlet": "outlet3",
	"tipeOutlet": "Grosir",
	"alamat": "Jl. Merdeka 1",
	"tipePesanan": "Reguler",
	"selectedProducts": {
		"p1": {"hargaJual": 10000, "jumlah": 2},
		"p2": {"hargaJual": "5000", "jumlah": "1"}
	},
	"tipePajak": "PPN",
	"kategoriCustomer": "Baru",
	"bonus": "Payung",
	"penagihan": "TIDAK TERTAGIH",
	"alasanTidakTertagih": "Toko tutup",
	"imagesLocations": [
		{"url": "https://www.google.com/maps?q=-6.2,106.8", "timestamp": "19/10/2026 10.00.00"},
		null
	],
	"submitLocation": {"url": "https://www.google.com/maps?q=-6.3,106.9", "timestamp": "19/10/2026 10.05.00"},
	"timestamp": "2026-10-19T03:05:00Z"
}`

func TestRender_AllTokensSubstituted(t *testing.T) {
	r := newTestRenderer(t)
	sub := decodeSubmission(t, fullSubmission)
	sub.SalesName = "Budi"
	sub.OutletName = "Toko Makmur"
	sub.ProductNames = map[string]string{"p1": "Kopi Susu", "p2": "Teh Manis"}

	out := r.Render(config.DefaultNotificationTemplate, sub)

	if leftover := regexp.MustCompile(`\{[a-z_]+\}`).FindString(out); leftover != "" {
		t.Fatalf("token %s left in output:\n%s", leftover, out)
	}

	for _, want := range []string{
		"Date: 20/10/2026",
		"Sales: Budi",
		"Outlet: Toko Makmur",
		"Outlet Type: Grosir",
		"- Kopi Susu: 2 x Rp 10.000\n- Teh Manis: 1 x Rp 5.000",
		"Total: Rp 25.000",
		"Bonus: Payung",
		"Alasan: Toko tutup",
		"Image 1: https://www.google.com/maps?q=-6.2,106.8\nTaken at: 19/10/2026 10.00.00\nImage 2: Location not available",
		"Lokasi Submit: https://www.google.com/maps?q=-6.3,106.9\nSubmitted at: 19/10/2026 10.05.00",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRender_Deterministic(t *testing.T) {
	r := newTestRenderer(t)
	sub := decodeSubmission(t, fullSubmission)

	first := r.Render(config.DefaultNotificationTemplate, sub)
	second := r.Render(config.DefaultNotificationTemplate, sub)
	if first != second {
		t.Error("render output differs between identical calls")
	}
}

func TestRender_ProductsInInsertionOrder(t *testing.T) {
	r := newTestRenderer(t)
	sub := decodeSubmission(t, `{"sales":"s","namaOutlet":"o","selectedProducts":{
		"zeta": {"hargaJual": 1000, "jumlah": 1},
		"alpha": {"hargaJual": 2000, "jumlah": 3}
	}}`)

	got := r.Render("{products_list}", sub)
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), got)
	}
	if !strings.HasPrefix(lines[0], "- Zeta:") || !strings.HasPrefix(lines[1], "- Alpha:") {
		t.Errorf("order mismatch: %q", lines)
	}
}

func TestRender_Fallbacks(t *testing.T) {
	r := newTestRenderer(t)
	sub := decodeSubmission(t, `{"sales":"sales9","namaOutlet":"outlet4","penagihan":"TERTAGIH","alasanTidakTertagih":"ignored"}`)

	tests := []struct {
		template string
		want     string
	}{
		{"{sales_name}", "sales9"},
		{"{outlet_name}", "outlet4"},
		{"{outlet_type}", "-"},
		{"{bonus}", "-"},
		{"{alasan_tidak_tertagih}", "-"},
		{"{billing_status}", "TERTAGIH"},
		{"{products_list}", "No products"},
		{"{total_amount}", "Rp 0"},
		{"{images_locations}", "No image locations available"},
		{"{submit_location}", "Submit location not available"},
		{"{address}|{order_type}|{tax_type}|{customer_category}", "{address}|{order_type}|{tax_type}|{customer_category}"},
		{"{unknown}", "{unknown}"},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			if got := r.Render(tt.template, sub); got != tt.want {
				t.Errorf("render mismatch: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender_ProductNameFallback(t *testing.T) {
	r := newTestRenderer(t)
	sub := decodeSubmission(t, `{"sales":"s","namaOutlet":"o","selectedProducts":{"kopi_susu_gula_aren":{"hargaJual":"abc","jumlah":2}}}`)

	got := r.Render("{products_list}|{total_amount}", sub)
	want := "- Kopi Susu Gula Aren: 2 x Rp abc|Rp 0"
	if got != want {
		t.Errorf("render mismatch: got %q, want %q", got, want)
	}
}

func TestRender_RepeatedTokens(t *testing.T) {
	r := newTestRenderer(t)
	sub := decodeSubmission(t, `{"sales":"s","namaOutlet":"o","bonus":"Gelas"}`)

	if got := r.Render("{bonus} {bonus}", sub); got != "Gelas Gelas" {
		t.Errorf("render mismatch: got %q", got)
	}
}

func TestRender_LocationFromCoordinates(t *testing.T) {
	r := newTestRenderer(t)
	sub := decodeSubmission(t, `{"sales":"s","namaOutlet":"o","submitLocation":{"latitude":-6.2,"longitude":106.816666,"timestamp":"now"}}`)

	want := "https://www.google.com/maps?q=-6.2,106.816666\nSubmitted at: now"
	if got := r.Render("{submit_location}", sub); got != want {
		t.Errorf("render mismatch: got %q, want %q", got, want)
	}
}

func TestTotal(t *testing.T) {
	sels := domain.ProductSelections{
		{ProductID: "a", UnitPrice: "10000", Quantity: "2"},
		{ProductID: "b", UnitPrice: "5000", Quantity: "1"},
		{ProductID: "c", UnitPrice: "", Quantity: "4"},
	}
	if got := Total(sels); got != 25000 {
		t.Errorf("Total mismatch: got %d, want 25000", got)
	}
}

func TestFormatRupiah(t *testing.T) {
	r := New(time.UTC, fixedNow)
	tests := map[int64]string{
		0:       "Rp 0",
		999:     "Rp 999",
		25000:   "Rp 25.000",
		1234567: "Rp 1.234.567",
	}
	for n, want := range tests {
		if got := r.FormatRupiah(n); got != want {
			t.Errorf("FormatRupiah(%d) mismatch: got %s, want %s", n, got, want)
		}
	}
}
