// Package render substitutes submission data into notification templates.
package render

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"sales-collector/internal/domain"
)

// Fallback texts for missing data.
const (
	Placeholder          = "-"
	NoProducts           = "No products"
	NoImageLocations     = "No image locations available"
	NoSubmitLocation     = "Submit location not available"
	imageLocationMissing = "Location not available"
	currencyPrefix       = "Rp "
)

// Renderer turns a template into notification text. Printers and casers are
// built per call since neither may be shared between goroutines.
type Renderer struct {
	loc  *time.Location
	now  func() time.Time
	lang language.Tag
}

// New creates a Renderer that stamps dates in loc. A nil now uses time.Now.
func New(loc *time.Location, now func() time.Time) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Renderer{
		loc:  loc,
		now:  now,
		lang: language.Indonesian,
	}
}

// Render replaces every recognized token. Tokens whose data is missing and
// that have no fallback are left untouched.
func (r *Renderer) Render(template string, sub *domain.EnrichedSubmission) string {
	if sub == nil {
		sub = &domain.EnrichedSubmission{}
	}

	var pairs []string
	add := func(token, value string) {
		pairs = append(pairs, "{"+token+"}", value)
	}
	addIfSet := func(token, value string) {
		if value != "" {
			add(token, value)
		}
	}

	add("date", r.date())
	addIfSet("sales_name", firstNonEmpty(sub.SalesName, sub.SalesID))
	addIfSet("outlet_name", firstNonEmpty(sub.OutletName, sub.OutletID))
	add("outlet_type", firstNonEmpty(sub.OutletType, Placeholder))
	addIfSet("address", sub.Address)
	addIfSet("order_type", sub.OrderType)
	addIfSet("tax_type", sub.TaxType)
	addIfSet("customer_category", sub.CustomerCategory)
	add("bonus", firstNonEmpty(sub.Bonus, Placeholder))
	addIfSet("billing_status", sub.BillingStatus)
	add("alasan_tidak_tertagih", r.billingException(sub))
	add("products_list", r.productsList(sub))
	add("total_amount", r.FormatRupiah(Total(sub.SelectedProducts)))
	add("images_locations", imageLocations(sub.ImageLocations))
	add("submit_location", submitLocation(sub.SubmitLocation))

	return strings.NewReplacer(pairs...).Replace(template)
}

// Total sums price times quantity over the selection.
func Total(selections domain.ProductSelections) int64 {
	var total int64
	for _, sel := range selections {
		total += sel.Subtotal()
	}
	return total
}

// FormatRupiah formats n as "Rp 25.000".
func (r *Renderer) FormatRupiah(n int64) string {
	return currencyPrefix + message.NewPrinter(r.lang).Sprintf("%d", n)
}

func (r *Renderer) date() string {
	t := r.now().In(r.loc)
	return fmt.Sprintf("%d/%d/%d", t.Day(), int(t.Month()), t.Year())
}

func (r *Renderer) billingException(sub *domain.EnrichedSubmission) string {
	if sub.BillingStatus == domain.BillingNotCollected && sub.BillingExceptionNote != "" {
		return sub.BillingExceptionNote
	}
	return Placeholder
}

func (r *Renderer) productsList(sub *domain.EnrichedSubmission) string {
	if len(sub.SelectedProducts) == 0 {
		return NoProducts
	}

	lines := make([]string, 0, len(sub.SelectedProducts))
	for _, sel := range sub.SelectedProducts {
		lines = append(lines, fmt.Sprintf("- %s: %s x %s",
			r.productName(sub.ProductNames, sel.ProductID),
			quantity(sel.Quantity),
			r.price(sel.UnitPrice)))
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) productName(names map[string]string, id string) string {
	if name := names[id]; name != "" {
		return name
	}
	return cases.Title(language.Und, cases.NoLower).String(strings.ReplaceAll(id, "_", " "))
}

func (r *Renderer) price(a domain.Amount) string {
	if n, ok := a.Int(); ok {
		return r.FormatRupiah(n)
	}
	return currencyPrefix + strings.TrimSpace(string(a))
}

func quantity(a domain.Amount) string {
	if s := strings.TrimSpace(string(a)); s != "" {
		return s
	}
	return "0"
}

func imageLocations(locs []*domain.Location) string {
	if len(locs) == 0 {
		return NoImageLocations
	}

	lines := make([]string, 0, len(locs)*2)
	for i, loc := range locs {
		url := loc.MapURL()
		if url == "" {
			lines = append(lines, fmt.Sprintf("Image %d: %s", i+1, imageLocationMissing))
			continue
		}
		lines = append(lines,
			fmt.Sprintf("Image %d: %s", i+1, url),
			"Taken at: "+loc.Timestamp)
	}
	return strings.Join(lines, "\n")
}

func submitLocation(loc *domain.Location) string {
	url := loc.MapURL()
	if url == "" {
		return NoSubmitLocation
	}
	return url + "\nSubmitted at: " + loc.Timestamp
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
