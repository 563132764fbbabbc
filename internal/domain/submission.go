package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// BillingNotCollected is the billing status that enables the non-collection reason.
const BillingNotCollected = "TIDAK TERTAGIH"

// Submission is one outlet visit as posted by the field form. It is never
// persisted; the server renders a notification from it and discards it.
type Submission struct {
	SalesID              string            `json:"sales" binding:"required"`
	OutletID             string            `json:"namaOutlet" binding:"required"`
	OutletType           string            `json:"tipeOutlet"`
	Address              string            `json:"alamat"`
	OrderType            string            `json:"tipePesanan"`
	SelectedProducts     ProductSelections `json:"selectedProducts"`
	TaxType              string            `json:"tipePajak"`
	CustomerCategory     string            `json:"kategoriCustomer"`
	Bonus                string            `json:"bonus"`
	NoOrderReason        string            `json:"alasanTidakPesan"`
	BillingStatus        string            `json:"penagihan"`
	BillingExceptionNote string            `json:"alasanTidakTertagih"`
	Images               []string          `json:"images"`
	ImageLocations       []*Location       `json:"imagesLocations"`
	SubmitLocation       *Location         `json:"submitLocation"`
	Timestamp            string            `json:"timestamp"`
}

// Location is a geotag captured by the browser. The form usually sends a
// ready map link; raw coordinates are accepted too.
type Location struct {
	URL       string   `json:"url"`
	Timestamp string   `json:"timestamp"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// MapURL returns the location link, building one from coordinates if needed.
func (l *Location) MapURL() string {
	if l == nil {
		return ""
	}
	if l.URL != "" {
		return l.URL
	}
	if l.Latitude != nil && l.Longitude != nil {
		return fmt.Sprintf("https://www.google.com/maps?q=%s,%s",
			strconv.FormatFloat(*l.Latitude, 'f', -1, 64),
			strconv.FormatFloat(*l.Longitude, 'f', -1, 64))
	}
	return ""
}

// ProductSelection is one ordered line of the submission.
type ProductSelection struct {
	ProductID string
	UnitPrice Amount `json:"hargaJual"`
	Quantity  Amount `json:"jumlah"`
}

// Subtotal is price times quantity; unparseable values count as zero.
func (p ProductSelection) Subtotal() int64 {
	price, okP := p.UnitPrice.Int()
	qty, okQ := p.Quantity.Int()
	if !okP || !okQ {
		return 0
	}
	return price * qty
}

// ProductSelections keeps the order in which the form listed products.
type ProductSelections []ProductSelection

// UnmarshalJSON decodes a JSON object while preserving key order.
func (s *ProductSelections) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("selectedProducts: expected an object")
	}

	var out ProductSelections
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return errors.New("selectedProducts: expected a string key")
		}
		var sel ProductSelection
		if err := dec.Decode(&sel); err != nil {
			return fmt.Errorf("selectedProducts[%s]: %w", key, err)
		}
		sel.ProductID = key
		out = append(out, sel)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*s = out
	return nil
}

// MarshalJSON writes the selections back as an ordered object.
func (s ProductSelections) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sel := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(sel.ProductID)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(struct {
			UnitPrice Amount `json:"hargaJual"`
			Quantity  Amount `json:"jumlah"`
		}{sel.UnitPrice, sel.Quantity})
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Amount is a form number that may arrive as a JSON number or a string.
type Amount string

// UnmarshalJSON accepts strings, numbers and null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = Amount(n.String())
	return nil
}

// Int parses the amount, ignoring surrounding spaces.
func (a Amount) Int() (int64, bool) {
	s := strings.TrimSpace(string(a))
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, false
		}
		return int64(f), true
	}
	return n, true
}

// EnrichedSubmission carries the human-readable names resolved from the
// reference store next to the raw submission.
type EnrichedSubmission struct {
	Submission
	SalesName    string
	OutletName   string
	ProductNames map[string]string
}
