package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// SalesAccount is a field sales representative allowed to submit visits.
type SalesAccount struct {
	ID       string `json:"-"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Outlet is a visited shop, keyed "outletN".
type Outlet struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Product is a sellable item. Price and quantity live on the submission.
type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AdminConfig holds the notification destination and message template.
type AdminConfig struct {
	PhoneNumber          string `json:"phoneNumber"`
	NotificationTemplate string `json:"notificationTemplate"`
}

// ID prefixes for sequential reference keys.
const (
	SalesIDPrefix  = "sales"
	OutletIDPrefix = "outlet"
)

// SequenceNumber extracts N from ids shaped "<prefix>N". Other ids yield 0.
func SequenceNumber(prefix, id string) int {
	rest, ok := strings.CutPrefix(id, prefix)
	if !ok || rest == "" {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// NextSequentialID returns "<prefix>(max+1)" over the existing ids.
func NextSequentialID(prefix string, existing []string) string {
	highest := 0
	for _, id := range existing {
		if n := SequenceNumber(prefix, id); n > highest {
			highest = n
		}
	}
	return prefix + strconv.Itoa(highest+1)
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonSlugChars  = regexp.MustCompile(`[^a-z0-9_]`)
)

// ProductSlug derives a product id from its display name.
func ProductSlug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = whitespaceRun.ReplaceAllString(s, "_")
	return nonSlugChars.ReplaceAllString(s, "")
}
