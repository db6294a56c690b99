package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/i474232898/easy-homey/internal/homey"
)

// PriceFor returns the price of the first entry for petrolType, or nil.
func PriceFor(prices []homey.Price, petrolType string) *float64 {
	for _, p := range prices {
		if p.PetrolType == petrolType {
			return p.Price
		}
	}
	return nil
}

// FormatEUR renders a price as "1.659 €", or "-" when missing.
func FormatEUR(price *float64) string {
	if price == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f €", *price)
}

// FormatAddress renders "street houseNumber, postalCode, city", skipping missing parts.
func FormatAddress(a *homey.Address) string {
	if a == nil {
		return ""
	}
	var parts []string
	if a.Street != "" {
		parts = append(parts, a.Street)
	}
	if a.HouseNumber != "" {
		if len(parts) > 0 {
			parts[len(parts)-1] += " " + a.HouseNumber
		} else {
			parts = append(parts, a.HouseNumber)
		}
	}
	if a.PostalCode != "" {
		parts = append(parts, a.PostalCode)
	}
	if a.City != "" {
		parts = append(parts, a.City)
	}
	return strings.Join(parts, ", ")
}

// Slug lowercases s and replaces spaces with underscores.
func Slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "_")
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func nonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func hex(c *homey.Color) any {
	if c == nil {
		return nil
	}
	return nonEmpty(c.Hex)
}

func mdiIcon(i *homey.Icon, fallback string) string {
	if i == nil || i.MdiIcon == "" {
		return fallback
	}
	return i.MdiIcon
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04:05.999999999"}

// parseDate parses an ISO date or date-time and keeps only the calendar date.
func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// dateValue renders an ISO date string as YYYY-MM-DD, or nil.
func dateValue(s string) any {
	d, ok := parseDate(s)
	if !ok {
		return nil
	}
	return d.Format("2006-01-02")
}

// daysUntil counts calendar days from today to the date in s, or nil.
func daysUntil(s string) any {
	d, ok := parseDate(s)
	if !ok {
		return nil
	}
	now := clock.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(d.Sub(today).Hours() / 24)
}
