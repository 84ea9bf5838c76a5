// Package format renders amounts, dates and enum labels for console views.
package format

import (
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	printer    = message.NewPrinter(language.AmericanEnglish)
	titleCaser = cases.Title(language.English)
)

// Amount formats v with thousands separators and two decimals.
func Amount(v float64) string {
	return printer.Sprintf("%.2f", v)
}

// Money formats v as US dollars, e.g. "-$1,234.50".
func Money(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
	}
	return sign + "$" + Amount(math.Abs(v))
}

// Count formats an integer with thousands separators.
func Count(n int) string {
	return printer.Sprintf("%d", n)
}

// Label turns an upstream enum like "IN_PROGRESS" into "In Progress".
func Label(s string) string {
	return titleCaser.String(strings.ToLower(strings.ReplaceAll(s, "_", " ")))
}

// Date formats t as a calendar date in UTC.
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("Jan 2, 2006")
}

// Time formats t with minutes in UTC. A nil time renders as "Never".
func Time(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "Never"
	}
	return t.UTC().Format("Jan 2, 2006 15:04 UTC")
}
