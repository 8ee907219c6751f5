// Package bpk implements parsing for the peraturan.bpk.go.id registry:
// search URL construction, listing-page link extraction, and detail-page
// metadata extraction.
package bpk

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// clean collapses runs of whitespace and trims the result.
func clean(s string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " "))
}

// monthsID maps Indonesian month names to month numbers. "nopember" is an
// older spelling still found on the registry.
var monthsID = map[string]int{
	"januari": 1, "februari": 2, "maret": 3, "april": 4, "mei": 5, "juni": 6,
	"juli": 7, "agustus": 8, "september": 9, "oktober": 10, "nopember": 11,
	"november": 11, "desember": 12,
}

var (
	dateWordsRE = regexp.MustCompile(`(?i)^(\d{1,2})\s+([A-Za-z]+)\s+(\d{4})`)
	dateISORE   = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	dateDMYRE   = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{4})`)
)

// ParseDateID parses the date formats used on the registry ("1 Januari
// 2025", "2025-01-01", "01/01/2025") into ISO YYYY-MM-DD. Returns "" when
// the input does not match any known format.
func ParseDateID(s string) string {
	s = clean(s)
	if s == "" {
		return ""
	}
	if m := dateWordsRE.FindStringSubmatch(s); m != nil {
		if mm, ok := monthsID[strings.ToLower(m[2])]; ok {
			d, _ := strconv.Atoi(m[1])
			y, _ := strconv.Atoi(m[3])
			return fmt.Sprintf("%04d-%02d-%02d", y, mm, d)
		}
	}
	if m := dateISORE.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		return fmt.Sprintf("%04d-%02d-%02d", y, mm, d)
	}
	if m := dateDMYRE.FindStringSubmatch(s); m != nil {
		d, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		y, _ := strconv.Atoi(m[3])
		return fmt.Sprintf("%04d-%02d-%02d", y, mm, d)
	}
	return ""
}

// Normalized regulation status values.
const (
	StatusBerlaku              = "BERLAKU"
	StatusDicabut              = "DICABUT"
	StatusDiubah               = "DIUBAH"
	StatusTidakBerlakuSebagian = "TIDAK_BERLAKU_SEBAGIAN"
)

// NormalizeStatus maps the free-text status shown on detail pages to an
// enum value. Order matters: "tidak berlaku sebagian" contains "tidak
// berlaku" and must be matched first.
func NormalizeStatus(s string) string {
	t := strings.ToLower(clean(s))
	if t == "" {
		return ""
	}
	switch {
	case strings.Contains(t, "tidak berlaku sebagian"), strings.Contains(t, "dicabut sebagian"):
		return StatusTidakBerlakuSebagian
	case strings.Contains(t, "dicabut"), strings.Contains(t, "tidak berlaku"):
		return StatusDicabut
	case strings.Contains(t, "diubah"), strings.Contains(t, "perubahan"):
		return StatusDiubah
	case strings.Contains(t, "berlaku"):
		return StatusBerlaku
	default:
		return ""
	}
}
