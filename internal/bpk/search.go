package bpk

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/regwatch-id/bpk-crawler/internal/regwatch"
)

// BaseURL is the registry root.
const BaseURL = "https://peraturan.bpk.go.id"

// SearchPath is the paginated search endpoint under BaseURL.
const SearchPath = "/Search"

// BuildSearchURL constructs one search page URL. Years and jenis ids repeat
// as individual query parameters; the page parameter is omitted for page 1,
// matching what the registry's own pagination links do.
func BuildSearchURL(base string, filters regwatch.SearchFilters, page int) string {
	params := url.Values{}
	params.Set("keywords", "")
	params.Set("tentang", "")
	params.Set("nomor", "")
	for _, y := range filters.Years {
		params.Add("tahun", strconv.Itoa(y))
	}
	for _, j := range filters.JenisIDs {
		params.Add("jenis", strconv.Itoa(j))
	}
	if page > 1 {
		params.Add("page", strconv.Itoa(page))
	}
	return fmt.Sprintf("%s%s?%s", strings.TrimRight(base, "/"), SearchPath, params.Encode())
}

var (
	detailHrefRE = regexp.MustCompile(`(?i)^/Details/\d+/`)
	detailURLRE  = regexp.MustCompile(`(?i)/details/\d+/(uu|pp|perpres|permen|perda)-no-([0-9a-zA-Z]+)-tahun-(\d{4})`)
)

// ExtractCandidates pulls regulation candidates out of a search results
// document, de-duplicating detail links while preserving page order. Page
// order defines processing priority downstream.
func ExtractCandidates(doc *goquery.Document, pageURL string) []regwatch.CandidateRecord {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}
	seen := make(map[string]struct{})
	var out []regwatch.CandidateRecord
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !detailHrefRE.MatchString(href) {
			return
		}
		abs := href
		if base != nil {
			if ref, err := url.Parse(href); err == nil {
				abs = base.ResolveReference(ref).String()
			}
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		cand := regwatch.CandidateRecord{
			DetailURL: abs,
			Judul:     clean(sel.Text()),
		}
		if jenis, nomor, tahun, ok := ParseDetailURL(abs); ok {
			cand.Jenis = jenis
			cand.Nomor = nomor
			cand.Tahun = tahun
		}
		out = append(out, cand)
	})
	return out
}

// ParseDetailURL extracts jenis, nomor, and tahun from a detail URL of the
// form /Details/12345/uu-no-1-tahun-2024.
func ParseDetailURL(u string) (jenis, nomor string, tahun int, ok bool) {
	m := detailURLRE.FindStringSubmatch(u)
	if m == nil {
		return "", "", 0, false
	}
	tahun, err := strconv.Atoi(m[3])
	if err != nil {
		return "", "", 0, false
	}
	return strings.ToUpper(m[1]), m[2], tahun, true
}
