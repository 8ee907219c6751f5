package bpk

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/regwatch-id/bpk-crawler/internal/regwatch"
)

func TestBuildSearchURL(t *testing.T) {
	t.Parallel()

	filters := regwatch.SearchFilters{Years: []int{2024, 2023}, JenisIDs: []int{8, 10}}

	got := BuildSearchURL(BaseURL, filters, 1)
	require.Equal(t,
		"https://peraturan.bpk.go.id/Search?jenis=8&jenis=10&keywords=&nomor=&tahun=2024&tahun=2023&tentang=",
		got)

	got = BuildSearchURL(BaseURL+"/", filters, 3)
	require.Contains(t, got, "page=3")
	require.True(t, strings.HasPrefix(got, "https://peraturan.bpk.go.id/Search?"))
}

func TestParseDetailURL(t *testing.T) {
	t.Parallel()

	jenis, nomor, tahun, ok := ParseDetailURL("https://peraturan.bpk.go.id/Details/285121/uu-no-1-tahun-2024")
	require.True(t, ok)
	require.Equal(t, "UU", jenis)
	require.Equal(t, "1", nomor)
	require.Equal(t, 2024, tahun)

	jenis, nomor, tahun, ok = ParseDetailURL("/Details/999/perda-no-12a-tahun-2019")
	require.True(t, ok)
	require.Equal(t, "PERDA", jenis)
	require.Equal(t, "12a", nomor)
	require.Equal(t, 2019, tahun)

	_, _, _, ok = ParseDetailURL("/Details/999/keputusan-dirjen-no-1-tahun-2020")
	require.False(t, ok)
	_, _, _, ok = ParseDetailURL("/Search?page=2")
	require.False(t, ok)
}

const searchPageHTML = `
<html><body>
<div class="card">
  <a href="/Details/285121/uu-no-1-tahun-2024">UU No. 1 Tahun 2024</a>
  <a href="/Details/285121/uu-no-1-tahun-2024">UU No. 1 Tahun 2024 (duplicate link)</a>
</div>
<div class="card">
  <a href="/Details/301442/pp-no-5-tahun-2024">PP No. 5 Tahun 2024</a>
</div>
<div class="card">
  <a href="/Details/288110/peraturan-bi-tahun-2024">Peraturan BI</a>
</div>
<a href="/Search?page=2">Next</a>
<a href="https://example.com/outside">elsewhere</a>
</body></html>`

func TestExtractCandidates(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(searchPageHTML))
	require.NoError(t, err)

	records := ExtractCandidates(doc, "https://peraturan.bpk.go.id/Search?tahun=2024")
	require.Len(t, records, 3)

	require.Equal(t, "https://peraturan.bpk.go.id/Details/285121/uu-no-1-tahun-2024", records[0].DetailURL)
	require.Equal(t, "UU", records[0].Jenis)
	require.Equal(t, "1", records[0].Nomor)
	require.Equal(t, 2024, records[0].Tahun)
	require.Equal(t, "UU/2024/1", records[0].NaturalKey())

	require.Equal(t, "PP", records[1].Jenis)

	// Unrecognized slug still yields a candidate keyed by URL.
	require.Empty(t, records[2].Jenis)
	require.Equal(t, records[2].DetailURL, records[2].NaturalKey())
}

func TestExtractCandidatesEmptyPage(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body><p>Tidak ada hasil</p></body></html>"))
	require.NoError(t, err)

	records := ExtractCandidates(doc, "https://peraturan.bpk.go.id/Search")
	require.Empty(t, records)
}
