package bpk

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/regwatch-id/bpk-crawler/internal/regwatch"
)

var (
	titleKeyRE = regexp.MustCompile(`(?i)(uu|pp|perpres|permen|perda)[^\d]*([0-9a-zA-Z]+)\s*tahun\s*(\d{4})`)
	pdfHrefRE  = regexp.MustCompile(`(?i)\.pdf($|\?)`)
	lnRE       = regexp.MustCompile(`(?i)LN\s*(\d{4})\s*\(([^)]+)\)`)
	tlnRE      = regexp.MustCompile(`(?i)TLN\s*\(([^)]+)\)`)
)

// ParseDetailPage extracts regulation metadata from a detail-page document.
// Missing fields stay zero-valued; callers decide whether the result is
// complete enough to process.
func ParseDetailPage(doc *goquery.Document, pageURL string) regwatch.RegulationMetadata {
	meta := regwatch.RegulationMetadata{DetailURL: pageURL}

	if h := doc.Find("h1, h2").First(); h.Length() > 0 {
		meta.Judul = clean(h.Text())
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		meta.Tentang = clean(desc)
	}
	meta.PDFURL = findPDFURL(doc, pageURL)

	if card := findCardByHeading(doc, "metadata", "peraturan"); card != nil {
		parseMetadataCard(card, &meta)
	}
	if card := findCardByHeading(doc, "status", "peraturan"); card != nil {
		meta.Relations = parseRelations(card, pageURL)
	}

	// Fallback: the detail URL itself encodes jenis/nomor/tahun.
	if !meta.Complete() {
		if jenis, nomor, tahun, ok := ParseDetailURL(pageURL); ok {
			if meta.Jenis == "" {
				meta.Jenis = jenis
			}
			if meta.Nomor == "" {
				meta.Nomor = nomor
			}
			if meta.Tahun == 0 {
				meta.Tahun = tahun
			}
		}
	}

	meta.Status = NormalizeStatus(meta.StatusRaw)
	return meta
}

// findCardByHeading locates the .card-body whose h3/h4 heading contains all
// of the given words.
func findCardByHeading(doc *goquery.Document, words ...string) *goquery.Selection {
	var found *goquery.Selection
	doc.Find(".card .card-body").EachWithBreak(func(_ int, body *goquery.Selection) bool {
		hdr := body.Find("h3, h4").First()
		if hdr.Length() == 0 {
			return true
		}
		txt := strings.ToLower(clean(hdr.Text()))
		for _, w := range words {
			if !strings.Contains(txt, strings.ToLower(w)) {
				return true
			}
		}
		found = body
		return false
	})
	return found
}

func findPDFURL(doc *goquery.Document, pageURL string) string {
	sel := doc.Find(`a.download-file[href*=".pdf"]`).First()
	if sel.Length() == 0 {
		doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			if pdfHrefRE.MatchString(href) {
				sel = a
				return false
			}
			return true
		})
	}
	href, ok := sel.Attr("href")
	if !ok || href == "" {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func parseMetadataCard(card *goquery.Selection, meta *regwatch.RegulationMetadata) {
	card.Find(".row").Each(func(_ int, row *goquery.Selection) {
		label := strings.ToLower(clean(row.Find(".col-lg-3.fw-bold").First().Text()))
		value := clean(row.Find(".col-lg-9").First().Text())
		if label == "" || value == "" {
			return
		}
		switch label {
		case "judul":
			if meta.Judul == "" {
				meta.Judul = value
			}
			if m := titleKeyRE.FindStringSubmatch(value); m != nil {
				if meta.Jenis == "" {
					meta.Jenis = strings.ToUpper(m[1])
				}
				if meta.Nomor == "" {
					meta.Nomor = m[2]
				}
				if meta.Tahun == 0 {
					if y, err := strconv.Atoi(m[3]); err == nil {
						meta.Tahun = y
					}
				}
			}
		case "t.e.u.", "teu":
			if meta.Issuer == "" {
				meta.Issuer = value
			}
		case "nomor":
			if meta.Nomor == "" {
				meta.Nomor = value
			}
		case "bentuk singkat":
			if meta.Jenis == "" {
				meta.Jenis = strings.ToUpper(value)
			}
		case "tahun":
			if meta.Tahun == 0 {
				if y, err := strconv.Atoi(value); err == nil {
					meta.Tahun = y
				}
			}
		case "tempat penetapan":
			if meta.Lokasi == "" {
				meta.Lokasi = value
			}
		case "tanggal penetapan":
			if d := ParseDateID(value); d != "" {
				meta.PenetapanDate = d
			}
		case "tanggal pengundangan":
			if d := ParseDateID(value); d != "" {
				meta.PengundanganDate = d
			}
		case "tanggal berlaku":
			if d := ParseDateID(value); d != "" {
				meta.BerlakuDate = d
			}
		case "subjek", "bidang":
			if meta.Bidang == "" {
				meta.Bidang = value
			}
		case "status":
			meta.StatusRaw = value
		case "sumber":
			parseSumber(value, meta)
		case "lokasi":
			if meta.Lokasi == "" {
				meta.Lokasi = value
			}
		}
	})
}

func parseSumber(value string, meta *regwatch.RegulationMetadata) {
	if m := lnRE.FindStringSubmatch(value); m != nil {
		meta.LN = "LN " + m[1] + " (" + m[2] + ")"
	}
	if m := tlnRE.FindStringSubmatch(value); m != nil {
		meta.TLN = "TLN (" + m[1] + ")"
	}
	lower := strings.ToLower(value)
	if meta.LN == "" && strings.Contains(lower, "ln") {
		meta.LN = value
	}
	if meta.TLN == "" && strings.Contains(lower, "tln") {
		meta.TLN = value
	}
}

// parseRelations walks the status card's sections ("Mencabut", "Dicabut
// oleh", ...) and collects the regulation links listed under each.
func parseRelations(card *goquery.Selection, pageURL string) []regwatch.Relation {
	base, _ := url.Parse(pageURL)
	container := card.Find(".container.fs-6").First()
	if container.Length() == 0 {
		container = card
	}

	var relations []regwatch.Relation
	current := ""
	container.ChildrenFiltered(".row").Each(func(_ int, row *goquery.Selection) {
		if sec := row.Find(".fw-semibold").First(); sec.Length() > 0 {
			head := strings.ToLower(clean(sec.Text()))
			switch {
			case strings.Contains(head, "dicabut oleh"):
				current = regwatch.RelationDicabutOleh
			case strings.Contains(head, "diubah oleh"):
				current = regwatch.RelationDiubahOleh
			case strings.Contains(head, "mengubah"):
				current = regwatch.RelationMengubah
			case strings.Contains(head, "mencabut"):
				current = regwatch.RelationMencabut
			default:
				current = ""
			}
			return
		}
		row.Find("ol li").Each(func(_ int, li *goquery.Selection) {
			rel := regwatch.Relation{Type: current}
			if rel.Type == "" {
				rel.Type = regwatch.RelationMengubah
			}
			a := li.Find("a").First()
			if a.Length() > 0 {
				rel.Text = clean(a.Text())
				if href, ok := a.Attr("href"); ok && base != nil {
					if ref, err := url.Parse(href); err == nil {
						rel.URL = base.ResolveReference(ref).String()
					}
				}
			} else {
				rel.Text = clean(li.Text())
			}
			relations = append(relations, rel)
		})
	})
	return relations
}
