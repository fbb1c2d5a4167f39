// Package extractor turns listing-page HTML into validated song records.
//
// Extraction is a pure function of its input: it performs no network I/O
// and an Extractor holds only immutable configuration, so it is safe for
// concurrent use and repeated calls on the same HTML yield identical output.
package extractor

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/tabscan/config"
	"github.com/use-agent/tabscan/models"
	"golang.org/x/net/html"
)

// maxLoggedSkips bounds the per-document debug noise from malformed entries.
const maxLoggedSkips = 20

// idAttrs are entry attributes that may carry the tab id directly.
var idAttrs = []string{"data-tab-id", "data-id", "data-tabid"}

// Extractor locates listing entries with configured selectors.
type Extractor struct {
	entry selectorSet
	band  selectorSet
	title selectorSet
	link  selectorSet
	store selectorSet

	base        *url.URL
	tabTemplate string
	tabPath     string
}

// New compiles the selectors and validates the site base URL.
func New(site config.SiteConfig, sel config.SelectorConfig) (*Extractor, error) {
	base, err := url.Parse(site.BaseURL)
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("extractor: base URL %q must be absolute", site.BaseURL)
	}

	e := &Extractor{base: base, tabTemplate: site.TabURLTemplate, tabPath: site.TabPath}
	for _, s := range []struct {
		name string
		raw  string
		dst  *selectorSet
	}{
		{"entry", sel.Entry, &e.entry},
		{"band", sel.Band, &e.band},
		{"title", sel.Title, &e.title},
		{"link", sel.Link, &e.link},
		{"store", sel.Store, &e.store},
	} {
		compiled, err := compileSelectors(s.name, s.raw)
		if err != nil {
			return nil, err
		}
		*s.dst = compiled
	}
	if len(e.entry.group) == 0 && len(e.store.group) == 0 {
		return nil, errors.New("extractor: at least one of the entry or store selectors is required")
	}
	return e, nil
}

// ExtractListings parses a listing page and returns its valid entries in
// document order. Relative links resolve against the site base URL.
func (e *Extractor) ExtractListings(rawHTML string) ([]models.SongRecord, error) {
	return e.ExtractListingsAt(rawHTML, "")
}

// ExtractListingsAt is ExtractListings with relative links resolved against
// pageURL (typically the final URL of the fetch). An empty or unparsable
// pageURL falls back to the site base URL.
//
// Malformed entries are skipped. Only a blank or unreadable document is an
// error, reported as a *models.ScanError with code EXTRACTION_FAILED.
func (e *Extractor) ExtractListingsAt(rawHTML, pageURL string) ([]models.SongRecord, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, models.NewScanError(models.ErrCodeExtraction, "document is empty", nil)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, models.NewScanError(models.ErrCodeExtraction, "document could not be parsed", err)
	}

	base := e.base
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil && u.IsAbs() {
			base = u
		}
	}

	records := e.markupRecords(doc, base)
	if len(records) == 0 {
		records = e.storeRecords(doc, base)
	}
	if records == nil {
		records = []models.SongRecord{}
	}
	return records, nil
}

// markupRecords reads listing rows rendered as HTML.
func (e *Extractor) markupRecords(doc *goquery.Document, base *url.URL) []models.SongRecord {
	var records []models.SongRecord
	skipped := 0

	for i, n := range innermost(e.entry.all(doc.Get(0))) {
		rec, reason, ok := e.parseEntry(doc, n, base)
		if !ok {
			skipped++
			if skipped <= maxLoggedSkips {
				slog.Debug("listing entry skipped", "index", i, "reason", reason)
			}
			continue
		}
		records = append(records, rec)
	}

	if skipped > 0 {
		slog.Debug("listing entries skipped", "skipped", skipped, "kept", len(records))
	}
	return records
}

// parseEntry validates one listing entry. It yields a record or a skip reason.
func (e *Extractor) parseEntry(doc *goquery.Document, entry *html.Node, base *url.URL) (models.SongRecord, string, bool) {
	band := fieldText(doc, e.band.first(entry))
	if band == "" {
		return models.SongRecord{}, "missing band", false
	}

	titleNode := e.title.first(entry)
	title := fieldText(doc, titleNode)
	if title == "" {
		return models.SongRecord{}, "missing song title", false
	}

	// The title anchor is preferred, then link matches in document order.
	// Links that are not tab pages never supply an id.
	var hrefs []string
	if titleNode != nil && titleNode.Data == "a" {
		hrefs = append(hrefs, attr(titleNode, "href"))
	}
	for _, n := range e.link.all(entry) {
		hrefs = append(hrefs, attr(n, "href"))
	}
	href := ""
	for _, h := range hrefs {
		if e.tabLink(h, base) != nil {
			href = h
			break
		}
	}

	attrID := ""
	for _, key := range idAttrs {
		if v := strings.TrimSpace(attr(entry, key)); v != "" {
			attrID = v
			break
		}
	}

	tabID, fullURL := e.deriveTab(href, attrID, base)
	return validate(band, title, tabID, fullURL)
}

// deriveTab resolves the tab id and absolute URL for an entry.
//
// Only a tab link (see tabLink) is considered. The id found in it wins.
// When it carries no id, the entry's id attribute is used, keeping the link
// if it already embeds the id and otherwise building the URL from the tab
// template.
func (e *Extractor) deriveTab(href, attrID string, base *url.URL) (string, string) {
	link := e.tabLink(href, base)
	if link != nil {
		if id := tabIDFromURL(link); id != "" {
			return id, link.String()
		}
	}
	if attrID == "" {
		return "", ""
	}
	if link != nil && strings.Contains(link.String(), attrID) {
		return attrID, link.String()
	}
	if e.tabTemplate != "" && strings.Contains(e.tabTemplate, "{id}") {
		return attrID, strings.ReplaceAll(e.tabTemplate, "{id}", url.PathEscape(attrID))
	}
	return "", ""
}

// tabLink resolves href against base and returns it only when its path
// contains the configured tab path. An empty tab path accepts any link.
func (e *Extractor) tabLink(href string, base *url.URL) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil
	}
	u, err := base.Parse(href)
	if err != nil {
		return nil
	}
	if e.tabPath != "" && !strings.Contains(u.Path, e.tabPath) {
		return nil
	}
	return u
}

var trailingDigits = regexp.MustCompile(`(\d+)/?$`)

// tabIDFromURL returns the trailing numeric path segment, e.g. 12345 for
// /tab/metallica/enter-sandman-tabs-12345, or the "id" query parameter.
func tabIDFromURL(u *url.URL) string {
	if m := trailingDigits.FindStringSubmatch(u.Path); m != nil {
		return m[1]
	}
	return strings.TrimSpace(u.Query().Get("id"))
}

// validate enforces the SongRecord invariants.
func validate(band, title, tabID, fullURL string) (models.SongRecord, string, bool) {
	if tabID == "" {
		return models.SongRecord{}, "no derivable tab id", false
	}
	u, err := url.Parse(fullURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.SongRecord{}, "tab URL is not absolute", false
	}
	if !strings.Contains(fullURL, tabID) {
		return models.SongRecord{}, "tab URL does not embed tab id", false
	}
	return models.SongRecord{
		Band:      band,
		SongTitle: title,
		TabID:     tabID,
		FullURL:   fullURL,
	}, "", true
}

// fieldText returns the whitespace-normalised text of n, falling back to
// its title attribute.
func fieldText(doc *goquery.Document, n *html.Node) string {
	if n == nil {
		return ""
	}
	text := normalizeSpace(doc.FindNodes(n).Text())
	if text == "" {
		text = normalizeSpace(attr(n, "title"))
	}
	return text
}

func attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
