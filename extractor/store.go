package extractor

import (
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/tabscan/models"
	"github.com/ysmood/gson"
)

// storePaths are the locations of the result list inside the page's
// embedded data store, tried in order.
var storePaths = [][]interface{}{
	{"store", "page", "data", "results"},
	{"store", "page", "data", "data", "tabs"},
}

// storeRecords reads entries from the JSON data store some listing pages
// embed in a data-content attribute instead of rendering rows.
func (e *Extractor) storeRecords(doc *goquery.Document, base *url.URL) []models.SongRecord {
	node := e.store.first(doc.Get(0))
	if node == nil {
		return nil
	}

	// gson leaves undecodable input as a nil value.
	root := gson.NewFrom(attr(node, "data-content"))
	if root.Nil() {
		slog.Debug("listing store not decodable")
		return nil
	}

	var items []gson.JSON
	for _, path := range storePaths {
		if list, ok := root.Gets(path...); ok {
			if _, isArr := list.Val().([]interface{}); isArr {
				items = list.Arr()
				break
			}
		}
	}

	var records []models.SongRecord
	skipped := 0
	for i, item := range items {
		rec, reason, ok := e.storeEntry(item, base)
		if !ok {
			skipped++
			if skipped <= maxLoggedSkips {
				slog.Debug("store entry skipped", "index", i, "reason", reason)
			}
			continue
		}
		records = append(records, rec)
	}
	if skipped > 0 {
		slog.Debug("store entries skipped", "skipped", skipped, "kept", len(records))
	}
	return records
}

func (e *Extractor) storeEntry(item gson.JSON, base *url.URL) (models.SongRecord, string, bool) {
	if _, ok := item.Val().(map[string]interface{}); !ok {
		return models.SongRecord{}, "not an object", false
	}
	band := normalizeSpace(storeField(item, "artist_name"))
	if band == "" {
		return models.SongRecord{}, "missing band", false
	}
	title := normalizeSpace(storeField(item, "song_name"))
	if title == "" {
		return models.SongRecord{}, "missing song title", false
	}
	tabID, fullURL := e.deriveTab(storeField(item, "tab_url"), storeField(item, "id"), base)
	return validate(band, title, tabID, fullURL)
}

// storeField returns a string or numeric member of item as text. Numbers
// are written without exponent so large ids stay intact.
func storeField(item gson.JSON, key string) string {
	v, ok := item.Gets(key)
	if !ok {
		return ""
	}
	switch v.Val().(type) {
	case string:
		return strings.TrimSpace(v.Str())
	case float64:
		return strconv.FormatFloat(v.Num(), 'f', -1, 64)
	}
	return ""
}
