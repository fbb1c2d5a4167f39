package extractor

import (
	"strings"

	"golang.org/x/net/html"
)

// RawPage is the diagnostic view of a fetched page.
type RawPage struct {
	RawHTML string
	Title   string
}

// ExtractSearchHTML passes the page through untouched, adding its <title>
// for quick eyeballing. It never fails.
func ExtractSearchHTML(rawHTML string) RawPage {
	return RawPage{RawHTML: rawHTML, Title: PageTitle(rawHTML)}
}

// PageTitle uses the HTML tokenizer to find the first <title> element.
func PageTitle(htmlStr string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	inTitle := false
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return normalizeSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}
