package scanner

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// SearchURL builds the search page URL for query.
func (s *Scanner) SearchURL(query string) string {
	u := s.base.ResolveReference(mustParse(s.site.SearchPath))
	q := u.Query()
	q.Set(s.site.SearchParam, query)
	u.RawQuery = q.Encode()
	return u.String()
}

// ExploreURL resolves a listing page. Absolute http(s) URLs are used as
// given, relative ones are resolved against the site, and an empty string
// selects the configured explore page.
func (s *Scanner) ExploreURL(pageURL string) (string, error) {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		pageURL = s.site.ExplorePath
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}
	if u.IsAbs() {
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
		}
		if u.Host == "" {
			return "", fmt.Errorf("page URL %q has no host", pageURL)
		}
		return u.String(), nil
	}
	return s.base.ResolveReference(u).String(), nil
}

// ExplorePageNumber is the URL of the n-th explore page. Pages below 2 are
// the explore page itself.
func (s *Scanner) ExplorePageNumber(n int) string {
	u := s.base.ResolveReference(mustParse(s.site.ExplorePath))
	if n >= 2 {
		q := u.Query()
		q.Set("page", strconv.Itoa(n))
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// searchTemplate is SearchURL with a literal "{query}" placeholder.
func (s *Scanner) searchTemplate() string {
	u := s.base.ResolveReference(mustParse(s.site.SearchPath))
	sep := "?"
	if u.RawQuery != "" {
		sep = "&"
	}
	return u.String() + sep + url.QueryEscape(s.site.SearchParam) + "={query}"
}

// mustParse parses configured paths. A malformed path degrades to the
// site root; Status reports such configuration as not ready.
func mustParse(ref string) *url.URL {
	u, err := url.Parse(ref)
	if err != nil {
		return &url.URL{Path: "/"}
	}
	return u
}
