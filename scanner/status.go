package scanner

import (
	"net/url"

	"github.com/use-agent/tabscan/models"
)

// Status describes the configured scanning subsystem. It does no I/O and
// always succeeds.
func (s *Scanner) Status() models.ScraperStatus {
	return models.ScraperStatus{
		ConfiguredEndpoints: []string{
			s.searchTemplate(),
			s.ExplorePageNumber(1),
		},
		DefaultTimeoutMs: s.cfg.DefaultTimeout.Milliseconds(),
		DefaultRetries:   s.cfg.DefaultRetries,
		Engines:          s.Engines(),
		Ready:            s.ready(),
		Version:          Version,
	}
}

func (s *Scanner) ready() bool {
	if s.base == nil || (s.base.Scheme != "http" && s.base.Scheme != "https") || s.base.Host == "" {
		return false
	}
	for _, p := range []string{s.site.SearchPath, s.site.ExplorePath} {
		if _, err := url.Parse(p); err != nil {
			return false
		}
	}
	if s.site.SearchParam == "" {
		return false
	}
	if s.cfg.DefaultTimeout <= 0 || s.cfg.DefaultRetries < 0 {
		return false
	}
	_, ok := s.engines[models.EngineHTTP]
	return ok
}
