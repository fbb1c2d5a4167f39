package extractor

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// selectorSet is a compiled comma-separated selector list. The alternatives
// keep their configured order so callers can treat earlier ones as preferred.
type selectorSet struct {
	raw   string
	group cascadia.SelectorGroup
}

// compileSelectors parses a selector list. An empty list compiles to a set
// that never matches.
func compileSelectors(name, raw string) (selectorSet, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return selectorSet{}, nil
	}
	group, err := cascadia.ParseGroup(raw)
	if err != nil {
		return selectorSet{}, fmt.Errorf("extractor: %s selector %q: %w", name, raw, err)
	}
	return selectorSet{raw: raw, group: group}, nil
}

// all returns every descendant of root matching any alternative, in document order.
func (s selectorSet) all(root *html.Node) []*html.Node {
	if len(s.group) == 0 {
		return nil
	}
	return cascadia.QueryAll(root, s.group)
}

// first returns the first descendant of root matched by the earliest
// alternative that matches anything.
func (s selectorSet) first(root *html.Node) *html.Node {
	for _, sel := range s.group {
		if n := cascadia.Query(root, sel); n != nil {
			return n
		}
	}
	return nil
}

// innermost drops nodes that contain another node of the same list. A
// container matching the entry selector yields its rows, and a row that
// matches two alternatives is still read once.
func innermost(nodes []*html.Node) []*html.Node {
	if len(nodes) < 2 {
		return nodes
	}
	set := make(map[*html.Node]struct{}, len(nodes))
	for _, n := range nodes {
		set[n] = struct{}{}
	}
	// Every ancestor of a matched node is a container.
	containers := make(map[*html.Node]struct{})
	for _, n := range nodes {
		for p := n.Parent; p != nil; p = p.Parent {
			if _, ok := set[p]; ok {
				containers[p] = struct{}{}
			}
		}
	}
	out := make([]*html.Node, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := containers[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}
