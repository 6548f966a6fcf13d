package selector

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Resolve tries each candidate against node in order and returns the trimmed
// text of the first element that matches and has non-empty text. Only the
// first match of a candidate is considered. It returns "" when node is nil or
// no candidate yields text.
func Resolve(node *goquery.Selection, candidates []string) string {
	if empty(node) {
		return ""
	}
	for _, c := range candidates {
		m := node.Find(c).First()
		if m.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(m.Text()); text != "" {
			return text
		}
	}
	return ""
}

// First returns the first element matching any candidate, in candidate order.
// The result is an empty selection when nothing matches.
func First(node *goquery.Selection, candidates ...string) *goquery.Selection {
	if empty(node) {
		return &goquery.Selection{}
	}
	for _, c := range candidates {
		if m := node.Find(c).First(); m.Length() > 0 {
			return m
		}
	}
	return &goquery.Selection{}
}

// All returns every element matching candidate, in document order, as single
// element selections.
func All(node *goquery.Selection, candidate string) []*goquery.Selection {
	if empty(node) {
		return nil
	}
	var out []*goquery.Selection
	node.Find(candidate).Each(func(_ int, s *goquery.Selection) {
		out = append(out, s)
	})
	return out
}

// Exists reports whether candidate matches anything below node.
func Exists(node *goquery.Selection, candidate string) bool {
	if empty(node) {
		return false
	}
	return node.Find(candidate).Length() > 0
}

func empty(node *goquery.Selection) bool {
	return node == nil || node.Length() == 0
}
