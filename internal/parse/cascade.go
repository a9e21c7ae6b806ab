package parse

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/zulandar/skimmer/internal/timestamp"
)

// Strategy extracts one field value from a message node.
type Strategy func(node *goquery.Selection) (string, bool)

// Cascade is an ordered list of strategies; the first non-empty result wins.
type Cascade []Strategy

// Resolve runs the cascade against node.
func (c Cascade) Resolve(node *goquery.Selection) (string, bool) {
	for _, s := range c {
		if v, ok := s(node); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// Attr reads an attribute from the node itself.
func Attr(name string) Strategy {
	return func(node *goquery.Selection) (string, bool) {
		v, ok := node.Attr(name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
}

// NestedAttr reads an attribute from the first descendant matching selector.
func NestedAttr(selector, name string) Strategy {
	return func(node *goquery.Selection) (string, bool) {
		v, ok := node.Find(selector).First().Attr(name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
}

// NestedText reads the collapsed text of the first descendant matching selector.
func NestedText(selector string) Strategy {
	return func(node *goquery.Selection) (string, bool) {
		sel := node.Find(selector).First()
		if sel.Length() == 0 {
			return "", false
		}
		v := collapseSpace(sel.Text())
		return v, v != ""
	}
}

// Matching wraps s so that only values matching re are accepted; the first
// capture group (or whole match) becomes the value.
func Matching(s Strategy, re *regexp.Regexp) Strategy {
	return func(node *goquery.Selection) (string, bool) {
		v, ok := s(node)
		if !ok {
			return "", false
		}
		m := re.FindStringSubmatch(v)
		if m == nil {
			return "", false
		}
		if len(m) > 1 {
			return m[1], m[1] != ""
		}
		return m[0], true
	}
}

// Timestamp wraps s so that its value is passed through the normalizer.
func Timestamp(s Strategy) Strategy {
	return func(node *goquery.Selection) (string, bool) {
		v, ok := s(node)
		if !ok {
			return "", false
		}
		return timestamp.Normalize(v)
	}
}

var spaceRun = regexp.MustCompile(`[ \t\r\f\v]+`)

// collapseSpace trims the text and collapses horizontal whitespace runs while
// keeping line breaks.
func collapseSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
