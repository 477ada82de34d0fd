package htmlview

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
	"svg":      true,
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "br": true, "dd": true,
	"div": true, "dl": true, "dt": true, "fieldset": true, "footer": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "header": true, "hr": true, "li": true, "main": true,
	"nav": true, "ol": true, "p": true, "section": true, "table": true,
	"tbody": true, "td": true, "tfoot": true, "th": true, "thead": true,
	"tr": true, "ul": true, "label": true,
}

var labelTags = map[string]bool{
	"th": true, "td": true, "dt": true, "label": true, "span": true,
	"strong": true, "b": true, "div": true, "p": true, "li": true,
	"h4": true, "h5": true, "h6": true,
}

var valueTags = map[string]bool{
	"input": true, "textarea": true, "select": true,
}

// View is an immutable snapshot of one rendered document.
type View struct {
	root *html.Node
	text string
	ids  map[string]*html.Node
}

// Parse builds a View from an HTML document. Malformed markup is tolerated
// the way browsers tolerate it.
func Parse(content string) (*View, error) {
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	v := &View{root: root, ids: make(map[string]*html.Node)}
	walk(root, func(n *html.Node) {
		if id := attr(n, "id"); id != "" {
			if _, seen := v.ids[id]; !seen {
				v.ids[id] = n
			}
		}
	})
	v.text = flatten(root)
	return v, nil
}

func (v *View) Text() string {
	return v.text
}

// LabeledValue looks for an element whose own text equals one of labels and
// returns the value rendered next to it.
func (v *View) LabeledValue(labels ...string) (string, bool) {
	if v.root == nil || len(labels) == 0 {
		return "", false
	}
	wanted := make(map[string]bool, len(labels))
	for _, l := range labels {
		wanted[normalizeLabel(l)] = true
	}

	var found string
	walk(v.root, func(n *html.Node) {
		if found != "" || n.Type != html.ElementNode || !labelTags[n.Data] {
			return
		}
		if !wanted[normalizeLabel(textOf(n))] {
			return
		}
		found = v.valueFor(n)
	})
	return found, found != ""
}

func (v *View) valueFor(label *html.Node) string {
	resolvers := []func(*html.Node) string{
		v.forTarget,
		nextSiblingValue,
		columnBelow,
		parentRemainder,
	}
	for _, resolve := range resolvers {
		if value := cleanValue(resolve(label)); value != "" {
			return value
		}
	}
	return ""
}

func (v *View) forTarget(label *html.Node) string {
	if label.Data != "label" {
		return ""
	}
	target, ok := v.ids[attr(label, "for")]
	if !ok {
		return ""
	}
	return valueOf(target)
}

func nextSiblingValue(label *html.Node) string {
	for s := label.NextSibling; s != nil; s = s.NextSibling {
		switch s.Type {
		case html.TextNode:
			if text := collapse(s.Data); strings.Trim(text, ": -") != "" {
				return text
			}
		case html.ElementNode:
			if skippedTags[s.Data] {
				continue
			}
			// a header cell next to a header cell is another label
			if label.Data == "th" && s.Data == "th" {
				return ""
			}
			if value := valueOf(s); value != "" {
				return value
			}
			if s.Data == "br" {
				continue
			}
			return ""
		}
	}
	return ""
}

// columnBelow reads the cell in the same column of the following row, for
// header rows laid out above their values.
func columnBelow(label *html.Node) string {
	if label.Data != "th" && label.Data != "td" {
		return ""
	}
	row := label.Parent
	if row == nil || row.Data != "tr" {
		return ""
	}
	col := 0
	for c := row.FirstChild; c != nil && c != label; c = c.NextSibling {
		if isCell(c) {
			col++
		}
	}

	next := nextRow(row)
	if next == nil {
		return ""
	}
	i := 0
	for c := next.FirstChild; c != nil; c = c.NextSibling {
		if !isCell(c) {
			continue
		}
		if i == col {
			return valueOf(c)
		}
		i++
	}
	return ""
}

func nextRow(row *html.Node) *html.Node {
	for s := row.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode && s.Data == "tr" {
			return s
		}
	}
	// header row in thead, values in the following tbody
	if section := row.Parent; section != nil {
		for s := section.NextSibling; s != nil; s = s.NextSibling {
			if s.Type != html.ElementNode {
				continue
			}
			for c := s.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && c.Data == "tr" {
					return c
				}
			}
		}
	}
	return nil
}

func parentRemainder(label *html.Node) string {
	parent := label.Parent
	if parent == nil || parent.Type != html.ElementNode {
		return ""
	}
	full := textOf(parent)
	own := textOf(label)
	if !strings.HasPrefix(full, own) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(full, own))
}

func valueOf(n *html.Node) string {
	if n.Type != html.ElementNode {
		return ""
	}
	if valueTags[n.Data] {
		if n.Data == "input" || n.Data == "select" {
			if val := attr(n, "value"); val != "" {
				return collapse(val)
			}
		}
		return textOf(n)
	}
	return textOf(n)
}

func isCell(n *html.Node) bool {
	return n.Type == html.ElementNode && (n.Data == "td" || n.Data == "th")
}

func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, ":-– ")
	return strings.TrimSpace(s)
}

func normalizeLabel(s string) string {
	s = strings.ToLower(collapse(s))
	s = strings.TrimRight(s, ":*# ")
	return strings.TrimSpace(s)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func walk(n *html.Node, visit func(*html.Node)) {
	if n.Type == html.ElementNode && skippedTags[n.Data] {
		return
	}
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// textOf is the whitespace-collapsed text content of n.
func textOf(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && skippedTags[n.Data] {
			return
		}
		block := n.Type == html.ElementNode && blockTags[n.Data]
		if block {
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
		if block {
			b.WriteByte(' ')
		}
	}
	collect(n)
	return collapse(b.String())
}

func flatten(root *html.Node) string {
	var lines []string
	var line strings.Builder
	flush := func() {
		if text := collapse(line.String()); text != "" {
			lines = append(lines, text)
		}
		line.Reset()
	}

	var visit func(*html.Node)
	visit = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			line.WriteString(n.Data)
			return
		case html.ElementNode:
			if skippedTags[n.Data] {
				return
			}
			if blockTags[n.Data] {
				flush()
				defer flush()
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(root)
	flush()
	return strings.Join(lines, "\n")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
