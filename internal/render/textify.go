package render

import (
	"strings"

	"golang.org/x/net/html"
)

// Textify extracts a plain-text rendition from an HTML document: the
// fallback body for multipart mail and the preview text for fetched HTML
// messages. Escaped entities come back as literal text, so nothing here can
// reintroduce markup.
func Textify(doc string) string {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return doc
	}

	var b strings.Builder
	writeText(root, &b)

	return collapseBlankLines(strings.TrimSpace(b.String()))
}

func writeText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		text := strings.TrimSpace(n.Data)
		if text != "" {
			if needsSpace(b) {
				b.WriteByte(' ')
			}
			b.WriteString(text)
		}
		return
	case html.ElementNode:
		switch n.Data {
		case "head", "style", "script":
			return
		case "br":
			b.WriteByte('\n')
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(c, b)
	}

	if n.Type == html.ElementNode && isBlockElement(n.Data) {
		b.WriteByte('\n')
	}

	if n.Type == html.ElementNode && n.Data == "a" {
		if href := attrValue(n, "href"); href != "" {
			b.WriteString(" (" + href + ")")
		}
	}
}

func needsSpace(b *strings.Builder) bool {
	s := b.String()
	if s == "" {
		return false
	}
	last := s[len(s)-1]
	return last != '\n' && last != ' '
}

func isBlockElement(tag string) bool {
	switch tag {
	case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6",
		"li", "ul", "ol", "tr", "table", "blockquote", "pre":
		return true
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}
