package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/vanng822/go-premailer/premailer"
	"golang.org/x/net/html"
)

// InlineCSS converts stylesheet rules into per-element style attributes
// using a real CSS parser and cascade resolution. Target mail clients strip
// <style> blocks and ignore class-based CSS, so the consumed blocks are
// removed afterwards; that also makes inlining idempotent.
func InlineCSS(doc string) (string, error) {
	opts := premailer.NewOptions()
	opts.RemoveClasses = false

	pm, err := premailer.NewPremailerFromString(doc, opts)
	if err != nil {
		return "", fmt.Errorf("premailer.NewPremailerFromString failed: %w", err)
	}

	inlined, err := pm.Transform()
	if err != nil {
		return "", fmt.Errorf("pm.Transform failed: %w", err)
	}

	stripped, err := stripStyleBlocks(inlined)
	if err != nil {
		return "", fmt.Errorf("stripStyleBlocks failed: %w", err)
	}

	return stripped, nil
}

func stripStyleBlocks(doc string) (string, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("html.Parse failed: %w", err)
	}

	removeStyleNodes(root)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", fmt.Errorf("html.Render failed: %w", err)
	}

	return buf.String(), nil
}

func removeStyleNodes(n *html.Node) {
	child := n.FirstChild
	for child != nil {
		next := child.NextSibling
		if child.Type == html.ElementNode && child.Data == "style" {
			n.RemoveChild(child)
		} else {
			removeStyleNodes(child)
		}
		child = next
	}
}
