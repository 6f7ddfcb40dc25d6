// Package plaintext renders an x/net/html node tree as readable plain text.
//
// The conversion is a single depth-first walk. Text nodes are flattened and
// trimmed, script and style bodies are dropped, and a handful of elements add
// structure: br and hr break lines, li items get a "- " marker, p, div, tr and
// li end their line once they have produced text, images contribute their alt
// text in square brackets and links append their target in angle brackets.
// Every line break is written as CRLF.
package plaintext

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// ConvertToPlainText parses markup and returns its plain-text rendering.
// Malformed markup is repaired by the parser; the only error is one reported
// by the parser itself.
func ConvertToPlainText(markup string) (string, error) {
	return ConvertReader(strings.NewReader(markup))
}

// ConvertReader is ConvertToPlainText over a reader of UTF-8 markup.
func ConvertReader(r io.Reader) (string, error) {
	doc, err := Parse(r)
	if err != nil {
		return "", err
	}
	var buf Buffer
	ConvertTo(doc, &buf)
	return buf.String(), nil
}

// Parse builds a document tree from UTF-8 markup. Scripting is disabled so
// that noscript content is parsed as markup rather than as a raw text blob.
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := html.ParseWithOptions(r, html.ParseOptionEnableScripting(false))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ConvertContentTo converts every child of n in document order and reports
// whether any of them produced visible text. All children are visited even
// after one has produced output.
func ConvertContentTo(n *html.Node, w Sink) bool {
	produced := false
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if ConvertTo(c, w) {
			produced = true
		}
	}
	return produced
}

// ConvertTo converts n and its subtree into w and reports whether visible
// text was produced. Node kinds without a text rendering (comments,
// doctypes, raw nodes) contribute nothing.
func ConvertTo(n *html.Node, w Sink) bool {
	switch n.Type {
	case html.DocumentNode:
		return ConvertContentTo(n, w)
	case html.TextNode:
		return convertText(n, w)
	case html.ElementNode:
		return convertElement(n, w)
	}
	return false
}

func convertElement(n *html.Node, w Sink) bool {
	b := behaviorFor(n)
	produced := false

	switch b.pre {
	case preLineBreak:
		w.WriteLine()
		return false
	case preRule:
		w.WriteText(rule)
		w.WriteLine()
		return false
	case preAltText:
		if alt := strings.TrimSpace(attr(n, "alt")); alt != "" {
			w.WriteText("[" + alt + "]")
			produced = true
		}
	case preListMarker:
		// The marker is written even for empty items and does not count as output.
		w.WriteText(listMarker)
	}

	if n.FirstChild != nil && ConvertContentTo(n, w) {
		produced = true
	}
	if !produced {
		return false
	}

	switch b.post {
	case postLineBreak:
		w.WriteLine()
	case postLinkTarget:
		if href := attr(n, "href"); href != "" {
			w.WriteText("<" + href + ">")
		}
	}
	return true
}
