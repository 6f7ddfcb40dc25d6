package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/hyperifyio/htmltext/internal/plaintext"
)

// Document is the plain-text rendering of one HTML input.
type Document struct {
	Title string
	Text  string
}

// Options controls how an input is decoded and which part of it is converted.
type Options struct {
	// ContentType is the declared media type, e.g. from an HTTP header. It may
	// carry a charset parameter.
	ContentType string
	// Encoding forces a character encoding by its WHATWG label and skips
	// sniffing when set.
	Encoding string
	// Selector limits conversion to the elements matching a CSS selector.
	// Empty converts the whole document.
	Selector string
}

// FromHTML decodes, parses and converts input. Every element matched by the
// selector is converted in document order into the same output.
func FromHTML(input []byte, opts Options) (Document, error) {
	r, err := Decode(input, opts.ContentType, opts.Encoding)
	if err != nil {
		return Document{}, err
	}
	root, err := plaintext.Parse(r)
	if err != nil {
		return Document{}, err
	}
	nodes, err := Select(root, opts.Selector)
	if err != nil {
		return Document{}, err
	}
	var buf plaintext.Buffer
	for _, n := range nodes {
		plaintext.ConvertTo(n, &buf)
	}
	return Document{Title: Title(root), Text: buf.String()}, nil
}

// Decode returns a UTF-8 reader over input. A forced encoding label wins;
// otherwise the encoding is sniffed from a BOM, the content type and any
// <meta> charset declaration, defaulting to windows-1252.
func Decode(input []byte, contentType string, encoding string) (io.Reader, error) {
	if label := strings.TrimSpace(encoding); label != "" {
		enc, err := htmlindex.Get(label)
		if err != nil {
			return nil, fmt.Errorf("unknown encoding %q: %w", label, err)
		}
		return enc.NewDecoder().Reader(bytes.NewReader(input)), nil
	}
	r, err := charset.NewReader(bytes.NewReader(input), contentType)
	if err != nil {
		return nil, fmt.Errorf("detect charset: %w", err)
	}
	return r, nil
}

// ValidEncoding reports whether label names an encoding Decode can force.
func ValidEncoding(label string) bool {
	if strings.TrimSpace(label) == "" {
		return true
	}
	_, err := htmlindex.Get(strings.TrimSpace(label))
	return err == nil
}

// Select returns the outermost elements under root matching selector, in
// document order. A match nested inside another match is already covered by
// it and is left out. An empty selector selects root itself.
func Select(root *html.Node, selector string) ([]*html.Node, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return []*html.Node{root}, nil
	}
	if err := CompileSelector(selector); err != nil {
		return nil, err
	}
	return outermost(goquery.NewDocumentFromNode(root).Find(selector).Nodes), nil
}

// outermost drops every node that has an ancestor in nodes.
func outermost(nodes []*html.Node) []*html.Node {
	if len(nodes) < 2 {
		return nodes
	}
	matched := make(map[*html.Node]bool, len(nodes))
	for _, n := range nodes {
		matched[n] = true
	}
	out := nodes[:0:0]
	for _, n := range nodes {
		nested := false
		for p := n.Parent; p != nil; p = p.Parent {
			if matched[p] {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, n)
		}
	}
	return out
}

// CompileSelector reports a syntax error in selector, if any. goquery itself
// treats an invalid selector as matching nothing.
func CompileSelector(selector string) error {
	if strings.TrimSpace(selector) == "" {
		return nil
	}
	if _, err := cascadia.Compile(selector); err != nil {
		return fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return nil
}

// Title returns the trimmed text of the document's <head><title>.
func Title(root *html.Node) string {
	head := findFirst(root, "head")
	if head == nil {
		return ""
	}
	t := findFirst(head, "title")
	if t == nil || t.FirstChild == nil {
		return ""
	}
	return strings.TrimSpace(t.FirstChild.Data)
}

func findFirst(n *html.Node, tag string) *html.Node {
	var res *html.Node
	var dfs func(*html.Node)
	dfs = func(cur *html.Node) {
		if res != nil {
			return
		}
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, tag) {
			res = cur
			return
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			dfs(c)
			if res != nil {
				return
			}
		}
	}
	dfs(n)
	return res
}
