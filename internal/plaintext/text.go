package plaintext

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// overlappingElements lists elements whose end tag a tolerant parser may
// leave behind as a stray text node when the element overlaps its siblings.
var overlappingElements = map[string]bool{
	"form": true,
}

// isOverlappedClosingElement reports whether raw is a lone end tag such as
// "</form>" for an element that may overlap. The shortest candidate is five
// bytes long.
func isOverlappedClosingElement(raw string) bool {
	if len(raw) <= 4 {
		return false
	}
	if raw[0] != '<' || raw[1] != '/' || raw[len(raw)-1] != '>' {
		return false
	}
	return overlappingElements[strings.ToLower(raw[2:len(raw)-1])]
}

// htmlSpace is the HTML definition of white space. U+00A0, usually written
// as &nbsp;, is content and survives trimming.
const htmlSpace = " \t\n\f\r"

// inRawTextElement reports whether n is the body of a script or style element.
func inRawTextElement(n *html.Node) bool {
	p := n.Parent
	if p == nil || p.Type != html.ElementNode {
		return false
	}
	a := tagAtom(p)
	return a == atom.Script || a == atom.Style
}

// convertText writes a text node. x/net/html has already decoded character
// references exactly once, so the payload is used as is.
func convertText(n *html.Node, w Sink) bool {
	if inRawTextElement(n) {
		return false
	}
	if isOverlappedClosingElement(n.Data) {
		return false
	}

	flat := strings.ReplaceAll(n.Data, "\r\n", " ")
	flat = strings.ReplaceAll(flat, "\n", " ")
	text := strings.Trim(flat, htmlSpace)
	if text == "" {
		// Whitespace between inline elements still separates words.
		if flat != "" {
			w.Space()
		}
		return false
	}

	if strings.IndexByte(htmlSpace, flat[0]) >= 0 {
		w.Space()
	}
	w.WriteText(text)
	if strings.IndexByte(htmlSpace, flat[len(flat)-1]) >= 0 {
		w.Space()
	}
	return true
}
