package plaintext

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type preAction uint8

const (
	preNone preAction = iota
	// preLineBreak and preRule end the element: its children are never visited.
	preLineBreak
	preRule
	preAltText
	preListMarker
)

type postAction uint8

const (
	postNone postAction = iota
	postLineBreak
	postLinkTarget
)

// behavior describes what an element emits around its children. Post actions
// run only when the element produced visible output.
type behavior struct {
	pre  preAction
	post postAction
}

var behaviors = map[atom.Atom]behavior{
	atom.Br:  {pre: preLineBreak},
	atom.Hr:  {pre: preRule},
	atom.Img: {pre: preAltText},
	atom.Li:  {pre: preListMarker, post: postLineBreak},
	atom.P:   {post: postLineBreak},
	atom.Div: {post: postLineBreak},
	atom.Tr:  {post: postLineBreak},
	atom.A:   {post: postLinkTarget},
}

const (
	listMarker = "- "
	ruleWidth  = 32
)

var rule = strings.Repeat("_", ruleWidth)

// behaviorFor returns the element's behavior; unlisted tags have none.
func behaviorFor(n *html.Node) behavior {
	return behaviors[tagAtom(n)]
}

// tagAtom resolves the element's atom, falling back to its name for nodes
// built without DataAtom.
func tagAtom(n *html.Node) atom.Atom {
	if n.DataAtom != 0 {
		return n.DataAtom
	}
	return atom.Lookup([]byte(strings.ToLower(n.Data)))
}

// attr returns the value of the un-namespaced attribute key, or "" if absent.
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
