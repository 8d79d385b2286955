// Package document is the boundary to the XHTML document tree. The
// translation core only ever extracts a body, translates it, and puts
// a body back; container handling (the EPUB zip) belongs to the
// caller.
package document

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"epub-translator/internal/types"
)

// Document wraps a parsed XHTML tree. The tree is owned by the caller
// and mutated in place only by ReplaceBody.
type Document struct {
	root *html.Node
	body *html.Node
}

// Parse builds a Document from serialized XHTML. It fails with a
// DOCUMENT_ERROR when no body element exists; per the error contract
// that aborts the whole translation.
func Parse(markup string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, types.NewAppError(types.ErrDocument, "failed to parse document", err)
	}
	body := findBody(root)
	if body == nil {
		return nil, types.NewAppError(types.ErrDocument, "document has no body element", nil)
	}
	return &Document{root: root, body: body}, nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findBody(c); found != nil {
			return found
		}
	}
	return nil
}

// ExtractBody serializes the body's children as a markup string.
func (d *Document) ExtractBody() (string, error) {
	var sb strings.Builder
	for c := d.body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return "", types.NewAppError(types.ErrDocument, "failed to serialize body", err)
		}
	}
	return sb.String(), nil
}

// ReplaceBody swaps the body's children for the given markup fragment.
func (d *Document) ReplaceBody(markup string) error {
	nodes, err := html.ParseFragment(strings.NewReader(markup), d.body)
	if err != nil {
		return types.NewAppError(types.ErrDocument, "replacement body is not valid markup", err)
	}
	for d.body.FirstChild != nil {
		d.body.RemoveChild(d.body.FirstChild)
	}
	for _, n := range nodes {
		d.body.AppendChild(n)
	}
	return nil
}

// Render serializes the whole document.
func (d *Document) Render() (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, d.root); err != nil {
		return "", types.NewAppError(types.ErrDocument, "failed to serialize document", err)
	}
	return sb.String(), nil
}

// CheckFragment verifies that a reconstructed body fragment still
// parses as markup. The HTML parser is forgiving, so this rejects only
// genuine corruption; tag-count conservation is checked separately by
// the orchestrator.
func CheckFragment(markup string) error {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	if _, err := html.ParseFragment(strings.NewReader(markup), ctx); err != nil {
		return types.NewAppError(types.ErrDocument, "reconstructed markup failed to parse", err)
	}
	return nil
}
