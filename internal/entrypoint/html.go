package entrypoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLRewriter edits the parsed index.html so that it loads entrypoint.
type HTMLRewriter func(entrypoint string, doc *html.Node) error

// RewriteHTML parses src, hands it to rewrite exactly once and renders
// the result.
func RewriteHTML(src []byte, entrypoint string, rewrite HTMLRewriter) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse index.html: %w", err)
	}
	if err := rewrite(entrypoint, doc); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DefaultHTMLRewriter embeds the runtime config in a meta tag, resolves
// {{rootURL}}, drops the classic vendor and app bundles and
// {{content-for}} placeholders, and loads the entrypoint as a module.
func DefaultHTMLRewriter(prefix, rootURL string, config map[string]any) HTMLRewriter {
	return func(entrypoint string, doc *html.Node) error {
		encoded, err := json.Marshal(config)
		if err != nil {
			return err
		}
		head := find(doc, atom.Head)
		body := find(doc, atom.Body)
		if head == nil || body == nil {
			return fmt.Errorf("index.html has no head or body")
		}

		var drop []*html.Node
		walk(doc, func(n *html.Node) {
			switch {
			case n.Type == html.TextNode && strings.Contains(n.Data, "{{content-for"):
				drop = append(drop, n)
			case n.Type == html.ElementNode:
				for i, a := range n.Attr {
					n.Attr[i].Val = strings.ReplaceAll(a.Val, "{{rootURL}}", rootURL)
				}
				if n.DataAtom == atom.Script && classicBundle(attr(n, "src"), prefix) {
					drop = append(drop, n)
				}
				if n.DataAtom == atom.Meta && attr(n, "name") == MetaName(prefix) {
					drop = append(drop, n)
				}
			}
		})
		for _, n := range drop {
			n.Parent.RemoveChild(n)
		}

		head.AppendChild(&html.Node{
			Type:     html.ElementNode,
			Data:     "meta",
			DataAtom: atom.Meta,
			Attr: []html.Attribute{
				{Key: "name", Val: MetaName(prefix)},
				{Key: "content", Val: url.PathEscape(string(encoded))},
			},
		})
		body.AppendChild(&html.Node{
			Type:     html.ElementNode,
			Data:     "script",
			DataAtom: atom.Script,
			Attr: []html.Attribute{
				{Key: "type", Val: "module"},
				{Key: "src", Val: rootURL + strings.TrimPrefix(entrypoint, "/")},
			},
		})
		return nil
	}
}

func classicBundle(src, prefix string) bool {
	return strings.HasSuffix(src, "assets/vendor.js") || strings.HasSuffix(src, "assets/"+prefix+".js")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func find(n *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) {
		if found == nil && c.Type == html.ElementNode && c.DataAtom == a {
			found = c
		}
	})
	return found
}

func walk(n *html.Node, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		fn(c)
		walk(c, fn)
		c = next
	}
}
