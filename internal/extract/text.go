package extract

import (
	"strings"

	"github.com/FranksOps/shelf/pkg/normalize"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// NodeText flattens the first node of sel: every descendant text node,
// joined with single spaces and whitespace-collapsed. Unlike
// Selection.Text, words from adjacent elements never run together.
func NodeText(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(sel.Get(0))
	return normalize.CleanSpace(strings.Join(parts, " "))
}

// ownText returns the first direct text child among the nodes of sel.
func ownText(sel *goquery.Selection) string {
	for _, n := range sel.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				return normalize.CleanSpace(c.Data)
			}
		}
	}
	return ""
}
