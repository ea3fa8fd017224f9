package extract

import (
	"strings"

	"github.com/FranksOps/shelf/pkg/normalize"
	"github.com/PuerkitoBio/goquery"
)

// Product page info blocks: a titled <h4> followed by a value element.
const (
	infoItemSelector = "div[class*='VV23_DetailProdPageInfoDescItem']"
	infoDescSelector = "div[class*='VV23_DetailProdPageInfoDescItem__Desc']"
)

// Strategy looks up one raw field value in a document. It reports false
// when the value is absent or empty.
type Strategy func(doc *goquery.Document) (string, bool)

// Chain returns a strategy yielding the first successful result of
// strategies, tried in order.
func Chain(strategies ...Strategy) Strategy {
	return func(doc *goquery.Document) (string, bool) {
		for _, s := range strategies {
			if v, ok := s(doc); ok {
				return v, true
			}
		}
		return "", false
	}
}

// Attr reads attribute attr of the first element matching selector.
func Attr(selector, attr string) Strategy {
	return func(doc *goquery.Document) (string, bool) {
		v, ok := doc.Find(selector).First().Attr(attr)
		if !ok {
			return "", false
		}
		v = normalize.CleanSpace(v)
		return v, v != ""
	}
}

// Text reads the flattened text of the first element matching selector.
func Text(selector string) Strategy {
	return func(doc *goquery.Document) (string, bool) {
		v := NodeText(doc.Find(selector).First())
		return v, v != ""
	}
}

// OwnText reads the first direct text node under elements matching selector.
func OwnText(selector string) Strategy {
	return func(doc *goquery.Document) (string, bool) {
		v := ownText(doc.Find(selector))
		return v, v != ""
	}
}

// InfoBlock reads the value of the first info block whose title contains
// title, case-insensitively.
func InfoBlock(title string) Strategy {
	return func(doc *goquery.Document) (string, bool) {
		item := infoItem(doc.Selection, title)
		if item == nil {
			return "", false
		}
		v := NodeText(item.Find(infoDescSelector).First())
		return v, v != ""
	}
}

// infoItem finds the first info block under root whose first <h4> contains
// title. It returns nil when none matches.
func infoItem(root *goquery.Selection, title string) *goquery.Selection {
	want := strings.ToLower(title)
	var found *goquery.Selection
	root.Find(infoItemSelector).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		heading := strings.ToLower(NodeText(item.Find("h4").First()))
		if strings.Contains(heading, want) {
			found = item
			return false
		}
		return true
	})
	return found
}

// infoTitles lists info block headings, for diagnostics.
func infoTitles(doc *goquery.Document, limit int) []string {
	var titles []string
	doc.Find(infoItemSelector + " h4").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		titles = append(titles, NodeText(h))
		return len(titles) < limit
	})
	return titles
}
