package sources

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var halfWidth = strings.NewReplacer(
	"０", "0", "１", "1", "２", "2", "３", "3", "４", "4",
	"５", "5", "６", "6", "７", "7", "８", "8", "９", "9",
)

// ToHalfWidth converts full-width digits to ASCII digits.
func ToHalfWidth(s string) string {
	return halfWidth.Replace(s)
}

var clock = strings.NewReplacer("時", ":", "分", "")

// clockTime turns "12時38分" into "12:38".
func clockTime(s string) string {
	return strings.TrimSpace(clock.Replace(ToHalfWidth(s)))
}

// lastRunes returns the final n runes of s.
func lastRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// textLines returns the text nodes under sel in document order, one per line.
func textLines(sel *goquery.Selection) []string {
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			lines = append(lines, n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return lines
}
