package event

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// flattenHTML extracts the visible text and anchor hrefs from an HTML
// fragment, as found in status content and account bios. Text is
// whitespace-collapsed; block boundaries become single spaces so word
// patterns don't match across element joins.
func flattenHTML(fragment string) (string, []string) {
	node, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		// html.Parse only fails on reader errors; a string reader can't
		return strings.Join(strings.Fields(fragment), " "), nil
	}

	var sb strings.Builder
	var hrefs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
		case html.ElementNode:
			if n.DataAtom == atom.A {
				for _, attr := range n.Attr {
					if attr.Key == "href" && attr.Val != "" {
						hrefs = append(hrefs, attr.Val)
					}
				}
			}
			if n.DataAtom == atom.Br || n.DataAtom == atom.P {
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)

	return strings.Join(strings.Fields(sb.String()), " "), hrefs
}
