package selector

import (
	"fmt"
	"sort"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// QueryAll evaluates a selector, including an optional `>> nth=k` suffix,
// against root and returns the matches deduplicated in document order.
func QueryAll(root *html.Node, sel string) ([]*html.Node, error) {
	base, nth, hasNth := SplitNth(sel)
	xp, err := Compile(base)
	if err != nil {
		return nil, err
	}
	nodes, err := htmlquery.QueryAll(root, xp)
	if err != nil {
		return nil, fmt.Errorf("evaluating %q: %w", xp, err)
	}
	nodes = documentOrder(root, nodes)

	if hasNth {
		if nth >= len(nodes) {
			return nil, nil
		}
		return nodes[nth : nth+1], nil
	}
	return nodes, nil
}

// documentOrder removes duplicates and sorts nodes by a pre-order walk of root.
func documentOrder(root *html.Node, nodes []*html.Node) []*html.Node {
	if len(nodes) < 2 {
		return nodes
	}
	position := make(map[*html.Node]int)
	i := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		position[n] = i
		i++
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	seen := make(map[*html.Node]bool, len(nodes))
	out := nodes[:0:0]
	for _, n := range nodes {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return position[out[a]] < position[out[b]] })
	return out
}
