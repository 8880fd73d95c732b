package selector

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// StructuralPath returns a `html > body > div:nth-of-type(2) > input:nth-of-type(1)`
// selector for node. Every step carries its same-tag sibling index so the
// path resolves to exactly one node in an unchanged document.
func StructuralPath(node *html.Node) string {
	if node == nil || node.Type != html.ElementNode {
		return ""
	}

	var path []string
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		tag := strings.ToLower(n.Data)
		if n.Parent == nil || n.Parent.Type == html.DocumentNode {
			// The root element is unique and needs no index.
			path = append(path, tag)
			continue
		}

		index := 1
		for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
			if prev.Type == html.ElementNode && strings.ToLower(prev.Data) == tag {
				index++
			}
		}
		path = append(path, fmt.Sprintf("%s:nth-of-type(%d)", tag, index))
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return strings.Join(path, " > ")
}
