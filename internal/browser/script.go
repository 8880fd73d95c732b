package browser

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/pagemapper/api/schemas"
)

// DescribeNodeJS is a function expression taking an element and returning
// its tag, attributes, structural path and normalized visible text. The path
// format matches selector.StructuralPath.
const DescribeNodeJS = `(el) => {
	if (!el || !el.isConnected) { return null; }
	const attributes = {};
	for (const a of el.attributes) { attributes[a.name] = a.value; }
	const steps = [];
	for (let n = el; n && n.nodeType === 1; n = n.parentElement) {
		const tag = n.localName;
		if (!n.parentElement) { steps.unshift(tag); break; }
		let index = 1;
		for (let s = n.previousElementSibling; s; s = s.previousElementSibling) {
			if (s.localName === tag) { index++; }
		}
		steps.unshift(tag + ':nth-of-type(' + index + ')');
	}
	const text = (el.innerText || el.textContent || '').replace(/\s+/g, ' ').trim();
	return { tag: el.localName, attributes, path: steps.join(' > '), text };
}`

// NodeTextJS returns the normalized visible text of an element, or null.
const NodeTextJS = `(el) => el && el.isConnected ? (el.innerText || el.textContent || '').replace(/\s+/g, ' ').trim() : null`

// ReadAttributeJS returns [present, value] for the attribute named by the
// second argument, or null when the element is gone.
const ReadAttributeJS = `(el, name) => el && el.isConnected ? [el.hasAttribute(name), el.getAttribute(name) || ''] : null`

// QueryNthJS builds an expression resolving to the index-th match of a CSS
// query, usable as the element argument of the scripts above.
func QueryNthJS(query string, index int) string {
	q, _ := jsoniter.MarshalToString(query)
	return fmt.Sprintf("document.querySelectorAll(%s)[%d]", q, index)
}

// Invoke builds an expression that calls fn with the given JS argument expressions.
func Invoke(fn string, args ...string) string {
	return "(" + fn + ")(" + strings.Join(args, ", ") + ")"
}

// JSString renders s as a JS string literal.
func JSString(s string) string {
	out, _ := jsoniter.MarshalToString(s)
	return out
}

type rawDescription struct {
	Tag        string            `json:"tag"`
	Attributes map[string]string `json:"attributes"`
	Path       string            `json:"path"`
	Text       string            `json:"text"`
}

// DecodeDescription converts the JSON result of DescribeNodeJS.
// A null result means the node vanished.
func DecodeDescription(raw []byte) (schemas.NodeDescription, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == "undefined" {
		return schemas.NodeDescription{}, schemas.ErrNodeVanished
	}
	var d rawDescription
	if err := jsoniter.Unmarshal(raw, &d); err != nil {
		return schemas.NodeDescription{}, fmt.Errorf("failed to decode node description: %w", err)
	}
	if d.Attributes == nil {
		d.Attributes = map[string]string{}
	}
	return schemas.NodeDescription{
		Tag:        strings.ToLower(d.Tag),
		Attributes: d.Attributes,
		Path:       d.Path,
		Text:       d.Text,
	}, nil
}
