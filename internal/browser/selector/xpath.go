package selector

import (
	"fmt"
	"strings"
)

// Compile converts a CSS selector into an equivalent XPath 1.0 expression.
// The result selects nodes in document order and is meant for htmlquery.
func Compile(css string) (string, error) {
	group, err := Parse(css)
	if err != nil {
		return "", err
	}
	return group.XPath()
}

// XPath renders the group as a union of its complex selectors.
func (g Group) XPath() (string, error) {
	parts := make([]string, 0, len(g))
	for _, c := range g {
		xp, err := c.XPath()
		if err != nil {
			return "", err
		}
		parts = append(parts, xp)
	}
	return strings.Join(parts, " | "), nil
}

// XPath renders one complex selector as a location path.
func (c Complex) XPath() (string, error) {
	var sb strings.Builder
	for i, step := range c.Steps {
		tag := elementTest(step.Compound.TagName)
		if step.Compound.NthOfType > 0 && tag == "*" {
			return "", fmt.Errorf("selector step %d: :nth-of-type requires a tag name", i)
		}

		predicates := step.Compound.predicates()
		switch step.Combinator {
		case CombinatorNone, CombinatorDescendant:
			sb.WriteString("//")
			sb.WriteString(tag)
		case CombinatorChild:
			sb.WriteString("/")
			sb.WriteString(tag)
		case CombinatorAdjacentSibling:
			// The immediately following element sibling, whatever its tag, must match.
			sb.WriteString("/following-sibling::*[1]")
			if tag != "*" {
				predicates = append([]string{"self::" + tag}, predicates...)
			}
		case CombinatorGeneralSibling:
			sb.WriteString("/following-sibling::")
			sb.WriteString(tag)
		}
		for _, pred := range predicates {
			sb.WriteString("[")
			sb.WriteString(pred)
			sb.WriteString("]")
		}
	}
	return sb.String(), nil
}

// predicates returns the XPath predicates of a compound. :nth-of-type is
// expressed by counting preceding same-tag siblings, which stays correct on
// the sibling axes where a bare position would count along the axis instead.
func (c Compound) predicates() []string {
	var preds []string
	if c.NthOfType > 0 {
		preds = append(preds, fmt.Sprintf("count(preceding-sibling::%s)=%d", elementTest(c.TagName), c.NthOfType-1))
	}
	if c.ID != "" {
		preds = append(preds, "@id="+literal(c.ID))
	}
	for _, class := range c.Classes {
		preds = append(preds, fmt.Sprintf("contains(concat(' ', normalize-space(@class), ' '), %s)", literal(" "+class+" ")))
	}
	for _, a := range c.Attributes {
		preds = append(preds, a.predicate())
	}
	return preds
}

func (a Attribute) predicate() string {
	attr := "@" + a.Name
	if !isNCName(a.Name) {
		attr = "@*[local-name()=" + literal(a.Name) + "]"
	}
	v := literal(a.Value)
	switch a.Operator {
	case "":
		return attr
	case "^=", "$=", "*=":
		if a.Value == "" {
			return "false()"
		}
	}

	switch a.Operator {
	case "=":
		return fmt.Sprintf("%s=%s", attr, v)
	case "~=":
		return fmt.Sprintf("contains(concat(' ', normalize-space(%s), ' '), %s)", attr, literal(" "+a.Value+" "))
	case "|=":
		return fmt.Sprintf("(%s=%s or starts-with(%s, %s))", attr, v, attr, literal(a.Value+"-"))
	case "^=":
		return fmt.Sprintf("starts-with(%s, %s)", attr, v)
	case "$=":
		return fmt.Sprintf("substring(%s, string-length(%s) - string-length(%s) + 1)=%s", attr, attr, v, v)
	case "*=":
		return fmt.Sprintf("contains(%s, %s)", attr, v)
	}
	return "false()"
}

// literal quotes s as an XPath 1.0 string literal. XPath has no escapes, so a
// value holding both quote kinds is split into a concat() call.
func literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	args := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			args = append(args, `"'"`)
		}
		if part != "" {
			args = append(args, "'"+part+"'")
		}
	}
	return "concat(" + strings.Join(args, ", ") + ")"
}

// elementTest renders a tag as an XPath node test. CSS identifiers may start
// with '-', which XPath names may not; those fall back to a local-name() test.
func elementTest(tag string) string {
	switch {
	case tag == "" || tag == "*":
		return "*"
	case isNCName(tag):
		return tag
	}
	return "*[local-name()=" + literal(tag) + "]"
}

func isNCName(s string) bool {
	if s == "" {
		return false
	}
	first := s[0]
	if !((first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z') || first == '_') {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isValidIdentifierChar(s[i]) && s[i] != '.' {
			return false
		}
	}
	return true
}
