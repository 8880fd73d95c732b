package selector

import (
	"fmt"
	"strconv"
	"strings"
)

// nthSeparator chains a document order index onto a selector, following the
// Playwright locator convention: `button >> nth=1`.
const nthSeparator = " >> nth="

// Quote renders value as a double quoted CSS string.
func Quote(value string) string {
	var sb strings.Builder
	sb.Grow(len(value) + 2)
	sb.WriteByte('"')
	for _, r := range value {
		switch {
		case r == '"' || r == '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			// Control characters must be hex escaped, with a terminating space.
			fmt.Fprintf(&sb, "\\%x ", r)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// IsIdentifier reports whether s can be written unescaped as a CSS identifier.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	first := s[0]
	switch {
	case first >= '0' && first <= '9':
		return false
	case first == '-':
		if len(s) == 1 || (s[1] >= '0' && s[1] <= '9') {
			return false
		}
	case !isValidIdentifierStart(first):
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isValidIdentifierChar(s[i]) {
			return false
		}
	}
	return true
}

// AttributeEquals builds `tag[name="value"]`. An empty tag yields `[name="value"]`.
func AttributeEquals(tag, name, value string) string {
	return fmt.Sprintf("%s[%s=%s]", strings.ToLower(tag), name, Quote(value))
}

// ByID builds `#id`, or `[id="..."]` when id is not a plain identifier.
func ByID(id string) string {
	if IsIdentifier(id) {
		return "#" + id
	}
	return AttributeEquals("", "id", id)
}

// WithNth appends a zero based document order disambiguator to sel.
func WithNth(sel string, index int) string {
	return sel + nthSeparator + strconv.Itoa(index)
}

// SplitNth separates a disambiguated selector into its CSS part and index.
// ok is false when sel carries no disambiguator.
func SplitNth(sel string) (base string, index int, ok bool) {
	i := strings.LastIndex(sel, nthSeparator)
	if i < 0 {
		return sel, 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(sel[i+len(nthSeparator):]))
	if err != nil || n < 0 {
		return sel, 0, false
	}
	return sel[:i], n, true
}
