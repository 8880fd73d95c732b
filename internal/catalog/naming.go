package catalog

import (
	"strings"
	"unicode"

	"github.com/xkilldash9x/pagemapper/api/schemas"
)

const maxNounWords = 5

// containerRoles hold data rather than a label; their text is option lists
// or cell contents.
var containerRoles = map[schemas.Role]bool{
	schemas.RoleTable:          true,
	schemas.RoleSingleSelect:   true,
	schemas.RoleMultiSelect:    true,
	schemas.RoleRadioGroup:     true,
	schemas.RoleCustomDropdown: true,
}

// Noun derives the method noun for el from the first usable label source:
// test id, aria-label, visible text, placeholder, name, id, alt and finally
// the role itself. Container roles never use their visible text.
func Noun(el schemas.DetectedElement, testIDAttrs []string) string {
	var sources []string
	for _, a := range testIDAttrs {
		sources = append(sources, el.Attr(a))
	}
	sources = append(sources, el.Attr("aria-label"))
	if !containerRoles[el.Role] {
		sources = append(sources, el.TextSnapshot)
	}
	sources = append(sources,
		el.Attr("placeholder"),
		el.Attr("name"),
		el.Attr("id"),
		el.Attr("alt"),
	)
	for _, s := range sources {
		if noun := Identifier(s); noun != "" {
			return noun
		}
	}
	return Identifier(string(el.Role))
}

// Identifier sanitizes a free text label to UpperCamel words. It splits on
// non alphanumerics and camel humps, keeps at most five words and prefixes a
// leading digit with N.
func Identifier(label string) string {
	words := splitWords(label)
	if len(words) > maxNounWords {
		words = words[:maxNounWords]
	}
	var sb strings.Builder
	for _, w := range words {
		for i, r := range []rune(w) {
			if i == 0 {
				sb.WriteRune(unicode.ToUpper(r))
				continue
			}
			sb.WriteRune(unicode.ToLower(r))
		}
	}
	out := sb.String()
	if out != "" && unicode.IsDigit([]rune(out)[0]) {
		out = "N" + out
	}
	return out
}

func splitWords(s string) []string {
	var (
		words []string
		cur   []rune
	)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(cur) > 0 && unicode.IsUpper(r) {
			prev := cur[len(cur)-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			// "emailField" splits before F; "HTMLParser" splits before P.
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

// MethodName joins an operation verb and a noun in lowerCamelCase.
func MethodName(kind schemas.OperationKind, noun string) string {
	return string(kind) + noun
}
