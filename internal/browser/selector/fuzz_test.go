package selector

import (
	"strings"
	"testing"
	"unicode/utf8"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/antchfx/htmlquery"
)

// FuzzParse checks that arbitrary input never panics the parser or the compiler.
func FuzzParse(f *testing.F) {
	f.Add(`html > body:nth-of-type(1) > button:nth-of-type(2)`)
	f.Add(`[data-test-id="email-field"]`)
	f.Add(`input[type="radio"][name="plan"], #x.y`)
	f.Add(`[a="\`)
	f.Add(`:nth-of-type(`)

	doc, err := htmlquery.Parse(strings.NewReader(testHTML))
	if err != nil {
		f.Fatal(err)
	}

	f.Fuzz(func(t *testing.T, input string) {
		group, err := Parse(input)
		if err != nil {
			return
		}
		xp, err := group.XPath()
		if err != nil {
			return
		}
		if _, err := htmlquery.QueryAll(doc, xp); err != nil {
			t.Fatalf("compiled %q to invalid xpath %q: %v", input, xp, err)
		}
	})
}

// FuzzAttributeRoundTrip checks that any attribute value survives Quote and Parse.
func FuzzAttributeRoundTrip(f *testing.F) {
	f.Fuzz(func(t *testing.T, data []byte) {
		consumer := fuzz.NewConsumer(data)
		value, err := consumer.GetString()
		if err != nil {
			return
		}
		name, err := consumer.GetString()
		if err != nil {
			return
		}
		if !utf8.ValidString(value) || strings.ContainsRune(value, 0) || !IsIdentifier(name) {
			return
		}

		sel := AttributeEquals("input", name, value)
		group, err := Parse(sel)
		if err != nil {
			t.Fatalf("generated selector %q does not parse: %v", sel, err)
		}
		got := group[0].Steps[0].Compound.Attributes[0].Value
		if got != value {
			t.Fatalf("round trip mismatch: %q != %q", got, value)
		}
	})
}
