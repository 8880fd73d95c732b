package selector

import (
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const testHTML = `
	<html>
	<body>
		<div id="header">
			<h1>Welcome</h1>
		</div>
		<div class="content main">
			<p>P1</p><p lang="en-US">P2</p>
			<ul>
				<li>Item 1</li>
				<!-- a comment between items -->
				<li data-test-id="item-two">Item 2</li>
				<li id="special" title="it's &quot;special&quot;">Item 3</li>
			</ul>
			<form>
				<input type="radio" name="plan" value="a">
				<input type="radio" name="plan" value="b">
				<button type="submit" aria-label="Sign in">Go</button>
			</form>
		</div>
		<div class="content"><p>P3</p></div>
	</body>
	</html>
	`

func parseTestDoc(t *testing.T) *html.Node {
	t.Helper()
	doc, err := htmlquery.Parse(strings.NewReader(testHTML))
	require.NoError(t, err)
	return doc
}

func texts(nodes []*html.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, strings.TrimSpace(htmlquery.InnerText(n)))
	}
	return out
}

func TestCompile(t *testing.T) {
	doc := parseTestDoc(t)

	tests := []struct {
		css      string
		expected []string
	}{
		{"h1", []string{"Welcome"}},
		{"#special", []string{"Item 3"}},
		{`[data-test-id="item-two"]`, []string{"Item 2"}},
		{"div.content p", []string{"P1", "P2", "P3"}},
		{"div.main > p", []string{"P1", "P2"}},
		{"li:nth-of-type(2)", []string{"Item 2"}},
		{"ul > li:first-of-type", []string{"Item 1"}},
		{"p + ul li#special", []string{"Item 3"}},
		{"p ~ ul > li:nth-of-type(3)", []string{"Item 3"}},
		{`p[lang|="en"]`, []string{"P2"}},
		{`div[class~="main"] > p:nth-of-type(1)`, []string{"P1"}},
		{`li[data-test-id^="item"]`, []string{"Item 2"}},
		{`li[data-test-id$="two"]`, []string{"Item 2"}},
		{`li[data-test-id*="em-t"]`, []string{"Item 2"}},
		{`li[data-test-id$=""]`, []string{}},
		{`li[title="it's \"special\""]`, []string{"Item 3"}},
		{`button[aria-label="Sign in"]`, []string{"Go"}},
		{"h1, #special", []string{"Welcome", "Item 3"}},
		{"h1 + p", []string{}},
		{"li >> nth=1", []string{"Item 2"}},
		{"li >> nth=7", []string{}},
		{"#special, h1", []string{"Welcome", "Item 3"}},
	}

	for _, tt := range tests {
		t.Run(tt.css, func(t *testing.T) {
			base, _, _ := SplitNth(tt.css)
			xp, err := Compile(base)
			require.NoError(t, err)
			nodes, err := QueryAll(doc, tt.css)
			require.NoError(t, err, "compiled xpath %s", xp)
			assert.Equal(t, tt.expected, texts(nodes), "compiled xpath %s", xp)
		})
	}

	t.Run("Radio Group By Name", func(t *testing.T) {
		nodes, err := QueryAll(doc, `input[type="radio"][name="plan"]`)
		require.NoError(t, err)
		require.Len(t, nodes, 2)
		assert.Equal(t, "a", htmlquery.SelectAttr(nodes[0], "value"))
	})

	t.Run("Names That Are Not XPath Names", func(t *testing.T) {
		xp, err := Compile("-custom[-flag]")
		require.NoError(t, err)
		assert.Equal(t, "//*[local-name()='-custom'][@*[local-name()='-flag']]", xp)
	})

	t.Run("Compile Leaves Document Order To QueryAll", func(t *testing.T) {
		_, err := Compile("li >> nth=1")
		assert.Error(t, err)
	})

	t.Run("Universal NthOfType Is Rejected", func(t *testing.T) {
		_, err := Compile("*:nth-of-type(2)")
		assert.Error(t, err)
	})
}

func TestLiteral(t *testing.T) {
	assert.Equal(t, "'plain'", literal("plain"))
	assert.Equal(t, `"it's"`, literal("it's"))
	assert.Equal(t, `concat('a', "'", 'b"c')`, literal(`a'b"c`))
	assert.Equal(t, `concat("'", '"')`, literal(`'"`))
}
