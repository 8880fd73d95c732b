package scanner

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/pagemapper/api/schemas"
	"github.com/xkilldash9x/pagemapper/internal/browser/htmlsession"
	"github.com/xkilldash9x/pagemapper/internal/config"
)

func testScannerConfig() config.ScannerConfig {
	cfg := config.NewDefaultConfig().Scanner
	cfg.SettleDelay = time.Millisecond
	return cfg
}

func loadPage(t *testing.T, markup string) *htmlsession.Session {
	t.Helper()
	s, err := htmlsession.NewSession(htmlsession.Options{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, s.Load("https://app.example.test/page", strings.NewReader(markup)))
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func scanPage(t *testing.T, session schemas.SessionHandle) Result {
	t.Helper()
	res, err := New(session, testScannerConfig(), zaptest.NewLogger(t)).Scan(context.Background())
	require.NoError(t, err)
	return res
}

func primaries(res Result) []string {
	out := make([]string, 0, len(res.Elements))
	for _, el := range res.Elements {
		out = append(out, el.Locator.Primary)
	}
	return out
}

func TestEmailAndSubmitScenario(t *testing.T) {
	session := loadPage(t, `<html><body>
		<input type="email" data-test-id="email-field">
		<button data-test-id="submit-button">Submit</button>
	</body></html>`)

	res := scanPage(t, session)
	require.Len(t, res.Elements, 2)
	assert.Empty(t, res.Warnings)

	email, submit := res.Elements[0], res.Elements[1]
	assert.Equal(t, `[data-test-id="email-field"]`, email.Locator.Primary)
	assert.Equal(t, schemas.StrategyTestID, email.Locator.Strategy)
	assert.Equal(t, schemas.RoleTextInput, email.Role)
	assert.Equal(t, "text-input-email-field", email.ID)

	assert.Equal(t, `[data-test-id="submit-button"]`, submit.Locator.Primary)
	assert.Equal(t, schemas.RoleButton, submit.Role)
	assert.Equal(t, "Submit", submit.TextSnapshot)
	assert.True(t, submit.IsInteractive)
}

func TestStrategyPriority(t *testing.T) {
	session := loadPage(t, `<html><body>
		<input aria-label="Search" id="q" name="q">
		<input id="user" name="user">
		<input name="zip">
		<select><option>A</option></select>
	</body></html>`)

	res := scanPage(t, session)
	assert.Equal(t, []string{
		`input[aria-label="Search"]`,
		`#user`,
		`input[name="zip"]`,
		`html > body:nth-of-type(1) > select:nth-of-type(1)`,
	}, primaries(res))

	// Every attempted strategy is kept for the renderer.
	search := res.Elements[0]
	require.Len(t, search.Locator.Candidates, 1)
	assert.Equal(t, 1, search.Locator.Candidates[0].Matches)
}

func TestCollisionEscalatesToNextStrategy(t *testing.T) {
	session := loadPage(t, `<html><body>
		<button data-testid="action" id="save">Save</button>
		<button data-testid="action" id="cancel">Cancel</button>
		<button id="dup">One</button>
		<button id="dup">Two</button>
	</body></html>`)

	res := scanPage(t, session)
	assert.Equal(t, []string{
		`#save`,
		`#cancel`,
		`html > body:nth-of-type(1) > button:nth-of-type(3)`,
		`html > body:nth-of-type(1) > button:nth-of-type(4)`,
	}, primaries(res))

	first := res.Elements[0].Locator.Candidates
	require.GreaterOrEqual(t, len(first), 2)
	assert.Equal(t, schemas.StrategyTestID, first[0].Strategy)
	assert.Equal(t, 2, first[0].Matches)
	assert.Equal(t, "button-action", res.Elements[0].ID)
	assert.Equal(t, "button-action-2", res.Elements[1].ID)
}

func TestRadioButtonsCollapseIntoGroup(t *testing.T) {
	session := loadPage(t, `<html><body><form>
		<input type="radio" name="plan" value="free" id="plan-free">
		<input type="radio" name="plan" value="pro">
		<input type="radio" name="plan" value="team">
		<div role="radiogroup" aria-label="Size">
			<div role="radio" aria-checked="true">S</div>
			<div role="radio">M</div>
		</div>
	</form></body></html>`)

	res := scanPage(t, session)
	require.Len(t, res.Elements, 2)

	group := res.Elements[0]
	assert.Equal(t, schemas.RoleRadioGroup, group.Role)
	assert.Equal(t, `input[type="radio"][name="plan"]`, group.Locator.Primary)
	assert.Equal(t, "free|pro|team", group.Attr("options"))
	assert.Equal(t, "radio-group-plan", group.ID)
	assert.Empty(t, group.Attr("id"))

	aria := res.Elements[1]
	assert.Equal(t, schemas.RoleRadioGroup, aria.Role)
	assert.Equal(t, `div[aria-label="Size"]`, aria.Locator.Primary)
	assert.Equal(t, "S|M", aria.Attr("options"))
}

func TestTableClaimsItsRows(t *testing.T) {
	session := loadPage(t, `<html><body>
		<table data-qa="users">
			<thead><tr><th>Name</th><th></th></tr></thead>
			<tbody>
				<tr><td>Alice</td><td><button>Edit</button></td></tr>
				<tr><td>Bob</td><td><button>Edit</button></td></tr>
			</tbody>
		</table>
		<table data-qa="empty"></table>
		<button>Outside</button>
	</body></html>`)

	res := scanPage(t, session)
	require.Len(t, res.Elements, 3)

	users := res.Elements[0]
	assert.Equal(t, schemas.RoleTable, users.Role)
	assert.Equal(t, `[data-qa="users"]`, users.Locator.Primary)
	assert.Equal(t, `[data-qa="users"] > tbody > tr`, users.Attr("row_selector"))
	assert.Equal(t, `[data-qa="users"] > tbody > tr > td`, users.Attr("cell_selector"))
	assert.Equal(t, `[data-qa="users"] > thead > tr > th`, users.Attr("header_selector"))
	assert.Contains(t, users.Attr("action_selector"), `[data-qa="users"] > tbody > tr button`)

	// The derived selectors are valid against the same document.
	rows, err := session.FindAll(context.Background(), users.Attr("row_selector"))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	actions, err := session.FindAll(context.Background(), users.Attr("action_selector"))
	require.NoError(t, err)
	assert.Len(t, actions, 2)

	assert.Equal(t, schemas.RoleTable, res.Elements[1].Role)
	assert.Equal(t, "Outside", res.Elements[2].TextSnapshot)
}

func TestSelectsAndFiltering(t *testing.T) {
	session := loadPage(t, `<html><body>
		<input type="hidden" name="csrf" value="token">
		<nav role="navigation"><a name="top">Top</a></nav>
		<select name="size"><option value="s">Small</option><option>Medium</option></select>
		<select name="tags" multiple><option value="a">A</option><option value="b">B</option></select>
		<textarea name="notes" placeholder="Notes"></textarea>
		<img src="/logo.png" alt="Logo">
		<div role="tab" tabindex="-1">Tab</div>
	</body></html>`)

	res := scanPage(t, session)
	require.Len(t, res.Elements, 5)

	size := res.Elements[0]
	assert.Equal(t, schemas.RoleSingleSelect, size.Role)
	assert.Equal(t, "s|Medium", size.Attr("options"))

	tags := res.Elements[1]
	assert.Equal(t, schemas.RoleMultiSelect, tags.Role)
	assert.Equal(t, "a|b", tags.Attr("options"))
	_, multiple := tags.Attributes["multiple"]
	assert.True(t, multiple)

	notes := res.Elements[2]
	assert.Equal(t, schemas.RoleTextInput, notes.Role)
	assert.Equal(t, "true", notes.Attr("multiline"))
	assert.Equal(t, "Notes", notes.Attr("placeholder"))

	logo := res.Elements[3]
	assert.Equal(t, schemas.RoleImage, logo.Role)
	assert.False(t, logo.IsInteractive)
	assert.Equal(t, "Logo", logo.Attr("alt"))

	assert.Equal(t, schemas.RoleCustomComponent, res.Elements[4].Role)

	for _, el := range res.Elements {
		_, hasValue := el.Attributes["value"]
		assert.False(t, hasValue, "typed values must never be recorded")
	}
}

const richPage = `<html><head><title>Rich</title></head><body>
	<header><a href="/">Home</a><a href="/about">About</a><a href="/about">About</a></header>
	<form id="login">
		<input type="email" name="email" placeholder="Email">
		<input type="password" name="password">
		<input type="checkbox" name="remember">
		<button type="submit">Sign in</button>
	</form>
	<button>Leaderboard</button>
	<button>Leaderboard</button>
	<div class="dropdown"><button data-bs-toggle="dropdown" aria-expanded="false">Menu</button></div>
	<details><summary>More</summary><a href="/hidden">Hidden</a></details>
	<div role="grid" aria-label="Scores"><div role="row"><div role="gridcell">1</div></div></div>
	<span onclick="x()">Clickable</span>
</body></html>`

func TestScanIsDeterministicAndUnique(t *testing.T) {
	session := loadPage(t, richPage)

	first := scanPage(t, session)
	second := scanPage(t, session)
	if diff := cmp.Diff(primaries(first), primaries(second)); diff != "" {
		t.Fatalf("rescan changed primaries (-first +second):\n%s", diff)
	}

	seen := map[string]bool{}
	ids := map[string]bool{}
	for _, el := range first.Elements {
		assert.False(t, seen[el.Locator.Primary], "duplicate primary %s", el.Locator.Primary)
		seen[el.Locator.Primary] = true
		assert.False(t, ids[el.ID], "duplicate id %s", el.ID)
		ids[el.ID] = true

		refs, err := session.FindAll(context.Background(), el.Locator.Primary)
		require.NoError(t, err)
		assert.Len(t, refs, 1, "primary %s must resolve to exactly one node", el.Locator.Primary)
	}

	// Document order.
	for i := 1; i < len(first.Elements); i++ {
		assert.Less(t, first.Elements[i-1].DocumentIndex, first.Elements[i].DocumentIndex)
	}

	roles := map[schemas.Role]int{}
	for _, el := range first.Elements {
		roles[el.Role]++
	}
	assert.Equal(t, 1, roles[schemas.RoleTable], "grid is a table")
	assert.Equal(t, 2, roles[schemas.RoleCustomDropdown], "toggle button and details")
	assert.Equal(t, 4, roles[schemas.RoleLink], "links inside details are scanned")
	assert.Equal(t, 1, roles[schemas.RoleCustomComponent], "only the clickable span")
}

func TestContainersOnlyClaimWhatTheyOwn(t *testing.T) {
	session := loadPage(t, `<html><body>
		<details>
			<summary>Filters</summary>
			<input name="q">
			<a href="/help">Help</a>
			<button id="apply">Apply</button>
		</details>
		<table id="grid">
			<thead><tr><th><button id="sort-name">Name</button></th></tr></thead>
			<tbody>
				<tr><td><button>Edit</button></td></tr>
				<tr><td><a href="/users/2">Open</a></td></tr>
			</tbody>
		</table>
		<ul role="listbox" aria-label="Fruit">
			<li role="option">Apple</li>
			<li role="option">Pear</li>
			<li><a href="/more">More fruit</a></li>
		</ul>
	</body></html>`)

	res := scanPage(t, session)
	assert.Equal(t, []string{
		`html > body:nth-of-type(1) > details:nth-of-type(1)`,
		`html > body:nth-of-type(1) > details:nth-of-type(1) > summary:nth-of-type(1)`,
		`input[name="q"]`,
		`html > body:nth-of-type(1) > details:nth-of-type(1) > a:nth-of-type(1)`,
		`#apply`,
		`#grid`,
		`#sort-name`,
		`ul[aria-label="Fruit"]`,
		`html > body:nth-of-type(1) > ul:nth-of-type(1) > li:nth-of-type(3) > a:nth-of-type(1)`,
	}, primaries(res))
	assert.Empty(t, res.Warnings)

	fruit := res.Elements[7]
	assert.Equal(t, schemas.RoleSingleSelect, fruit.Role)
	assert.Equal(t, "Apple|Pear", fruit.Attr("options"))
}

// hookedSession intercepts an htmlsession to simulate a DOM changing under
// the scanner.
type hookedSession struct {
	*htmlsession.Session
	mu       sync.Mutex
	calls    map[string]int
	findAll  func(query string, call int, refs []schemas.NodeRef) []schemas.NodeRef
	describe func(ref schemas.NodeRef) error
}

func (h *hookedSession) FindAll(ctx context.Context, query string) ([]schemas.NodeRef, error) {
	refs, err := h.Session.FindAll(ctx, query)
	if err != nil || h.findAll == nil {
		return refs, err
	}
	h.mu.Lock()
	if h.calls == nil {
		h.calls = map[string]int{}
	}
	h.calls[query]++
	call := h.calls[query]
	h.mu.Unlock()
	return h.findAll(query, call, refs), nil
}

func (h *hookedSession) Describe(ctx context.Context, ref schemas.NodeRef) (schemas.NodeDescription, error) {
	if h.describe != nil {
		if err := h.describe(ref); err != nil {
			return schemas.NodeDescription{}, err
		}
	}
	return h.Session.Describe(ctx, ref)
}

func TestTransientOverBroadMatchIsRetried(t *testing.T) {
	session := &hookedSession{Session: loadPage(t, `<html><body><button id="go">Go</button><button>Other</button></body></html>`)}
	session.findAll = func(query string, call int, refs []schemas.NodeRef) []schemas.NodeRef {
		if query == "#go" && call == 1 {
			return append(refs, refs...)
		}
		return refs
	}

	res := scanPage(t, session)
	require.Len(t, res.Elements, 2)
	assert.Equal(t, "#go", res.Elements[0].Locator.Primary)
	assert.Equal(t, 2, session.calls["#go"], "over-broad match is re-queried exactly once")
}

func TestSharedNameSettlesOncePerScan(t *testing.T) {
	session := &hookedSession{Session: loadPage(t, `<html><body>
		<input type="checkbox" name="tags" value="a">
		<input type="checkbox" name="tags" value="b">
		<input type="checkbox" name="tags" value="c">
		<input type="checkbox" name="tags" value="d">
	</body></html>`)}
	session.findAll = func(query string, call int, refs []schemas.NodeRef) []schemas.NodeRef { return refs }

	res := scanPage(t, session)
	require.Len(t, res.Elements, 4)
	for _, el := range res.Elements {
		assert.Equal(t, schemas.StrategyStructural, el.Locator.Strategy)
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	// One query per element plus a single settle re-query.
	assert.Equal(t, 5, session.calls[`input[name="tags"]`])
}

func TestUnresolvedCollisionFallsBackToDocumentOrder(t *testing.T) {
	session := &hookedSession{Session: loadPage(t, `<html><body><button>A</button><button>B</button></body></html>`)}
	// Structural paths persistently over-match, as a broken DOM might.
	session.findAll = func(query string, call int, refs []schemas.NodeRef) []schemas.NodeRef {
		if strings.HasPrefix(query, "html >") {
			return append(refs, refs...)
		}
		return refs
	}

	res := scanPage(t, session)
	assert.Equal(t, []string{"button >> nth=0", "button >> nth=1"}, primaries(res))
	assert.Equal(t, schemas.StrategyPositional, res.Elements[1].Locator.Strategy)

	require.Len(t, res.Warnings, 2)
	for i, w := range res.Warnings {
		assert.Equal(t, schemas.WarnSelectorCollisionUnresolved, w.Code)
		assert.Equal(t, res.Elements[i].ID, w.ElementID)
	}
}

func TestVanishedElementsAreSkipped(t *testing.T) {
	session := &hookedSession{Session: loadPage(t, `<html><body><button id="a">A</button><button id="b">B</button><button id="c">C</button></body></html>`)}
	session.describe = func(ref schemas.NodeRef) error {
		if strings.HasSuffix(ref.String(), "[1]@1") && !strings.HasPrefix(ref.String(), "#") {
			return schemas.ErrNodeVanished
		}
		return nil
	}

	res := scanPage(t, session)
	assert.Equal(t, []string{"#a", "#c"}, primaries(res))
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, schemas.WarnElementVanished, res.Warnings[0].Code)
}

func TestElementLimit(t *testing.T) {
	session := loadPage(t, `<html><body><button>1</button><button>2</button><button>3</button></body></html>`)
	cfg := testScannerConfig()
	cfg.MaxElements = 2

	core, logs := observer.New(zapcore.DebugLevel)
	res, err := New(session, cfg, zap.New(core)).Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Elements, 2)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, schemas.WarnElementLimitReached, res.Warnings[0].Code)

	logged := logs.FilterMessage("Scan warning").All()
	require.Len(t, logged, 1)
	assert.Equal(t, string(schemas.WarnElementLimitReached), logged[0].ContextMap()["code"])
}

func TestScanCancellation(t *testing.T) {
	session := loadPage(t, richPage)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(session, testScannerConfig(), zaptest.NewLogger(t)).Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
