// Package scanner classifies the interactive nodes of a settled page and
// gives each one a unique, stable locator.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagemapper/api/schemas"
	"github.com/xkilldash9x/pagemapper/internal/browser"
	"github.com/xkilldash9x/pagemapper/internal/browser/selector"
	"github.com/xkilldash9x/pagemapper/internal/config"
)

const baseCandidateQuery = "a, button, input, select, textarea, table, img, summary, details, " +
	"[role], [onclick], [tabindex], [contenteditable], [aria-haspopup], [aria-expanded]"

// CandidateQuery is the single document order enumeration query, extended
// with the configured test-id attributes.
func CandidateQuery(testIDAttrs []string) string {
	var sb strings.Builder
	sb.WriteString(baseCandidateQuery)
	for _, a := range testIDAttrs {
		sb.WriteString(", [")
		sb.WriteString(a)
		sb.WriteString("]")
	}
	return sb.String()
}

// Result is the element catalog of one scan.
type Result struct {
	Elements []schemas.DetectedElement
	Warnings []schemas.Warning
}

// Scanner reads the DOM through a session. It never mutates the page.
type Scanner struct {
	session schemas.SessionHandle
	cfg     config.ScannerConfig
	logger  *zap.Logger
}

// New creates a scanner over session.
func New(session schemas.SessionHandle, cfg config.ScannerConfig, logger *zap.Logger) *Scanner {
	return &Scanner{session: session, cfg: cfg, logger: logger.Named("scanner")}
}

// scan holds the bookkeeping of a single Scan call.
type scan struct {
	*Scanner
	assigned    map[string]string
	ids         map[string]int
	roleCounts  map[schemas.Role]int
	claims      []claim
	settled     map[string]bool
	radioGroups map[string]int
	elements    []schemas.DetectedElement
	warnings    []schemas.Warning
}

// Scan enumerates, classifies and locates every interactive node.
// Element level problems become warnings; only enumeration failure and
// cancellation are errors.
func (s *Scanner) Scan(ctx context.Context) (Result, error) {
	refs, err := s.session.FindAll(ctx, CandidateQuery(s.cfg.TestIDAttributes))
	if err != nil {
		return Result{}, fmt.Errorf("failed to enumerate candidate nodes: %w", err)
	}
	s.logger.Debug("Enumerated candidate nodes", zap.Int("count", len(refs)))

	st := &scan{
		Scanner:     s,
		assigned:    make(map[string]string),
		ids:         make(map[string]int),
		roleCounts:  make(map[schemas.Role]int),
		radioGroups: make(map[string]int),
		settled:     make(map[string]bool),
	}

	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if len(st.elements) >= s.cfg.MaxElements {
			st.warn(schemas.WarnElementLimitReached, "", "",
				fmt.Sprintf("stopped after %d elements, %d candidates not scanned", s.cfg.MaxElements, len(refs)-i))
			break
		}

		desc, err := s.session.Describe(ctx, ref)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			st.warn(schemas.WarnElementVanished, "", "", fmt.Sprintf("candidate %s could not be read: %v", ref, err))
			continue
		}
		if err := st.process(ctx, i, desc); err != nil {
			return Result{}, err
		}
	}

	s.logger.Debug("Scan complete", zap.Int("elements", len(st.elements)), zap.Int("warnings", len(st.warnings)))
	return Result{Elements: st.elements, Warnings: st.warnings}, nil
}

func (st *scan) process(ctx context.Context, docIndex int, desc schemas.NodeDescription) error {
	tag, attrs := desc.Tag, desc.Attributes
	if c, ok := st.owner(desc); ok {
		c.absorb(st, desc)
		return nil
	}
	if !isCandidate(tag, attrs, st.cfg.TestIDAttributes) {
		return nil
	}
	role := Classify(tag, attrs)

	radioName := ""
	if role == schemas.RoleRadioGroup && tag == "input" {
		radioName = attrs["name"]
		if idx, ok := st.radioGroups[radioName]; ok && radioName != "" {
			appendOption(&st.elements[idx], radioValue(attrs))
			return nil
		}
	}

	mark := len(st.warnings)
	loc, ok, err := st.synthesize(ctx, desc, role)
	if err != nil || !ok {
		return err
	}

	idAttrs := attrs
	if radioName != "" {
		idAttrs = map[string]string{"name": radioName}
	}
	el := schemas.DetectedElement{
		ID:            st.elementID(role, idAttrs),
		Role:          role,
		TagName:       tag,
		Locator:       loc,
		Attributes:    st.relevantAttributes(desc, role),
		IsInteractive: role.IsInteractive(),
		TextSnapshot:  truncateRunes(desc.Text, st.cfg.TextLimit),
		DocumentIndex: docIndex,
	}

	switch {
	case role == schemas.RoleTable:
		deriveTableSelectors(&el, desc)
		st.claim(desc, tableOwns(tag))
	case ariaRole(attrs) == "radiogroup":
		st.claim(desc, ownsRoles("radio"))
	case ariaRole(attrs) == "listbox":
		st.claim(desc, ownsRoles("option"))
	case radioName != "":
		el.Attributes["options"] = radioValue(attrs)
		st.radioGroups[radioName] = len(st.elements)
	case tag == "select":
		if opts := st.selectOptions(ctx, loc.Primary); len(opts) > 0 {
			el.Attributes["options"] = strings.Join(opts, optionSeparator)
		}
	}

	for i := mark; i < len(st.warnings); i++ {
		st.warnings[i].ElementID = el.ID
	}
	st.assigned[loc.Primary] = el.ID
	st.elements = append(st.elements, el)
	return nil
}

type candidate struct {
	strategy schemas.Strategy
	selector string
	// group selectors legitimately match every member of a radio group.
	group bool
}

// candidates lists selector attempts in strategy priority order.
func (st *scan) candidates(desc schemas.NodeDescription, role schemas.Role) []candidate {
	tag, attrs := desc.Tag, desc.Attributes
	var out []candidate

	if role == schemas.RoleRadioGroup && tag == "input" && attrs["name"] != "" {
		out = append(out, candidate{
			strategy: schemas.StrategyName,
			selector: `input[type="radio"]` + fmt.Sprintf("[name=%s]", selector.Quote(attrs["name"])),
			group:    true,
		})
	} else {
		for _, a := range st.cfg.TestIDAttributes {
			if v := attrs[a]; strings.TrimSpace(v) != "" {
				out = append(out, candidate{strategy: schemas.StrategyTestID, selector: selector.AttributeEquals("", a, v)})
				break
			}
		}
		if v := attrs["aria-label"]; strings.TrimSpace(v) != "" {
			out = append(out, candidate{strategy: schemas.StrategyAriaLabel, selector: selector.AttributeEquals(tag, "aria-label", v)})
		}
		if v := attrs["id"]; strings.TrimSpace(v) != "" {
			out = append(out, candidate{strategy: schemas.StrategyID, selector: selector.ByID(v)})
		}
		if v := attrs["name"]; strings.TrimSpace(v) != "" {
			out = append(out, candidate{strategy: schemas.StrategyName, selector: selector.AttributeEquals(tag, "name", v)})
		}
	}
	if desc.Path != "" {
		out = append(out, candidate{strategy: schemas.StrategyStructural, selector: desc.Path})
	}
	return out
}

// synthesize picks the first candidate that resolves to exactly this node
// and is not already another element's primary.
func (st *scan) synthesize(ctx context.Context, desc schemas.NodeDescription, role schemas.Role) (schemas.Locator, bool, error) {
	var loc schemas.Locator
	for _, c := range st.candidates(desc, role) {
		cand := schemas.Candidate{Strategy: c.strategy, Selector: c.selector}
		if _, taken := st.assigned[c.selector]; taken {
			cand.Collided = true
			loc.Candidates = append(loc.Candidates, cand)
			continue
		}

		count, unique, err := st.resolve(ctx, c, desc.Path)
		if err != nil {
			return loc, false, err
		}
		cand.Matches = count
		loc.Candidates = append(loc.Candidates, cand)
		if unique {
			loc.Primary, loc.Strategy = c.selector, c.strategy
			return loc, true, nil
		}
		if c.strategy == schemas.StrategyStructural && count == 0 {
			st.warn(schemas.WarnElementVanished, "", c.selector, "node disappeared before a locator could be verified")
			return loc, false, nil
		}
	}
	return st.positional(ctx, desc, loc)
}

// resolve counts the matches of c and reports whether they identify the
// node at path. An over-broad selector is re-queried after the settle
// delay the first time it is seen in a scan.
func (st *scan) resolve(ctx context.Context, c candidate, path string) (int, bool, error) {
	refs, err := st.findAll(ctx, c.selector)
	if err != nil {
		return 0, false, err
	}
	if len(refs) > 1 && !c.group && !st.settled[c.selector] {
		st.settled[c.selector] = true
		if err := browser.Sleep(ctx, st.cfg.SettleDelay); err != nil {
			return 0, false, err
		}
		if refs, err = st.findAll(ctx, c.selector); err != nil {
			return 0, false, err
		}
	}

	switch {
	case len(refs) == 0:
		return 0, false, nil
	case len(refs) > 1 && !c.group:
		return len(refs), false, nil
	}
	same, err := st.isNode(ctx, refs[0], path)
	return len(refs), same, err
}

// findAll swallows selector errors so a strategy the driver cannot
// evaluate simply does not match.
func (st *scan) findAll(ctx context.Context, sel string) ([]schemas.NodeRef, error) {
	refs, err := st.session.FindAll(ctx, sel)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		st.logger.Debug("Selector did not evaluate", zap.String("selector", sel), zap.Error(err))
		return nil, nil
	}
	return refs, nil
}

func (st *scan) isNode(ctx context.Context, ref schemas.NodeRef, path string) (bool, error) {
	if path == "" {
		return true, nil
	}
	d, err := st.session.Describe(ctx, ref)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	return d.Path == path, nil
}

// positional disambiguates by document order among nodes of the same tag.
func (st *scan) positional(ctx context.Context, desc schemas.NodeDescription, loc schemas.Locator) (schemas.Locator, bool, error) {
	if desc.Path == "" {
		st.warn(schemas.WarnElementVanished, "", desc.Tag, "driver reported no structural path")
		return loc, false, nil
	}
	refs, err := st.findAll(ctx, desc.Tag)
	if err != nil {
		return loc, false, err
	}
	for k, ref := range refs {
		same, err := st.isNode(ctx, ref, desc.Path)
		if err != nil {
			return loc, false, err
		}
		if !same {
			continue
		}
		sel := selector.WithNth(desc.Tag, k)
		if _, taken := st.assigned[sel]; taken {
			continue
		}
		loc.Primary, loc.Strategy = sel, schemas.StrategyPositional
		loc.Candidates = append(loc.Candidates, schemas.Candidate{Strategy: schemas.StrategyPositional, Selector: sel, Matches: 1})
		st.warn(schemas.WarnSelectorCollisionUnresolved, "", sel, "every selector strategy collided, using document order")
		return loc, true, nil
	}
	st.warn(schemas.WarnElementVanished, "", desc.Path, "node disappeared before a locator could be verified")
	return loc, false, nil
}

func (st *scan) selectOptions(ctx context.Context, primary string) []string {
	if _, _, nth := selector.SplitNth(primary); nth {
		return nil
	}
	refs, err := st.findAll(ctx, primary+" option")
	if err != nil {
		return nil
	}
	var out []string
	for _, ref := range refs {
		v, ok, err := st.session.ReadAttribute(ctx, ref, "value")
		if err != nil {
			if errors.Is(err, schemas.ErrNodeVanished) {
				continue
			}
			return out
		}
		if !ok {
			if v, err = st.session.Text(ctx, ref); err != nil {
				continue
			}
		}
		out = append(out, v)
	}
	return out
}
