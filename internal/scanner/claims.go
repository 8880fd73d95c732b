package scanner

import (
	"slices"
	"strings"

	"github.com/xkilldash9x/pagemapper/api/schemas"
)

// claim records a container element that represents some of its
// descendants. Owned descendants are folded into the container instead of
// becoming elements of their own; everything else inside it is scanned
// normally.
type claim struct {
	path  string
	owner int
	owns  func(rel string, attrs map[string]string) bool

	// options fold owned nodes into the owner's "options" attribute.
	options bool
}

func (st *scan) claim(desc schemas.NodeDescription, owns func(string, map[string]string) bool) {
	if desc.Path == "" {
		return
	}
	role := ariaRole(desc.Attributes)
	st.claims = append(st.claims, claim{
		path:    desc.Path,
		owner:   len(st.elements),
		owns:    owns,
		options: role == "radiogroup" || role == "listbox",
	})
}

// owner returns the innermost claim that owns the node at desc.Path.
func (st *scan) owner(desc schemas.NodeDescription) (claim, bool) {
	for i := len(st.claims) - 1; i >= 0; i-- {
		c := st.claims[i]
		rel, ok := strings.CutPrefix(desc.Path, c.path+" > ")
		if ok && c.owns(rel, desc.Attributes) {
			return c, true
		}
	}
	return claim{}, false
}

func (c claim) absorb(st *scan, desc schemas.NodeDescription) {
	// An ARIA row hands its whole subtree to the grid, like a tbody row does.
	if ariaRole(desc.Attributes) == "row" {
		st.claims = append(st.claims, claim{path: desc.Path, owner: c.owner, owns: ownsAll})
	}
	if !c.options {
		return
	}
	value := desc.Text
	if desc.Tag == "input" {
		value = radioValue(desc.Attributes)
	}
	if value = strings.TrimSpace(value); value != "" {
		appendOption(&st.elements[c.owner], value)
	}
}

// tableOwns claims the body rows of an HTML table, or the row and cell
// nodes of an ARIA grid.
func tableOwns(tag string) func(string, map[string]string) bool {
	if tag == "table" {
		return func(rel string, _ map[string]string) bool {
			return strings.HasPrefix(rel, "tbody:") || strings.HasPrefix(rel, "tr:")
		}
	}
	return ownsRoles("row", "gridcell", "cell", "rowheader")
}

// ownsRoles claims descendants carrying one of roles. Native radio inputs
// count as role radio.
func ownsRoles(roles ...string) func(string, map[string]string) bool {
	return func(_ string, attrs map[string]string) bool {
		role := ariaRole(attrs)
		if role == "" && strings.EqualFold(attrs["type"], "radio") {
			role = "radio"
		}
		return slices.Contains(roles, role)
	}
}

func ownsAll(string, map[string]string) bool { return true }
