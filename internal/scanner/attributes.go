package scanner

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/xkilldash9x/pagemapper/api/schemas"
	"github.com/xkilldash9x/pagemapper/internal/browser/selector"
)

// optionSeparator joins option values in the "options" attribute.
const optionSeparator = "|"

// keptAttributes are copied from the DOM when present. Values typed by a
// user (value, checked) are never recorded.
var keptAttributes = []string{
	"type", "name", "id", "role", "placeholder", "aria-label", "title",
	"required", "disabled", "readonly", "min", "max", "step", "maxlength",
	"pattern", "accept", "multiple", "href", "src", "alt", "width", "height",
	"aria-haspopup", "aria-expanded", "aria-multiselectable",
}

func (st *scan) relevantAttributes(desc schemas.NodeDescription, role schemas.Role) map[string]string {
	out := make(map[string]string)
	for _, a := range keptAttributes {
		if v, ok := desc.Attributes[a]; ok {
			out[a] = v
		}
	}
	for _, a := range st.cfg.TestIDAttributes {
		if v, ok := desc.Attributes[a]; ok {
			out[a] = v
		}
	}
	if desc.Tag == "textarea" {
		out["multiline"] = "true"
	}
	if role == schemas.RoleRadioGroup && desc.Tag == "input" {
		// A group of radios is one element; the anchor's id is not the group's.
		delete(out, "id")
	}
	return out
}

// deriveTableSelectors records row, header, cell and action selectors
// relative to the table's locator.
func deriveTableSelectors(el *schemas.DetectedElement, desc schemas.NodeDescription) {
	base := el.Locator.Primary
	if _, _, nth := selector.SplitNth(base); nth {
		base = desc.Path
	}

	var row, header, cell string
	if desc.Tag == "table" {
		row = base + " > tbody > tr"
		header = base + " > thead > tr > th"
		cell = row + " > td"
	} else {
		row = base + ` [role="row"]`
		header = base + ` [role="columnheader"]`
		cell = base + ` [role="gridcell"], ` + base + ` [role="cell"]`
	}
	el.Attributes["row_selector"] = row
	el.Attributes["header_selector"] = header
	el.Attributes["cell_selector"] = cell
	el.Attributes["action_selector"] = row + " button, " + row + " a[href], " + row + ` input[type="checkbox"]`
}

func radioValue(attrs map[string]string) string {
	if v, ok := attrs["value"]; ok {
		return v
	}
	return "on"
}

func appendOption(el *schemas.DetectedElement, value string) {
	if existing := el.Attributes["options"]; existing != "" {
		el.Attributes["options"] = existing + optionSeparator + value
		return
	}
	el.Attributes["options"] = value
}

// elementID derives a readable ID from the role and the most stable
// identifying attribute, falling back to a per role counter.
func (st *scan) elementID(role schemas.Role, attrs map[string]string) string {
	var disambiguator string
	for _, a := range st.cfg.TestIDAttributes {
		if v := slug(attrs[a]); v != "" {
			disambiguator = v
			break
		}
	}
	if disambiguator == "" {
		for _, a := range []string{"aria-label", "id", "name"} {
			if v := slug(attrs[a]); v != "" {
				disambiguator = v
				break
			}
		}
	}

	st.roleCounts[role]++
	if disambiguator == "" {
		disambiguator = fmt.Sprint(st.roleCounts[role])
	}

	base := roleSlug(role) + "-" + disambiguator
	st.ids[base]++
	if n := st.ids[base]; n > 1 {
		id := fmt.Sprintf("%s-%d", base, n)
		// A literal "-2" disambiguator may already exist; keep counting.
		for st.ids[id] > 0 {
			st.ids[base]++
			id = fmt.Sprintf("%s-%d", base, st.ids[base])
		}
		st.ids[id]++
		return id
	}
	return base
}

const maxSlugLen = 40

func slug(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			dash = false
			sb.WriteRune(r)
		} else {
			dash = true
		}
		if sb.Len() >= maxSlugLen {
			break
		}
	}
	return sb.String()
}

// roleSlug turns "TextInput" into "text-input".
func roleSlug(role schemas.Role) string {
	var sb strings.Builder
	for i, r := range string(role) {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('-')
			}
			r = unicode.ToLower(r)
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
