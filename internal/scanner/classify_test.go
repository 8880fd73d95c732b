package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/pagemapper/api/schemas"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		tag   string
		attrs map[string]string
		want  schemas.Role
	}{
		{"TextDefault", "input", nil, schemas.RoleTextInput},
		{"Email", "INPUT", map[string]string{"type": "email"}, schemas.RoleTextInput},
		{"Password", "input", map[string]string{"type": "password"}, schemas.RolePasswordInput},
		{"Number", "input", map[string]string{"type": "number"}, schemas.RoleNumberInput},
		{"Range", "input", map[string]string{"type": "range"}, schemas.RoleNumberInput},
		{"File", "input", map[string]string{"type": "file"}, schemas.RoleFileInput},
		{"Checkbox", "input", map[string]string{"type": "Checkbox"}, schemas.RoleCheckbox},
		{"Radio", "input", map[string]string{"type": "radio"}, schemas.RoleRadioGroup},
		{"SubmitInput", "input", map[string]string{"type": "submit"}, schemas.RoleButton},
		{"Textarea", "textarea", nil, schemas.RoleTextInput},
		{"Select", "select", nil, schemas.RoleSingleSelect},
		{"SelectMultiple", "select", map[string]string{"multiple": ""}, schemas.RoleMultiSelect},
		{"Table", "table", nil, schemas.RoleTable},
		{"Grid", "div", map[string]string{"role": "grid"}, schemas.RoleTable},
		{"Image", "img", map[string]string{"alt": "logo"}, schemas.RoleImage},
		{"Button", "button", nil, schemas.RoleButton},
		{"RoleButton", "div", map[string]string{"role": "button"}, schemas.RoleButton},
		{"Summary", "summary", nil, schemas.RoleButton},
		{"Link", "a", map[string]string{"href": "/x"}, schemas.RoleLink},
		{"RoleLink", "span", map[string]string{"role": "link"}, schemas.RoleLink},
		{"AnchorWithoutHref", "a", nil, schemas.RoleCustomComponent},
		{"Switch", "div", map[string]string{"role": "switch"}, schemas.RoleCheckbox},
		{"RadioGroupRole", "div", map[string]string{"role": "radiogroup"}, schemas.RoleRadioGroup},
		{"Listbox", "ul", map[string]string{"role": "listbox"}, schemas.RoleSingleSelect},
		{"ListboxMulti", "ul", map[string]string{"role": "listbox", "aria-multiselectable": "true"}, schemas.RoleMultiSelect},
		{"Combobox", "div", map[string]string{"role": "combobox", "aria-expanded": "false"}, schemas.RoleSingleSelect},
		{"ToggleButton", "button", map[string]string{"data-bs-toggle": "dropdown"}, schemas.RoleCustomDropdown},
		{"HasPopup", "div", map[string]string{"aria-haspopup": "menu"}, schemas.RoleCustomDropdown},
		{"HasPopupFalse", "div", map[string]string{"aria-haspopup": "false", "onclick": ""}, schemas.RoleCustomComponent},
		{"DropdownClass", "span", map[string]string{"class": "nav-item Dropdown-Toggle"}, schemas.RoleCustomDropdown},
		{"Details", "details", nil, schemas.RoleCustomDropdown},
		{"ClickableDiv", "div", map[string]string{"onclick": "go()"}, schemas.RoleCustomComponent},
		{"FirstRoleTokenWins", "div", map[string]string{"role": "tab button"}, schemas.RoleCustomComponent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.tag, tt.attrs))
		})
	}
}

func TestIsCandidate(t *testing.T) {
	testIDs := []string{"data-test-id", "data-testid"}

	assert.False(t, isCandidate("input", map[string]string{"type": "hidden"}, testIDs))
	assert.False(t, isCandidate("option", nil, testIDs))
	assert.False(t, isCandidate("a", map[string]string{"name": "top"}, testIDs))
	assert.False(t, isCandidate("nav", map[string]string{"role": "navigation"}, testIDs))
	assert.False(t, isCandidate("div", map[string]string{"tabindex": "-1"}, testIDs))
	assert.False(t, isCandidate("div", map[string]string{"contenteditable": "false"}, testIDs))

	assert.True(t, isCandidate("input", map[string]string{"type": "text"}, testIDs))
	assert.True(t, isCandidate("a", map[string]string{"href": ""}, testIDs))
	assert.True(t, isCandidate("div", map[string]string{"role": "button"}, testIDs))
	assert.True(t, isCandidate("div", map[string]string{"tabindex": "0"}, testIDs))
	assert.True(t, isCandidate("div", map[string]string{"data-testid": "card"}, testIDs))
	assert.True(t, isCandidate("div", map[string]string{"contenteditable": ""}, testIDs))
}

func TestCandidateQuery(t *testing.T) {
	q := CandidateQuery([]string{"data-qa", "data-cy"})
	assert.Contains(t, q, "a, button, input")
	assert.True(t, len(q) > len(baseCandidateQuery))
	assert.Contains(t, q, ", [data-qa], [data-cy]")
}

func TestSlugs(t *testing.T) {
	assert.Equal(t, "text-input", roleSlug(schemas.RoleTextInput))
	assert.Equal(t, "custom-component", roleSlug(schemas.RoleCustomComponent))
	assert.Equal(t, "email-field", slug("  Email_Field "))
	assert.Equal(t, "se-connecter", slug("Se connecter!"))
	assert.Equal(t, "", slug("***"))
}
