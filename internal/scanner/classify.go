package scanner

import (
	"strings"

	"github.com/xkilldash9x/pagemapper/api/schemas"
)

// widgetRoles are ARIA roles that make an otherwise inert node interactive.
var widgetRoles = map[string]bool{
	"button": true, "link": true, "checkbox": true, "switch": true,
	"radio": true, "radiogroup": true, "listbox": true, "combobox": true,
	"grid": true, "table": true, "treegrid": true, "textbox": true,
	"searchbox": true, "spinbutton": true, "slider": true, "tab": true,
	"menuitem": true, "menuitemcheckbox": true, "menuitemradio": true,
	"treeitem": true, "img": true, "menu": true, "menubar": true,
	"tablist": true, "tree": true,
}

// Classify maps a tag and its attributes to a role. It is total: every
// node gets a role, CustomComponent when nothing more specific applies.
func Classify(tag string, attrs map[string]string) schemas.Role {
	tag = strings.ToLower(tag)
	role := ariaRole(attrs)

	switch tag {
	case "input":
		switch strings.ToLower(strings.TrimSpace(attrs["type"])) {
		case "password":
			return schemas.RolePasswordInput
		case "number", "range":
			return schemas.RoleNumberInput
		case "file":
			return schemas.RoleFileInput
		case "checkbox":
			return schemas.RoleCheckbox
		case "radio":
			return schemas.RoleRadioGroup
		case "submit", "button", "reset", "image":
			return schemas.RoleButton
		default:
			return schemas.RoleTextInput
		}
	case "textarea":
		return schemas.RoleTextInput
	case "select":
		if _, ok := attrs["multiple"]; ok {
			return schemas.RoleMultiSelect
		}
		return schemas.RoleSingleSelect
	case "table":
		return schemas.RoleTable
	case "img":
		return schemas.RoleImage
	}

	switch role {
	case "grid", "table", "treegrid":
		return schemas.RoleTable
	case "checkbox", "switch", "menuitemcheckbox":
		return schemas.RoleCheckbox
	case "radiogroup", "radio", "menuitemradio":
		return schemas.RoleRadioGroup
	case "listbox":
		if strings.EqualFold(attrs["aria-multiselectable"], "true") {
			return schemas.RoleMultiSelect
		}
		return schemas.RoleSingleSelect
	case "combobox":
		return schemas.RoleSingleSelect
	case "textbox", "searchbox":
		return schemas.RoleTextInput
	case "spinbutton":
		return schemas.RoleNumberInput
	case "img":
		return schemas.RoleImage
	}

	if hasToggleAffordance(attrs) || tag == "details" {
		return schemas.RoleCustomDropdown
	}

	switch {
	case tag == "button" || tag == "summary" || role == "button":
		return schemas.RoleButton
	case role == "link":
		return schemas.RoleLink
	case tag == "a":
		if _, ok := attrs["href"]; ok {
			return schemas.RoleLink
		}
	}
	return schemas.RoleCustomComponent
}

// hasToggleAffordance reports markers of a script driven popup or disclosure.
func hasToggleAffordance(attrs map[string]string) bool {
	if v, ok := attrs["aria-haspopup"]; ok && !strings.EqualFold(v, "false") {
		return true
	}
	if _, ok := attrs["aria-expanded"]; ok {
		return true
	}
	if attrs["data-toggle"] != "" || attrs["data-bs-toggle"] != "" {
		return true
	}
	for _, class := range strings.Fields(strings.ToLower(attrs["class"])) {
		if strings.Contains(class, "dropdown") {
			return true
		}
	}
	return false
}

func ariaRole(attrs map[string]string) string {
	// The first token of a role list is the one browsers honor.
	fields := strings.Fields(strings.ToLower(attrs["role"]))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// isCandidate filters the broad enumeration query down to nodes a user can
// act on or inspect.
func isCandidate(tag string, attrs map[string]string, testIDAttrs []string) bool {
	switch tag {
	case "option", "optgroup", "datalist":
		return false
	case "input":
		return !strings.EqualFold(strings.TrimSpace(attrs["type"]), "hidden")
	case "button", "select", "textarea", "table", "img", "summary", "details":
		return true
	case "a":
		if _, ok := attrs["href"]; ok {
			return true
		}
	}

	if widgetRoles[ariaRole(attrs)] {
		return true
	}
	if _, ok := attrs["onclick"]; ok {
		return true
	}
	if v, ok := attrs["tabindex"]; ok && strings.TrimSpace(v) != "-1" {
		return true
	}
	if v, ok := attrs["contenteditable"]; ok && !strings.EqualFold(v, "false") {
		return true
	}
	for _, a := range testIDAttrs {
		if _, ok := attrs[a]; ok {
			return true
		}
	}
	return hasToggleAffordance(attrs)
}
