package schemas

// -- Element Schemas --

// Role is the semantic category a scanned DOM node was classified into.
type Role string

const (
	RoleTextInput       Role = "TextInput"
	RolePasswordInput   Role = "PasswordInput"
	RoleNumberInput     Role = "NumberInput"
	RoleFileInput       Role = "FileInput"
	RoleCheckbox        Role = "Checkbox"
	RoleRadioGroup      Role = "RadioGroup"
	RoleSingleSelect    Role = "SingleSelect"
	RoleMultiSelect     Role = "MultiSelect"
	RoleCustomDropdown  Role = "CustomDropdown"
	RoleTable           Role = "Table"
	RoleButton          Role = "Button"
	RoleLink            Role = "Link"
	RoleImage           Role = "Image"
	RoleCustomComponent Role = "CustomComponent"
)

// AllRoles lists every role in a stable order.
var AllRoles = []Role{
	RoleTextInput, RolePasswordInput, RoleNumberInput, RoleFileInput,
	RoleCheckbox, RoleRadioGroup, RoleSingleSelect, RoleMultiSelect,
	RoleCustomDropdown, RoleTable, RoleButton, RoleLink, RoleImage,
	RoleCustomComponent,
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// IsInteractive reports whether the role supports actions rather than inspection only.
func (r Role) IsInteractive() bool {
	return r != RoleImage
}

// Strategy names the technique used to build a selector candidate.
// Strategies are listed in the order they are tried.
type Strategy string

const (
	StrategyTestID     Strategy = "test_id"
	StrategyAriaLabel  Strategy = "aria_label"
	StrategyID         Strategy = "id"
	StrategyName       Strategy = "name"
	StrategyStructural Strategy = "structural"
	// StrategyPositional is the tag selector plus a document order
	// disambiguator, used only when every other strategy collided.
	StrategyPositional Strategy = "positional"
)

// StrategyOrder is the fixed priority order for selector synthesis.
var StrategyOrder = []Strategy{
	StrategyTestID,
	StrategyAriaLabel,
	StrategyID,
	StrategyName,
	StrategyStructural,
}

// Candidate is a single selector attempt for an element.
type Candidate struct {
	Strategy Strategy `json:"strategy" yaml:"strategy"`
	Selector string   `json:"selector" yaml:"selector"`
	// Matches is the number of live nodes the selector resolved to at scan time.
	Matches  int  `json:"matches" yaml:"matches"`
	Collided bool `json:"collided,omitempty" yaml:"collided,omitempty"`
}

// Locator holds every candidate that was considered plus the chosen primary.
type Locator struct {
	Primary    string      `json:"primary" yaml:"primary"`
	Strategy   Strategy    `json:"strategy" yaml:"strategy"`
	Candidates []Candidate `json:"candidates" yaml:"candidates"`
}

// DetectedElement is one classified node of the scanned page.
type DetectedElement struct {
	ID            string            `json:"id" yaml:"id"`
	Role          Role              `json:"role" yaml:"role"`
	TagName       string            `json:"tag_name" yaml:"tag_name"`
	Locator       Locator           `json:"locator" yaml:"locator"`
	Attributes    map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	IsInteractive bool              `json:"is_interactive" yaml:"is_interactive"`
	// TextSnapshot is informational and never part of the locator.
	TextSnapshot  string `json:"text_snapshot,omitempty" yaml:"text_snapshot,omitempty"`
	DocumentIndex int    `json:"document_index" yaml:"document_index"`
}

// Attr returns the named attribute or the empty string.
func (e DetectedElement) Attr(name string) string {
	if e.Attributes == nil {
		return ""
	}
	return e.Attributes[name]
}
