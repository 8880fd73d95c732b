package catalog

import (
	"slices"

	"github.com/xkilldash9x/pagemapper/api/schemas"
)

// Operation is the contract of one vocabulary entry.
type Operation struct {
	Kind    schemas.OperationKind
	Params  []schemas.Parameter
	Returns schemas.ReturnKind
}

func op(kind schemas.OperationKind, returns schemas.ReturnKind, params ...schemas.Parameter) Operation {
	return Operation{Kind: kind, Params: params, Returns: returns}
}

func str(name string) schemas.Parameter  { return schemas.Parameter{Name: name, Kind: schemas.ParamString} }
func num(name string) schemas.Parameter  { return schemas.Parameter{Name: name, Kind: schemas.ParamInt} }
func strs(name string) schemas.Parameter { return schemas.Parameter{Name: name, Kind: schemas.ParamStrings} }

var (
	isEnabled = op(schemas.OpIsEnabled, schemas.ReturnBool)
	isVisible = op(schemas.OpIsVisible, schemas.ReturnBool)

	textInputOps = []Operation{
		op(schemas.OpType, schemas.ReturnVoid, str("value")),
		op(schemas.OpClear, schemas.ReturnVoid),
		op(schemas.OpRead, schemas.ReturnString),
		isEnabled,
		isVisible,
		op(schemas.OpIsRequired, schemas.ReturnBool),
		op(schemas.OpReadPlaceholder, schemas.ReturnString),
	}

	singleSelectOps = []Operation{
		op(schemas.OpSelectByValue, schemas.ReturnVoid, str("value")),
		op(schemas.OpSelectByIndex, schemas.ReturnVoid, num("index")),
		op(schemas.OpSelectByText, schemas.ReturnVoid, str("text")),
		op(schemas.OpReadSelected, schemas.ReturnString),
		op(schemas.OpListOptions, schemas.ReturnStrings),
		op(schemas.OpClearSelection, schemas.ReturnVoid),
	}

	clickableOps = []Operation{
		op(schemas.OpClick, schemas.ReturnVoid),
		op(schemas.OpDoubleClick, schemas.ReturnVoid),
		op(schemas.OpRightClick, schemas.ReturnVoid),
		op(schemas.OpReadText, schemas.ReturnString),
		isEnabled,
		isVisible,
		op(schemas.OpHover, schemas.ReturnVoid),
	}

	vocabularies = map[schemas.Role][]Operation{
		schemas.RoleTextInput:     textInputOps,
		schemas.RolePasswordInput: concat(textInputOps, op(schemas.OpRevealToggle, schemas.ReturnVoid)),
		schemas.RoleNumberInput: concat(textInputOps,
			op(schemas.OpReadMin, schemas.ReturnString),
			op(schemas.OpReadMax, schemas.ReturnString),
		),
		schemas.RoleFileInput: {
			op(schemas.OpUpload, schemas.ReturnVoid, str("path")),
			op(schemas.OpClear, schemas.ReturnVoid),
			isEnabled,
			isVisible,
			op(schemas.OpIsRequired, schemas.ReturnBool),
		},
		schemas.RoleCheckbox: {
			op(schemas.OpCheck, schemas.ReturnVoid),
			op(schemas.OpUncheck, schemas.ReturnVoid),
			op(schemas.OpIsChecked, schemas.ReturnBool),
			op(schemas.OpToggle, schemas.ReturnVoid),
		},
		schemas.RoleRadioGroup: {
			op(schemas.OpSelectByValue, schemas.ReturnVoid, str("value")),
			op(schemas.OpReadSelected, schemas.ReturnString),
			op(schemas.OpListOptions, schemas.ReturnStrings),
			isEnabled,
			isVisible,
		},
		schemas.RoleSingleSelect: singleSelectOps,
		schemas.RoleMultiSelect: concat(singleSelectOps,
			op(schemas.OpSelectMany, schemas.ReturnVoid, strs("values")),
			op(schemas.OpDeselectOne, schemas.ReturnVoid, str("value")),
			op(schemas.OpDeselectAll, schemas.ReturnVoid),
		),
		schemas.RoleCustomDropdown: {
			op(schemas.OpOpen, schemas.ReturnVoid),
			op(schemas.OpClose, schemas.ReturnVoid),
			op(schemas.OpSelectByText, schemas.ReturnVoid, str("text")),
			op(schemas.OpReadSelected, schemas.ReturnString),
			isVisible,
		},
		schemas.RoleTable: {
			op(schemas.OpRowCount, schemas.ReturnInt),
			op(schemas.OpColumnCount, schemas.ReturnInt),
			op(schemas.OpCell, schemas.ReturnString, num("row"), num("col")),
			op(schemas.OpSelectRow, schemas.ReturnVoid, num("row")),
			op(schemas.OpSortByColumn, schemas.ReturnVoid, num("col")),
			op(schemas.OpFilterByColumn, schemas.ReturnVoid, num("col"), str("value")),
			op(schemas.OpSelectAll, schemas.ReturnVoid),
			op(schemas.OpExportText, schemas.ReturnTableText),
		},
		schemas.RoleButton: clickableOps,
		schemas.RoleLink:   clickableOps,
		schemas.RoleImage: {
			op(schemas.OpReadSrc, schemas.ReturnString),
			op(schemas.OpReadAlt, schemas.ReturnString),
			op(schemas.OpReadDimensions, schemas.ReturnDimensions),
		},
		schemas.RoleCustomComponent: {
			op(schemas.OpClick, schemas.ReturnVoid),
			isVisible,
			op(schemas.OpReadText, schemas.ReturnString),
		},
	}
)

func concat(base []Operation, extra ...Operation) []Operation {
	return append(slices.Clip(base), extra...)
}

// Vocabulary returns the ordered operations legal for role. Unknown roles
// get the CustomComponent vocabulary.
func Vocabulary(role schemas.Role) []Operation {
	ops, ok := vocabularies[role]
	if !ok {
		ops = vocabularies[schemas.RoleCustomComponent]
	}
	return slices.Clone(ops)
}
