package schemas

// -- Method Schemas --

// OperationKind is the role specific operation a method performs.
// The string value doubles as the verb of the synthesized method name.
type OperationKind string

const (
	OpType            OperationKind = "type"
	OpClear           OperationKind = "clear"
	OpRead            OperationKind = "read"
	OpIsEnabled       OperationKind = "isEnabled"
	OpIsVisible       OperationKind = "isVisible"
	OpIsRequired      OperationKind = "isRequired"
	OpReadPlaceholder OperationKind = "readPlaceholder"
	OpRevealToggle    OperationKind = "revealToggle"
	OpReadMin         OperationKind = "readMin"
	OpReadMax         OperationKind = "readMax"
	OpUpload          OperationKind = "upload"

	OpCheck     OperationKind = "check"
	OpUncheck   OperationKind = "uncheck"
	OpIsChecked OperationKind = "isChecked"
	OpToggle    OperationKind = "toggle"

	OpSelectByValue  OperationKind = "selectByValue"
	OpSelectByIndex  OperationKind = "selectByIndex"
	OpSelectByText   OperationKind = "selectByText"
	OpReadSelected   OperationKind = "readSelected"
	OpListOptions    OperationKind = "listOptions"
	OpClearSelection OperationKind = "clearSelection"
	OpSelectMany     OperationKind = "selectMany"
	OpDeselectOne    OperationKind = "deselectOne"
	OpDeselectAll    OperationKind = "deselectAll"

	OpOpen  OperationKind = "open"
	OpClose OperationKind = "close"

	OpRowCount       OperationKind = "rowCount"
	OpColumnCount    OperationKind = "columnCount"
	OpCell           OperationKind = "cell"
	OpSelectRow      OperationKind = "selectRow"
	OpSortByColumn   OperationKind = "sortByColumn"
	OpFilterByColumn OperationKind = "filterByColumn"
	OpSelectAll      OperationKind = "selectAll"
	OpExportText     OperationKind = "exportText"

	OpClick       OperationKind = "click"
	OpDoubleClick OperationKind = "doubleClick"
	OpRightClick  OperationKind = "rightClick"
	OpReadText    OperationKind = "readText"
	OpHover       OperationKind = "hover"

	OpReadSrc        OperationKind = "readSrc"
	OpReadAlt        OperationKind = "readAlt"
	OpReadDimensions OperationKind = "readDimensions"
)

// ParamKind is the declared type of a method parameter.
type ParamKind string

const (
	ParamString  ParamKind = "string"
	ParamInt     ParamKind = "int"
	ParamStrings ParamKind = "strings"
)

// ReturnKind is the declared result shape of a method.
type ReturnKind string

const (
	ReturnVoid       ReturnKind = "void"
	ReturnString     ReturnKind = "string"
	ReturnBool       ReturnKind = "bool"
	ReturnInt        ReturnKind = "int"
	ReturnStrings    ReturnKind = "strings"
	ReturnDimensions ReturnKind = "dimensions"
	ReturnTableText  ReturnKind = "table_text"
)

// Parameter is one declared argument of a method contract.
type Parameter struct {
	Name string    `json:"name" yaml:"name"`
	Kind ParamKind `json:"kind" yaml:"kind"`
}

// MethodDescriptor is a renderer facing contract for one operation on one element.
// It carries no executable logic.
type MethodDescriptor struct {
	Name string `json:"name" yaml:"name"`
	// OwnerElementID refers to DetectedElement.ID for lookup only.
	OwnerElementID string        `json:"owner_element_id" yaml:"owner_element_id"`
	Operation      OperationKind `json:"operation" yaml:"operation"`
	Parameters     []Parameter   `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Returns        ReturnKind    `json:"returns" yaml:"returns"`
}
