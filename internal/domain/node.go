package domain

// Scalar is a typed literal value, carried by Constant input values and by
// scalar-literal node options (spec §3 "scalar-literal nodes").
type Scalar struct {
	Type DataType
	Num  float64 // valid when Type is numeric
	Str  string  // valid when Type is String
	Bool bool    // valid when Type is Boolean
	Ts   int64   // valid when Type is Timestamp, UTC nanoseconds
	// IsNull marks a typed null literal (null_number, null_boolean, ...).
	IsNull bool
}

// NodeReference names one output handle of a previously-built node.
type NodeReference struct {
	NodeId string
	Handle string
}

// InputValue is the tagged union described in spec §9 "Polymorphic node
// representation": either a reference to an upstream node's output, or a
// literal constant. Exactly one of Ref/Const is meaningful, selected by
// IsConstant.
type InputValue struct {
	IsConstant bool
	Ref        NodeReference
	Const      Scalar
}

// OptionValue is one node option: a number, boolean or string, or in
// Structured the parsed form of a constructor-call option value (Time,
// EventMarkerSchema, SqlStatement, TableReportSchema,
// CardColumnSchema — spec §4.7). Concrete schema types live in
// internal/compiler/constructorparser; this field stores them as `any` so
// domain does not depend on the compiler.
type OptionValue struct {
	Kind       OptionValueKind
	Num        float64
	Str        string
	Bool       bool
	Structured any
}

// OptionValueKind tags the active field of OptionValue.
type OptionValueKind int

const (
	OptionNumber OptionValueKind = iota
	OptionBool
	OptionString
	OptionStructured
)

// AlgorithmNode is the compiler's unit of computation (spec §3).
type AlgorithmNode struct {
	Id   string
	Type string // transform metadata id

	Options map[string]OptionValue
	// Inputs maps an input id (after SLOT/SLOTn rewriting) to its ordered
	// list of input values. Positional inputs use SLOT, SLOT0, SLOT1, ...
	Inputs map[string][]InputValue
	// InputOrder preserves insertion order of input ids for deterministic
	// iteration (map iteration order is not stable).
	InputOrder []string

	Timeframe Timeframe // zero value means unset; may be inferred at execution
	Session   string    // zero value means unset

	// outputTypes is populated by the type checker as Any-outputs resolve;
	// absent entries fall back to the static metadata declaration.
	outputTypes map[string]DataType
}

// NewAlgorithmNode constructs a node with initialized maps.
func NewAlgorithmNode(id, typ string) *AlgorithmNode {
	return &AlgorithmNode{
		Id:      id,
		Type:    typ,
		Options: make(map[string]OptionValue),
		Inputs:  make(map[string][]InputValue),
	}
}

// SetInput appends to (creating if absent) the ordered input-value list for
// inputId, preserving insertion order across repeated calls — required for
// variadic input wiring across multiple feed-step calls (spec §4.3).
func (n *AlgorithmNode) SetInput(inputId string, values ...InputValue) {
	if _, exists := n.Inputs[inputId]; !exists {
		n.InputOrder = append(n.InputOrder, inputId)
	}
	n.Inputs[inputId] = append(n.Inputs[inputId], values...)
}

// ResolvedOutputType returns the type the checker assigned to an Any output,
// if any has been recorded.
func (n *AlgorithmNode) ResolvedOutputType(handle string) (DataType, bool) {
	if n.outputTypes == nil {
		return "", false
	}
	t, ok := n.outputTypes[handle]
	return t, ok
}

// SetResolvedOutputType records an Any-resolution result for handle.
func (n *AlgorithmNode) SetResolvedOutputType(handle string, t DataType) {
	if n.outputTypes == nil {
		n.outputTypes = make(map[string]DataType)
	}
	n.outputTypes[handle] = t
}

// IsScalarLiteral reports whether this node is one of the pure
// scalar-literal node types that are timeframe/session-agnostic for CSE
// purposes (spec §4.8).
func (n *AlgorithmNode) IsScalarLiteral() bool {
	switch n.Type {
	case "number", "bool_true", "bool_false", "text",
		"null_number", "null_boolean", "null_string", "null_timestamp":
		return true
	default:
		return false
	}
}
