// Package registry holds the process-wide, read-only transform metadata
// table (spec §3 "Transform metadata", §6 "Transform registry",
// §9 "Global transform metadata"). It is populated once at process
// initialization and looked up by id during compilation; it never mutates
// afterward.
package registry

import "github.com/aristath/epochscript/internal/domain"

// IOHandle describes one input or output of a transform.
type IOHandle struct {
	Id                      string
	Type                    domain.DataType
	AllowMultipleConnections bool
}

// Option describes one configurable parameter of a transform.
type Option struct {
	Id           string
	Type         domain.DataType
	HasDefault   bool
	Default      domain.OptionValue
	IsRequired   bool
	HasMin       bool
	Min          float64
	HasMax       bool
	Max          float64
	HasStepSize  bool
	StepSize     float64
	SelectValues []string // non-nil for enumerated/select options
	// Structured marks an option whose value is parsed via a constructor
	// call (Time, EventMarkerSchema, SqlStatement, TableReportSchema,
	// CardColumnSchema) rather than a plain scalar (spec §4.7).
	Structured bool
	// StructuredKind names which constructor parses this option's value
	// when Structured is set, e.g. "Time" or "EventMarkerSchema".
	StructuredKind string
}

// Metadata is the static, library-defined description of one transform.
type Metadata struct {
	Id       string
	Category string
	Inputs   []IOHandle
	Outputs  []IOHandle
	Options  []Option
	// AnySpecializer, if set, is invoked post-wiring to resolve an Any
	// output's concrete type by inspecting the node's wired input types
	// (spec §4.4 "Any resolution" / §9 "specialization hook").
	AnySpecializer func(node *domain.AlgorithmNode, inputTypes map[string]domain.DataType) (domain.DataType, bool)
}

// IsSink reports whether this transform has zero outputs (spec §3).
func (m Metadata) IsSink() bool { return len(m.Outputs) == 0 }

// IsProducer reports whether this transform has one or more outputs.
func (m Metadata) IsProducer() bool { return len(m.Outputs) > 0 }

// Input looks up a declared input by id (after SLOT rewriting has already
// been applied to both sides by the caller).
func (m Metadata) Input(id string) (IOHandle, bool) {
	for _, h := range m.Inputs {
		if h.Id == id {
			return h, true
		}
	}
	return IOHandle{}, false
}

// Output looks up a declared output by id.
func (m Metadata) Output(id string) (IOHandle, bool) {
	for _, h := range m.Outputs {
		if h.Id == id {
			return h, true
		}
	}
	return IOHandle{}, false
}

// OptionMeta looks up a declared option by id.
func (m Metadata) OptionMeta(id string) (Option, bool) {
	for _, o := range m.Options {
		if o.Id == id {
			return o, true
		}
	}
	return Option{}, false
}

// SoleOutput returns the single output handle id when the transform has
// exactly one output, for bare-identifier resolution (spec §4.2 "Bare
// identifier resolution").
func (m Metadata) SoleOutput() (string, bool) {
	if len(m.Outputs) == 1 {
		return m.Outputs[0].Id, true
	}
	return "", false
}
