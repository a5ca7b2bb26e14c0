// Package context holds the CompilationContext threaded through every
// compiler stage (spec §4.2 "Shared compilation state"): variable bindings,
// the append-only node program, and the unique-id generator all live here so
// the expression compiler, node builder, type checker and CSE pass share one
// source of truth instead of passing six separate arguments around.
package context

import (
	"fmt"
	"strconv"

	"github.com/aristath/epochscript/internal/domain"
	"github.com/aristath/epochscript/internal/registry"
)

// Value is the result of compiling one expression: a typed reference to a
// node output. Every expression, including literals, compiles down to a
// Value naming a concrete node and output handle (spec §4.2 "Literal
// materialization") — there is no separate bare-constant representation on
// the compiler side, only on the domain model (domain.InputValue.Const)
// which this package's callers never populate.
type Value struct {
	NodeId string
	Handle string
	Type   domain.DataType
}

// Ref converts a Value into the domain.InputValue referencing its node
// output.
func (v Value) Ref() domain.InputValue {
	return domain.InputValue{Ref: domain.NodeReference{NodeId: v.NodeId, Handle: v.Handle}}
}

// Binding is what a script variable name resolves to: a specific node
// output handle, or (when the assigned expression was a bare call whose
// output handle hasn't been disambiguated yet) just a node id, resolved via
// that node's sole output at first use.
type Binding struct {
	NodeId string
	Handle string // empty means "resolve via the node's sole output"
}

// CompilationContext is the mutable state shared across one compilation run
// (spec §4.2: var_to_binding, the ordered algorithm list, node_lookup,
// used_node_ids, node_output_types, executor_count). The node list,
// node_lookup and executor_count live on domain.CompiledProgram; this type
// adds the variable-binding table and used_node_ids with the id generator
// built on it.
type CompilationContext struct {
	Registry *registry.Registry
	Program  *domain.CompiledProgram

	varToBinding map[string]Binding
	usedNodeIds  map[string]bool
}

// New creates an empty compilation context bound to reg.
func New(reg *registry.Registry) *CompilationContext {
	return &CompilationContext{
		Registry:     reg,
		Program:      domain.NewCompiledProgram(),
		varToBinding: make(map[string]Binding),
		usedNodeIds:  make(map[string]bool),
	}
}

// UniqueNodeId produces an id for a prospective base name by probing
// "<base>_0", "<base>_1", ... until one is unused (spec §4.2 "Unique node
// ids"). Insertion into used_node_ids is atomic with generation: the
// returned id is immediately marked used so a second call with the same
// base never collides with the first, even before the node is appended to
// the program.
func (c *CompilationContext) UniqueNodeId(base string) string {
	for i := 0; ; i++ {
		candidate := base + "_" + strconv.Itoa(i)
		if !c.usedNodeIds[candidate] {
			c.usedNodeIds[candidate] = true
			return candidate
		}
	}
}

// ReserveNodeId marks an externally-chosen id (e.g. a sink node named after
// its own transform type with no numeric suffix) as used. It is an error to
// reserve an id twice.
func (c *CompilationContext) ReserveNodeId(id string) error {
	if c.usedNodeIds[id] {
		return fmt.Errorf("context: node id %q already in use", id)
	}
	c.usedNodeIds[id] = true
	return nil
}

// Append adds a fully-wired node to the program. Callers must only append a
// node after every node it references has already been appended, preserving
// the topological-by-construction invariant (spec §3).
func (c *CompilationContext) Append(n *domain.AlgorithmNode) {
	c.Program.Append(n)
}

// Bind records that a script variable name now resolves to b. Rebinding an
// existing name is legal (scripts may reassign a variable) and simply
// overwrites the prior binding, matching ordinary Python assignment
// semantics.
func (c *CompilationContext) Bind(name string, b Binding) {
	c.varToBinding[name] = b
}

// Lookup resolves a script variable name to its current binding.
func (c *CompilationContext) Lookup(name string) (Binding, bool) {
	b, ok := c.varToBinding[name]
	return b, ok
}

// OutputType resolves the type of one node output, preferring a
// type-checker-resolved Any-specialization over the static metadata
// declaration (spec §4.4 "Any resolution").
func (c *CompilationContext) OutputType(nodeId, handle string) (domain.DataType, error) {
	node, ok := c.Program.Get(nodeId)
	if !ok {
		return "", fmt.Errorf("context: unknown node %q", nodeId)
	}
	if t, ok := node.ResolvedOutputType(handle); ok {
		return t, nil
	}
	meta, ok := c.Registry.Lookup(node.Type)
	if !ok {
		return "", fmt.Errorf("context: node %q has unregistered transform %q", nodeId, node.Type)
	}
	out, ok := meta.Output(handle)
	if !ok {
		return "", fmt.Errorf("context: transform %q has no output %q", node.Type, handle)
	}
	return out.Type, nil
}

// ResolveBinding turns a Binding with no explicit handle into one naming the
// bound node's sole output (spec §4.2 "Bare identifier resolution").
func (c *CompilationContext) ResolveBinding(b Binding) (domain.NodeReference, error) {
	if b.Handle != "" {
		return domain.NodeReference{NodeId: b.NodeId, Handle: b.Handle}, nil
	}
	node, ok := c.Program.Get(b.NodeId)
	if !ok {
		return domain.NodeReference{}, fmt.Errorf("context: unknown node %q", b.NodeId)
	}
	meta, ok := c.Registry.Lookup(node.Type)
	if !ok {
		return domain.NodeReference{}, fmt.Errorf("context: node %q has unregistered transform %q", b.NodeId, node.Type)
	}
	handle, ok := meta.SoleOutput()
	if !ok {
		return domain.NodeReference{}, fmt.Errorf("context: transform %q has %d outputs, a handle must be named explicitly (use .<handle>)", node.Type, len(meta.Outputs))
	}
	return domain.NodeReference{NodeId: b.NodeId, Handle: handle}, nil
}
