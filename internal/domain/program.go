package domain

import "fmt"

// ExecutorTransformType is the distinguished sink transform id representing
// a trade signal (spec §3 "executor").
const ExecutorTransformType = "trade_signal_executor"

// CompiledProgram is an ordered, topologically-sorted vector of algorithm
// nodes plus an id->position index (spec §3 "Compiled program").
type CompiledProgram struct {
	Nodes         []*AlgorithmNode
	NodeLookup    map[string]int // node id -> position in Nodes
	ExecutorCount int
}

// NewCompiledProgram builds an empty program.
func NewCompiledProgram() *CompiledProgram {
	return &CompiledProgram{NodeLookup: make(map[string]int)}
}

// Append adds a node to the end of the program and indexes it. Callers are
// responsible for topological ordering: Append never reorders existing
// nodes, so appending only after all of a node's dependencies keeps the
// program topologically sorted by construction.
func (p *CompiledProgram) Append(n *AlgorithmNode) {
	p.NodeLookup[n.Id] = len(p.Nodes)
	p.Nodes = append(p.Nodes, n)
	if n.Type == ExecutorTransformType {
		p.ExecutorCount++
	}
}

// Get looks up a node by id.
func (p *CompiledProgram) Get(id string) (*AlgorithmNode, bool) {
	idx, ok := p.NodeLookup[id]
	if !ok {
		return nil, false
	}
	return p.Nodes[idx], true
}

// PositionOf returns the position of node id in Nodes, or -1 if absent.
func (p *CompiledProgram) PositionOf(id string) int {
	if idx, ok := p.NodeLookup[id]; ok {
		return idx
	}
	return -1
}

// Rebuild recomputes NodeLookup and ExecutorCount from Nodes. Used by the
// CSE optimizer after nodes are removed (spec §4.8: "node_lookup is rebuilt"
// after each pass).
func (p *CompiledProgram) Rebuild() {
	p.NodeLookup = make(map[string]int, len(p.Nodes))
	p.ExecutorCount = 0
	for i, n := range p.Nodes {
		p.NodeLookup[n.Id] = i
		if n.Type == ExecutorTransformType {
			p.ExecutorCount++
		}
	}
}

// VerifyTopologicalOrder checks the invariant that every NodeReference in a
// node's inputs names a node at a strictly earlier position (spec §8
// "Topological order"). It returns the first violation found, or nil.
func (p *CompiledProgram) VerifyTopologicalOrder() error {
	for i, n := range p.Nodes {
		for _, inputId := range n.InputOrder {
			for _, v := range n.Inputs[inputId] {
				if v.IsConstant {
					continue
				}
				j, ok := p.NodeLookup[v.Ref.NodeId]
				if !ok {
					return fmt.Errorf("domain: node %q references unknown node %q", n.Id, v.Ref.NodeId)
				}
				if j >= i {
					return fmt.Errorf("domain: node %q (pos %d) references node %q at pos %d, not earlier", n.Id, i, v.Ref.NodeId, j)
				}
			}
		}
	}
	return nil
}
