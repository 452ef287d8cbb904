// Package dataflow is a small reactive graph: named, typed cells hold
// values, and nodes are functions that recompute when one of their input
// cells is set. All nodes are declared up front; Flush runs the dirty ones
// in declaration order until nothing changes.
//
// A Graph is not safe for concurrent use. It is meant to be driven from a
// single event loop.
package dataflow

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrCycle     = errors.New("dataflow: graph did not settle")
	ErrDuplicate = errors.New("dataflow: duplicate cell name")
)

// Ref is the untyped view of a cell.
type Ref interface {
	Name() string
	Value() interface{}
	Version() uint64
	addDependent(n *Node)
}

// Graph owns cells and nodes.
type Graph struct {
	cells    map[string]Ref
	nodes    []*Node
	dirty    int
	flushing bool
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{cells: make(map[string]Ref)}
}

// Cell holds one value of type T.
type Cell[T any] struct {
	g          *Graph
	name       string
	value      T
	version    uint64
	dependents []*Node
}

// NewCell declares a cell. It panics on a duplicate name, which is a
// programming error in the graph declaration.
func NewCell[T any](g *Graph, name string, init T) *Cell[T] {
	if _, exists := g.cells[name]; exists {
		panic(fmt.Errorf("%w: %q", ErrDuplicate, name))
	}
	c := &Cell[T]{g: g, name: name, value: init}
	g.cells[name] = c
	return c
}

// Name returns the cell's name.
func (c *Cell[T]) Name() string { return c.name }

// Get returns the current value.
func (c *Cell[T]) Get() T { return c.value }

// Value returns the current value as an interface.
func (c *Cell[T]) Value() interface{} { return c.value }

// Version counts the number of times the cell was set.
func (c *Cell[T]) Version() uint64 { return c.version }

// Set stores v and marks every dependent node dirty.
func (c *Cell[T]) Set(v T) {
	c.value = v
	c.version++
	for _, n := range c.dependents {
		c.g.markDirty(n)
	}
}

func (c *Cell[T]) addDependent(n *Node) { c.dependents = append(c.dependents, n) }

// Node is a declared computation.
type Node struct {
	name  string
	fn    func() error
	dirty bool
	runs  int
}

// Name returns the node's name.
func (n *Node) Name() string { return n.name }

// Runs returns how often the node has run.
func (n *Node) Runs() int { return n.runs }

// Node declares a computation that runs whenever one of inputs is set.
// A node that decides there is nothing to update simply leaves its output
// cells alone.
func (g *Graph) Node(name string, inputs []Ref, fn func() error) *Node {
	n := &Node{name: name, fn: fn}
	for _, in := range inputs {
		in.addDependent(n)
	}
	g.nodes = append(g.nodes, n)
	return n
}

// Trigger marks n dirty without setting any of its inputs.
func (g *Graph) Trigger(n *Node) { g.markDirty(n) }

func (g *Graph) markDirty(n *Node) {
	if !n.dirty {
		n.dirty = true
		g.dirty++
	}
}

// Cell looks up a cell by name.
func (g *Graph) Cell(name string) (Ref, bool) {
	c, ok := g.cells[name]
	return c, ok
}

// Names lists all cell names in sorted order.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.cells))
	for name := range g.cells {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pending reports whether any node is dirty.
func (g *Graph) Pending() bool { return g.dirty > 0 }

// Flush runs dirty nodes in declaration order until the graph settles. A
// node error stops the flush; the remaining dirty nodes run on the next
// Flush. ErrCycle is returned when the graph keeps changing for more
// passes than it has nodes.
func (g *Graph) Flush() error {
	if g.flushing {
		return nil
	}
	g.flushing = true
	defer func() { g.flushing = false }()

	maxPasses := len(g.nodes) + 1
	for pass := 0; g.dirty > 0; pass++ {
		if pass >= maxPasses {
			return fmt.Errorf("%w after %d passes", ErrCycle, pass)
		}
		for _, n := range g.nodes {
			if !n.dirty {
				continue
			}
			n.dirty = false
			g.dirty--
			n.runs++
			if err := n.fn(); err != nil {
				return fmt.Errorf("dataflow: node %s: %w", n.name, err)
			}
		}
	}
	return nil
}
