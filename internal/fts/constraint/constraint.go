// Package constraint holds the boolean constraint tree produced by the FTS
// compiler and consumed by the query engine. Trees are built once and never
// mutated afterwards.
package constraint

import (
	"strconv"
	"strings"
)

// Node is one of *Conjunction, *Disjunction or *Leaf.
type Node interface {
	String() string
	node()
}

type LeafKind int

const (
	Term LeafKind = iota
	Phrase
)

func (k LeafKind) String() string {
	switch k {
	case Term:
		return "term"
	case Phrase:
		return "phrase"
	default:
		return "LeafKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Occurrence says how a leaf takes part in its enclosing connective.
type Occurrence int

const (
	// Default leaves contribute to scoring.
	Default Occurrence = iota
	// Excluded leaves remove every row they match.
	Excluded
)

func (o Occurrence) String() string {
	if o == Excluded {
		return "excluded"
	}
	return "default"
}

// AnalysisMode tells the engine how to analyse leaf text before matching.
// It is opaque to the compiler.
type AnalysisMode string

const Tokenise AnalysisMode = "TOKENISE"

type Conjunction struct {
	Children []Node
}

type Disjunction struct {
	Children []Node
}

type Leaf struct {
	Kind  LeafKind
	Text  string
	Mode  AnalysisMode
	Occur Occurrence
}

func (*Conjunction) node() {}
func (*Disjunction) node() {}
func (*Leaf) node()        {}

func (c *Conjunction) String() string { return connective("AND", c.Children) }

func (d *Disjunction) String() string { return connective("OR", d.Children) }

func (l *Leaf) String() string {
	var b strings.Builder
	if l.Occur == Excluded {
		b.WriteByte('-')
	}
	b.WriteString(l.Kind.String())
	b.WriteByte('(')
	b.WriteString(strconv.Quote(l.Text))
	b.WriteByte(')')
	return b.String()
}

func connective(name string, children []Node) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.String()
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the children of the current node.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}

// Children returns the operands of a connective, or nil for a leaf.
func Children(n Node) []Node {
	switch v := n.(type) {
	case *Conjunction:
		return v.Children
	case *Disjunction:
		return v.Children
	default:
		return nil
	}
}

// Leaves collects every leaf under n in tree order.
func Leaves(n Node) []*Leaf {
	var leaves []*Leaf
	Walk(n, func(c Node) bool {
		if l, ok := c.(*Leaf); ok {
			leaves = append(leaves, l)
		}
		return true
	})
	return leaves
}
