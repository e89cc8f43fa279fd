// Package parsetree defines the tree handed from the FTS grammar front-end to
// the compiler. Nodes are immutable once built.
package parsetree

import (
	"strconv"
	"strings"
)

type Kind int

const (
	Disjunction Kind = iota
	Conjunction
	Default
	Exclude
	Term
	Phrase
	// Word is a word token; its Text is the raw word, escapes included.
	Word
	// PhraseToken is a quoted token; its Text keeps both delimiters.
	PhraseToken
)

var kindNames = [...]string{
	Disjunction: "DISJUNCTION",
	Conjunction: "CONJUNCTION",
	Default:     "DEFAULT",
	Exclude:     "EXCLUDE",
	Term:        "TERM",
	Phrase:      "PHRASE",
	Word:        "FTSWORD",
	PhraseToken: "FTSPHRASE",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

type Node struct {
	Kind     Kind
	Text     string
	Pos      int
	Children []*Node
}

func New(kind Kind, children ...*Node) *Node {
	return &Node{Kind: kind, Children: children}
}

func NewToken(kind Kind, text string, pos int) *Node {
	return &Node{Kind: kind, Text: text, Pos: pos}
}

// Child returns the i-th child, or nil when it does not exist.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// String renders the node as an s-expression, e.g.
// (DISJUNCTION (CONJUNCTION (DEFAULT (TERM cat)))).
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	if n == nil {
		b.WriteString("<nil>")
		return
	}
	if len(n.Children) == 0 && n.Text != "" {
		b.WriteString(n.Text)
		return
	}
	b.WriteByte('(')
	b.WriteString(n.Kind.String())
	for _, c := range n.Children {
		b.WriteByte(' ')
		c.write(b)
	}
	b.WriteByte(')')
}
