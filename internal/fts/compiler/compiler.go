// Package compiler turns an FTS parse tree into a constraint tree.
//
// Connectives (DISJUNCTION, CONJUNCTION) map onto constraint connectives,
// DEFAULT and EXCLUDE tag the leaf below them with an occurrence, and TERM and
// PHRASE become leaves carrying the decoded token text. A connective with a
// single operand is replaced by that operand.
package compiler

import (
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/fts/constraint"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/fts/grammar"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/fts/parsetree"
	apperrors "github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/errors"
)

// LeafMode is the analysis mode attached to every compiled leaf.
const LeafMode = constraint.Tokenise

// CompileString parses text with the FTS grammar and compiles the result.
func CompileString(text string) (constraint.Node, error) {
	tree, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return Compile(tree)
}

// Parse runs the FTS grammar over text. Grammar failures come back as
// ErrMalformedExpression carrying the recognition header and message.
func Parse(text string) (*parsetree.Node, error) {
	tree, err := grammar.Parse(text)
	if err != nil {
		var re *grammar.RecognitionError
		if apperrors.As(err, &re) {
			return nil, apperrors.New(apperrors.ErrMalformedExpression, http.StatusBadRequest, re.Header+" "+re.Message)
		}
		return nil, apperrors.New(apperrors.ErrMalformedExpression, http.StatusBadRequest, err.Error())
	}
	return tree, nil
}

// Compile converts a parse tree rooted at a DISJUNCTION or CONJUNCTION.
func Compile(root *parsetree.Node) (constraint.Node, error) {
	if root == nil {
		return nil, apperrors.New(apperrors.ErrMalformedExpression, http.StatusBadRequest, "empty parse tree")
	}
	switch root.Kind {
	case parsetree.Disjunction, parsetree.Conjunction:
		return compileConnective(root)
	default:
		return nil, unexpected(root)
	}
}

func compileConnective(n *parsetree.Node) (constraint.Node, error) {
	children := make([]constraint.Node, 0, len(n.Children))
	for _, child := range n.Children {
		var (
			c   constraint.Node
			err error
		)
		switch child.Kind {
		case parsetree.Disjunction, parsetree.Conjunction:
			c, err = compileConnective(child)
		case parsetree.Default:
			c, err = compileTest(child.Child(0), constraint.Default)
		case parsetree.Exclude:
			c, err = compileTest(child.Child(0), constraint.Excluded)
		default:
			err = unexpected(child)
		}
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}

	if len(children) == 1 {
		return children[0], nil
	}
	if n.Kind == parsetree.Conjunction {
		return &constraint.Conjunction{Children: children}, nil
	}
	return &constraint.Disjunction{Children: children}, nil
}

func compileTest(n *parsetree.Node, occur constraint.Occurrence) (constraint.Node, error) {
	if n == nil {
		return nil, apperrors.New(apperrors.ErrMalformedExpression, http.StatusBadRequest, "prefix without a test")
	}
	var kind constraint.LeafKind
	switch n.Kind {
	case parsetree.Term:
		kind = constraint.Term
	case parsetree.Phrase:
		kind = constraint.Phrase
	default:
		return nil, unexpected(n)
	}
	token := n.Child(0)
	if token == nil {
		return nil, apperrors.Newf(apperrors.ErrMalformedExpression, http.StatusBadRequest, "%s without a token", n.Kind)
	}
	text, err := Decode(token)
	if err != nil {
		return nil, err
	}
	return &constraint.Leaf{
		Kind:  kind,
		Text:  text,
		Mode:  LeafMode,
		Occur: occur,
	}, nil
}

// Decode returns the literal text of a word or phrase token. Phrase tokens
// lose their delimiters before escapes are resolved.
func Decode(token *parsetree.Node) (string, error) {
	switch token.Kind {
	case parsetree.Word:
		if !strings.ContainsRune(token.Text, '\\') {
			return token.Text, nil
		}
		return Unescape(token.Text)
	case parsetree.PhraseToken:
		text := token.Text
		if len(text) < 2 {
			return "", apperrors.Newf(apperrors.ErrMalformedExpression, http.StatusBadRequest, "phrase token %q has no delimiters", text)
		}
		return Unescape(text[1 : len(text)-1])
	default:
		return "", unexpected(token)
	}
}

// Unescape removes the backslash in front of every escaped character.
// \u is rejected, as is a backslash with nothing after it.
func Unescape(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for i, r := range s {
		if pending {
			if r == 'u' {
				return "", apperrors.Newf(apperrors.ErrUnsupportedEscape, http.StatusBadRequest,
					"unsupported escape pattern in <%s> at position %d", s, i)
			}
			b.WriteRune(r)
			pending = false
			continue
		}
		if r == '\\' {
			pending = true
			continue
		}
		b.WriteRune(r)
	}
	if pending {
		return "", apperrors.Newf(apperrors.ErrMalformedExpression, http.StatusBadRequest,
			"escape character at end of string %s", s)
	}
	return b.String(), nil
}

func unexpected(n *parsetree.Node) error {
	return apperrors.Newf(apperrors.ErrMalformedExpression, http.StatusBadRequest,
		"unexpected node %s at position %d", n.Kind, n.Pos)
}
