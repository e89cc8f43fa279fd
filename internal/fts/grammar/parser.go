// Package grammar is the front-end for CMIS-style full-text expressions. It
// turns raw text into a parsetree.Node of the shape
//
//	DISJUNCTION(CONJUNCTION(DEFAULT|EXCLUDE(TERM(FTSWORD)|PHRASE(FTSPHRASE))+)+)
//
// Words are separated by whitespace, conjunctions by the OR keyword, a leading
// '-' excludes a test and double quotes delimit a phrase.
package grammar

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/fts/parsetree"
)

// RecognitionError reports input the grammar could not match. Header locates
// the failure and Message describes it.
type RecognitionError struct {
	Header  string
	Message string
	Pos     int
}

func (e *RecognitionError) Error() string {
	return e.Header + " " + e.Message
}

func header(pos int) string {
	return fmt.Sprintf("line 1:%d", pos)
}

type parser struct {
	tokens []token
	pos    int
}

// Parse recognises an FTS expression and returns its parse tree.
func Parse(query string) (*parsetree.Node, error) {
	tokens, err := lex(query)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	return p.disjunction()
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.typ != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) disjunction() (*parsetree.Node, error) {
	first, err := p.conjunction()
	if err != nil {
		return nil, err
	}
	node := parsetree.New(parsetree.Disjunction, first)
	for p.peek().typ == tokOr {
		p.next()
		conj, err := p.conjunction()
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, conj)
	}
	return node, nil
}

func (p *parser) conjunction() (*parsetree.Node, error) {
	node := parsetree.New(parsetree.Conjunction)
	for {
		t := p.peek()
		if t.typ == tokEOF || t.typ == tokOr {
			break
		}
		prefixed, err := p.prefixed()
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, prefixed)
	}
	if len(node.Children) == 0 {
		t := p.peek()
		return nil, &RecognitionError{
			Header:  header(t.pos),
			Message: "required (...)+ loop did not match anything at input " + t.display(),
			Pos:     t.pos,
		}
	}
	return node, nil
}

func (p *parser) prefixed() (*parsetree.Node, error) {
	kind := parsetree.Default
	if p.peek().typ == tokMinus {
		p.next()
		kind = parsetree.Exclude
	}
	test, err := p.test()
	if err != nil {
		return nil, err
	}
	return parsetree.New(kind, test), nil
}

func (p *parser) test() (*parsetree.Node, error) {
	t := p.peek()
	switch t.typ {
	case tokWord:
		p.next()
		return parsetree.New(parsetree.Term, parsetree.NewToken(parsetree.Word, t.text, t.pos)), nil
	case tokPhrase:
		p.next()
		return parsetree.New(parsetree.Phrase, parsetree.NewToken(parsetree.PhraseToken, t.text, t.pos)), nil
	default:
		return nil, &RecognitionError{
			Header:  header(t.pos),
			Message: "no viable alternative at input " + t.display(),
			Pos:     t.pos,
		}
	}
}
