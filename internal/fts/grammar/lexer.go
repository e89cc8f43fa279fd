package grammar

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokWord
	tokPhrase
	tokOr
	tokMinus
)

type token struct {
	typ  tokenType
	text string
	pos  int
}

func (t token) display() string {
	if t.typ == tokEOF {
		return "'<EOF>'"
	}
	return fmt.Sprintf("'%s'", t.text)
}

// lex splits an FTS expression into tokens. Escape pairs are kept verbatim
// inside word and phrase tokens.
func lex(input string) ([]token, error) {
	tokens := make([]token, 0, 8)
	pos := 0
	for pos < len(input) {
		r, size := utf8.DecodeRuneInString(input[pos:])
		switch {
		case unicode.IsSpace(r):
			pos += size
		case r == '"':
			end, err := scanPhrase(input, pos)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{typ: tokPhrase, text: input[pos:end], pos: pos})
			pos = end
		case r == '-':
			tokens = append(tokens, token{typ: tokMinus, text: "-", pos: pos})
			pos += size
		default:
			end := scanWord(input, pos)
			text := input[pos:end]
			typ := tokWord
			if text == "OR" {
				typ = tokOr
			}
			tokens = append(tokens, token{typ: typ, text: text, pos: pos})
			pos = end
		}
	}
	tokens = append(tokens, token{typ: tokEOF, pos: len(input)})
	return tokens, nil
}

func scanWord(input string, start int) int {
	pos := start
	for pos < len(input) {
		r, size := utf8.DecodeRuneInString(input[pos:])
		if unicode.IsSpace(r) || r == '"' {
			break
		}
		pos += size
		if r == '\\' && pos < len(input) {
			_, next := utf8.DecodeRuneInString(input[pos:])
			pos += next
		}
	}
	return pos
}

func scanPhrase(input string, start int) (int, error) {
	pos := start + 1
	for pos < len(input) {
		r, size := utf8.DecodeRuneInString(input[pos:])
		pos += size
		switch r {
		case '\\':
			if pos < len(input) {
				_, next := utf8.DecodeRuneInString(input[pos:])
				pos += next
			}
		case '"':
			return pos, nil
		}
	}
	return 0, &RecognitionError{
		Header:  header(start),
		Message: fmt.Sprintf("mismatched character '<EOF>' expecting '\"' in phrase starting at %d", start),
		Pos:     start,
	}
}
