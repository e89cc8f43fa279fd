package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/fts/constraint"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/fts/parsetree"
	apperrors "github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/errors"
)

func word(text string) *parsetree.Node {
	return parsetree.New(parsetree.Term, parsetree.NewToken(parsetree.Word, text, 0))
}

func phrase(text string) *parsetree.Node {
	return parsetree.New(parsetree.Phrase, parsetree.NewToken(parsetree.PhraseToken, text, 0))
}

func def(test *parsetree.Node) *parsetree.Node { return parsetree.New(parsetree.Default, test) }

func excl(test *parsetree.Node) *parsetree.Node { return parsetree.New(parsetree.Exclude, test) }

func TestCompile_ConjunctionWithExclude(t *testing.T) {
	t.Parallel()
	tree := parsetree.New(parsetree.Conjunction, def(word("cat")), excl(word("dog")))

	got, err := Compile(tree)
	require.NoError(t, err)

	conj, ok := got.(*constraint.Conjunction)
	require.True(t, ok, "expected conjunction, got %T", got)
	require.Len(t, conj.Children, 2)
	assert.Equal(t, &constraint.Leaf{Kind: constraint.Term, Text: "cat", Mode: LeafMode, Occur: constraint.Default}, conj.Children[0])
	assert.Equal(t, &constraint.Leaf{Kind: constraint.Term, Text: "dog", Mode: LeafMode, Occur: constraint.Excluded}, conj.Children[1])
}

func TestCompile_CollapsesSingleOperand(t *testing.T) {
	t.Parallel()
	tree := parsetree.New(parsetree.Disjunction,
		parsetree.New(parsetree.Conjunction, def(phrase(`"big cat"`))),
	)

	got, err := Compile(tree)
	require.NoError(t, err)
	assert.Equal(t, &constraint.Leaf{Kind: constraint.Phrase, Text: "big cat", Mode: LeafMode}, got)
}

func TestCompile_NestedConnectivesKeepOrder(t *testing.T) {
	t.Parallel()
	tree := parsetree.New(parsetree.Disjunction,
		parsetree.New(parsetree.Conjunction, def(word("a")), def(word("b"))),
		parsetree.New(parsetree.Conjunction, excl(word("c")), def(phrase(`"d e"`))),
		parsetree.New(parsetree.Conjunction, def(word("f"))),
	)

	got, err := Compile(tree)
	require.NoError(t, err)
	assert.Equal(t, `OR(AND(term("a"), term("b")), AND(-term("c"), phrase("d e")), term("f"))`, got.String())
}

func TestCompile_UnexpectedNodeKind(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		tree *parsetree.Node
	}{
		{"leaf at root", word("cat")},
		{"term directly under connective", parsetree.New(parsetree.Conjunction, word("cat"))},
		{"token under default", parsetree.New(parsetree.Conjunction, def(parsetree.NewToken(parsetree.Word, "cat", 0)))},
		{"connective under exclude", parsetree.New(parsetree.Conjunction, excl(parsetree.New(parsetree.Conjunction)))},
		{"default without test", parsetree.New(parsetree.Conjunction, parsetree.New(parsetree.Default))},
		{"term without token", parsetree.New(parsetree.Conjunction, def(parsetree.New(parsetree.Term)))},
		{"nil tree", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.tree)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrMalformedExpression)
		})
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		token *parsetree.Node
		want  string
	}{
		{"plain word", parsetree.NewToken(parsetree.Word, "alfresco", 0), "alfresco"},
		{"plain phrase", parsetree.NewToken(parsetree.PhraseToken, `"big cat"`, 0), "big cat"},
		{"empty phrase", parsetree.NewToken(parsetree.PhraseToken, `""`, 0), ""},
		{"escaped quote in phrase", parsetree.NewToken(parsetree.PhraseToken, `"say \"hi\""`, 0), `say "hi"`},
		{"escaped minus", parsetree.NewToken(parsetree.Word, `\-x`, 0), "-x"},
		{"escaped backslash", parsetree.NewToken(parsetree.Word, `\\abc`, 0), `\abc`},
		{"double escaped backslash", parsetree.NewToken(parsetree.Word, `a\\\\b`, 0), `a\\b`},
		{"escaped non ascii", parsetree.NewToken(parsetree.Word, `caf\é`, 0), "café"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_IdentityWithoutEscapes(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"", "cat", "a-b", "ümlaut", "x_y.z", "OR1"} {
		got, err := Decode(parsetree.NewToken(parsetree.Word, s, 0))
		require.NoError(t, err)
		assert.Equal(t, s, got)

		got, err = Decode(parsetree.NewToken(parsetree.PhraseToken, `"`+s+`"`, 0))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		token *parsetree.Node
		want  error
	}{
		{"trailing escape in word", parsetree.NewToken(parsetree.Word, `abc\`, 0), apperrors.ErrMalformedExpression},
		{"trailing escape in phrase", parsetree.NewToken(parsetree.PhraseToken, `"abc\"`, 0), apperrors.ErrMalformedExpression},
		{"unicode escape", parsetree.NewToken(parsetree.Word, `\u0041`, 0), apperrors.ErrUnsupportedEscape},
		{"unicode escape in phrase", parsetree.NewToken(parsetree.PhraseToken, `"a \u00e9"`, 0), apperrors.ErrUnsupportedEscape},
		{"phrase without delimiters", parsetree.NewToken(parsetree.PhraseToken, `"`, 0), apperrors.ErrMalformedExpression},
		{"not a token", parsetree.New(parsetree.Term), apperrors.ErrMalformedExpression},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCompile_UnsupportedEscapeHasNoPartialResult(t *testing.T) {
	t.Parallel()
	tree := parsetree.New(parsetree.Conjunction, def(word("ok")), def(word(`bad\u`)))

	got, err := Compile(tree)
	require.ErrorIs(t, err, apperrors.ErrUnsupportedEscape)
	assert.Nil(t, got)
}

func TestCompileString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		query string
		want  string
	}{
		{"cat", `term("cat")`},
		{"cat -dog", `AND(term("cat"), -term("dog"))`},
		{"cat OR dog", `OR(term("cat"), term("dog"))`},
		{`"big cat" OR -mouse`, `OR(phrase("big cat"), -term("mouse"))`},
		{`a b OR c`, `OR(AND(term("a"), term("b")), term("c"))`},
		{`\-minus`, `term("-minus")`},
		{`or`, `term("or")`},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := CompileString(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestCompileString_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		query string
		want  error
		msg   string
	}{
		{"", apperrors.ErrMalformedExpression, "line 1:0 required (...)+ loop did not match anything at input '<EOF>'"},
		{"cat OR", apperrors.ErrMalformedExpression, "line 1:6 required (...)+ loop did not match anything at input '<EOF>'"},
		{"cat -", apperrors.ErrMalformedExpression, "line 1:5 no viable alternative at input '<EOF>'"},
		{`"open phrase`, apperrors.ErrMalformedExpression, "line 1:0"},
		{`cat\`, apperrors.ErrMalformedExpression, "escape character at end of string"},
		{`caf\u00e9`, apperrors.ErrUnsupportedEscape, "unsupported escape pattern"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, err := CompileString(tt.query)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func BenchmarkCompileString(b *testing.B) {
	query := `alfresco "content repository" -sharepoint OR cmis -"web services" OR search\-engine`
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := CompileString(query); err != nil {
			b.Fatal(err)
		}
	}
}
