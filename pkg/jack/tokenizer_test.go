package jack_test

import (
	"testing"

	"github.com/hmny-n2t/jackpipe/pkg/jack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, tz *jack.Tokenizer) []jack.Token {
	t.Helper()
	var out []jack.Token
	for tz.HasMoreTokens() {
		tz.Advance()
		out = append(out, tz.Current())
	}
	return out
}

func TestTokenizeClassifiesKeywordIdentifierAndSymbol(t *testing.T) {
	tz, err := jack.NewTokenizer(`class A { field int x; }`)
	require.NoError(t, err)

	toks := drain(t, tz)
	require.Len(t, toks, 8)
	assert.Equal(t, jack.TokenKeyword, toks[0].Type)
	assert.Equal(t, jack.KwClass, toks[0].Keyword())
	assert.Equal(t, jack.TokenIdentifier, toks[1].Type)
	assert.Equal(t, "A", toks[1].Identifier())
	assert.Equal(t, jack.TokenSymbol, toks[2].Type)
	assert.EqualValues(t, '{', toks[2].Symbol())
}

func TestTokenizeIntAndStringConstants(t *testing.T) {
	tz, err := jack.NewTokenizer(`do Output.printString("Hi"); let x = 32767;`)
	require.NoError(t, err)
	toks := drain(t, tz)

	var strTok, intTok jack.Token
	for _, tok := range toks {
		switch tok.Type {
		case jack.TokenStringConst:
			strTok = tok
		case jack.TokenIntConst:
			intTok = tok
		}
	}
	assert.Equal(t, "Hi", strTok.StringVal())
	assert.EqualValues(t, 32767, intTok.IntVal())
}

func TestTokenizeRejectsOutOfRangeInteger(t *testing.T) {
	_, err := jack.NewTokenizer(`let x = 32768;`)
	assert.Error(t, err)
}

func TestTokenizeStripsLineAndBlockComments(t *testing.T) {
	src := "// leading comment\nlet x = 1; /* trailing\n block */ let y = 2;"
	tz, err := jack.NewTokenizer(src)
	require.NoError(t, err)

	toks := drain(t, tz)
	var idents []string
	for _, tok := range toks {
		if tok.Type == jack.TokenIdentifier {
			idents = append(idents, tok.Identifier())
		}
	}
	assert.Equal(t, []string{"x", "y"}, idents)
}

func TestTokenizeRejectsUnterminatedString(t *testing.T) {
	_, err := jack.NewTokenizer(`let x = "never closed;`)
	assert.Error(t, err)
}

func TestTokenizerPeekLooksOneTokenAhead(t *testing.T) {
	tz, err := jack.NewTokenizer(`x [ 1 ]`)
	require.NoError(t, err)

	assert.Equal(t, "x", tz.Peek())
	tz.Advance()
	assert.Equal(t, "[", tz.Peek())
}
