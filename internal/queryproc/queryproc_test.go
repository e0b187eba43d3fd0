package queryproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	require.Equal(t, "электроника", Normalize("ЭЛЕКТРОНика"))
	require.Equal(t, "принтер hp", Normalize("  Принтёр,   HP!! "))
}

func TestTokenizeHyphenation(t *testing.T) {
	toks := Tokenize(Normalize("wi-fi роутер"), nil)
	assert.Contains(t, toks, "wi-fi")
	assert.Contains(t, toks, "wifi")
	assert.Contains(t, toks, "wi")
	assert.Contains(t, toks, "fi")
	assert.Contains(t, toks, "роутер")
}

func TestTokenizeDropsStopWordsAndSingleChars(t *testing.T) {
	toks := Tokenize(Normalize("купить и найти а телефон"), nil)
	assert.NotContains(t, toks, "и")
	assert.NotContains(t, toks, "а")
	assert.Contains(t, toks, "купить")
	assert.Contains(t, toks, "телефон")
}

func TestTokenizeDedupPreservesOrder(t *testing.T) {
	toks := Tokenize(Normalize("телефон samsung телефон"), nil)
	require.Equal(t, []string{"телефон", "samsung"}, toks)
}

func TestProcessEmptyQuery(t *testing.T) {
	r := Process("", nil)
	assert.Empty(t, r.Tokens)
}

func TestProcessLayoutVariant(t *testing.T) {
	// "iphone" typed on a RU keyboard in the same key positions yields a
	// Cyrillic string; remapping that back through RU->EN recovers "iphone".
	ru := remap("iphone", layoutENRU)
	r := Process(ru, nil)
	assert.Contains(t, r.LayoutVariants, "iphone")
}

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 0, LevenshteinDistance("abc", "abc"))
	assert.Equal(t, 1, LevenshteinDistance("кроссовки", "кроссвки"))
}
