package ngram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateShortToken(t *testing.T) {
	assert.Equal(t, []string{"hi"}, Generate("hi", 3))
}

func TestGenerateDeterministic(t *testing.T) {
	a := Generate("roadmap", 3)
	b := Generate("roadmap", 3)
	assert.Equal(t, a, b)
	assert.Equal(t, []string{"roa", "oad", "adm", "dma", "map"}, a)
}

func TestJaccardIdentical(t *testing.T) {
	s := Set("кроссовки", 3)
	assert.Equal(t, 1.0, Jaccard(s, s))
}

func TestJaccardPartial(t *testing.T) {
	a := Set("кроссовки", 3)
	b := Set("кроссвки", 3)
	j := Jaccard(a, b)
	assert.Greater(t, j, 0.0)
	assert.Less(t, j, 1.0)
}
