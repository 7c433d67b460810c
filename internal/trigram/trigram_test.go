package trigram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetMatchesPgTrgm(t *testing.T) {
	// SELECT show_trgm('cat') => {"  c"," ca","at ","cat"}
	assert.Equal(t, map[string]struct{}{"  c": {}, " ca": {}, "cat": {}, "at ": {}}, Set("Cat"))
	assert.Empty(t, Set("  ,. "))
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, Similarity("ACETAMINOFEN", "acetaminofen"), 1e-9)
	assert.InDelta(t, 0.0, Similarity("", "acetaminofen"), 1e-9)

	// word -> {"  w"," wo","wor","ord","rd "}; words -> adds "rds","ds " and drops "rd ".
	assert.InDelta(t, 4.0/7.0, Similarity("word", "words"), 1e-9)

	close := Similarity("Acetaminofen 500mg", "ACETAMINOFEN 500 MG TAB")
	far := Similarity("Acetaminofen 500mg", "IBUPROFENO 400 MG")
	assert.Greater(t, close, 0.5)
	assert.Less(t, far, 0.15)
}

func TestSimilaritySymmetric(t *testing.T) {
	a, b := "Loratadina 10mg tableta", "LORATADINA TAB 10 MG X 10"
	assert.InDelta(t, Similarity(a, b), Similarity(b, a), 1e-12)
}
