package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity_Identical(t *testing.T) {
	assert.Equal(t, 1.0, similarity("add null check", "add null check"))
}

func TestSimilarity_WhitespaceAndCaseNormalized(t *testing.T) {
	assert.Equal(t, 1.0, similarity("Add  Null\tCheck", "add null check"))
}

func TestSimilarity_Symmetric(t *testing.T) {
	a := "add a null check before dereferencing user"
	b := "refactor the entire function to use options"
	assert.Equal(t, similarity(a, b), similarity(b, a))
}

func TestSimilarity_Bounded(t *testing.T) {
	cases := [][2]string{
		{"", ""},
		{"x", ""},
		{"completely different", "nothing in common here at all"},
		{"same same same", "same same same"},
		{"add null check in handler", "add null check in parser"},
	}
	for _, c := range cases {
		s := similarity(c[0], c[1])
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func TestSimilarity_EmptyStrings(t *testing.T) {
	assert.Equal(t, 1.0, similarity("", ""))
	assert.Equal(t, 0.0, similarity("something", ""))
}

func TestSimilarity_NearIdenticalHigh(t *testing.T) {
	a := "add a null check before calling user.Name in the login handler"
	b := "add a null check before calling user.Name in the login function"
	assert.Greater(t, similarity(a, b), 0.8)
}

func TestSimilarity_DisjointLow(t *testing.T) {
	a := "add null check"
	b := "rewrite storage layer using generics"
	assert.Less(t, similarity(a, b), 0.3)
}
