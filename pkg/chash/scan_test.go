package chash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIterHashDepsFindsEmbeddedRun(t *testing.T) {
	h := Sum([]byte("a small binary"))
	v := []byte("prefix " + h.String() + " suffix")

	var found []Hash
	IterHashDeps(v, func(dep Hash) {
		found = append(found, dep)
	})

	assert.Equal(t, []Hash{h}, found)
}

func TestIterHashDepsSkipsWrongLengthRuns(t *testing.T) {
	h := Sum([]byte("x"))
	s := h.String()

	// One character short: not recognized.
	short := s[:HashLen-1]
	// One character over: extend the run past HashLen by appending an
	// alphabet character directly, with no delimiter.
	long := s + "A"

	var hits int
	IterHashDeps([]byte(short), func(Hash) { hits++ })
	assert.Equal(t, 0, hits)

	hits = 0
	IterHashDeps([]byte(long), func(Hash) { hits++ })
	assert.Equal(t, 0, hits, "a run longer than HashLen must not be treated as a dependency")
}

func TestIterHashDepsMultipleRuns(t *testing.T) {
	h1 := Sum([]byte("one"))
	h2 := Sum([]byte("two"))
	v := []byte(h1.String() + "," + h2.String())

	var found []Hash
	IterHashDeps(v, func(dep Hash) { found = append(found, dep) })
	assert.Equal(t, []Hash{h1, h2}, found)
}

func TestIterHashDepsEmptyValue(t *testing.T) {
	var hits int
	IterHashDeps(nil, func(Hash) { hits++ })
	assert.Equal(t, 0, hits)
}

func TestFoldHashDepsLinear(t *testing.T) {
	h1 := Sum([]byte("one"))
	h2 := Sum([]byte("two"))
	v := []byte(h1.String() + " " + h2.String())

	count := FoldHashDeps(v, 0, func(acc int, _ Hash) int { return acc + 1 })
	assert.Equal(t, 2, count)
}

func TestCollectHashDepsDeduplicates(t *testing.T) {
	h := Sum([]byte("dup"))
	v := []byte(h.String() + " " + h.String())
	got := CollectHashDeps(v)
	assert.Equal(t, []Hash{h}, got)
}
