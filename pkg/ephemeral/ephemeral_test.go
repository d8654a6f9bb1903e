package ephemeral

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncrefDecrefBalances(t *testing.T) {
	tab := New()
	tab.Incref(1, 1)
	tab.Incref(1, 2)
	assert.True(t, tab.IsRooted(1))

	tab.Decref(1, 3)
	assert.False(t, tab.IsRooted(1))
}

func TestDecrefBelowZeroPanics(t *testing.T) {
	tab := New()
	tab.Incref(1, 1)
	tab.Decref(1, 1)
	assert.Panics(t, func() { tab.Decref(1, 1) })
}

func TestAddManyRemoveMany(t *testing.T) {
	tab := New()
	tab.AddMany(map[uint64]int64{1: 2, 2: 1})
	assert.True(t, tab.IsRooted(1))
	assert.True(t, tab.IsRooted(2))

	tab.RemoveMany(map[uint64]int64{1: 2, 2: 1})
	assert.False(t, tab.IsRooted(1))
	assert.False(t, tab.IsRooted(2))
}

func TestIsRootedUnknownID(t *testing.T) {
	tab := New()
	assert.False(t, tab.IsRooted(12345))
}

func TestLenTracksDistinctIDs(t *testing.T) {
	tab := New()
	tab.Incref(1, 1)
	tab.Incref(2, 1)
	assert.Equal(t, 2, tab.Len())
	tab.Decref(1, 1)
	assert.Equal(t, 1, tab.Len())
}
