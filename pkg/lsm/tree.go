// Package lsm implements a persistent crit-bit tree: an ordered
// key/value map whose internal nodes buffer pending insertions in
// memory (Remote.Updates) and flush them into stowed subtrees on
// Compact. Tree is the public handle; node.go carries the variant
// algorithms it delegates to.
package lsm

import (
	"errors"

	"github.com/corelang/store/pkg/chash"
	"github.com/corelang/store/pkg/coremetrics"
)

// ErrNotFound is returned by Find when the key is absent.
var ErrNotFound = errors.New("lsm: key not found")

// DefaultCompactionThreshold is the estimated-size budget (in bytes) a
// node is allowed to reach in-memory before Compact stows it.
const DefaultCompactionThreshold = 64 * 1024

// Loader is the minimal resource-store surface the tree needs to load a
// Remote's stowed subtree and stow a freshly compacted one. It is
// satisfied directly by *resource.Store.
type Loader interface {
	Load(h chash.Hash) ([]byte, error)
	Stow(data []byte) chash.Hash
}

// Tree is an immutable ordered key/value map. The zero value is the
// empty tree.
type Tree struct {
	root Node
}

// Empty returns the empty tree.
func Empty() *Tree {
	return &Tree{}
}

// Singleton returns a tree containing exactly (k, v).
func Singleton(k, v []byte) *Tree {
	return &Tree{root: addNode(nil, k, v)}
}

// IsEmpty reports whether t holds no keys.
func (t *Tree) IsEmpty() bool {
	return t == nil || t.root == nil
}

// TryFind looks up k, loading at most the Remote subtrees the search
// path actually needs.
func (t *Tree) TryFind(loader Loader, k []byte) ([]byte, bool, error) {
	if t == nil {
		return nil, false, nil
	}
	return tryFindNode(loader, t.root, k)
}

// ContainsKey reports whether k is present.
func (t *Tree) ContainsKey(loader Loader, k []byte) (bool, error) {
	_, ok, err := t.TryFind(loader, k)
	return ok, err
}

// Find is TryFind but returns ErrNotFound instead of a false ok.
func (t *Tree) Find(loader Loader, k []byte) ([]byte, error) {
	v, ok, err := t.TryFind(loader, k)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// Add returns a new tree with (k, v) inserted, buffering the insertion
// in the nearest Remote's update buffer without loading it — amortized
// O(1) in memory.
func (t *Tree) Add(k, v []byte) *Tree {
	root := t.nodeOrNil()
	return &Tree{root: addNode(root, k, v)}
}

// Remove returns a new tree with k absent. Removal is eager: every
// Remote encountered on the search path is loaded and merged.
func (t *Tree) Remove(loader Loader, k []byte) (*Tree, error) {
	root, err := removeNode(loader, t.nodeOrNil(), k)
	if err != nil {
		return nil, err
	}
	return &Tree{root: root}, nil
}

// Compact flushes any subtree whose estimated serialized size exceeds
// threshold into a freshly stowed Remote with an empty update buffer.
// threshold <= 0 selects DefaultCompactionThreshold.
func (t *Tree) Compact(loader Loader, threshold int) (*Tree, error) {
	if threshold <= 0 {
		threshold = DefaultCompactionThreshold
	}
	timer := coremetrics.NewTimer()
	defer timer.ObserveDuration(coremetrics.LSMCompactionDuration)

	root, err := compactNode(loader, t.nodeOrNil(), threshold)
	if err != nil {
		return nil, err
	}
	coremetrics.LSMCompactionsTotal.Inc()
	return &Tree{root: root}, nil
}

// Serialize encodes t's root using the self-delimiting VarNat/ByteString/
// HashLit primitives in codec.go. Any Remote children are serialized by
// reference (their hash literal, not their contents).
func (t *Tree) Serialize() []byte {
	return Encode(t.nodeOrNil())
}

// Deserialize is Serialize's inverse.
func Deserialize(data []byte) (*Tree, error) {
	root, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return &Tree{root: root}, nil
}

func (t *Tree) nodeOrNil() Node {
	if t == nil {
		return nil
	}
	return t.root
}
