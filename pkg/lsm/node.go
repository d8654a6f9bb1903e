package lsm

import (
	"errors"
	"math"

	"github.com/corelang/store/pkg/chash"
)

// Node is one of Leaf, Inner or Remote (a nil Node interface value
// represents the empty tree). Go has no sum types, so the three
// variants are distinguished by their concrete type, matched in every
// function below via type switch over a small closed hierarchy.
type Node interface {
	isNode()
}

// Leaf holds a single key and its value.
type Leaf struct {
	Key   []byte
	Value []byte
}

func (*Leaf) isNode() {}

// Inner is a crit-bit branch node. Critbit is the most significant bit
// at which keys in Left disagree with RightKey; Right holds every key
// equal to RightKey on all bits before Critbit.
type Inner struct {
	Critbit  int
	Left     Node
	RightKey []byte
	Right    Node
}

func (*Inner) isNode() {}

// Remote is a stowed subtree: Ref names the serialized subtree's hash,
// Updates buffers insertions made since the subtree was last stowed,
// and Critbit/SampleKey let TryFind rule out a search key without
// loading Ref.
type Remote struct {
	Critbit   int
	SampleKey []byte
	Updates   map[string][]byte
	Ref       chash.Hash
}

func (*Remote) isNode() {}

// criticalBit finds the most significant bit at which a and b differ,
// treating a short operand as zero-padded. It returns -1 if a and b are
// identical, along with the value of b's bit at that position (0 or 1)
// so the caller knows which side b belongs on.
func criticalBit(a, b []byte) (int, int) {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	for i := 0; i < maxLen; i++ {
		var av, bv byte
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if av != bv {
			diff := av ^ bv
			bitIdx := 0
			for diff&0x80 == 0 {
				diff <<= 1
				bitIdx++
			}
			pos := i*8 + bitIdx
			bit := int((bv >> uint(7-bitIdx)) & 1)
			return pos, bit
		}
	}
	return -1, 0
}

// bitAt returns key's bit value at the given position, treating bytes
// past the end of key as zero.
func bitAt(key []byte, bit int) int {
	byteIdx := bit / 8
	if byteIdx >= len(key) {
		return 0
	}
	bitIdx := uint(bit % 8)
	return int((key[byteIdx] >> (7 - bitIdx)) & 1)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneUpdates(m map[string][]byte) map[string][]byte {
	out := make(map[string][]byte, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// addNode returns a new tree with (k, v) inserted, buffering the
// insertion in a Remote's Updates map without loading it.
func addNode(n Node, k, v []byte) Node {
	switch node := n.(type) {
	case nil:
		return &Leaf{Key: cloneBytes(k), Value: cloneBytes(v)}

	case *Leaf:
		if string(node.Key) == string(k) {
			return &Leaf{Key: node.Key, Value: cloneBytes(v)}
		}
		cb, dir := criticalBit(node.Key, k)
		newLeaf := &Leaf{Key: cloneBytes(k), Value: cloneBytes(v)}
		if dir == 1 {
			return &Inner{Critbit: cb, Left: node, RightKey: cloneBytes(k), Right: newLeaf}
		}
		return &Inner{Critbit: cb, Left: newLeaf, RightKey: node.Key, Right: node}

	case *Inner:
		cb, dir := criticalBit(node.RightKey, k)
		if cb != -1 && cb < node.Critbit {
			newLeaf := &Leaf{Key: cloneBytes(k), Value: cloneBytes(v)}
			if dir == 1 {
				return &Inner{Critbit: cb, Left: node, RightKey: cloneBytes(k), Right: newLeaf}
			}
			return &Inner{Critbit: cb, Left: newLeaf, RightKey: node.RightKey, Right: node}
		}
		if bitAt(k, node.Critbit) == 0 {
			return &Inner{Critbit: node.Critbit, Left: addNode(node.Left, k, v), RightKey: node.RightKey, Right: node.Right}
		}
		return &Inner{Critbit: node.Critbit, Left: node.Left, RightKey: node.RightKey, Right: addNode(node.Right, k, v)}

	case *Remote:
		nu := cloneUpdates(node.Updates)
		nu[string(k)] = cloneBytes(v)
		return &Remote{Critbit: node.Critbit, SampleKey: node.SampleKey, Updates: nu, Ref: node.Ref}
	}
	return n
}

// resourceLoader is the minimal interface Remote loading needs, so
// node.go doesn't import the resource package's concrete Store type.
type resourceLoader interface {
	Load(h chash.Hash) ([]byte, error)
	Stow(data []byte) chash.Hash
}

// loadRemote fetches node's backing subtree and replays its buffered
// updates on top of it.
func loadRemote(loader resourceLoader, node *Remote) (Node, error) {
	data, err := loader.Load(node.Ref)
	if err != nil {
		return nil, err
	}
	root, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	for k, v := range node.Updates {
		root = addNode(root, []byte(k), []byte(v))
	}
	return root, nil
}

// tryFindNode looks up k, loading at most one Remote subtree and only
// when the critbit test cannot already rule it out.
func tryFindNode(loader resourceLoader, n Node, k []byte) ([]byte, bool, error) {
	switch node := n.(type) {
	case nil:
		return nil, false, nil
	case *Leaf:
		if string(node.Key) == string(k) {
			return node.Value, true, nil
		}
		return nil, false, nil
	case *Inner:
		if bitAt(k, node.Critbit) == 0 {
			return tryFindNode(loader, node.Left, k)
		}
		return tryFindNode(loader, node.Right, k)
	case *Remote:
		if v, ok := node.Updates[string(k)]; ok {
			return v, true, nil
		}
		cb, _ := criticalBit(node.SampleKey, k)
		if cb != -1 && cb < node.Critbit {
			return nil, false, nil
		}
		root, err := loadRemote(loader, node)
		if err != nil {
			return nil, false, err
		}
		return tryFindNode(loader, root, k)
	}
	return nil, false, nil
}

// removeNode eagerly deletes k, loading any Remote encountered along
// the way since removal is never buffered.
func removeNode(loader resourceLoader, n Node, k []byte) (Node, error) {
	switch node := n.(type) {
	case nil:
		return nil, nil
	case *Leaf:
		if string(node.Key) == string(k) {
			return nil, nil
		}
		return node, nil
	case *Inner:
		if bitAt(k, node.Critbit) == 0 {
			newLeft, err := removeNode(loader, node.Left, k)
			if err != nil {
				return nil, err
			}
			if newLeft == nil {
				return node.Right, nil
			}
			return &Inner{Critbit: node.Critbit, Left: newLeft, RightKey: node.RightKey, Right: node.Right}, nil
		}
		newRight, err := removeNode(loader, node.Right, k)
		if err != nil {
			return nil, err
		}
		if newRight == nil {
			return node.Left, nil
		}
		return &Inner{Critbit: node.Critbit, Left: node.Left, RightKey: node.RightKey, Right: newRight}, nil
	case *Remote:
		merged, err := loadRemote(loader, node)
		if err != nil {
			return nil, err
		}
		return removeNode(loader, merged, k)
	}
	return n, nil
}

// estimateSize approximates a node's serialized footprint, used by
// Compact to decide whether a subtree should be stowed.
func estimateSize(n Node) int {
	switch node := n.(type) {
	case nil:
		return 0
	case *Leaf:
		return len(node.Key) + len(node.Value) + 8
	case *Inner:
		return estimateSize(node.Left) + estimateSize(node.Right) + len(node.RightKey) + 16
	case *Remote:
		size := chash.DigestLen + 16
		for k, v := range node.Updates {
			size += len(k) + len(v) + 4
		}
		return size
	}
	return 0
}

// compactNode pushes any subtree whose estimated size exceeds
// threshold into a freshly stowed Remote, merging and recompacting a
// Remote's existing buffer first.
func compactNode(loader resourceLoader, n Node, threshold int) (Node, error) {
	switch node := n.(type) {
	case nil:
		return nil, nil
	case *Leaf:
		if estimateSize(node) > threshold {
			return stowSubtree(loader, node)
		}
		return node, nil
	case *Inner:
		newLeft, err := compactNode(loader, node.Left, threshold)
		if err != nil {
			return nil, err
		}
		newRight, err := compactNode(loader, node.Right, threshold)
		if err != nil {
			return nil, err
		}
		merged := &Inner{Critbit: node.Critbit, Left: newLeft, RightKey: node.RightKey, Right: newRight}
		if estimateSize(merged) > threshold {
			return stowSubtree(loader, merged)
		}
		return merged, nil
	case *Remote:
		if estimateSize(node) <= threshold {
			return node, nil
		}
		loaded, err := loadRemote(loader, node)
		if err != nil {
			return nil, err
		}
		return compactNode(loader, loaded, threshold)
	}
	return n, errors.New("lsm: unknown node type")
}

// stowSubtree serializes n and stows it, replacing it in-memory with a
// Remote carrying an empty update buffer.
func stowSubtree(loader resourceLoader, n Node) (Node, error) {
	data := Encode(n)
	hash := loader.Stow(data)

	var cb int
	var sample []byte
	switch node := n.(type) {
	case *Leaf:
		// A lone key has nothing to discriminate against: any mismatch
		// at all rules the subtree out, so the critbit threshold is an
		// upper bound no real divergence can reach.
		cb = math.MaxInt32
		sample = node.Key
	case *Inner:
		cb = node.Critbit
		sample = node.RightKey
	case *Remote:
		cb = node.Critbit
		sample = node.SampleKey
	}
	return &Remote{Critbit: cb, SampleKey: cloneBytes(sample), Updates: map[string][]byte{}, Ref: hash}, nil
}
