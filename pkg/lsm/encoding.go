package lsm

import "errors"

const (
	tagNil    = 0
	tagLeaf   = 1
	tagInner  = 2
	tagRemote = 3
)

// Encode serializes a subtree using the self-delimiting primitives in
// codec.go: a tag byte identifies the variant, then each variant's
// fields follow in VarNat/ByteString/HashLit form, recursing for Inner
// children inline (no outer length prefix needed, since decoding a
// child consumes exactly its own encoding).
func Encode(n Node) []byte {
	switch node := n.(type) {
	case nil:
		return []byte{tagNil}
	case *Leaf:
		out := []byte{tagLeaf}
		out = append(out, EncodeByteString(node.Key)...)
		out = append(out, EncodeByteString(node.Value)...)
		return out
	case *Inner:
		out := []byte{tagInner}
		out = append(out, EncodeVarNat(uint64(node.Critbit))...)
		out = append(out, EncodeByteString(node.RightKey)...)
		out = append(out, Encode(node.Left)...)
		out = append(out, Encode(node.Right)...)
		return out
	case *Remote:
		out := []byte{tagRemote}
		out = append(out, EncodeVarNat(uint64(node.Critbit))...)
		out = append(out, EncodeByteString(node.SampleKey)...)
		out = append(out, EncodeHashLit(node.Ref)...)
		out = append(out, EncodeVarNat(uint64(len(node.Updates)))...)
		for k, v := range node.Updates {
			out = append(out, EncodeByteString([]byte(k))...)
			out = append(out, EncodeByteString(v)...)
		}
		return out
	}
	return []byte{tagNil}
}

// Decode is Encode's inverse, returning the node and the number of
// bytes consumed.
func Decode(data []byte) (Node, int, error) {
	if len(data) == 0 {
		return nil, 0, errors.New("lsm: empty encoding")
	}
	tag := data[0]
	pos := 1
	switch tag {
	case tagNil:
		return nil, pos, nil
	case tagLeaf:
		key, n, err := DecodeByteString(data[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += n
		val, n, err := DecodeByteString(data[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += n
		return &Leaf{Key: key, Value: val}, pos, nil
	case tagInner:
		cb, n, err := DecodeVarNat(data[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += n
		rightKey, n, err := DecodeByteString(data[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += n
		left, n, err := Decode(data[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += n
		right, n, err := Decode(data[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += n
		return &Inner{Critbit: int(cb), Left: left, RightKey: rightKey, Right: right}, pos, nil
	case tagRemote:
		cb, n, err := DecodeVarNat(data[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += n
		sample, n, err := DecodeByteString(data[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += n
		ref, n, err := DecodeHashLit(data[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += n
		count, n, err := DecodeVarNat(data[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += n
		updates := make(map[string][]byte, count)
		for i := uint64(0); i < count; i++ {
			k, n, err := DecodeByteString(data[pos:])
			if err != nil {
				return nil, 0, err
			}
			pos += n
			v, n, err := DecodeByteString(data[pos:])
			if err != nil {
				return nil, 0, err
			}
			pos += n
			updates[string(k)] = v
		}
		return &Remote{Critbit: int(cb), SampleKey: sample, Updates: updates, Ref: ref}, pos, nil
	}
	return nil, 0, errors.New("lsm: unknown node tag")
}
