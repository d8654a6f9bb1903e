package lsm

import (
	"bytes"
	"errors"

	"github.com/corelang/store/pkg/chash"
)

var errTruncated = errors.New("lsm: truncated encoding")

// EncodeVarNat writes n as a sequence of base-128 digits, every digit
// but the last with its high bit clear, the last with its high bit set
// to mark the end.
func EncodeVarNat(n uint64) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			out = append(out, b|0x80)
			return out
		}
		out = append(out, b)
	}
}

// DecodeVarNat reads a VarNat from the front of data, returning the
// value and the number of bytes consumed.
func DecodeVarNat(data []byte) (uint64, int, error) {
	var result uint64
	var shift uint
	for i := 0; i < len(data); i++ {
		b := data[i]
		result |= uint64(b&0x7f) << shift
		if b&0x80 != 0 {
			return result, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, errTruncated
}

// EncodeVarInt zig-zags n onto a VarNat so small magnitudes (positive
// or negative) stay short.
func EncodeVarInt(n int64) []byte {
	zz := uint64((n << 1) ^ (n >> 63))
	return EncodeVarNat(zz)
}

// DecodeVarInt is the inverse of EncodeVarInt.
func DecodeVarInt(data []byte) (int64, int, error) {
	zz, n, err := DecodeVarNat(data)
	if err != nil {
		return 0, 0, err
	}
	val := int64(zz>>1) ^ -int64(zz&1)
	return val, n, nil
}

// EncodeByteString writes a VarNat length followed by the raw bytes,
// with a single trailing separator byte inserted iff the payload ends
// in a hash-alphabet byte — this keeps HashScan's "maximal run" rule
// from accidentally swallowing the following field.
func EncodeByteString(b []byte) []byte {
	out := EncodeVarNat(uint64(len(b)))
	out = append(out, b...)
	if len(b) > 0 && chash.IsHashByte(b[len(b)-1]) {
		out = append(out, ' ')
	}
	return out
}

// DecodeByteString is the inverse of EncodeByteString.
func DecodeByteString(data []byte) ([]byte, int, error) {
	n, consumed, err := DecodeVarNat(data)
	if err != nil {
		return nil, 0, err
	}
	total := consumed
	if uint64(len(data)-total) < n {
		return nil, 0, errTruncated
	}
	payload := data[total : total+int(n)]
	total += int(n)
	if len(payload) > 0 && chash.IsHashByte(payload[len(payload)-1]) {
		if total >= len(data) || data[total] != ' ' {
			return nil, 0, errors.New("lsm: missing hash-adjacency separator")
		}
		total++
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, total, nil
}

// EncodeHashLit writes a bracketed hash literal: '{' + the hash's
// base-32 string form + '}'.
func EncodeHashLit(h chash.Hash) []byte {
	s := h.String()
	out := make([]byte, 0, len(s)+2)
	out = append(out, '{')
	out = append(out, s...)
	out = append(out, '}')
	return out
}

// DecodeHashLit is the inverse of EncodeHashLit.
func DecodeHashLit(data []byte) (chash.Hash, int, error) {
	if len(data) < 2 || data[0] != '{' {
		return chash.Hash{}, 0, errors.New("lsm: expected hash literal")
	}
	end := bytes.IndexByte(data[1:], '}')
	if end < 0 {
		return chash.Hash{}, 0, errors.New("lsm: unterminated hash literal")
	}
	h, err := chash.Parse(string(data[1 : 1+end]))
	if err != nil {
		return chash.Hash{}, 0, err
	}
	return h, end + 2, nil
}
