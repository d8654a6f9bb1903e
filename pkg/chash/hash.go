package chash

import (
	"encoding/base32"
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/blake2b"
)

// DigestLen is the number of raw digest bytes (320 bits).
const DigestLen = 40

// HashLen is the number of characters in a Hash's external (base-32)
// representation. It is also the run length HashScan looks for when
// conservatively identifying embedded hash dependencies.
const HashLen = 64

// alphabet is disjoint from '{', '}', control bytes, whitespace, '-', '_',
// '+', '/', '=' by construction: it contains only uppercase letters and
// the digits 2-7.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

var encoding = base32.NewEncoding(alphabet).WithPadding(base32.NoPadding)

// Hash is a fixed-width content digest.
type Hash [DigestLen]byte

// ErrMalformedHash is returned by Parse when a string is not a well-formed
// hash literal.
var ErrMalformedHash = errors.New("chash: malformed hash literal")

// Sum computes the Hash of data.
func Sum(data []byte) Hash {
	d, err := blake2b.New(DigestLen, nil)
	if err != nil {
		// DigestLen is a compile-time constant within blake2b's supported
		// range (1..64); this can only fail on a programmer error.
		panic(err)
	}
	d.Write(data)
	var h Hash
	copy(h[:], d.Sum(nil))
	return h
}

// String renders h in its 64-character external form.
func (h Hash) String() string {
	return encoding.EncodeToString(h[:])
}

// Parse decodes a hash's 64-character external form.
func Parse(s string) (Hash, error) {
	if len(s) != HashLen {
		return Hash{}, ErrMalformedHash
	}
	raw, err := encoding.DecodeString(s)
	if err != nil || len(raw) != DigestLen {
		return Hash{}, ErrMalformedHash
	}
	var h Hash
	copy(h[:], raw)
	return h, nil
}

// EphemeronID returns the 64-bit digest used to key the ephemeral root
// table: the first eight bytes of h, big-endian.
func (h Hash) EphemeronID() uint64 {
	return binary.BigEndian.Uint64(h[:8])
}
