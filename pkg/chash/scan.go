package chash

var hashByte [256]bool

func init() {
	for i := 0; i < len(alphabet); i++ {
		hashByte[alphabet[i]] = true
	}
}

// IsHashByte reports whether b belongs to the hash alphabet.
func IsHashByte(b byte) bool {
	return hashByte[b]
}

// IterHashDeps scans v left to right and invokes f once for every maximal
// run of hash-alphabet bytes whose length is exactly HashLen. Runs of any
// other length are skipped, per the conservative scanning rule: a hash
// dependency is only recognized when it is unambiguously delimited by
// non-alphabet bytes (or the ends of v) on both sides. The scan is
// deterministic and linear in len(v).
func IterHashDeps(v []byte, f func(Hash)) {
	runStart := -1
	for i := 0; i <= len(v); i++ {
		isHB := i < len(v) && IsHashByte(v[i])
		switch {
		case isHB && runStart == -1:
			runStart = i
		case !isHB && runStart != -1:
			if i-runStart == HashLen {
				if h, err := Parse(string(v[runStart:i])); err == nil {
					f(h)
				}
			}
			runStart = -1
		}
	}
}

// FoldHashDeps folds f over every hash dependency found in v, left to
// right, starting from seed.
func FoldHashDeps[T any](v []byte, seed T, f func(T, Hash) T) T {
	acc := seed
	IterHashDeps(v, func(h Hash) {
		acc = f(acc, h)
	})
	return acc
}

// CollectHashDeps returns every hash dependency found in v, in order of
// first occurrence, without duplicates.
func CollectHashDeps(v []byte) []Hash {
	seen := make(map[Hash]bool)
	var out []Hash
	IterHashDeps(v, func(h Hash) {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	})
	return out
}
