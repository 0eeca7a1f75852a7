// Package signature derives locality-sensitive min-hash signatures and
// strong content digests from raw function bytes.
package signature

import (
	"crypto/sha256"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Version identifies the signature family: window size, rolling fingerprint,
// and salt table. It is stored in a catalog's meta table on creation; a
// catalog opened with a different Version is a fatal open error, since
// signatures from different families are not comparable.
const Version = 1

// windowSize is the width, in bytes, of the sliding window the min-hash is
// computed over.
const windowSize = 8

// Sentinel is the value assigned to every component of Sign's result when the
// input is shorter than windowSize. Every too-short input collides on this
// value, clustering them together as the spec requires.
const Sentinel int64 = math.MaxInt64

// Sign computes the n-component min-hash signature of b. Component i is the
// minimum, over every windowSize-byte sliding window of b, of the window's
// xxhash fingerprint XORed with salt(i) — a cheap stand-in for a family of
// keyed pseudo-random permutations. Sign is a pure function of (b, n) and is
// stable across processes and restarts for a fixed Version.
func Sign(b []byte, n int) []int64 {
	sig := make([]int64, n)

	if len(b) < windowSize {
		for i := range sig {
			sig[i] = Sentinel
		}

		return sig
	}

	for i := range sig {
		sig[i] = math.MaxInt64
	}

	salts := saltsFor(n)

	for start := 0; start+windowSize <= len(b); start++ {
		h := xxhash.Sum64(b[start : start+windowSize])

		for i, s := range salts {
			v := int64(h ^ s)
			if v < sig[i] {
				sig[i] = v
			}
		}
	}

	return sig
}

// StrongHash returns a collision-resistant digest of b, used as an opaque
// identity key for function records and the exact-match fast path in
// similarity queries.
func StrongHash(b []byte) [32]byte {
	return sha256.Sum256(b)
}
