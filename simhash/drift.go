package simhash

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// TagSkeletonDigest builds an ordered, hex-encoded digest of a DOM's tag
// sequence within the given region selector's subtree boundary (the caller
// is responsible for slicing htmlStr down to that subtree before calling
// this; the Orchestrator does so by asking the driver for that region's
// own markup). Unlike Fingerprint's shingled word-level SimHash, which
// folds a token sequence down to a 64-bit bit-vector for cheap similarity
// checks, the digest here preserves enough of the tag sequence's ordering
// for HashDistancePercent to measure drift the way the source runtime does:
// character-position mismatches, not bit mismatches.
func TagSkeletonDigest(htmlStr string) string {
	tags := extractTags(htmlStr)
	sum := sha1.Sum([]byte(strings.Join(tags, ">")))
	return hex.EncodeToString(sum[:])
}

// HashDistancePercent reports the percentage of character positions at
// which h1 and h2 differ. This is a direct port of the reference runtime's
// _calculate_hash_distance: a plain position-wise mismatch count over two
// digest strings, not a bit-level Hamming distance. Digests of differing
// length are treated as maximally drifted (100.0), since TagSkeletonDigest
// always emits fixed-length hex output and a length mismatch can only come
// from comparing digests built by different code.
func HashDistancePercent(h1, h2 string) float64 {
	if len(h1) != len(h2) {
		return 100.0
	}
	if len(h1) == 0 {
		return 0.0
	}

	mismatches := 0
	for i := 0; i < len(h1); i++ {
		if h1[i] != h2[i] {
			mismatches++
		}
	}

	return float64(mismatches) / float64(len(h1)) * 100.0
}
