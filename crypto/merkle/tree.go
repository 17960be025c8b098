package merkle

import (
	"crypto/sha256"
	"math/bits"
)

// Size is the size in bytes of every hash produced by this package.
const Size = sha256.Size

var (
	leafPrefix  = []byte{0}
	innerPrefix = []byte{1}
)

// HashFromByteSlices computes a Merkle tree where the leaves are the byte slice,
// in the provided order. It follows RFC-6962.
func HashFromByteSlices(items [][]byte) []byte {
	switch len(items) {
	case 0:
		return emptyHash()
	case 1:
		return leafHash(items[0])
	default:
		k := getSplitPoint(int64(len(items)))
		left := HashFromByteSlices(items[:k])
		right := HashFromByteSlices(items[k:])
		return innerHash(left, right)
	}
}

// Sum returns the SHA256 of bz.
func Sum(bz []byte) []byte {
	h := sha256.Sum256(bz)
	return h[:]
}

// returns tmhash(<empty>)
func emptyHash() []byte {
	return Sum([]byte{})
}

// returns tmhash(0x00 || leaf)
func leafHash(leaf []byte) []byte {
	buf := make([]byte, 0, len(leafPrefix)+len(leaf))
	buf = append(buf, leafPrefix...)
	buf = append(buf, leaf...)
	return Sum(buf)
}

// returns tmhash(0x01 || left || right)
func innerHash(left []byte, right []byte) []byte {
	buf := make([]byte, 0, len(innerPrefix)+len(left)+len(right))
	buf = append(buf, innerPrefix...)
	buf = append(buf, left...)
	buf = append(buf, right...)
	return Sum(buf)
}

// getSplitPoint returns the largest power of 2 less than length
func getSplitPoint(length int64) int64 {
	if length < 1 {
		panic("Trying to split a tree with size < 1")
	}
	uLength := uint(length)
	bitlen := bits.Len(uLength)
	k := int64(1 << uint(bitlen-1))
	if k == length {
		k >>= 1
	}
	return k
}
