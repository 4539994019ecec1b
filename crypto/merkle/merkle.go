package merkle

import (
	"bytes"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const leafEncodingLength = 20 + 32 + 32

// Leaf derives the commitment leaf for a cumulative entitlement. The encoding
// is the 20-byte account, the keccak hash of the normalised token symbol, and
// the amount as a 32-byte big-endian word; the leaf is the double keccak of
// that encoding so a leaf can never be confused with an interior node.
func Leaf(account [20]byte, token string, cumulative *big.Int) [32]byte {
	enc := make([]byte, 0, leafEncodingLength)
	enc = append(enc, account[:]...)
	enc = append(enc, ethcrypto.Keccak256([]byte(NormalizeToken(token)))...)
	amount := make([]byte, 32)
	if cumulative != nil && cumulative.Sign() > 0 {
		cumulative.FillBytes(amount)
	}
	enc = append(enc, amount...)
	var leaf [32]byte
	copy(leaf[:], ethcrypto.Keccak256(ethcrypto.Keccak256(enc)))
	return leaf
}

// VerifyProof folds the sibling hashes over the leaf using sorted-pair
// hashing and reports whether the result matches the root.
func VerifyProof(proof [][32]byte, root, leaf [32]byte) bool {
	computed := leaf
	for _, sibling := range proof {
		computed = hashPair(computed, sibling)
	}
	return computed == root
}

// NormalizeToken canonicalises a token symbol before it is bound into a leaf.
// Both the tree builder and the verifier must agree on this form.
func NormalizeToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

func hashPair(a, b [32]byte) [32]byte {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(a[:], b[:]))
	return out
}
