package merkle

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func testEntries(n int) []Entry {
	entries := make([]Entry, n)
	for i := range entries {
		var account [20]byte
		account[0] = byte(i + 1)
		entries[i] = Entry{
			Account:    account,
			Token:      "RWD",
			Cumulative: big.NewInt(int64(1000 * (i + 1))),
		}
	}
	return entries
}

func TestTreeProofRoundTrip(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7, 8, 13} {
		tree, err := NewTree(testEntries(n))
		require.NoError(t, err)
		root := tree.Root()
		for i := 0; i < tree.Len(); i++ {
			entry, err := tree.Entry(i)
			require.NoError(t, err)
			proof, err := tree.Proof(i)
			require.NoError(t, err)
			leaf := Leaf(entry.Account, entry.Token, entry.Cumulative)
			require.True(t, VerifyProof(proof, root, leaf), "leaf %d of %d must verify", i, n)
		}
	}
}

func TestVerifyRejectsTamperedAmount(t *testing.T) {
	tree, err := NewTree(testEntries(4))
	require.NoError(t, err)
	entry, err := tree.Entry(2)
	require.NoError(t, err)
	proof, err := tree.Proof(2)
	require.NoError(t, err)

	inflated := new(big.Int).Add(entry.Cumulative, big.NewInt(1))
	leaf := Leaf(entry.Account, entry.Token, inflated)
	require.False(t, VerifyProof(proof, tree.Root(), leaf))
}

func TestVerifyRejectsForeignRoot(t *testing.T) {
	treeA, err := NewTree(testEntries(4))
	require.NoError(t, err)
	treeB, err := NewTree(testEntries(5))
	require.NoError(t, err)

	entry, err := treeA.Entry(0)
	require.NoError(t, err)
	proof, err := treeA.Proof(0)
	require.NoError(t, err)
	leaf := Leaf(entry.Account, entry.Token, entry.Cumulative)
	require.True(t, VerifyProof(proof, treeA.Root(), leaf))
	require.False(t, VerifyProof(proof, treeB.Root(), leaf))
}

func TestLeafNormalizesTokenSymbol(t *testing.T) {
	var account [20]byte
	account[19] = 0x7f
	amount := big.NewInt(42)
	require.Equal(t, Leaf(account, "rwd", amount), Leaf(account, " RWD ", amount))
	require.NotEqual(t, Leaf(account, "RWD", amount), Leaf(account, "USD", amount))
}

func TestNewTreeRejectsInvalidEntries(t *testing.T) {
	_, err := NewTree(nil)
	require.Error(t, err)

	entries := testEntries(2)
	entries[1].Cumulative = big.NewInt(0)
	_, err = NewTree(entries)
	require.Error(t, err)

	entries = testEntries(2)
	entries[1].Account = entries[0].Account
	entries[1].Token = " rwd"
	_, err = NewTree(entries)
	require.Error(t, err)
}

func TestSingleLeafTreeHasEmptyProof(t *testing.T) {
	tree, err := NewTree(testEntries(1))
	require.NoError(t, err)
	proof, err := tree.Proof(0)
	require.NoError(t, err)
	require.Empty(t, proof)
	entry, err := tree.Entry(0)
	require.NoError(t, err)
	require.Equal(t, tree.Root(), Leaf(entry.Account, entry.Token, entry.Cumulative))
}
