package merkle

import (
	"errors"
	"fmt"
	"math/big"
)

// Entry is a single cumulative entitlement included in a tree.
type Entry struct {
	Account    [20]byte
	Token      string
	Cumulative *big.Int
}

// Tree is a binary sorted-pair keccak Merkle tree over entitlement leaves.
// The distributor core never builds trees; this type exists for the operator
// tooling that publishes roots and for tests.
type Tree struct {
	entries []Entry
	layers  [][][32]byte
}

// NewTree builds the tree bottom-up. An odd node on a layer is promoted to
// the next layer unchanged rather than paired with itself, so no leaf hash
// ever appears twice in a proof.
func NewTree(entries []Entry) (*Tree, error) {
	if len(entries) == 0 {
		return nil, errors.New("merkle: tree requires at least one entry")
	}
	seen := make(map[string]struct{}, len(entries))
	leaves := make([][32]byte, len(entries))
	for i, entry := range entries {
		if entry.Cumulative == nil || entry.Cumulative.Sign() <= 0 {
			return nil, fmt.Errorf("merkle: entry %d cumulative amount must be positive", i)
		}
		key := string(entry.Account[:]) + "/" + NormalizeToken(entry.Token)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("merkle: duplicate entry for account/token at index %d", i)
		}
		seen[key] = struct{}{}
		leaves[i] = Leaf(entry.Account, entry.Token, entry.Cumulative)
	}

	layers := [][][32]byte{leaves}
	for current := leaves; len(current) > 1; {
		next := make([][32]byte, 0, (len(current)+1)/2)
		for i := 0; i+1 < len(current); i += 2 {
			next = append(next, hashPair(current[i], current[i+1]))
		}
		if len(current)%2 == 1 {
			next = append(next, current[len(current)-1])
		}
		layers = append(layers, next)
		current = next
	}

	copied := make([]Entry, len(entries))
	for i, entry := range entries {
		copied[i] = Entry{
			Account:    entry.Account,
			Token:      entry.Token,
			Cumulative: new(big.Int).Set(entry.Cumulative),
		}
	}
	return &Tree{entries: copied, layers: layers}, nil
}

// Root returns the tree's commitment.
func (t *Tree) Root() [32]byte {
	top := t.layers[len(t.layers)-1]
	return top[0]
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	return len(t.entries)
}

// Entry returns the entitlement at the given leaf index.
func (t *Tree) Entry(index int) (Entry, error) {
	if index < 0 || index >= len(t.entries) {
		return Entry{}, fmt.Errorf("merkle: leaf index %d out of range", index)
	}
	entry := t.entries[index]
	entry.Cumulative = new(big.Int).Set(entry.Cumulative)
	return entry, nil
}

// Proof returns the sibling hashes proving membership of the leaf at index.
func (t *Tree) Proof(index int) ([][32]byte, error) {
	if index < 0 || index >= len(t.entries) {
		return nil, fmt.Errorf("merkle: leaf index %d out of range", index)
	}
	proof := make([][32]byte, 0, len(t.layers)-1)
	for _, layer := range t.layers[:len(t.layers)-1] {
		sibling := index ^ 1
		if sibling < len(layer) {
			proof = append(proof, layer[sibling])
		}
		index /= 2
	}
	return proof, nil
}
