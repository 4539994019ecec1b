// merklegen builds the Merkle commitment for a reward epoch. It consumes a
// JSON file of cumulative entitlements and emits the root plus a proof per
// leaf; the distributor daemon only ever verifies these proofs. The -keygen
// mode mints fresh operator identities instead.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"

	"merkledrop/crypto"
	"merkledrop/crypto/merkle"
)

type inputEntry struct {
	Address    string `json:"address"`
	Token      string `json:"token"`
	Cumulative string `json:"cumulative"`
}

type outputProof struct {
	Address    string   `json:"address"`
	Token      string   `json:"token"`
	Cumulative string   `json:"cumulative"`
	Leaf       string   `json:"leaf"`
	Proof      []string `json:"proof"`
}

type output struct {
	Root   string        `json:"root"`
	Leaves int           `json:"leaves"`
	Proofs []outputProof `json:"proofs"`
}

type keygenOutput struct {
	Address    string `json:"address"`
	PrivateKey string `json:"privateKey"`
}

func main() {
	inputFile := flag.String("input", "", "Path to the entitlement JSON file")
	outputFile := flag.String("output", "", "Path to write the root and proofs (stdout when empty)")
	keygen := flag.Bool("keygen", false, "Generate an operator keypair and exit")
	flag.Parse()

	if *keygen {
		if err := runKeygen(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "merklegen: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if *inputFile == "" {
		fmt.Fprintln(os.Stderr, "merklegen: -input is required")
		os.Exit(2)
	}
	if err := run(*inputFile, *outputFile); err != nil {
		fmt.Fprintf(os.Stderr, "merklegen: %v\n", err)
		os.Exit(1)
	}
}

func run(inputFile, outputFile string) error {
	raw, err := os.ReadFile(inputFile)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	var inputs []inputEntry
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}
	if len(inputs) == 0 {
		return fmt.Errorf("input contains no entitlements")
	}

	entries := make([]merkle.Entry, len(inputs))
	for i, input := range inputs {
		addr, err := crypto.DecodeAddress(input.Address)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		amount, ok := new(big.Int).SetString(input.Cumulative, 10)
		if !ok || amount.Sign() <= 0 {
			return fmt.Errorf("entry %d: cumulative must be a positive integer", i)
		}
		var account [20]byte
		copy(account[:], addr.Bytes())
		entries[i] = merkle.Entry{Account: account, Token: input.Token, Cumulative: amount}
	}

	tree, err := merkle.NewTree(entries)
	if err != nil {
		return err
	}

	root := tree.Root()
	result := output{
		Root:   hex.EncodeToString(root[:]),
		Leaves: tree.Len(),
		Proofs: make([]outputProof, tree.Len()),
	}
	for i := 0; i < tree.Len(); i++ {
		entry, err := tree.Entry(i)
		if err != nil {
			return err
		}
		proof, err := tree.Proof(i)
		if err != nil {
			return err
		}
		proofHex := make([]string, len(proof))
		for j, node := range proof {
			proofHex[j] = hex.EncodeToString(node[:])
		}
		leaf := merkle.Leaf(entry.Account, entry.Token, entry.Cumulative)
		result.Proofs[i] = outputProof{
			Address:    crypto.NewAddress(crypto.RewardPrefix, entry.Account[:]).String(),
			Token:      merkle.NormalizeToken(entry.Token),
			Cumulative: entry.Cumulative.String(),
			Leaf:       hex.EncodeToString(leaf[:]),
			Proof:      proofHex,
		}
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	encoded = append(encoded, '\n')
	if outputFile == "" {
		_, err = os.Stdout.Write(encoded)
		return err
	}
	if err := os.WriteFile(outputFile, encoded, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// runKeygen mints a secp256k1 keypair and prints the bech32 address derived
// from it alongside the hex-encoded private key.
func runKeygen(w io.Writer) error {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	result := keygenOutput{
		Address:    key.PubKey().Address().String(),
		PrivateKey: hex.EncodeToString(key.Bytes()),
	}
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	encoded = append(encoded, '\n')
	_, err = w.Write(encoded)
	return err
}
