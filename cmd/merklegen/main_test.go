package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"testing"

	"merkledrop/crypto"
)

func TestKeygenEmitsUsableIdentity(t *testing.T) {
	var buf bytes.Buffer
	if err := runKeygen(&buf); err != nil {
		t.Fatalf("keygen: %v", err)
	}

	var out keygenOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("parse output: %v (%s)", err, buf.String())
	}

	addr, err := crypto.DecodeAddress(out.Address)
	if err != nil {
		t.Fatalf("decode address: %v", err)
	}
	if addr.Prefix() != crypto.RewardPrefix {
		t.Fatalf("prefix = %q, want %q", addr.Prefix(), crypto.RewardPrefix)
	}

	raw, err := hex.DecodeString(out.PrivateKey)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	key, err := crypto.PrivateKeyFromBytes(raw)
	if err != nil {
		t.Fatalf("recover private key: %v", err)
	}
	if key.PubKey().Address().String() != out.Address {
		t.Fatalf("recovered key derives %s, printed %s", key.PubKey().Address(), out.Address)
	}
}
