package crypto

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcutil/bech32"
)

func TestGenerateAndRecoverPrivateKey(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	recovered, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if !bytes.Equal(recovered.Bytes(), key.Bytes()) {
		t.Fatalf("recovered key bytes differ")
	}
	if recovered.PubKey().Address().String() != key.PubKey().Address().String() {
		t.Fatalf("recovered key derives a different address")
	}
}

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	addr := key.PubKey().Address()
	if addr.Prefix() != RewardPrefix {
		t.Fatalf("prefix = %q, want %q", addr.Prefix(), RewardPrefix)
	}
	if len(addr.Bytes()) != 20 {
		t.Fatalf("address is %d bytes, want 20", len(addr.Bytes()))
	}

	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), addr.Bytes()) {
		t.Fatalf("round trip changed the address bytes")
	}
}

func TestDecodeAddressRejectsBadInput(t *testing.T) {
	if _, err := DecodeAddress("not-bech32"); err == nil {
		t.Fatalf("garbage input must not decode")
	}

	// Well-formed bech32 whose payload is not 20 bytes.
	conv, err := bech32.ConvertBits(make([]byte, 10), 8, 5, true)
	if err != nil {
		t.Fatalf("convert bits: %v", err)
	}
	encoded, err := bech32.Encode(string(RewardPrefix), conv)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeAddress(encoded); err == nil {
		t.Fatalf("10-byte payload must not decode as an address")
	}
}
