package bank

import (
	"errors"
	"math/big"
	"testing"
)

type memBalances struct {
	balances map[string]*big.Int
}

func newMemBalances() *memBalances {
	return &memBalances{balances: make(map[string]*big.Int)}
}

func balanceKey(token string, addr [20]byte) string {
	return token + "/" + string(addr[:])
}

func (m *memBalances) BalanceGet(token string, addr [20]byte) (*big.Int, error) {
	if amount, ok := m.balances[balanceKey(token, addr)]; ok {
		return new(big.Int).Set(amount), nil
	}
	return big.NewInt(0), nil
}

func (m *memBalances) BalanceSet(token string, addr [20]byte, amount *big.Int) error {
	m.balances[balanceKey(token, addr)] = new(big.Int).Set(amount)
	return nil
}

func testAddr(b byte) [20]byte {
	var out [20]byte
	out[0] = b
	return out
}

func TestMintAndTransfer(t *testing.T) {
	ledger := NewLedger(newMemBalances())
	vault, alice := testAddr(1), testAddr(2)

	if err := ledger.Mint("rwd", vault, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer("RWD", vault, alice, big.NewInt(400)); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	balance, err := ledger.Balance("RWD", alice)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("alice = %s, want 400", balance)
	}
	balance, err = ledger.Balance("rwd ", vault)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("vault = %s, want 600", balance)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	ledger := NewLedger(newMemBalances())
	vault, alice := testAddr(1), testAddr(2)

	if err := ledger.Mint("RWD", vault, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer("RWD", vault, alice, big.NewInt(101)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
	balance, err := ledger.Balance("RWD", vault)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("failed transfer must not move funds")
	}
}

func TestLedgerInputValidation(t *testing.T) {
	ledger := NewLedger(newMemBalances())
	vault, alice := testAddr(1), testAddr(2)

	if err := ledger.Mint("  ", vault, big.NewInt(1)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("blank token mint: got %v, want ErrInvalidToken", err)
	}
	if err := ledger.Mint("RWD", vault, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero mint: got %v, want ErrInvalidAmount", err)
	}
	if err := ledger.Transfer("RWD", vault, alice, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("nil transfer: got %v, want ErrInvalidAmount", err)
	}
	if err := ledger.Transfer("RWD", vault, alice, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative transfer: got %v, want ErrInvalidAmount", err)
	}
}
