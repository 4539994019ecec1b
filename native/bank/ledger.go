package bank

import (
	"errors"
	"math/big"

	"merkledrop/crypto/merkle"
)

var (
	ErrInvalidToken      = errors.New("bank: invalid token")
	ErrInvalidAmount     = errors.New("bank: amount must be positive")
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
)

// BalanceState is the persistence surface for token holdings.
type BalanceState interface {
	BalanceGet(token string, addr [20]byte) (*big.Int, error)
	BalanceSet(token string, addr [20]byte, amount *big.Int) error
}

// Ledger is the asset-transfer collaborator used to pay claims: it debits the
// distributor instance's holdings and credits the recipient, or fails the
// whole claim.
type Ledger struct {
	state BalanceState
}

// NewLedger wraps the supplied balance state.
func NewLedger(state BalanceState) *Ledger {
	return &Ledger{state: state}
}

// Transfer moves amount of token from one holder to another.
func (l *Ledger) Transfer(token string, from, to [20]byte, amount *big.Int) error {
	normalized := merkle.NormalizeToken(token)
	if normalized == "" {
		return ErrInvalidToken
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	fromBalance, err := l.state.BalanceGet(normalized, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	toBalance, err := l.state.BalanceGet(normalized, to)
	if err != nil {
		return err
	}

	if err := l.state.BalanceSet(normalized, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return l.state.BalanceSet(normalized, to, new(big.Int).Add(toBalance, amount))
}

// Mint credits newly issued units to the address. Used to fund distributor
// instances before their recipients claim.
func (l *Ledger) Mint(token string, to [20]byte, amount *big.Int) error {
	normalized := merkle.NormalizeToken(token)
	if normalized == "" {
		return ErrInvalidToken
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := l.state.BalanceGet(normalized, to)
	if err != nil {
		return err
	}
	return l.state.BalanceSet(normalized, to, new(big.Int).Add(balance, amount))
}

// Balance returns the holdings of the address for the token.
func (l *Ledger) Balance(token string, addr [20]byte) (*big.Int, error) {
	normalized := merkle.NormalizeToken(token)
	if normalized == "" {
		return nil, ErrInvalidToken
	}
	return l.state.BalanceGet(normalized, addr)
}
