package distributor

import (
	"fmt"
	"math/big"

	"merkledrop/core/events"
	"merkledrop/crypto/merkle"
)

// Claim verifies a cumulative entitlement proof against the live root, pays
// out the delta over what the account has already received, and records the
// new cumulative value.
//
// The claimed record is written before the transfer collaborator runs. A
// re-entrant claim issued during the transfer therefore observes the updated
// record and fails with ErrAlreadyClaimed instead of double-spending.
func (e *Engine) Claim(id, account [20]byte, token string, cumulative *big.Int, proof [][32]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	if e.transferer == nil {
		return nil, errTransfererNotConfigured
	}
	if cumulative == nil || cumulative.Sign() < 0 {
		return nil, ErrInvalidAmount
	}

	dist, err := e.load(id)
	if err != nil {
		return nil, err
	}
	if dist.Root == ([32]byte{}) {
		return nil, ErrRootNotSet
	}

	normalized := merkle.NormalizeToken(token)
	leaf := merkle.Leaf(account, normalized, cumulative)
	if !merkle.VerifyProof(proof, dist.Root, leaf) {
		return nil, ErrInvalidProof
	}

	previous, err := e.state.DistributorClaimed(id, account, normalized)
	if err != nil {
		return nil, err
	}
	if previous == nil {
		previous = big.NewInt(0)
	}
	owed := new(big.Int).Sub(cumulative, previous)
	if owed.Sign() <= 0 {
		return nil, ErrAlreadyClaimed
	}

	// The ledger stores the latest proven cumulative value, not a running
	// increment, so a later root that raises the entitlement pays exactly
	// the new difference.
	if err := e.state.DistributorSetClaimed(id, account, normalized, cumulative); err != nil {
		return nil, err
	}
	if err := e.transferer.Transfer(normalized, id, account, owed); err != nil {
		if restoreErr := e.state.DistributorSetClaimed(id, account, normalized, previous); restoreErr != nil {
			return nil, fmt.Errorf("distributor: transfer failed (%w) and claimed rollback failed: %v", err, restoreErr)
		}
		return nil, fmt.Errorf("distributor: transfer failed: %w", err)
	}

	e.emit(events.RewardsClaimed{ID: id, Account: account, Token: normalized, Amount: new(big.Int).Set(owed)})
	return owed, nil
}
