package distributor

import (
	"errors"
	"math/big"
	"testing"

	"merkledrop/core/events"
	"merkledrop/crypto/merkle"
)

type transferCall struct {
	token  string
	from   [20]byte
	to     [20]byte
	amount *big.Int
}

type mockTransferer struct {
	calls      []transferCall
	failWith   error
	onTransfer func()
}

func (m *mockTransferer) Transfer(token string, from, to [20]byte, amount *big.Int) error {
	if m.onTransfer != nil {
		hook := m.onTransfer
		m.onTransfer = nil
		hook()
	}
	if m.failWith != nil {
		return m.failWith
	}
	m.calls = append(m.calls, transferCall{token: token, from: from, to: to, amount: new(big.Int).Set(amount)})
	return nil
}

func buildTree(t *testing.T, entries []merkle.Entry) *merkle.Tree {
	t.Helper()
	tree, err := merkle.NewTree(entries)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	return tree
}

func proofFor(t *testing.T, tree *merkle.Tree, index int) [][32]byte {
	t.Helper()
	proof, err := tree.Proof(index)
	if err != nil {
		t.Fatalf("proof %d: %v", index, err)
	}
	return proof
}

func newClaimFixture(t *testing.T) (*Engine, *mockState, *mockTransferer, *captureEmitter, [20]byte, *merkle.Tree) {
	t.Helper()
	owner := addr(1)
	engine, state, emitter, id := newTestEngine(t, owner, 0)
	transferer := &mockTransferer{}
	engine.SetTransferer(transferer)

	tree := buildTree(t, []merkle.Entry{
		{Account: addr(10), Token: "RWD", Cumulative: big.NewInt(1000)},
		{Account: addr(11), Token: "USDQ", Cumulative: big.NewInt(2500)},
		{Account: addr(12), Token: "RWD", Cumulative: big.NewInt(77)},
	})
	state.distributors[id].Root = tree.Root()
	return engine, state, transferer, emitter, id, tree
}

func TestClaimPaysFullEntitlementOnce(t *testing.T) {
	engine, state, transferer, emitter, id, tree := newClaimFixture(t)

	account := addr(10)
	proof := proofFor(t, tree, 0)
	owed, err := engine.Claim(id, account, "RWD", big.NewInt(1000), proof)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if owed.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("owed = %s, want 1000", owed)
	}
	if got := state.claimed[claimedKey(id, account, "RWD")]; got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("claimed record = %s, want 1000", got)
	}
	if len(transferer.calls) != 1 {
		t.Fatalf("expected one transfer, got %d", len(transferer.calls))
	}
	call := transferer.calls[0]
	if call.token != "RWD" || call.from != id || call.to != account || call.amount.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("unexpected transfer %+v", call)
	}
	if emitter.lastType() != events.TypeRewardsClaimed {
		t.Fatalf("expected claimed event, got %q", emitter.lastType())
	}

	// Replaying the same proof and amount leaves no positive delta.
	if _, err := engine.Claim(id, account, "RWD", big.NewInt(1000), proof); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("replay: got %v, want ErrAlreadyClaimed", err)
	}
	if len(transferer.calls) != 1 {
		t.Fatalf("replay must not transfer")
	}
}

func TestClaimFailsWithoutRoot(t *testing.T) {
	owner := addr(1)
	engine, _, _, id := newTestEngine(t, owner, 0)
	engine.SetTransferer(&mockTransferer{})

	_, err := engine.Claim(id, addr(10), "RWD", big.NewInt(1), nil)
	if !errors.Is(err, ErrRootNotSet) {
		t.Fatalf("got %v, want ErrRootNotSet", err)
	}
}

func TestClaimRejectsInvalidProofs(t *testing.T) {
	engine, _, transferer, _, id, tree := newClaimFixture(t)

	// Proof for a different leaf.
	wrongProof := proofFor(t, tree, 1)
	if _, err := engine.Claim(id, addr(10), "RWD", big.NewInt(1000), wrongProof); !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("mismatched proof: got %v, want ErrInvalidProof", err)
	}

	// Correct proof, inflated amount.
	proof := proofFor(t, tree, 0)
	if _, err := engine.Claim(id, addr(10), "RWD", big.NewInt(2000), proof); !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("inflated amount: got %v, want ErrInvalidProof", err)
	}

	// Correct proof, wrong token.
	if _, err := engine.Claim(id, addr(10), "USDQ", big.NewInt(1000), proof); !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("wrong token: got %v, want ErrInvalidProof", err)
	}
	if len(transferer.calls) != 0 {
		t.Fatalf("no transfer expected")
	}
}

func TestClaimProofExpiresWithSupersededRoot(t *testing.T) {
	engine, _, _, _, id, tree := newClaimFixture(t)
	owner := addr(1)

	proof := proofFor(t, tree, 0)

	// Replace the root; the old proof no longer verifies.
	replacement := buildTree(t, []merkle.Entry{
		{Account: addr(10), Token: "RWD", Cumulative: big.NewInt(1500)},
		{Account: addr(11), Token: "USDQ", Cumulative: big.NewInt(2500)},
	})
	if err := engine.ForceUpdateRoot(owner, id, replacement.Root(), hash(0x02)); err != nil {
		t.Fatalf("force: %v", err)
	}
	if _, err := engine.Claim(id, addr(10), "RWD", big.NewInt(1000), proof); !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("stale proof: got %v, want ErrInvalidProof", err)
	}
}

func TestClaimUpgradedEntitlementPaysDelta(t *testing.T) {
	engine, state, transferer, _, id, tree := newClaimFixture(t)
	owner := addr(1)
	account := addr(10)

	if _, err := engine.Claim(id, account, "RWD", big.NewInt(1000), proofFor(t, tree, 0)); err != nil {
		t.Fatalf("first claim: %v", err)
	}

	// A new root raises the cumulative entitlement to 1800.
	upgraded := buildTree(t, []merkle.Entry{
		{Account: account, Token: "RWD", Cumulative: big.NewInt(1800)},
		{Account: addr(11), Token: "USDQ", Cumulative: big.NewInt(2500)},
	})
	if err := engine.ForceUpdateRoot(owner, id, upgraded.Root(), hash(0x02)); err != nil {
		t.Fatalf("force: %v", err)
	}

	owed, err := engine.Claim(id, account, "RWD", big.NewInt(1800), proofFor(t, upgraded, 0))
	if err != nil {
		t.Fatalf("upgraded claim: %v", err)
	}
	if owed.Cmp(big.NewInt(800)) != 0 {
		t.Fatalf("owed = %s, want the 800 delta", owed)
	}
	if got := state.claimed[claimedKey(id, account, "RWD")]; got.Cmp(big.NewInt(1800)) != 0 {
		t.Fatalf("claimed record = %s, want 1800", got)
	}
	if len(transferer.calls) != 2 {
		t.Fatalf("expected two transfers, got %d", len(transferer.calls))
	}
}

func TestClaimReducedEntitlementHasNoDelta(t *testing.T) {
	engine, _, _, _, id, tree := newClaimFixture(t)
	owner := addr(1)
	account := addr(10)

	if _, err := engine.Claim(id, account, "RWD", big.NewInt(1000), proofFor(t, tree, 0)); err != nil {
		t.Fatalf("first claim: %v", err)
	}

	// A new root lowers the entitlement below what was already paid.
	reduced := buildTree(t, []merkle.Entry{
		{Account: account, Token: "RWD", Cumulative: big.NewInt(600)},
		{Account: addr(11), Token: "USDQ", Cumulative: big.NewInt(2500)},
	})
	if err := engine.ForceUpdateRoot(owner, id, reduced.Root(), hash(0x02)); err != nil {
		t.Fatalf("force: %v", err)
	}
	if _, err := engine.Claim(id, account, "RWD", big.NewInt(600), proofFor(t, reduced, 0)); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("reduced claim: got %v, want ErrAlreadyClaimed", err)
	}
}

func TestClaimedRecordIsMonotonic(t *testing.T) {
	engine, state, _, _, id, _ := newClaimFixture(t)
	owner := addr(1)
	account := addr(12)

	last := big.NewInt(0)
	for _, cumulative := range []int64{77, 150, 400} {
		tree := buildTree(t, []merkle.Entry{
			{Account: account, Token: "RWD", Cumulative: big.NewInt(cumulative)},
			{Account: addr(11), Token: "USDQ", Cumulative: big.NewInt(2500)},
		})
		if err := engine.ForceUpdateRoot(owner, id, tree.Root(), hash(0x03)); err != nil {
			t.Fatalf("force: %v", err)
		}
		if _, err := engine.Claim(id, account, "RWD", big.NewInt(cumulative), proofFor(t, tree, 0)); err != nil {
			t.Fatalf("claim %d: %v", cumulative, err)
		}
		recorded := state.claimed[claimedKey(id, account, "RWD")]
		if recorded.Cmp(last) < 0 {
			t.Fatalf("claimed record decreased: %s -> %s", last, recorded)
		}
		last = recorded
	}
	if last.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("final record = %s, want 400", last)
	}
}

func TestReentrantClaimDuringTransferCannotDoubleSpend(t *testing.T) {
	engine, _, transferer, _, id, tree := newClaimFixture(t)
	account := addr(10)
	proof := proofFor(t, tree, 0)

	var reentrantErr error
	reentered := false
	transferer.onTransfer = func() {
		reentered = true
		_, reentrantErr = engine.Claim(id, account, "RWD", big.NewInt(1000), proof)
	}

	if _, err := engine.Claim(id, account, "RWD", big.NewInt(1000), proof); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !reentered {
		t.Fatalf("reentrant hook did not run")
	}
	// The claimed record was written before the transfer ran, so the
	// re-entrant call sees no remaining delta.
	if !errors.Is(reentrantErr, ErrAlreadyClaimed) {
		t.Fatalf("reentrant claim: got %v, want ErrAlreadyClaimed", reentrantErr)
	}
	if len(transferer.calls) != 1 {
		t.Fatalf("expected exactly one payout, got %d", len(transferer.calls))
	}
}

func TestClaimRollsBackLedgerWhenTransferFails(t *testing.T) {
	engine, state, transferer, _, id, tree := newClaimFixture(t)
	account := addr(10)
	proof := proofFor(t, tree, 0)

	transferer.failWith = errors.New("boom")
	if _, err := engine.Claim(id, account, "RWD", big.NewInt(1000), proof); err == nil {
		t.Fatalf("expected transfer failure to abort the claim")
	}
	if got := state.claimed[claimedKey(id, account, "RWD")]; got != nil && got.Sign() != 0 {
		t.Fatalf("claimed record must be restored after a failed transfer, got %s", got)
	}

	// The entitlement is still claimable afterwards.
	transferer.failWith = nil
	if _, err := engine.Claim(id, account, "RWD", big.NewInt(1000), proof); err != nil {
		t.Fatalf("retry claim: %v", err)
	}
}

func TestClaimRejectsInvalidAmounts(t *testing.T) {
	engine, _, _, _, id, _ := newClaimFixture(t)
	if _, err := engine.Claim(id, addr(10), "RWD", nil, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("nil amount: got %v, want ErrInvalidAmount", err)
	}
	if _, err := engine.Claim(id, addr(10), "RWD", big.NewInt(-5), nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative amount: got %v, want ErrInvalidAmount", err)
	}
}
