package distributor

import (
	"math/big"
	"time"

	"merkledrop/core/events"
)

// MaxTimelock caps the review window at ten years. The bound keeps the
// maturity deadline arithmetic in pendingMature inside int64 range.
const MaxTimelock uint64 = 10 * 365 * 24 * 60 * 60

// State is the persistence surface the engine runs against. Implementations
// must apply each mutation atomically with respect to other engine calls;
// the engine itself performs no locking.
type State interface {
	DistributorGet(id [20]byte) (*Distributor, bool, error)
	DistributorPut(id [20]byte, d *Distributor) error
	DistributorSetUpdater(id, updater [20]byte, active bool) error
	DistributorIsUpdater(id, updater [20]byte) (bool, error)
	DistributorClaimed(id, account [20]byte, token string) (*big.Int, error)
	DistributorSetClaimed(id, account [20]byte, token string, amount *big.Int) error
}

// TokenTransferer moves reward assets out of an instance's holdings. The
// call either credits the recipient in full or fails the whole claim.
type TokenTransferer interface {
	Transfer(token string, from, to [20]byte, amount *big.Int) error
}

// Engine orchestrates the distributor governance state machine and the claim
// ledger over a pluggable state backend.
type Engine struct {
	state      State
	transferer TokenTransferer
	emitter    events.Emitter
	nowFn      func() time.Time
}

// NewEngine constructs an engine with default no-op dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// SetState wires the engine to the state backend providing persistence.
func (e *Engine) SetState(state State) { e.state = state }

// SetTransferer wires the token transfer collaborator used to pay claims.
func (e *Engine) SetTransferer(transferer TokenTransferer) { e.transferer = transferer }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the clock used for timelock maturity checks. Nil
// restores the default UTC clock.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) now() time.Time {
	if e == nil || e.nowFn == nil {
		return time.Now().UTC()
	}
	return e.nowFn()
}

func (e *Engine) load(id [20]byte) (*Distributor, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	dist, ok, err := e.state.DistributorGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || dist == nil {
		return nil, ErrDistributorNotFound
	}
	return dist, nil
}

// requireProposer checks the owner-or-updater role consulted by ProposeRoot.
func (e *Engine) requireProposer(dist *Distributor, id, caller [20]byte) error {
	if caller == dist.Owner {
		return nil
	}
	active, err := e.state.DistributorIsUpdater(id, caller)
	if err != nil {
		return err
	}
	if !active {
		return ErrCallerNotAuthorized
	}
	return nil
}

func requireOwner(dist *Distributor, caller [20]byte) error {
	if caller != dist.Owner {
		return ErrCallerNotOwner
	}
	return nil
}

// pendingMature reports whether the staged root has waited out the timelock
// as of now. The comparison always uses the instance's current timelock, not
// the value in force when the root was proposed.
func pendingMature(dist *Distributor, now time.Time) bool {
	if dist.Pending == nil {
		return false
	}
	deadline := dist.Pending.SubmittedAt + int64(dist.Timelock)
	return now.Unix() >= deadline
}

// ProposeRoot stages or commits a new root/ipfsHash pair. With a zero
// timelock the pair becomes live immediately; otherwise it is staged as the
// pending root, overwriting any prior proposal, and the live root is
// untouched until acceptance.
func (e *Engine) ProposeRoot(caller, id [20]byte, newRoot, newIPFSHash [32]byte) error {
	dist, err := e.load(id)
	if err != nil {
		return err
	}
	if err := e.requireProposer(dist, id, caller); err != nil {
		return err
	}

	if dist.Timelock == 0 {
		dist.Root = newRoot
		dist.IPFSHash = newIPFSHash
		dist.Pending = nil
		if err := e.state.DistributorPut(id, dist); err != nil {
			return err
		}
		e.emit(events.RootCommitted{ID: id, Root: newRoot, IPFSHash: newIPFSHash})
		return nil
	}

	submittedAt := e.now().Unix()
	dist.Pending = &PendingRoot{Root: newRoot, IPFSHash: newIPFSHash, SubmittedAt: submittedAt}
	if err := e.state.DistributorPut(id, dist); err != nil {
		return err
	}
	e.emit(events.RootProposed{ID: id, Caller: caller, Root: newRoot, IPFSHash: newIPFSHash, SubmittedAt: submittedAt})
	return nil
}

// AcceptRootUpdate finalises a matured pending root. Anyone may call it, so
// finalisation never depends on the operator.
func (e *Engine) AcceptRootUpdate(id [20]byte) error {
	dist, err := e.load(id)
	if err != nil {
		return err
	}
	if dist.Pending == nil {
		return ErrNoPendingRoot
	}
	if !pendingMature(dist, e.now()) {
		return ErrTimelockNotExpired
	}

	dist.Root = dist.Pending.Root
	dist.IPFSHash = dist.Pending.IPFSHash
	dist.Pending = nil
	if err := e.state.DistributorPut(id, dist); err != nil {
		return err
	}
	e.emit(events.RootCommitted{ID: id, Root: dist.Root, IPFSHash: dist.IPFSHash})
	return nil
}

// ForceUpdateRoot lets the owner commit a root immediately, bypassing the
// timelock. Any staged pending root is discarded as a side effect.
func (e *Engine) ForceUpdateRoot(caller, id [20]byte, newRoot, newIPFSHash [32]byte) error {
	dist, err := e.load(id)
	if err != nil {
		return err
	}
	if err := requireOwner(dist, caller); err != nil {
		return err
	}

	dist.Root = newRoot
	dist.IPFSHash = newIPFSHash
	dist.Pending = nil
	if err := e.state.DistributorPut(id, dist); err != nil {
		return err
	}
	e.emit(events.RootCommitted{ID: id, Root: newRoot, IPFSHash: newIPFSHash})
	return nil
}

// RevokePendingRoot discards the staged root without touching the live one.
func (e *Engine) RevokePendingRoot(caller, id [20]byte) error {
	dist, err := e.load(id)
	if err != nil {
		return err
	}
	if err := requireOwner(dist, caller); err != nil {
		return err
	}
	if dist.Pending == nil {
		return ErrNoPendingRoot
	}

	revoked := dist.Pending.Root
	dist.Pending = nil
	if err := e.state.DistributorPut(id, dist); err != nil {
		return err
	}
	e.emit(events.PendingRootRevoked{ID: id, Root: revoked})
	return nil
}

// UpdateTimelock changes the review window. While an immature pending root
// exists the timelock may only grow; shortening it would let the owner rush
// through a change recipients were reviewing under the original schedule.
func (e *Engine) UpdateTimelock(caller, id [20]byte, newTimelock uint64) error {
	dist, err := e.load(id)
	if err != nil {
		return err
	}
	if err := requireOwner(dist, caller); err != nil {
		return err
	}
	if newTimelock > MaxTimelock {
		return ErrInvalidTimelock
	}
	if dist.Pending != nil && !pendingMature(dist, e.now()) && newTimelock < dist.Timelock {
		return ErrTimelockNotExpired
	}

	dist.Timelock = newTimelock
	if err := e.state.DistributorPut(id, dist); err != nil {
		return err
	}
	e.emit(events.TimelockUpdated{ID: id, Timelock: newTimelock})
	return nil
}

// UpdateRootUpdater adds or removes an identity from the updater set. The
// operation is idempotent.
func (e *Engine) UpdateRootUpdater(caller, id, updater [20]byte, active bool) error {
	dist, err := e.load(id)
	if err != nil {
		return err
	}
	if err := requireOwner(dist, caller); err != nil {
		return err
	}
	if err := e.state.DistributorSetUpdater(id, updater, active); err != nil {
		return err
	}
	e.emit(events.RootUpdaterUpdated{ID: id, Updater: updater, Active: active})
	return nil
}

// SetDistributionOwner transfers ownership of the instance.
func (e *Engine) SetDistributionOwner(caller, id, newOwner [20]byte) error {
	dist, err := e.load(id)
	if err != nil {
		return err
	}
	if err := requireOwner(dist, caller); err != nil {
		return err
	}

	previous := dist.Owner
	dist.Owner = newOwner
	if err := e.state.DistributorPut(id, dist); err != nil {
		return err
	}
	e.emit(events.OwnerUpdated{ID: id, PreviousOwner: previous, NewOwner: newOwner})
	return nil
}

// Distributor returns a copy of the instance's governance state.
func (e *Engine) Distributor(id [20]byte) (*Distributor, error) {
	dist, err := e.load(id)
	if err != nil {
		return nil, err
	}
	return dist.Clone(), nil
}

// IsUpdater reports whether the identity is in the instance's updater set.
func (e *Engine) IsUpdater(id, updater [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, errStateNotConfigured
	}
	if _, err := e.load(id); err != nil {
		return false, err
	}
	return e.state.DistributorIsUpdater(id, updater)
}

// Claimed returns the cumulative amount already paid for the pair.
func (e *Engine) Claimed(id, account [20]byte, token string) (*big.Int, error) {
	if _, err := e.load(id); err != nil {
		return nil, err
	}
	return e.state.DistributorClaimed(id, account, token)
}
