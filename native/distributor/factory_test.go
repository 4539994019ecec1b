package distributor

import (
	"errors"
	"testing"

	"merkledrop/core/events"
)

func TestDeriveDistributorIDIsDeterministic(t *testing.T) {
	caller, owner := addr(1), addr(2)
	root, ipfs, salt := hash(0xaa), hash(0xbb), hash(0xcc)

	first := DeriveDistributorID(caller, owner, 3600, root, ipfs, salt)
	second := DeriveDistributorID(caller, owner, 3600, root, ipfs, salt)
	if first != second {
		t.Fatalf("identical inputs must derive identical ids")
	}

	if DeriveDistributorID(caller, owner, 3600, root, ipfs, hash(0xdd)) == first {
		t.Fatalf("different salt must derive a different id")
	}
	if DeriveDistributorID(caller, owner, 7200, root, ipfs, salt) == first {
		t.Fatalf("different timelock must derive a different id")
	}
	if DeriveDistributorID(addr(9), owner, 3600, root, ipfs, salt) == first {
		t.Fatalf("different caller must derive a different id")
	}
}

func TestCreateDistributor(t *testing.T) {
	state := newMockState()
	emitter := &captureEmitter{}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetEmitter(emitter)

	caller, owner := addr(1), addr(2)
	root, ipfs, salt := hash(0xaa), hash(0xbb), hash(0xcc)

	id, err := engine.CreateDistributor(caller, owner, 3600, root, ipfs, salt)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != DeriveDistributorID(caller, owner, 3600, root, ipfs, salt) {
		t.Fatalf("instance not stored at its deterministic id")
	}

	dist := state.distributors[id]
	if dist == nil {
		t.Fatalf("instance not persisted")
	}
	if dist.Owner != owner || dist.Timelock != 3600 || dist.Root != root || dist.IPFSHash != ipfs {
		t.Fatalf("initial values not applied: %+v", dist)
	}
	if dist.Pending != nil {
		t.Fatalf("fresh instance must have no pending root")
	}

	created, ok := emitter.events[len(emitter.events)-1].(events.DistributorCreated)
	if !ok {
		t.Fatalf("expected creation event, got %T", emitter.events[len(emitter.events)-1])
	}
	if created.Caller != caller || created.Owner != owner || created.Timelock != 3600 ||
		created.Root != root || created.IPFSHash != ipfs || created.Salt != salt || created.ID != id {
		t.Fatalf("creation event missing parameters: %+v", created)
	}

	// The id is occupied; the same salt cannot be reused.
	if _, err := engine.CreateDistributor(caller, owner, 3600, root, ipfs, salt); !errors.Is(err, ErrDistributorExists) {
		t.Fatalf("duplicate create: got %v, want ErrDistributorExists", err)
	}
}

func TestCreateDistributorRejectsOversizedTimelock(t *testing.T) {
	state := newMockState()
	engine := NewEngine()
	engine.SetState(state)

	caller := addr(1)
	_, err := engine.CreateDistributor(caller, caller, MaxTimelock+1, hash(0xaa), hash(0xbb), hash(0xcc))
	if !errors.Is(err, ErrInvalidTimelock) {
		t.Fatalf("got %v, want ErrInvalidTimelock", err)
	}
	if len(state.distributors) != 0 {
		t.Fatalf("rejected create must not persist an instance")
	}
}
