package events

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"merkledrop/core/types"
	"merkledrop/crypto"
)

const (
	TypeDistributorCreated = "distributor.created"
	TypeRootProposed       = "distributor.root_proposed"
	TypeRootCommitted      = "distributor.root_committed"
	TypePendingRootRevoked = "distributor.pending_root_revoked"
	TypeTimelockUpdated    = "distributor.timelock_updated"
	TypeRootUpdaterUpdated = "distributor.root_updater_updated"
	TypeOwnerUpdated       = "distributor.owner_updated"
	TypeRewardsClaimed     = "distributor.claimed"
)

// DistributorCreated records the deterministic instantiation of a new
// distributor instance, carrying every constructor parameter and the salt.
type DistributorCreated struct {
	ID       [20]byte
	Caller   [20]byte
	Owner    [20]byte
	Timelock uint64
	Root     [32]byte
	IPFSHash [32]byte
	Salt     [32]byte
}

func (DistributorCreated) EventType() string { return TypeDistributorCreated }

func (e DistributorCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeDistributorCreated,
		Attributes: map[string]string{
			"id":       addressString(e.ID),
			"caller":   addressString(e.Caller),
			"owner":    addressString(e.Owner),
			"timelock": strconv.FormatUint(e.Timelock, 10),
			"root":     hex.EncodeToString(e.Root[:]),
			"ipfsHash": hex.EncodeToString(e.IPFSHash[:]),
			"salt":     hex.EncodeToString(e.Salt[:]),
		},
	}
}

// RootProposed records a timelocked root staged for later acceptance. The
// live root is unchanged until the pending root is committed.
type RootProposed struct {
	ID          [20]byte
	Caller      [20]byte
	Root        [32]byte
	IPFSHash    [32]byte
	SubmittedAt int64
}

func (RootProposed) EventType() string { return TypeRootProposed }

func (e RootProposed) Event() *types.Event {
	return &types.Event{
		Type: TypeRootProposed,
		Attributes: map[string]string{
			"id":          addressString(e.ID),
			"caller":      addressString(e.Caller),
			"root":        hex.EncodeToString(e.Root[:]),
			"ipfsHash":    hex.EncodeToString(e.IPFSHash[:]),
			"submittedAt": strconv.FormatInt(e.SubmittedAt, 10),
		},
	}
}

// RootCommitted records a root becoming live, whether by a zero-timelock
// proposal, a matured acceptance, or a forced override.
type RootCommitted struct {
	ID       [20]byte
	Root     [32]byte
	IPFSHash [32]byte
}

func (RootCommitted) EventType() string { return TypeRootCommitted }

func (e RootCommitted) Event() *types.Event {
	return &types.Event{
		Type: TypeRootCommitted,
		Attributes: map[string]string{
			"id":       addressString(e.ID),
			"root":     hex.EncodeToString(e.Root[:]),
			"ipfsHash": hex.EncodeToString(e.IPFSHash[:]),
		},
	}
}

// PendingRootRevoked records the owner discarding a staged root.
type PendingRootRevoked struct {
	ID   [20]byte
	Root [32]byte
}

func (PendingRootRevoked) EventType() string { return TypePendingRootRevoked }

func (e PendingRootRevoked) Event() *types.Event {
	return &types.Event{
		Type: TypePendingRootRevoked,
		Attributes: map[string]string{
			"id":   addressString(e.ID),
			"root": hex.EncodeToString(e.Root[:]),
		},
	}
}

// TimelockUpdated records a change to the review window.
type TimelockUpdated struct {
	ID       [20]byte
	Timelock uint64
}

func (TimelockUpdated) EventType() string { return TypeTimelockUpdated }

func (e TimelockUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeTimelockUpdated,
		Attributes: map[string]string{
			"id":       addressString(e.ID),
			"timelock": strconv.FormatUint(e.Timelock, 10),
		},
	}
}

// RootUpdaterUpdated records membership changes of the updater set.
type RootUpdaterUpdated struct {
	ID      [20]byte
	Updater [20]byte
	Active  bool
}

func (RootUpdaterUpdated) EventType() string { return TypeRootUpdaterUpdated }

func (e RootUpdaterUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeRootUpdaterUpdated,
		Attributes: map[string]string{
			"id":      addressString(e.ID),
			"updater": addressString(e.Updater),
			"active":  strconv.FormatBool(e.Active),
		},
	}
}

// OwnerUpdated records an ownership transfer, carrying both identities.
type OwnerUpdated struct {
	ID            [20]byte
	PreviousOwner [20]byte
	NewOwner      [20]byte
}

func (OwnerUpdated) EventType() string { return TypeOwnerUpdated }

func (e OwnerUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeOwnerUpdated,
		Attributes: map[string]string{
			"id":            addressString(e.ID),
			"previousOwner": addressString(e.PreviousOwner),
			"newOwner":      addressString(e.NewOwner),
		},
	}
}

// RewardsClaimed records a successful claim. Amount is the delta actually
// paid out, not the cumulative entitlement presented.
type RewardsClaimed struct {
	ID      [20]byte
	Account [20]byte
	Token   string
	Amount  *big.Int
}

func (RewardsClaimed) EventType() string { return TypeRewardsClaimed }

func (e RewardsClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardsClaimed,
		Attributes: map[string]string{
			"id":      addressString(e.ID),
			"account": addressString(e.Account),
			"token":   e.Token,
			"amount":  formatAmount(e.Amount),
		},
	}
}

func addressString(addr [20]byte) string {
	return crypto.NewAddress(crypto.RewardPrefix, addr[:]).String()
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
