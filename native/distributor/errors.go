package distributor

import "errors"

var (
	// ErrDistributorNotFound is returned when an operation targets an
	// instance id the state has never seen.
	ErrDistributorNotFound = errors.New("distributor: not found")
	// ErrDistributorExists is returned by the factory when the derived
	// instance id is already occupied.
	ErrDistributorExists = errors.New("distributor: already exists")
	// ErrCallerNotOwner guards the owner-only governance mutators.
	ErrCallerNotOwner = errors.New("distributor: caller is not the owner")
	// ErrCallerNotAuthorized guards operations open to the owner or a
	// registered root updater.
	ErrCallerNotAuthorized = errors.New("distributor: caller is not authorized")
	// ErrNoPendingRoot is returned when accept or revoke find nothing staged.
	ErrNoPendingRoot = errors.New("distributor: no pending root")
	// ErrTimelockNotExpired is returned when a pending root is accepted
	// before maturity, or the timelock is shortened while one is immature.
	ErrTimelockNotExpired = errors.New("distributor: timelock not expired")
	// ErrRootNotSet is returned by claims while no commitment is live.
	ErrRootNotSet = errors.New("distributor: root not set")
	// ErrInvalidProof is returned when a proof fails against the live root,
	// including proofs that were only valid against a superseded root.
	ErrInvalidProof = errors.New("distributor: invalid or expired proof")
	// ErrAlreadyClaimed is returned when no positive delta remains for the
	// presented cumulative amount.
	ErrAlreadyClaimed = errors.New("distributor: already claimed")
	// ErrInvalidAmount is returned for nil or negative cumulative amounts.
	ErrInvalidAmount = errors.New("distributor: invalid amount")
	// ErrInvalidTimelock is returned for timelock values above MaxTimelock.
	ErrInvalidTimelock = errors.New("distributor: timelock exceeds maximum")

	errStateNotConfigured      = errors.New("distributor: state not configured")
	errTransfererNotConfigured = errors.New("distributor: token transferer not configured")
)
