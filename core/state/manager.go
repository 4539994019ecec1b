package state

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"merkledrop/crypto/merkle"
	"merkledrop/native/distributor"
	"merkledrop/storage"
)

const (
	distributorMetaKeyFormat    = "distributor/meta/%s"
	distributorUpdaterKeyFormat = "distributor/updaters/%s/%s"
	distributorClaimedKeyFormat = "distributor/claimed/%s/%s/%s"
	bankBalanceKeyFormat        = "bank/balance/%s/%s"
)

// Manager persists distributor instances, updater membership, the cumulative
// claimed ledger, and token balances in a key-value store. Records are
// RLP-encoded; the pending root keeps the submittedAt == 0 sentinel for
// "absent" so stored instances stay bit-stable across versions.
type Manager struct {
	db storage.Database
	mu sync.RWMutex
}

// NewManager wraps the supplied key-value store.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

type storedDistributor struct {
	Owner              []byte
	Timelock           uint64
	Root               []byte
	IPFSHash           []byte
	PendingRoot        []byte
	PendingIPFSHash    []byte
	PendingSubmittedAt uint64
}

type storedFlag struct {
	Active bool
}

type storedAmount struct {
	Amount *big.Int
}

// DistributorGet loads an instance by id. The second return reports whether
// the id exists.
func (m *Manager) DistributorGet(id [20]byte) (*distributor.Distributor, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, err := m.db.Get([]byte(distributorMetaKey(id)))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("state: read distributor %x: %w", id, err)
	}
	var stored storedDistributor
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, false, fmt.Errorf("state: decode distributor %x: %w", id, err)
	}

	dist := &distributor.Distributor{Timelock: stored.Timelock}
	copy(dist.Owner[:], stored.Owner)
	copy(dist.Root[:], stored.Root)
	copy(dist.IPFSHash[:], stored.IPFSHash)
	if stored.PendingSubmittedAt != 0 {
		pending := &distributor.PendingRoot{SubmittedAt: int64(stored.PendingSubmittedAt)}
		copy(pending.Root[:], stored.PendingRoot)
		copy(pending.IPFSHash[:], stored.PendingIPFSHash)
		dist.Pending = pending
	}
	return dist, true, nil
}

// DistributorPut writes an instance record.
func (m *Manager) DistributorPut(id [20]byte, dist *distributor.Distributor) error {
	if dist == nil {
		return errors.New("state: nil distributor")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := storedDistributor{
		Owner:    append([]byte(nil), dist.Owner[:]...),
		Timelock: dist.Timelock,
		Root:     append([]byte(nil), dist.Root[:]...),
		IPFSHash: append([]byte(nil), dist.IPFSHash[:]...),
	}
	if dist.Pending != nil {
		if dist.Pending.SubmittedAt <= 0 {
			return errors.New("state: pending root requires a positive submission timestamp")
		}
		stored.PendingRoot = append([]byte(nil), dist.Pending.Root[:]...)
		stored.PendingIPFSHash = append([]byte(nil), dist.Pending.IPFSHash[:]...)
		stored.PendingSubmittedAt = uint64(dist.Pending.SubmittedAt)
	}
	raw, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return fmt.Errorf("state: encode distributor %x: %w", id, err)
	}
	return m.db.Put([]byte(distributorMetaKey(id)), raw)
}

// DistributorSetUpdater records updater membership for the instance.
func (m *Manager) DistributorSetUpdater(id, updater [20]byte, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := rlp.EncodeToBytes(&storedFlag{Active: active})
	if err != nil {
		return fmt.Errorf("state: encode updater flag: %w", err)
	}
	return m.db.Put([]byte(distributorUpdaterKey(id, updater)), raw)
}

// DistributorIsUpdater reports whether the identity is an active updater.
func (m *Manager) DistributorIsUpdater(id, updater [20]byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, err := m.db.Get([]byte(distributorUpdaterKey(id, updater)))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("state: read updater flag: %w", err)
	}
	var stored storedFlag
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return false, fmt.Errorf("state: decode updater flag: %w", err)
	}
	return stored.Active, nil
}

// DistributorClaimed returns the cumulative amount already paid for the
// (account, token) pair, zero when the pair has never claimed.
func (m *Manager) DistributorClaimed(id, account [20]byte, token string) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, err := m.db.Get([]byte(distributorClaimedKey(id, account, token)))
	if errors.Is(err, storage.ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: read claimed amount: %w", err)
	}
	var stored storedAmount
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode claimed amount: %w", err)
	}
	if stored.Amount == nil {
		return big.NewInt(0), nil
	}
	return stored.Amount, nil
}

// DistributorSetClaimed records the latest proven cumulative value.
func (m *Manager) DistributorSetClaimed(id, account [20]byte, token string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.New("state: claimed amount must be non-negative")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := rlp.EncodeToBytes(&storedAmount{Amount: amount})
	if err != nil {
		return fmt.Errorf("state: encode claimed amount: %w", err)
	}
	return m.db.Put([]byte(distributorClaimedKey(id, account, token)), raw)
}

// BalanceGet returns the token balance held by the address.
func (m *Manager) BalanceGet(token string, addr [20]byte) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, err := m.db.Get([]byte(bankBalanceKey(token, addr)))
	if errors.Is(err, storage.ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: read balance: %w", err)
	}
	var stored storedAmount
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode balance: %w", err)
	}
	if stored.Amount == nil {
		return big.NewInt(0), nil
	}
	return stored.Amount, nil
}

// BalanceSet overwrites the token balance held by the address.
func (m *Manager) BalanceSet(token string, addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.New("state: balance must be non-negative")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := rlp.EncodeToBytes(&storedAmount{Amount: amount})
	if err != nil {
		return fmt.Errorf("state: encode balance: %w", err)
	}
	return m.db.Put([]byte(bankBalanceKey(token, addr)), raw)
}

func distributorMetaKey(id [20]byte) string {
	return fmt.Sprintf(distributorMetaKeyFormat, hex.EncodeToString(id[:]))
}

func distributorUpdaterKey(id, updater [20]byte) string {
	return fmt.Sprintf(distributorUpdaterKeyFormat, hex.EncodeToString(id[:]), hex.EncodeToString(updater[:]))
}

func distributorClaimedKey(id, account [20]byte, token string) string {
	return fmt.Sprintf(distributorClaimedKeyFormat, hex.EncodeToString(id[:]), merkle.NormalizeToken(token), hex.EncodeToString(account[:]))
}

func bankBalanceKey(token string, addr [20]byte) string {
	return fmt.Sprintf(bankBalanceKeyFormat, merkle.NormalizeToken(token), hex.EncodeToString(addr[:]))
}
