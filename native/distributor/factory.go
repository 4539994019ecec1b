package distributor

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"merkledrop/core/events"
)

// DeriveDistributorID computes the deterministic instance id for a creation
// request: keccak(0xff ‖ caller ‖ salt ‖ keccak(owner ‖ timelock ‖ root ‖
// ipfsHash)), truncated to the trailing 20 bytes. Identical parameters and
// salt always yield the same id, so deployments are reproducible.
func DeriveDistributorID(caller [20]byte, owner [20]byte, timelock uint64, root, ipfsHash, salt [32]byte) [20]byte {
	params := make([]byte, 0, 20+8+32+32)
	params = append(params, owner[:]...)
	params = binary.BigEndian.AppendUint64(params, timelock)
	params = append(params, root[:]...)
	params = append(params, ipfsHash[:]...)
	paramsHash := ethcrypto.Keccak256(params)

	preimage := make([]byte, 0, 1+20+32+32)
	preimage = append(preimage, 0xff)
	preimage = append(preimage, caller[:]...)
	preimage = append(preimage, salt[:]...)
	preimage = append(preimage, paramsHash...)

	digest := ethcrypto.Keccak256(preimage)
	var id [20]byte
	copy(id[:], digest[12:])
	return id
}

// CreateDistributor instantiates a fresh distributor at its deterministic
// address. The id is occupied forever afterwards; re-creating with the same
// caller, parameters and salt fails with ErrDistributorExists.
func (e *Engine) CreateDistributor(caller, owner [20]byte, timelock uint64, root, ipfsHash, salt [32]byte) ([20]byte, error) {
	var id [20]byte
	if e == nil || e.state == nil {
		return id, errStateNotConfigured
	}
	if timelock > MaxTimelock {
		return id, ErrInvalidTimelock
	}

	id = DeriveDistributorID(caller, owner, timelock, root, ipfsHash, salt)
	if _, ok, err := e.state.DistributorGet(id); err != nil {
		return id, err
	} else if ok {
		return id, ErrDistributorExists
	}

	dist := &Distributor{
		Owner:    owner,
		Timelock: timelock,
		Root:     root,
		IPFSHash: ipfsHash,
	}
	if err := e.state.DistributorPut(id, dist); err != nil {
		return id, err
	}

	e.emit(events.DistributorCreated{
		ID:       id,
		Caller:   caller,
		Owner:    owner,
		Timelock: timelock,
		Root:     root,
		IPFSHash: ipfsHash,
		Salt:     salt,
	})
	return id, nil
}
