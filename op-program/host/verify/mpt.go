package verify

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
)

// AccountProof is an eth_getProof account result.
type AccountProof struct {
	Address common.Address
	Account types.StateAccount
	Proof   [][]byte
}

// StorageProof is a single eth_getProof storage result.
type StorageProof struct {
	Key   common.Hash
	Value common.Hash
	Proof [][]byte
}

func proofDB(nodes [][]byte) *memorydb.Database {
	db := memorydb.New()
	for _, node := range nodes {
		_ = db.Put(crypto.Keccak256(node), node)
	}
	return db
}

// VerifyAccountProof checks the account against the state root.
func VerifyAccountProof(stateRoot common.Hash, p *AccountProof) error {
	value, err := trie.VerifyProof(stateRoot, crypto.Keccak256(p.Address[:]), proofDB(p.Proof))
	if err != nil {
		return fmt.Errorf("invalid account proof for %s: %w", p.Address, err)
	}
	if value == nil {
		return fmt.Errorf("account %s does not exist at state root %s", p.Address, stateRoot)
	}
	expected, err := rlp.EncodeToBytes(&p.Account)
	if err != nil {
		return fmt.Errorf("failed to encode account: %w", err)
	}
	if !bytes.Equal(value, expected) {
		return fmt.Errorf("account %s does not match proven value", p.Address)
	}
	return nil
}

// VerifyStorageProof checks the slot value against the account storage root.
// A zero value must be proven absent.
func VerifyStorageProof(storageRoot common.Hash, p *StorageProof) error {
	value, err := trie.VerifyProof(storageRoot, crypto.Keccak256(p.Key[:]), proofDB(p.Proof))
	if err != nil {
		return fmt.Errorf("invalid storage proof for slot %s: %w", p.Key, err)
	}
	trimmed := bytes.TrimLeft(p.Value[:], "\x00")
	if len(trimmed) == 0 {
		if value != nil {
			return fmt.Errorf("slot %s expected empty but is set", p.Key)
		}
		return nil
	}
	expected, err := rlp.EncodeToBytes(trimmed)
	if err != nil {
		return fmt.Errorf("failed to encode slot value: %w", err)
	}
	if !bytes.Equal(value, expected) {
		return fmt.Errorf("slot %s does not match proven value", p.Key)
	}
	return nil
}
