// Package verifytest builds state and storage proofs for tests.
package verifytest

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/op-celestia-host/op-program/host/verify"
)

func newTrie() *trie.Trie {
	return trie.NewEmpty(triedb.NewDatabase(rawdb.NewMemoryDatabase(), nil))
}

func prove(t require.TestingT, tr *trie.Trie, key []byte) [][]byte {
	db := memorydb.New()
	require.NoError(t, tr.Prove(key, db))
	var nodes [][]byte
	it := db.NewIterator(nil, nil)
	defer it.Release()
	for it.Next() {
		nodes = append(nodes, common.CopyBytes(it.Value()))
	}
	return nodes
}

// ContractState is a state trie holding one contract with the given storage.
type ContractState struct {
	Root    common.Hash
	Account verify.AccountProof
	storage *trie.Trie
}

func NewContractState(t require.TestingT, address common.Address, slots map[common.Hash]common.Hash) *ContractState {
	storage := newTrie()
	for k, v := range slots {
		enc, err := rlp.EncodeToBytes(bytes.TrimLeft(v[:], "\x00"))
		require.NoError(t, err)
		require.NoError(t, storage.Update(crypto.Keccak256(k[:]), enc))
	}
	account := types.StateAccount{
		Nonce:    1,
		Balance:  uint256.NewInt(1000),
		Root:     storage.Hash(),
		CodeHash: crypto.Keccak256([]byte{0x60, 0x00}),
	}
	enc, err := rlp.EncodeToBytes(&account)
	require.NoError(t, err)

	state := newTrie()
	// an unrelated account so the proof has more than one node
	require.NoError(t, state.Update(crypto.Keccak256(common.Address{0x01}.Bytes()), []byte{0xc0}))
	require.NoError(t, state.Update(crypto.Keccak256(address[:]), enc))
	return &ContractState{
		Root:    state.Hash(),
		Account: verify.AccountProof{Address: address, Account: account, Proof: prove(t, state, crypto.Keccak256(address[:]))},
		storage: storage,
	}
}

// StorageProof proves slot in the contract storage, claiming it holds value.
func (s *ContractState) StorageProof(t require.TestingT, slot, value common.Hash) verify.StorageProof {
	return verify.StorageProof{Key: slot, Value: value, Proof: prove(t, s.storage, crypto.Keccak256(slot[:]))}
}
