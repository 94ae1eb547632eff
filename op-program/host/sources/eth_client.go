// Package sources holds the backend clients the host fetches pre-image data from.
//
// [EthClient] serves L1 and L2 execution data, [BeaconClient] serves L1 blob sidecars,
// [CelestiaClient] serves Celestia blobs and proofs and [BlobstreamAnchor] resolves Blobstream
// data commitments anchored on L1. The Retrying* wrappers add bounded retries to each.
package sources

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/trie"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
	hosttypes "github.com/mantlenetworkio/op-celestia-host/op-program/host/types"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/verify"
)

// DefaultHeadersCacheSize is the number of headers an EthClient keeps per session.
const DefaultHeadersCacheSize = 1000

// EthClient retrieves execution layer data and checks every result against the requested hash.
type EthClient struct {
	log    log.Logger
	rpc    *rpc.Client
	client *ethclient.Client

	// common.Hash -> *types.Header
	headersCache *lru.Cache[common.Hash, *types.Header]
}

var _ hosttypes.EthSource = (*EthClient)(nil)

func NewEthClient(logger log.Logger, client *rpc.Client, headersCacheSize int) (*EthClient, error) {
	headers, err := lru.New[common.Hash, *types.Header](headersCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create headers cache: %w", err)
	}
	return &EthClient{
		log:          logger,
		rpc:          client,
		client:       ethclient.NewClient(client),
		headersCache: headers,
	}, nil
}

// ChainID fetches the chain id of the internal RPC.
func (s *EthClient) ChainID(ctx context.Context) (*big.Int, error) {
	return s.client.ChainID(ctx)
}

func (s *EthClient) HeaderByHash(ctx context.Context, hash common.Hash) (*types.Header, error) {
	if header, ok := s.headersCache.Get(hash); ok {
		return header, nil
	}
	header, err := s.client.HeaderByHash(ctx, hash)
	if err != nil {
		return nil, maybeAsNotFound(err)
	}
	if got := header.Hash(); got != hash {
		return nil, fmt.Errorf("%w: fetched header hashes to %s, requested %s", preimage.ErrVerification, got, hash)
	}
	s.headersCache.Add(hash, header)
	return header, nil
}

// BlockByHash returns the header and transactions of a block. The transactions are checked
// against the header's transaction root.
func (s *EthClient) BlockByHash(ctx context.Context, hash common.Hash) (*types.Header, types.Transactions, error) {
	block, err := s.client.BlockByHash(ctx, hash)
	if err != nil {
		return nil, nil, maybeAsNotFound(err)
	}
	header := block.Header()
	if got := header.Hash(); got != hash {
		return nil, nil, fmt.Errorf("%w: fetched block hashes to %s, requested %s", preimage.ErrVerification, got, hash)
	}
	txs := block.Transactions()
	if root := types.DeriveSha(txs, trie.NewStackTrie(nil)); root != header.TxHash {
		return nil, nil, fmt.Errorf("%w: transactions of block %s derive root %s, header has %s", preimage.ErrVerification, hash, root, header.TxHash)
	}
	s.headersCache.Add(hash, header)
	return header, txs, nil
}

// ReceiptsByHash returns the header and receipts of a block. The receipts are checked against
// the header's receipt root.
func (s *EthClient) ReceiptsByHash(ctx context.Context, hash common.Hash) (*types.Header, types.Receipts, error) {
	header, err := s.HeaderByHash(ctx, hash)
	if err != nil {
		return nil, nil, fmt.Errorf("querying block: %w", err)
	}
	receipts, err := s.client.BlockReceipts(ctx, rpc.BlockNumberOrHashWithHash(hash, true))
	if err != nil {
		return nil, nil, maybeAsNotFound(err)
	}
	rs := types.Receipts(receipts)
	if root := types.DeriveSha(rs, trie.NewStackTrie(nil)); root != header.ReceiptHash {
		return nil, nil, fmt.Errorf("%w: receipts of block %s derive root %s, header has %s", preimage.ErrVerification, hash, root, header.ReceiptHash)
	}
	return header, rs, nil
}

// NodeByHash reads a trie node from the node database.
func (s *EthClient) NodeByHash(ctx context.Context, hash common.Hash) ([]byte, error) {
	return s.dbGet(ctx, hash, hash[:])
}

// CodeByHash reads contract code from the node database.
func (s *EthClient) CodeByHash(ctx context.Context, hash common.Hash) ([]byte, error) {
	return s.dbGet(ctx, hash, append(append([]byte{}, rawdb.CodePrefix...), hash[:]...))
}

func (s *EthClient) dbGet(ctx context.Context, hash common.Hash, key []byte) ([]byte, error) {
	var value hexutil.Bytes
	if err := s.rpc.CallContext(ctx, &value, "debug_dbGet", hexutil.Encode(key)); err != nil {
		return nil, maybeAsNotFound(err)
	}
	if got := crypto.Keccak256Hash(value); got != hash {
		return nil, fmt.Errorf("%w: value of %s hashes to %s", preimage.ErrVerification, hash, got)
	}
	return value, nil
}

type storageResult struct {
	Key   string          `json:"key"`
	Value *hexutil.Big    `json:"value"`
	Proof []hexutil.Bytes `json:"proof"`
}

type accountResult struct {
	Address      common.Address  `json:"address"`
	AccountProof []hexutil.Bytes `json:"accountProof"`
	Balance      *hexutil.Big    `json:"balance"`
	CodeHash     common.Hash     `json:"codeHash"`
	Nonce        hexutil.Uint64  `json:"nonce"`
	StorageHash  common.Hash     `json:"storageHash"`
	StorageProof []storageResult `json:"storageProof"`
}

func toNodes(proof []hexutil.Bytes) [][]byte {
	nodes := make([][]byte, len(proof))
	for i, node := range proof {
		nodes[i] = node
	}
	return nodes
}

// GetProof returns an account proof result, with any optional requested storage proofs.
// The retrieval does sanity-check that storage proofs for the expected keys are present in the response,
// but does not verify the result.
func (s *EthClient) GetProof(ctx context.Context, address common.Address, storage []common.Hash, blockHash common.Hash) (*verify.AccountProof, []verify.StorageProof, error) {
	var res *accountResult
	if err := s.rpc.CallContext(ctx, &res, "eth_getProof", address, storage, blockHash); err != nil {
		return nil, nil, maybeAsNotFound(err)
	}
	if res == nil {
		return nil, nil, fmt.Errorf("%w: no proof for %s at %s", preimage.ErrNotFound, address, blockHash)
	}
	if res.Address != address {
		return nil, nil, fmt.Errorf("proof is for account %s, requested %s", res.Address, address)
	}
	if len(res.StorageProof) != len(storage) {
		return nil, nil, fmt.Errorf("missing storage proof data, got %d proof entries but requested %d storage keys", len(res.StorageProof), len(storage))
	}
	if res.Balance == nil {
		return nil, nil, errors.New("proof result is missing the account balance")
	}
	balance, overflow := uint256.FromBig(res.Balance.ToInt())
	if overflow {
		return nil, nil, fmt.Errorf("account balance %s overflows", res.Balance)
	}
	account := &verify.AccountProof{
		Address: address,
		Account: types.StateAccount{
			Nonce:    uint64(res.Nonce),
			Balance:  balance,
			Root:     res.StorageHash,
			CodeHash: res.CodeHash.Bytes(),
		},
		Proof: toNodes(res.AccountProof),
	}
	proofs := make([]verify.StorageProof, len(storage))
	for i, key := range storage {
		if got := common.HexToHash(res.StorageProof[i].Key); got != key {
			return nil, nil, fmt.Errorf("unexpected storage proof key difference for entry %d: got %s but requested %s", i, got, key)
		}
		var value common.Hash
		if res.StorageProof[i].Value != nil {
			value = common.BigToHash(res.StorageProof[i].Value.ToInt())
		}
		proofs[i] = verify.StorageProof{Key: key, Value: value, Proof: toNodes(res.StorageProof[i].Proof)}
	}
	return account, proofs, nil
}

// FilterLogs and SubscribeFilterLogs make the client usable as a contract binding filterer.
func (s *EthClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return s.client.FilterLogs(ctx, q)
}

func (s *EthClient) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return s.client.SubscribeFilterLogs(ctx, q, ch)
}

func (s *EthClient) Close() {
	s.rpc.Close()
}
