package types

import (
	"context"

	"github.com/celestiaorg/celestia-openrpc/types/share"
	"github.com/celestiaorg/nmt"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/tendermint/tendermint/crypto/merkle"

	"github.com/mantlenetworkio/op-celestia-host/op-program/host/verify"
)

// EthSource serves execution layer data. Every returned value is checked against the requested hash.
type EthSource interface {
	HeaderByHash(ctx context.Context, blockHash common.Hash) (*types.Header, error)
	BlockByHash(ctx context.Context, blockHash common.Hash) (*types.Header, types.Transactions, error)
	ReceiptsByHash(ctx context.Context, blockHash common.Hash) (*types.Header, types.Receipts, error)
	NodeByHash(ctx context.Context, hash common.Hash) ([]byte, error)
	CodeByHash(ctx context.Context, hash common.Hash) ([]byte, error)
	// GetProof returns unverified account and storage proofs at the given block.
	GetProof(ctx context.Context, address common.Address, storage []common.Hash, blockHash common.Hash) (*verify.AccountProof, []verify.StorageProof, error)
}

// BlobSource serves L1 blob sidecars from the beacon chain.
type BlobSource interface {
	// BlobSidecars returns the sidecars at the given blob indices of the block with the given timestamp.
	BlobSidecars(ctx context.Context, timestamp uint64, indices []uint64) ([]*verify.BlobSidecar, error)
}

// DABlob is a blob as returned by the Celestia node.
type DABlob struct {
	Data []byte
	// Index is the position of the blob's first share in the extended data square.
	Index uint64
}

// DAHeader is the data availability header of a Celestia block.
type DAHeader struct {
	DataHash    common.Hash
	RowRoots    [][]byte
	ColumnRoots [][]byte
}

// DASource serves Celestia blobs and the proofs tying them to a data root.
type DASource interface {
	Blob(ctx context.Context, height uint64, namespace share.Namespace, commitment []byte) (*DABlob, error)
	BlobProof(ctx context.Context, height uint64, namespace share.Namespace, commitment []byte) ([]*nmt.Proof, error)
	Header(ctx context.Context, height uint64) (*DAHeader, error)
	// DataRootInclusionProof proves the data root tuple at height in the commitment over [start, end).
	DataRootInclusionProof(ctx context.Context, height, start, end uint64) (*merkle.Proof, error)
}

// DataCommitment is a Blobstream data commitment over the Celestia blocks [StartBlock, EndBlock).
type DataCommitment struct {
	Nonce      uint64
	StartBlock uint64
	EndBlock   uint64
	Commitment common.Hash
}

func (d *DataCommitment) Covers(height uint64) bool {
	return height >= d.StartBlock && height < d.EndBlock
}

// AnchorSource resolves the Blobstream commitment covering a Celestia height.
// Returned commitments are proven against the trusted L1 head.
type AnchorSource interface {
	DataCommitment(ctx context.Context, height uint64) (*DataCommitment, error)
}
