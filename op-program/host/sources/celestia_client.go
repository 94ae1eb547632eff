package sources

import (
	"context"
	"errors"
	"fmt"

	openrpc "github.com/celestiaorg/celestia-openrpc"
	"github.com/celestiaorg/celestia-openrpc/types/share"
	"github.com/celestiaorg/nmt"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/tendermint/tendermint/crypto/merkle"
	"github.com/tendermint/tendermint/rpc/client/http"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
	hosttypes "github.com/mantlenetworkio/op-celestia-host/op-program/host/types"
)

// CelestiaClient reads blobs and their proofs from a Celestia node, and data root inclusion
// proofs from celestia-core.
type CelestiaClient struct {
	log  log.Logger
	node *openrpc.Client
	core *http.HTTP
}

var _ hosttypes.DASource = (*CelestiaClient)(nil)

func NewCelestiaClient(ctx context.Context, logger log.Logger, rpc, coreRPC, authToken string) (*CelestiaClient, error) {
	node, err := openrpc.NewClient(ctx, rpc, authToken)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to celestia node at %s: %w", rpc, err)
	}
	core, err := http.New(coreRPC, "/websocket")
	if err != nil {
		node.Close()
		return nil, fmt.Errorf("failed to create celestia-core client for %s: %w", coreRPC, err)
	}
	if err := core.Start(); err != nil {
		node.Close()
		return nil, fmt.Errorf("failed to start celestia-core client: %w", err)
	}
	return &CelestiaClient{log: logger, node: node, core: core}, nil
}

func (c *CelestiaClient) Blob(ctx context.Context, height uint64, ns share.Namespace, commitment []byte) (*hosttypes.DABlob, error) {
	b, err := c.node.Blob.Get(ctx, height, ns, commitment)
	if err != nil {
		return nil, maybeAsNotFound(err)
	}
	if b == nil {
		return nil, fmt.Errorf("%w: blob %x at height %d", preimage.ErrNotFound, commitment, height)
	}
	if b.Index < 0 {
		return nil, fmt.Errorf("unexpected blob index %d", b.Index)
	}
	return &hosttypes.DABlob{Data: b.Data, Index: uint64(b.Index)}, nil
}

func (c *CelestiaClient) BlobProof(ctx context.Context, height uint64, ns share.Namespace, commitment []byte) ([]*nmt.Proof, error) {
	proof, err := c.node.Blob.GetProof(ctx, height, ns, commitment)
	if err != nil {
		return nil, maybeAsNotFound(err)
	}
	if proof == nil || len(*proof) == 0 {
		return nil, fmt.Errorf("%w: no share proofs for blob %x at height %d", preimage.ErrNotFound, commitment, height)
	}
	return *proof, nil
}

func (c *CelestiaClient) Header(ctx context.Context, height uint64) (*hosttypes.DAHeader, error) {
	header, err := c.node.Header.GetByHeight(ctx, height)
	if err != nil {
		return nil, maybeAsNotFound(err)
	}
	if header.DAH == nil {
		return nil, errors.New("header has no data availability header")
	}
	return &hosttypes.DAHeader{
		DataHash:    common.BytesToHash(header.DataHash),
		RowRoots:    header.DAH.RowRoots,
		ColumnRoots: header.DAH.ColumnRoots,
	}, nil
}

func (c *CelestiaClient) DataRootInclusionProof(ctx context.Context, height, start, end uint64) (*merkle.Proof, error) {
	res, err := c.core.DataRootInclusionProof(ctx, height, start, end)
	if err != nil {
		return nil, maybeAsNotFound(err)
	}
	return &res.Proof, nil
}

func (c *CelestiaClient) Close() error {
	c.node.Close()
	return c.core.Stop()
}
