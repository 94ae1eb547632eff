package sources

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	blobstreamx "github.com/succinctlabs/blobstreamx/bindings"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
	hosttypes "github.com/mantlenetworkio/op-celestia-host/op-program/host/types"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/verify"
)

// FilterBlockRange is the widest log query made at once. Geth limits filters to 5000 blocks by default.
const FilterBlockRange = 5000

// DataCommitmentLogs lists the DataCommitmentStored events emitted in an inclusive L1 block range.
type DataCommitmentLogs interface {
	DataCommitments(ctx context.Context, from, to uint64) ([]hosttypes.DataCommitment, error)
}

type blobstreamLogs struct {
	filterer *blobstreamx.BlobstreamXFilterer
}

// NewBlobstreamLogs reads DataCommitmentStored events of the Blobstream contract at address.
func NewBlobstreamLogs(address common.Address, filterer bind.ContractFilterer) (DataCommitmentLogs, error) {
	f, err := blobstreamx.NewBlobstreamXFilterer(address, filterer)
	if err != nil {
		return nil, fmt.Errorf("failed to bind blobstream contract: %w", err)
	}
	return &blobstreamLogs{filterer: f}, nil
}

func (b *blobstreamLogs) DataCommitments(ctx context.Context, from, to uint64) ([]hosttypes.DataCommitment, error) {
	it, err := b.filterer.FilterDataCommitmentStored(&bind.FilterOpts{Start: from, End: &to, Context: ctx}, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to filter data commitments in [%d, %d]: %w", from, to, err)
	}
	defer it.Close()
	var out []hosttypes.DataCommitment
	for it.Next() {
		ev := it.Event
		if !ev.ProofNonce.IsUint64() {
			return nil, fmt.Errorf("proof nonce %s overflows", ev.ProofNonce)
		}
		out = append(out, hosttypes.DataCommitment{
			Nonce:      ev.ProofNonce.Uint64(),
			StartBlock: ev.StartBlock,
			EndBlock:   ev.EndBlock,
			Commitment: ev.DataCommitment,
		})
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("failed to read data commitment logs: %w", err)
	}
	return out, nil
}

// BlobstreamAnchor finds the Blobstream data commitment covering a Celestia height and proves it
// is stored in the Blobstream contract in the state of the trusted L1 head.
type BlobstreamAnchor struct {
	log     log.Logger
	l1      hosttypes.EthSource
	logs    DataCommitmentLogs
	address common.Address
	l1Head  common.Hash
}

var _ hosttypes.AnchorSource = (*BlobstreamAnchor)(nil)

func NewBlobstreamAnchor(logger log.Logger, l1 hosttypes.EthSource, logs DataCommitmentLogs, address common.Address, l1Head common.Hash) *BlobstreamAnchor {
	return &BlobstreamAnchor{
		log:     logger,
		l1:      l1,
		logs:    logs,
		address: address,
		l1Head:  l1Head,
	}
}

func (a *BlobstreamAnchor) DataCommitment(ctx context.Context, height uint64) (*hosttypes.DataCommitment, error) {
	head, err := a.l1.HeaderByHash(ctx, a.l1Head)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch L1 head %s: %w", a.l1Head, err)
	}
	event, err := a.find(ctx, height, head.Number.Uint64())
	if err != nil {
		return nil, err
	}

	slot := verify.DataCommitmentSlot(event.Nonce)
	account, storage, err := a.l1.GetProof(ctx, a.address, []common.Hash{slot}, a.l1Head)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch proof of data commitment %d: %w", event.Nonce, err)
	}
	if len(storage) != 1 {
		return nil, fmt.Errorf("expected 1 storage proof, got %d", len(storage))
	}
	proof := &verify.DataCommitmentProof{
		Nonce:      event.Nonce,
		Commitment: event.Commitment,
		Account:    *account,
		Storage:    storage[0],
	}
	if err := verify.VerifyDataCommitment(a.l1Head, head, a.address, proof); err != nil {
		return nil, fmt.Errorf("data commitment %d for height %d: %w", event.Nonce, height, err)
	}
	a.log.Debug("Anchored data commitment", "height", height, "nonce", event.Nonce, "start", event.StartBlock, "end", event.EndBlock, "commitment", event.Commitment)
	return event, nil
}

// find scans the L1 logs backwards from the L1 head, one window at a time, for the commitment covering height.
func (a *BlobstreamAnchor) find(ctx context.Context, height uint64, headNumber uint64) (*hosttypes.DataCommitment, error) {
	end := headNumber
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var start uint64
		if end >= FilterBlockRange {
			start = end - FilterBlockRange + 1
		}
		events, err := a.logs.DataCommitments(ctx, start, end)
		if err != nil {
			return nil, err
		}
		// latest event in the window first
		for i := len(events) - 1; i >= 0; i-- {
			if events[i].Covers(height) {
				a.log.Info("Found data root submission event", "proof_nonce", events[i].Nonce, "start", events[i].StartBlock, "end", events[i].EndBlock)
				return &events[i], nil
			}
		}
		if start == 0 {
			return nil, fmt.Errorf("%w: no blobstream data commitment covers celestia height %d", preimage.ErrNotFound, height)
		}
		end = start - 1
	}
}
