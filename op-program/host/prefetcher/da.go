package prefetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/celestiaorg/celestia-openrpc/types/blob"
	"github.com/celestiaorg/nmt"
	"golang.org/x/sync/errgroup"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/celestia"
	hosttypes "github.com/mantlenetworkio/op-celestia-host/op-program/host/types"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/verify"
)

var ErrDAUnavailable = errors.New("celestia DA is not configured")

// prefetchDA serves a celestia-da hint. The blob is only cached once it is proven to be part of
// a data root that the Blobstream contract committed to in the state of the trusted L1 head:
//
//	L1 head state -> data commitment -> data root tuple -> DA header -> row roots -> shares -> blob
//
// The blob data is stored under the pointer's DA key and the proof bundle under its bundle key.
func (p *Prefetcher) prefetchDA(ctx context.Context, payload []byte) error {
	ptr, err := celestia.UnmarshalBlobPointer(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", preimage.ErrProtocol, err)
	}
	if ptr.Namespace == nil {
		ptr.Namespace = p.namespace
	}
	if p.da == nil || p.anchor == nil || ptr.Namespace == nil {
		return fmt.Errorf("%w: cannot serve blob at height %d", ErrDAUnavailable, ptr.Height)
	}
	if _, err := p.cache.Get(ptr.BundleKey()); err == nil {
		if _, err := p.cache.Get(ptr.Key()); err == nil {
			return nil
		}
	}

	var (
		commitment *hosttypes.DataCommitment
		header     *hosttypes.DAHeader
		daBlob     *hosttypes.DABlob
		proofs     []*nmt.Proof
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		commitment, err = p.anchor.DataCommitment(gctx, ptr.Height)
		return err
	})
	g.Go(func() (err error) {
		header, err = p.da.Header(gctx, ptr.Height)
		return err
	})
	g.Go(func() (err error) {
		daBlob, err = p.da.Blob(gctx, ptr.Height, ptr.Namespace, ptr.Commitment[:])
		return err
	})
	g.Go(func() (err error) {
		proofs, err = p.da.BlobProof(gctx, ptr.Height, ptr.Namespace, ptr.Commitment[:])
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to fetch blob at height %d: %w", ptr.Height, err)
	}
	if !commitment.Covers(ptr.Height) {
		return fmt.Errorf("%w: data commitment %d covers [%d, %d), not height %d",
			preimage.ErrVerification, commitment.Nonce, commitment.StartBlock, commitment.EndBlock, ptr.Height)
	}

	dataRoot := verify.DataRootFromDAH(header.RowRoots, header.ColumnRoots)
	if dataRoot != header.DataHash {
		return fmt.Errorf("%w: DA header at height %d has data hash %s but its roots hash to %s",
			preimage.ErrVerification, ptr.Height, header.DataHash, dataRoot)
	}
	tupleProof, err := p.da.DataRootInclusionProof(ctx, ptr.Height, commitment.StartBlock, commitment.EndBlock)
	if err != nil {
		return fmt.Errorf("failed to fetch data root inclusion proof at height %d: %w", ptr.Height, err)
	}
	inclusion, err := verify.ProofFromTendermint(verify.EncodeDataRootTuple(ptr.Height, dataRoot), commitment.Commitment, tupleProof)
	if err != nil {
		return fmt.Errorf("%w: %w", preimage.ErrVerification, err)
	}
	if err := verify.VerifyDataRootInclusion(ptr.Height, dataRoot, inclusion, commitment.Commitment); err != nil {
		return err
	}

	if len(header.RowRoots) == 0 {
		return fmt.Errorf("%w: DA header at height %d has no rows", preimage.ErrVerification, ptr.Height)
	}
	startRow := daBlob.Index / uint64(len(header.RowRoots))
	shares, err := celestia.SplitBlob(ptr.Namespace, daBlob.Data)
	if err != nil {
		return fmt.Errorf("%w: %w", preimage.ErrVerification, err)
	}
	if !verify.VerifyShares(ptr.Namespace, shares, proofs, header.RowRoots, int(startRow)) {
		return fmt.Errorf("%w: shares of blob %s are not included in the DA header at height %d",
			preimage.ErrVerification, ptr.Commitment, ptr.Height)
	}
	if err := checkBlobCommitment(ptr, daBlob.Data); err != nil {
		return err
	}

	bundle := &celestia.ProofBundle{
		Height:         ptr.Height,
		Namespace:      ptr.Namespace,
		Commitment:     ptr.Commitment,
		Data:           daBlob.Data,
		StartRow:       startRow,
		ShareProofs:    celestia.NewShareProofs(proofs),
		RowRoots:       header.RowRoots,
		ColumnRoots:    header.ColumnRoots,
		DataRoot:       dataRoot,
		ProofNonce:     commitment.Nonce,
		DataCommitment: commitment.Commitment,
		TupleProof: celestia.TupleProof{
			Index: uint64(tupleProof.Index),
			Total: uint64(tupleProof.Total),
			Aunts: tupleProof.Aunts,
		},
	}
	encoded, err := bundle.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode proof bundle: %w", err)
	}
	p.logger.Info("Verified celestia blob", "height", ptr.Height, "commitment", ptr.Commitment,
		"size", len(daBlob.Data), "nonce", commitment.Nonce, "rows", len(proofs))
	if err := p.cache.Put(ptr.Key(), daBlob.Data); err != nil {
		return err
	}
	return p.cache.Put(ptr.BundleKey(), encoded)
}

// checkBlobCommitment recomputes the share commitment of data and compares it to the pointer.
func checkBlobCommitment(ptr celestia.BlobPointer, data []byte) error {
	b, err := blob.NewBlobV0(ptr.Namespace, data)
	if err != nil {
		return fmt.Errorf("%w: cannot rebuild blob: %w", preimage.ErrVerification, err)
	}
	commitment, err := blob.CreateCommitment(b)
	if err != nil {
		return fmt.Errorf("%w: cannot compute blob commitment: %w", preimage.ErrVerification, err)
	}
	if !bytes.Equal(commitment, ptr.Commitment[:]) {
		return fmt.Errorf("%w: blob commits to %x, expected %s", preimage.ErrVerification, commitment, ptr.Commitment)
	}
	return nil
}
