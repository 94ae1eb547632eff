package sources

import (
	"context"
	"errors"

	"github.com/celestiaorg/celestia-openrpc/types/share"
	"github.com/celestiaorg/nmt"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/tendermint/tendermint/crypto/merkle"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
	hosttypes "github.com/mantlenetworkio/op-celestia-host/op-program/host/types"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/verify"
	"github.com/mantlenetworkio/op-celestia-host/op-service/retry"
)

// FetchMetricer records the outcome of backend requests.
type FetchMetricer interface {
	RecordFetch(source string, op string, attempts int, err error)
}

type noopFetchMetrics struct{}

func (noopFetchMetrics) RecordFetch(string, string, int, error) {}

// retrier runs backend requests with bounded retries. Not-found and verification failures
// are answers, not transient faults, and are returned without retrying. A FetchError from a
// nested retrier has already used up its attempts and is returned as is.
type retrier struct {
	logger      log.Logger
	source      string
	maxAttempts int
	strategy    retry.Strategy
	metrics     FetchMetricer
}

func newRetrier(logger log.Logger, source string, maxAttempts int, m FetchMetricer) retrier {
	if m == nil {
		m = noopFetchMetrics{}
	}
	return retrier{
		logger:      logger,
		source:      source,
		maxAttempts: maxAttempts,
		strategy:    retry.Exponential(),
		metrics:     m,
	}
}

func do[T any](ctx context.Context, r retrier, op string, fn func() (T, error), logCtx ...any) (T, error) {
	attempts := 0
	res, err := retry.Do(ctx, r.maxAttempts, r.strategy, func() (T, error) {
		attempts++
		res, err := fn()
		if err == nil {
			return res, nil
		}
		if errors.Is(err, preimage.ErrNotFound) || errors.Is(err, preimage.ErrVerification) || errors.Is(err, preimage.ErrFetch) {
			return res, retry.Unrecoverable(err)
		}
		r.logger.Warn("Failed to fetch from "+r.source, append([]any{"op", op, "attempt", attempts, "err", err}, logCtx...)...)
		return res, err
	})
	var failed *retry.ErrFailedPermanently
	if errors.As(err, &failed) {
		err = &FetchError{Source: r.source, Op: op, Err: failed}
	}
	r.metrics.RecordFetch(r.source, op, attempts, err)
	return res, err
}

type pair[A, B any] struct {
	a A
	b B
}

type RetryingEthSource struct {
	retrier
	source hosttypes.EthSource
}

var _ hosttypes.EthSource = (*RetryingEthSource)(nil)

func NewRetryingEthSource(logger log.Logger, name string, source hosttypes.EthSource, maxAttempts int, m FetchMetricer) *RetryingEthSource {
	return &RetryingEthSource{retrier: newRetrier(logger, name, maxAttempts, m), source: source}
}

func (s *RetryingEthSource) HeaderByHash(ctx context.Context, blockHash common.Hash) (*types.Header, error) {
	return do(ctx, s.retrier, "header", func() (*types.Header, error) {
		return s.source.HeaderByHash(ctx, blockHash)
	}, "hash", blockHash)
}

func (s *RetryingEthSource) BlockByHash(ctx context.Context, blockHash common.Hash) (*types.Header, types.Transactions, error) {
	res, err := do(ctx, s.retrier, "block", func() (pair[*types.Header, types.Transactions], error) {
		header, txs, err := s.source.BlockByHash(ctx, blockHash)
		return pair[*types.Header, types.Transactions]{header, txs}, err
	}, "hash", blockHash)
	return res.a, res.b, err
}

func (s *RetryingEthSource) ReceiptsByHash(ctx context.Context, blockHash common.Hash) (*types.Header, types.Receipts, error) {
	res, err := do(ctx, s.retrier, "receipts", func() (pair[*types.Header, types.Receipts], error) {
		header, receipts, err := s.source.ReceiptsByHash(ctx, blockHash)
		return pair[*types.Header, types.Receipts]{header, receipts}, err
	}, "hash", blockHash)
	return res.a, res.b, err
}

func (s *RetryingEthSource) NodeByHash(ctx context.Context, hash common.Hash) ([]byte, error) {
	return do(ctx, s.retrier, "node", func() ([]byte, error) {
		return s.source.NodeByHash(ctx, hash)
	}, "hash", hash)
}

func (s *RetryingEthSource) CodeByHash(ctx context.Context, hash common.Hash) ([]byte, error) {
	return do(ctx, s.retrier, "code", func() ([]byte, error) {
		return s.source.CodeByHash(ctx, hash)
	}, "hash", hash)
}

func (s *RetryingEthSource) GetProof(ctx context.Context, address common.Address, storage []common.Hash, blockHash common.Hash) (*verify.AccountProof, []verify.StorageProof, error) {
	res, err := do(ctx, s.retrier, "proof", func() (pair[*verify.AccountProof, []verify.StorageProof], error) {
		account, slots, err := s.source.GetProof(ctx, address, storage, blockHash)
		return pair[*verify.AccountProof, []verify.StorageProof]{account, slots}, err
	}, "address", address, "block", blockHash)
	return res.a, res.b, err
}

type RetryingBlobSource struct {
	retrier
	source hosttypes.BlobSource
}

var _ hosttypes.BlobSource = (*RetryingBlobSource)(nil)

func NewRetryingBlobSource(logger log.Logger, source hosttypes.BlobSource, maxAttempts int, m FetchMetricer) *RetryingBlobSource {
	return &RetryingBlobSource{retrier: newRetrier(logger, "beacon", maxAttempts, m), source: source}
}

func (s *RetryingBlobSource) BlobSidecars(ctx context.Context, timestamp uint64, indices []uint64) ([]*verify.BlobSidecar, error) {
	return do(ctx, s.retrier, "sidecars", func() ([]*verify.BlobSidecar, error) {
		return s.source.BlobSidecars(ctx, timestamp, indices)
	}, "timestamp", timestamp, "indices", indices)
}

type RetryingDASource struct {
	retrier
	source hosttypes.DASource
}

var _ hosttypes.DASource = (*RetryingDASource)(nil)

func NewRetryingDASource(logger log.Logger, source hosttypes.DASource, maxAttempts int, m FetchMetricer) *RetryingDASource {
	return &RetryingDASource{retrier: newRetrier(logger, "celestia", maxAttempts, m), source: source}
}

func (s *RetryingDASource) Blob(ctx context.Context, height uint64, ns share.Namespace, commitment []byte) (*hosttypes.DABlob, error) {
	return do(ctx, s.retrier, "blob", func() (*hosttypes.DABlob, error) {
		return s.source.Blob(ctx, height, ns, commitment)
	}, "height", height)
}

func (s *RetryingDASource) BlobProof(ctx context.Context, height uint64, ns share.Namespace, commitment []byte) ([]*nmt.Proof, error) {
	return do(ctx, s.retrier, "blob_proof", func() ([]*nmt.Proof, error) {
		return s.source.BlobProof(ctx, height, ns, commitment)
	}, "height", height)
}

func (s *RetryingDASource) Header(ctx context.Context, height uint64) (*hosttypes.DAHeader, error) {
	return do(ctx, s.retrier, "header", func() (*hosttypes.DAHeader, error) {
		return s.source.Header(ctx, height)
	}, "height", height)
}

func (s *RetryingDASource) DataRootInclusionProof(ctx context.Context, height, start, end uint64) (*merkle.Proof, error) {
	return do(ctx, s.retrier, "data_root_proof", func() (*merkle.Proof, error) {
		return s.source.DataRootInclusionProof(ctx, height, start, end)
	}, "height", height, "start", start, "end", end)
}

type RetryingDataCommitmentLogs struct {
	retrier
	source DataCommitmentLogs
}

var _ DataCommitmentLogs = (*RetryingDataCommitmentLogs)(nil)

func NewRetryingDataCommitmentLogs(logger log.Logger, source DataCommitmentLogs, maxAttempts int, m FetchMetricer) *RetryingDataCommitmentLogs {
	return &RetryingDataCommitmentLogs{retrier: newRetrier(logger, "blobstream", maxAttempts, m), source: source}
}

func (s *RetryingDataCommitmentLogs) DataCommitments(ctx context.Context, from, to uint64) ([]hosttypes.DataCommitment, error) {
	return do(ctx, s.retrier, "logs", func() ([]hosttypes.DataCommitment, error) {
		return s.source.DataCommitments(ctx, from, to)
	}, "from", from, "to", to)
}
