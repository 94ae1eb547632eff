package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
	hosttypes "github.com/mantlenetworkio/op-celestia-host/op-program/host/types"
	"github.com/mantlenetworkio/op-celestia-host/op-service/retry"
	"github.com/mantlenetworkio/op-celestia-host/op-service/testlog"
)

type mockEthSource struct {
	hosttypes.EthSource
	mock.Mock
}

func (m *mockEthSource) NodeByHash(_ context.Context, hash common.Hash) ([]byte, error) {
	out := m.Called(hash)
	node, _ := out.Get(0).([]byte)
	return node, out.Error(1)
}

type recordingMetrics struct {
	attempts int
	err      error
}

func (r *recordingMetrics) RecordFetch(_ string, _ string, attempts int, err error) {
	r.attempts = attempts
	r.err = err
}

func newTestRetryingEth(t *testing.T, maxAttempts int) (*RetryingEthSource, *mockEthSource, *recordingMetrics) {
	src := new(mockEthSource)
	m := new(recordingMetrics)
	r := NewRetryingEthSource(testlog.Logger(t, log.LevelDebug), "l1", src, maxAttempts, m)
	r.strategy = retry.Fixed(time.Millisecond)
	return r, src, m
}

func TestRetryingEthSource(t *testing.T) {
	hash := common.Hash{0x01}
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		r, src, m := newTestRetryingEth(t, 3)
		src.On("NodeByHash", hash).Once().Return([]byte{1}, nil)
		got, err := r.NodeByHash(ctx, hash)
		require.NoError(t, err)
		require.Equal(t, []byte{1}, got)
		require.Equal(t, 1, m.attempts)
		src.AssertExpectations(t)
	})

	t.Run("RecoverAfterTransientError", func(t *testing.T) {
		r, src, m := newTestRetryingEth(t, 3)
		src.On("NodeByHash", hash).Once().Return(nil, errors.New("connection reset"))
		src.On("NodeByHash", hash).Once().Return([]byte{1}, nil)
		got, err := r.NodeByHash(ctx, hash)
		require.NoError(t, err)
		require.Equal(t, []byte{1}, got)
		require.Equal(t, 2, m.attempts)
		src.AssertExpectations(t)
	})

	t.Run("ExhaustedIsFetchError", func(t *testing.T) {
		r, src, m := newTestRetryingEth(t, 3)
		transient := errors.New("connection reset")
		src.On("NodeByHash", hash).Times(3).Return(nil, transient)
		_, err := r.NodeByHash(ctx, hash)
		require.ErrorIs(t, err, preimage.ErrFetch)
		require.ErrorIs(t, err, transient)
		var fetchErr *FetchError
		require.ErrorAs(t, err, &fetchErr)
		require.Equal(t, "l1", fetchErr.Source)
		require.Equal(t, "node", fetchErr.Op)
		require.Equal(t, 3, m.attempts)
		require.Equal(t, preimage.StatusFetchFailure, preimage.StatusForError(err))
		src.AssertExpectations(t)
	})

	t.Run("NotFoundIsNotRetried", func(t *testing.T) {
		r, src, m := newTestRetryingEth(t, 3)
		src.On("NodeByHash", hash).Once().Return(nil, preimage.ErrNotFound)
		_, err := r.NodeByHash(ctx, hash)
		require.ErrorIs(t, err, preimage.ErrNotFound)
		require.NotErrorIs(t, err, preimage.ErrFetch)
		require.Equal(t, 1, m.attempts)
		src.AssertExpectations(t)
	})

	t.Run("VerificationFailureIsNotRetried", func(t *testing.T) {
		r, src, m := newTestRetryingEth(t, 3)
		src.On("NodeByHash", hash).Once().Return(nil, preimage.ErrVerification)
		_, err := r.NodeByHash(ctx, hash)
		require.ErrorIs(t, err, preimage.ErrVerification)
		require.Equal(t, 1, m.attempts)
		src.AssertExpectations(t)
	})

	t.Run("NestedRetriesDoNotMultiply", func(t *testing.T) {
		inner, src, _ := newTestRetryingEth(t, 3)
		outerMetrics := new(recordingMetrics)
		outer := NewRetryingEthSource(testlog.Logger(t, log.LevelDebug), "outer", inner, 3, outerMetrics)
		outer.strategy = retry.Fixed(time.Millisecond)
		src.On("NodeByHash", hash).Return(nil, errors.New("connection reset"))
		_, err := outer.NodeByHash(ctx, hash)
		require.ErrorIs(t, err, preimage.ErrFetch)
		src.AssertNumberOfCalls(t, "NodeByHash", 3)
		require.Equal(t, 1, outerMetrics.attempts)
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		r, src, _ := newTestRetryingEth(t, 100)
		r.strategy = retry.Fixed(time.Hour)
		src.On("NodeByHash", hash).Return(nil, errors.New("connection reset"))
		cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		_, err := r.NodeByHash(cctx, hash)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.NotErrorIs(t, err, preimage.ErrFetch)
	})
}
