package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
	opmetrics "github.com/mantlenetworkio/op-celestia-host/op-service/metrics"
)

func TestMetrics(t *testing.T) {
	registry := opmetrics.NewRegistry()
	m := newMetrics(registry)

	m.RecordUp()
	m.RecordInfo("v1.0.0")

	done := m.RecordHint("l1-block-header")
	done(nil)
	done = m.RecordHint("celestia-da")
	done(fmt.Errorf("%w: bad share proof", preimage.ErrVerification))

	m.RecordPreimageRequest("keccak256", nil)
	m.RecordPreimageRequest("keccak256", preimage.ErrNotFound)
	m.RecordFallback("keccak256")
	m.RecordFetch("celestia", "blob", 3, fmt.Errorf("%w: gave up", preimage.ErrFetch))
	m.RecordFetch("l1", "header", 1, nil)
	m.RecordFetch("l1", "header", 1, errors.New("boom"))

	snapshot := opmetrics.Gather(t, registry)
	ns := Namespace + "_"

	require.Equal(t, 1.0, snapshot.Counter(ns+"hints_total", map[string]string{"hint": "l1-block-header", "status": "ok"}))
	require.Equal(t, 1.0, snapshot.Counter(ns+"hints_total", map[string]string{"hint": "celestia-da", "status": "verification-failure"}))
	require.Equal(t, uint64(1), snapshot.HistogramCount(ns+"hint_duration_seconds", map[string]string{"hint": "celestia-da"}))
	require.Equal(t, 1.0, snapshot.Counter(ns+"preimage_requests_total", map[string]string{"kind": "keccak256", "status": "key-not-found"}))
	require.Equal(t, 1.0, snapshot.Counter(ns+"preimage_fallbacks_total", map[string]string{"kind": "keccak256"}))
	require.Equal(t, 1.0, snapshot.Counter(ns+"fetches_total", map[string]string{"source": "celestia", "op": "blob", "status": "fetch-failure"}))
	require.Equal(t, 1.0, snapshot.Counter(ns+"fetches_total", map[string]string{"source": "l1", "op": "header", "status": "internal-error"}))
	require.Equal(t, uint64(2), snapshot.HistogramCount(ns+"fetch_attempts", map[string]string{"source": "l1", "op": "header"}))
}
