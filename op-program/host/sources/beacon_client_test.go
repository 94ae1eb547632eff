package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/verify"
	"github.com/mantlenetworkio/op-celestia-host/op-service/testlog"
)

type fakeBeacon struct {
	genesisTime uint64
	sidecars    map[uint64][]*apiBlobSidecar
	specCalls   atomic.Int32
	lastSlot    atomic.Uint64
}

func (f *fakeBeacon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/"+genesisMethod:
		_, _ = w.Write([]byte(`{"data":{"genesis_time":"` + strconv.FormatUint(f.genesisTime, 10) + `"}}`))
	case r.URL.Path == "/"+specMethod:
		f.specCalls.Add(1)
		_, _ = w.Write([]byte(`{"data":{"SECONDS_PER_SLOT":"12"}}`))
	case strings.HasPrefix(r.URL.Path, "/"+sidecarsMethodBase):
		slot, err := strconv.ParseUint(strings.TrimPrefix(r.URL.Path, "/"+sidecarsMethodBase), 10, 64)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.lastSlot.Store(slot)
		data, ok := f.sidecars[slot]
		if !ok {
			http.Error(w, `{"code":404,"message":"block not found"}`, http.StatusNotFound)
			return
		}
		var out []*apiBlobSidecar
		for _, idx := range strings.Split(r.URL.Query().Get("indices"), ",") {
			for _, sc := range data {
				if sc.Index == idx {
					out = append(out, sc)
				}
			}
		}
		_ = json.NewEncoder(w).Encode(apiGetBlobSidecarsResponse{Data: out})
	default:
		http.NotFound(w, r)
	}
}

func testSidecar(index uint64, fill byte) *apiBlobSidecar {
	sc := &apiBlobSidecar{
		Index:         strconv.FormatUint(index, 10),
		Blob:          make(hexutil.Bytes, verify.BlobSize),
		KZGCommitment: make(hexutil.Bytes, verify.CommitmentSize),
		KZGProof:      make(hexutil.Bytes, verify.ProofSize),
	}
	sc.Blob[0] = fill
	sc.KZGCommitment[0] = fill
	sc.KZGProof[0] = fill
	return sc
}

func newTestBeacon(t *testing.T, fake *fakeBeacon) *BeaconClient {
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewBeaconClient(testlog.Logger(t, log.LevelDebug), srv.URL+"/")
}

func TestBeaconClientBlobSidecars(t *testing.T) {
	ctx := context.Background()
	genesis := uint64(1_000_000)

	t.Run("SlotAndOrder", func(t *testing.T) {
		fake := &fakeBeacon{
			genesisTime: genesis,
			sidecars: map[uint64][]*apiBlobSidecar{
				10: {testSidecar(0, 0xa0), testSidecar(1, 0xa1), testSidecar(2, 0xa2)},
			},
		}
		cl := newTestBeacon(t, fake)
		got, err := cl.BlobSidecars(ctx, genesis+10*12, []uint64{2, 0})
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, byte(0xa2), got[0].Blob[0])
		require.Equal(t, byte(0xa2), got[0].Commitment[0])
		require.Equal(t, byte(0xa0), got[1].Proof[0])
		require.Equal(t, uint64(10), fake.lastSlot.Load())

		_, err = cl.BlobSidecars(ctx, genesis+10*12+5, []uint64{1})
		require.NoError(t, err)
		require.Equal(t, uint64(10), fake.lastSlot.Load())
		require.Equal(t, int32(1), fake.specCalls.Load(), "slot timing is loaded once")
	})

	t.Run("MissingIndex", func(t *testing.T) {
		fake := &fakeBeacon{
			genesisTime: genesis,
			sidecars:    map[uint64][]*apiBlobSidecar{3: {testSidecar(0, 1)}},
		}
		cl := newTestBeacon(t, fake)
		_, err := cl.BlobSidecars(ctx, genesis+3*12, []uint64{0, 4})
		require.ErrorIs(t, err, preimage.ErrNotFound)
	})

	t.Run("UnknownSlot", func(t *testing.T) {
		fake := &fakeBeacon{genesisTime: genesis}
		cl := newTestBeacon(t, fake)
		_, err := cl.BlobSidecars(ctx, genesis+12, []uint64{0})
		require.ErrorIs(t, err, preimage.ErrNotFound)
	})

	t.Run("MalformedSidecar", func(t *testing.T) {
		short := testSidecar(0, 1)
		short.KZGProof = short.KZGProof[:10]
		fake := &fakeBeacon{
			genesisTime: genesis,
			sidecars:    map[uint64][]*apiBlobSidecar{1: {short}},
		}
		cl := newTestBeacon(t, fake)
		_, err := cl.BlobSidecars(ctx, genesis+12, []uint64{0})
		require.ErrorIs(t, err, preimage.ErrVerification)
	})

	t.Run("BeforeGenesis", func(t *testing.T) {
		cl := newTestBeacon(t, &fakeBeacon{genesisTime: genesis})
		_, err := cl.BlobSidecars(ctx, genesis-1, []uint64{0})
		require.Error(t, err)
		require.NotErrorIs(t, err, preimage.ErrNotFound)
	})
}
