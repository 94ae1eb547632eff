package sources

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/go-resty/resty/v2"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
	hosttypes "github.com/mantlenetworkio/op-celestia-host/op-program/host/types"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/verify"
)

const (
	genesisMethod      = "eth/v1/beacon/genesis"
	specMethod         = "eth/v1/config/spec"
	sidecarsMethodBase = "eth/v1/beacon/blob_sidecars/"
)

type apiGenesisResponse struct {
	Data struct {
		GenesisTime string `json:"genesis_time"`
	} `json:"data"`
}

type apiConfigResponse struct {
	Data struct {
		SecondsPerSlot string `json:"SECONDS_PER_SLOT"`
	} `json:"data"`
}

type apiBlobSidecar struct {
	Index         string        `json:"index"`
	Blob          hexutil.Bytes `json:"blob"`
	KZGCommitment hexutil.Bytes `json:"kzg_commitment"`
	KZGProof      hexutil.Bytes `json:"kzg_proof"`
}

type apiGetBlobSidecarsResponse struct {
	Data []*apiBlobSidecar `json:"data"`
}

// BeaconClient fetches blob sidecars from the beacon node REST API.
type BeaconClient struct {
	log    log.Logger
	client *resty.Client

	timeMu         sync.Mutex
	genesisTime    uint64
	secondsPerSlot uint64
}

var _ hosttypes.BlobSource = (*BeaconClient)(nil)

func NewBeaconClient(logger log.Logger, addr string) *BeaconClient {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(addr, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(30 * time.Second)
	return &BeaconClient{log: logger, client: client}
}

func (cl *BeaconClient) get(ctx context.Context, method string, query map[string]string, dest any) error {
	resp, err := cl.client.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetResult(dest).
		Get("/" + method)
	if err != nil {
		return fmt.Errorf("http Get failed: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%w: %s", preimage.ErrNotFound, method)
	}
	if resp.IsError() {
		return fmt.Errorf("failed request with status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// slotTimes loads and remembers the genesis time and slot duration of the beacon chain.
func (cl *BeaconClient) slotTimes(ctx context.Context) (uint64, uint64, error) {
	cl.timeMu.Lock()
	defer cl.timeMu.Unlock()
	if cl.secondsPerSlot != 0 {
		return cl.genesisTime, cl.secondsPerSlot, nil
	}
	var genesis apiGenesisResponse
	if err := cl.get(ctx, genesisMethod, nil, &genesis); err != nil {
		return 0, 0, fmt.Errorf("failed to fetch genesis: %w", err)
	}
	var spec apiConfigResponse
	if err := cl.get(ctx, specMethod, nil, &spec); err != nil {
		return 0, 0, fmt.Errorf("failed to fetch config spec: %w", err)
	}
	genesisTime, err := strconv.ParseUint(genesis.Data.GenesisTime, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid genesis time %q: %w", genesis.Data.GenesisTime, err)
	}
	secondsPerSlot, err := strconv.ParseUint(spec.Data.SecondsPerSlot, 10, 64)
	if err != nil || secondsPerSlot == 0 {
		return 0, 0, fmt.Errorf("invalid seconds per slot %q", spec.Data.SecondsPerSlot)
	}
	cl.genesisTime, cl.secondsPerSlot = genesisTime, secondsPerSlot
	return genesisTime, secondsPerSlot, nil
}

// BlobSidecars fetches the sidecars at the given indices of the beacon block at timestamp.
// The sidecars are returned in the order of indices but are not verified.
func (cl *BeaconClient) BlobSidecars(ctx context.Context, timestamp uint64, indices []uint64) ([]*verify.BlobSidecar, error) {
	genesisTime, secondsPerSlot, err := cl.slotTimes(ctx)
	if err != nil {
		return nil, err
	}
	if timestamp < genesisTime {
		return nil, fmt.Errorf("provided timestamp (%v) precedes genesis time (%v)", timestamp, genesisTime)
	}
	slot := (timestamp - genesisTime) / secondsPerSlot

	strIndices := make([]string, len(indices))
	for i, idx := range indices {
		strIndices[i] = strconv.FormatUint(idx, 10)
	}
	var resp apiGetBlobSidecarsResponse
	query := map[string]string{"indices": strings.Join(strIndices, ",")}
	if err := cl.get(ctx, sidecarsMethodBase+strconv.FormatUint(slot, 10), query, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch blob sidecars for slot %v: %w", slot, err)
	}
	return sidecarsInOrder(resp.Data, indices)
}

func sidecarsInOrder(data []*apiBlobSidecar, indices []uint64) ([]*verify.BlobSidecar, error) {
	byIndex := make(map[uint64]*apiBlobSidecar, len(data))
	for _, sc := range data {
		idx, err := strconv.ParseUint(sc.Index, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid sidecar index %q: %w", sc.Index, err)
		}
		byIndex[idx] = sc
	}
	out := make([]*verify.BlobSidecar, len(indices))
	for i, idx := range indices {
		sc, ok := byIndex[idx]
		if !ok {
			return nil, fmt.Errorf("%w: no blob sidecar at index %d", preimage.ErrNotFound, idx)
		}
		if len(sc.Blob) != verify.BlobSize || len(sc.KZGCommitment) != verify.CommitmentSize || len(sc.KZGProof) != verify.ProofSize {
			return nil, fmt.Errorf("%w: malformed blob sidecar at index %d", preimage.ErrVerification, idx)
		}
		sidecar := new(verify.BlobSidecar)
		copy(sidecar.Blob[:], sc.Blob)
		copy(sidecar.Commitment[:], sc.KZGCommitment)
		copy(sidecar.Proof[:], sc.KZGProof)
		out[i] = sidecar
	}
	return out, nil
}
