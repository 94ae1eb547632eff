package prefetcher

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/celestiaorg/celestia-openrpc/types/share"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/kvstore"
	hosttypes "github.com/mantlenetworkio/op-celestia-host/op-program/host/types"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/verify"
)

var (
	precompileSuccess = [1]byte{1}
	precompileFailure = [1]byte{0}

	ErrUnsupportedChain = fmt.Errorf("%w: unsupported chain id", preimage.ErrProtocol)
)

// L2ToL1MessagePasserAddr is the predeploy whose storage root is committed to by output roots.
var L2ToL1MessagePasserAddr = common.HexToAddress("0x4200000000000000000000000000000000000016")

var acceleratedPrecompiles = []common.Address{
	common.BytesToAddress([]byte{0x1}),  // ecrecover
	common.BytesToAddress([]byte{0x8}),  // bn256Pairing
	common.BytesToAddress([]byte{0x0a}), // KZG Point Evaluation
	common.BytesToAddress([]byte{0x0b}), // BLS12-381 G1 add
	common.BytesToAddress([]byte{0x0c}), // BLS12-381 G1 multi-scalar-multiply
	common.BytesToAddress([]byte{0x0d}), // BLS12-381 G2 add
	common.BytesToAddress([]byte{0x0e}), // BLS12-381 G2 multi-scalar-multiply
	common.BytesToAddress([]byte{0x0f}), // BLS12-381 pairing check
	common.BytesToAddress([]byte{0x10}), // BLS12-381 hash-to-g1
	common.BytesToAddress([]byte{0x11}), // BLS12-381 hash-to-g2
}

type Metricer interface {
	RecordHint(name string) (onDone func(err error))
	RecordFallback(kind string)
}

type Sources struct {
	L1      hosttypes.EthSource
	L1Blobs hosttypes.BlobSource
	L2      hosttypes.EthSource
	// DA and Anchor are nil when Celestia DA is not configured.
	DA     hosttypes.DASource
	Anchor hosttypes.AnchorSource
}

// Prefetcher routes hints to the backends and populates the session cache with verified preimages.
type Prefetcher struct {
	logger    log.Logger
	l1        hosttypes.EthSource
	l1Blobs   hosttypes.BlobSource
	l2        hosttypes.EthSource
	da        hosttypes.DASource
	anchor    hosttypes.AnchorSource
	cache     *kvstore.Cache
	metrics   Metricer
	l2ChainID uint64
	l2Head    common.Hash
	namespace share.Namespace

	mu        sync.Mutex
	lastHint  string
	completed map[string]struct{}
}

func NewPrefetcher(
	logger log.Logger,
	srcs Sources,
	cache *kvstore.Cache,
	m Metricer,
	l2ChainID uint64,
	l2Head common.Hash,
	namespace share.Namespace,
) *Prefetcher {
	return &Prefetcher{
		logger:    logger,
		l1:        srcs.L1,
		l1Blobs:   srcs.L1Blobs,
		l2:        srcs.L2,
		da:        srcs.DA,
		anchor:    srcs.Anchor,
		cache:     cache,
		metrics:   m,
		l2ChainID: l2ChainID,
		l2Head:    l2Head,
		namespace: namespace,
		completed: make(map[string]struct{}),
	}
}

// Hint fetches, verifies and caches everything the hint names before returning.
// Unknown hints are ignored. A hint whose data does not exist is remembered and
// replayed by the next GetPreimage that misses the cache.
func (p *Prefetcher) Hint(ctx context.Context, hint string) error {
	p.logger.Trace("Received hint", "hint", hint)
	h, err := preimage.ParseHint(hint)
	if err != nil {
		return fmt.Errorf("%w: %w", preimage.ErrProtocol, err)
	}
	if !knownHint(h.Name) {
		p.logger.Debug("Ignoring unknown hint", "type", h.Name)
		return nil
	}
	if p.isCompleted(h.String()) {
		return nil
	}
	p.setLastHint(h.String())
	err = p.prefetch(ctx, h)
	if errors.Is(err, preimage.ErrNotFound) {
		p.logger.Warn("Hinted data not found", "type", h.Name, "err", err)
		return nil
	}
	return err
}

// GetPreimage returns the cached value of key. On a miss the last unfinished hint is replayed,
// and keccak256 keys are fetched by hash from the L1 and L2 sources as a last resort.
func (p *Prefetcher) GetPreimage(ctx context.Context, key preimage.Key) ([]byte, error) {
	p.logger.Trace("Pre-image requested", "key", key)
	value, err := p.cache.Get(key)
	if !errors.Is(err, kvstore.ErrNotFound) {
		return value, err
	}
	if hint := p.pendingHint(); hint != "" {
		p.logger.Debug("Replaying hint for missing pre-image", "hint", hint, "key", key)
		h, err := preimage.ParseHint(hint)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", preimage.ErrProtocol, err)
		}
		if err := p.prefetch(ctx, h); err != nil && !errors.Is(err, preimage.ErrNotFound) {
			return nil, fmt.Errorf("prefetch failed: %w", err)
		}
		if value, err := p.cache.Get(key); err == nil {
			return value, nil
		}
	}
	if key.Kind != preimage.Keccak256KeyKind {
		return nil, fmt.Errorf("%w: %s", preimage.ErrNotFound, key)
	}
	p.metrics.RecordFallback(key.Kind.String())
	p.logger.Debug("Fetching pre-image by hash", "key", key)
	return p.cache.GetOrFetch(ctx, key, func(ctx context.Context) ([]byte, error) {
		return p.fetchByHash(ctx, key.Digest)
	})
}

// fetchByHash asks every source that can serve a keccak256 preimage, in order, until one has it.
// The cache checks the value against the hash before storing it.
func (p *Prefetcher) fetchByHash(ctx context.Context, hash common.Hash) ([]byte, error) {
	type lookup struct {
		name  string
		fetch func(ctx context.Context, hash common.Hash) ([]byte, error)
	}
	var lookups []lookup
	if p.l1 != nil {
		lookups = append(lookups, lookup{"l1 header", headerRLP(p.l1)})
	}
	if p.l2 != nil {
		lookups = append(lookups,
			lookup{"l2 header", headerRLP(p.l2)},
			lookup{"l2 state node", p.l2.NodeByHash},
			lookup{"l2 code", p.l2.CodeByHash})
	}
	if p.l1 != nil {
		lookups = append(lookups,
			lookup{"l1 state node", p.l1.NodeByHash},
			lookup{"l1 code", p.l1.CodeByHash})
	}
	for _, l := range lookups {
		value, err := l.fetch(ctx, hash)
		if err == nil {
			p.logger.Debug("Found pre-image by hash", "hash", hash, "source", l.name)
			return value, nil
		}
		if !errors.Is(err, preimage.ErrNotFound) {
			return nil, fmt.Errorf("failed to fetch %s %s: %w", l.name, hash, err)
		}
	}
	return nil, fmt.Errorf("%w: no source has pre-image of %s", preimage.ErrNotFound, hash)
}

func headerRLP(source hosttypes.EthSource) func(ctx context.Context, hash common.Hash) ([]byte, error) {
	return func(ctx context.Context, hash common.Hash) ([]byte, error) {
		header, err := source.HeaderByHash(ctx, hash)
		if err != nil {
			return nil, err
		}
		return rlp.EncodeToBytes(header)
	}
}

func (p *Prefetcher) isCompleted(hint string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.completed[hint]
	return ok
}

func (p *Prefetcher) setLastHint(hint string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastHint = hint
}

func (p *Prefetcher) pendingHint() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.completed[p.lastHint]; ok {
		return ""
	}
	return p.lastHint
}

func (p *Prefetcher) complete(hint string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed[hint] = struct{}{}
	if p.lastHint == hint {
		p.lastHint = ""
	}
}

func knownHint(name string) bool {
	switch name {
	case HintL1BlockHeader, HintL1Transactions, HintL1Receipts, HintL1Blob, HintL1Precompile, HintL1PrecompileV2,
		HintL2BlockHeader, HintL2Transactions, HintL2Receipts, HintL2StateNode, HintL2Code, HintL2Output,
		HintCelestiaDA:
		return true
	}
	return false
}

// prefetch runs the route of a hint and marks the hint completed once everything is cached.
func (p *Prefetcher) prefetch(ctx context.Context, h preimage.Hint) error {
	p.logger.Debug("Prefetching", "type", h.Name, "bytes", hexutil.Bytes(h.Payload))
	onDone := p.metrics.RecordHint(h.Name)
	err := p.route(ctx, h)
	onDone(err)
	if err != nil {
		return err
	}
	p.complete(h.String())
	return nil
}

func (p *Prefetcher) route(ctx context.Context, h preimage.Hint) error {
	switch h.Name {
	case HintL1BlockHeader:
		hash, err := parseHash(h)
		if err != nil {
			return err
		}
		return p.prefetchHeader(ctx, p.l1, hash)
	case HintL1Transactions:
		hash, err := parseHash(h)
		if err != nil {
			return err
		}
		return p.prefetchTransactions(ctx, p.l1, hash)
	case HintL1Receipts:
		hash, err := parseHash(h)
		if err != nil {
			return err
		}
		return p.prefetchReceipts(ctx, p.l1, hash)
	case HintL1Blob:
		return p.prefetchBlob(ctx, h.Payload)
	case HintL1Precompile:
		if len(h.Payload) < 20 {
			return malformed(h.Name, h.Payload)
		}
		return p.prefetchPrecompile(h.Payload, h.Payload[20:])
	case HintL1PrecompileV2:
		// The required gas at [20:28] is enforced by the guest and the on-chain oracle, not the host.
		if len(h.Payload) < 28 {
			return malformed(h.Name, h.Payload)
		}
		return p.prefetchPrecompile(h.Payload, h.Payload[28:])
	case HintL2BlockHeader:
		hash, err := p.parseL2Hash(h)
		if err != nil {
			return err
		}
		return p.prefetchHeader(ctx, p.l2, hash)
	case HintL2Transactions:
		hash, err := p.parseL2Hash(h)
		if err != nil {
			return err
		}
		return p.prefetchTransactions(ctx, p.l2, hash)
	case HintL2Receipts:
		hash, err := p.parseL2Hash(h)
		if err != nil {
			return err
		}
		return p.prefetchReceipts(ctx, p.l2, hash)
	case HintL2StateNode:
		hash, err := p.parseL2Hash(h)
		if err != nil {
			return err
		}
		if _, err := p.cache.GetOrFetch(ctx, preimage.Keccak256Key(hash), func(ctx context.Context) ([]byte, error) {
			return p.l2.NodeByHash(ctx, hash)
		}); err != nil {
			return fmt.Errorf("failed to fetch L2 state node %s: %w", hash, err)
		}
		return nil
	case HintL2Code:
		hash, err := p.parseL2Hash(h)
		if err != nil {
			return err
		}
		if _, err := p.cache.GetOrFetch(ctx, preimage.Keccak256Key(hash), func(ctx context.Context) ([]byte, error) {
			return p.l2.CodeByHash(ctx, hash)
		}); err != nil {
			return fmt.Errorf("failed to fetch L2 contract code %s: %w", hash, err)
		}
		return nil
	case HintL2Output:
		root, err := p.parseL2Hash(h)
		if err != nil {
			return err
		}
		return p.prefetchOutput(ctx, root)
	case HintCelestiaDA:
		return p.prefetchDA(ctx, h.Payload)
	}
	return fmt.Errorf("unknown hint type: %v", h.Name)
}

func (p *Prefetcher) prefetchHeader(ctx context.Context, source hosttypes.EthSource, hash common.Hash) error {
	_, err := p.cache.GetOrFetch(ctx, preimage.Keccak256Key(hash), func(ctx context.Context) ([]byte, error) {
		header, err := source.HeaderByHash(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch block %s header: %w", hash, err)
		}
		return rlp.EncodeToBytes(header)
	})
	return err
}

func (p *Prefetcher) prefetchTransactions(ctx context.Context, source hosttypes.EthSource, hash common.Hash) error {
	header, txs, err := source.BlockByHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("failed to fetch block %s txs: %w", hash, err)
	}
	if err := p.storeTransactions(header, txs); err != nil {
		return err
	}
	return p.storeHeader(header)
}

func (p *Prefetcher) prefetchReceipts(ctx context.Context, source hosttypes.EthSource, hash common.Hash) error {
	header, receipts, err := source.ReceiptsByHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("failed to fetch block %s receipts: %w", hash, err)
	}
	if err := p.storeReceipts(header, receipts); err != nil {
		return err
	}
	return p.storeHeader(header)
}

// prefetchPrecompile runs an accelerated precompile natively. The hint payload is stored as the
// preimage of the precompile key so the guest can check which call the result belongs to.
func (p *Prefetcher) prefetchPrecompile(payload []byte, input []byte) error {
	address := common.BytesToAddress(payload[:20])
	if !slices.Contains(acceleratedPrecompiles, address) {
		return fmt.Errorf("%w: unsupported precompile address %s", preimage.ErrProtocol, address)
	}
	// Prague contains every accelerated precompile. Only Run is used, which does not change across forks.
	precompile := vm.PrecompiledContractsPrague[address]
	result, err := precompile.Run(input)
	if err == nil {
		result = append(precompileSuccess[:], result...)
	} else {
		result = append(precompileFailure[:], result...)
	}
	inputHash := crypto.Keccak256Hash(payload)
	if err := p.cache.Put(preimage.Keccak256Key(inputHash), payload); err != nil {
		return err
	}
	return p.cache.Put(preimage.PrecompileKey(inputHash), result)
}

// prefetchOutput proves the output root of the L2 head: version ++ state root ++ message passer
// storage root ++ block hash.
func (p *Prefetcher) prefetchOutput(ctx context.Context, requested common.Hash) error {
	header, err := p.l2.HeaderByHash(ctx, p.l2Head)
	if err != nil {
		return fmt.Errorf("failed to fetch L2 head %s: %w", p.l2Head, err)
	}
	account, _, err := p.l2.GetProof(ctx, L2ToL1MessagePasserAddr, nil, p.l2Head)
	if err != nil {
		return fmt.Errorf("failed to fetch message passer proof at %s: %w", p.l2Head, err)
	}
	if account.Address != L2ToL1MessagePasserAddr {
		return fmt.Errorf("%w: proof is for account %s", preimage.ErrVerification, account.Address)
	}
	if err := verify.VerifyAccountProof(header.Root, account); err != nil {
		return fmt.Errorf("%w: %w", preimage.ErrVerification, err)
	}
	output := OutputV0(header.Root, account.Account.Root, p.l2Head)
	if got := crypto.Keccak256Hash(output); got != requested {
		return fmt.Errorf("%w: output root %s of block %s does not match requested root %s", preimage.ErrVerification, got, p.l2Head, requested)
	}
	return p.cache.Put(preimage.Keccak256Key(requested), output)
}

// OutputV0 encodes a version 0 output root preimage.
func OutputV0(stateRoot, messagePasserStorageRoot, blockHash common.Hash) []byte {
	out := make([]byte, 128)
	copy(out[32:], stateRoot[:])
	copy(out[64:], messagePasserStorageRoot[:])
	copy(out[96:], blockHash[:])
	return out
}

func parseHash(h preimage.Hint) (common.Hash, error) {
	if len(h.Payload) != common.HashLength {
		return common.Hash{}, malformed(h.Name, h.Payload)
	}
	return common.Hash(h.Payload), nil
}

// parseL2Hash parses a hash, optionally followed by the chain id it belongs to.
func (p *Prefetcher) parseL2Hash(h preimage.Hint) (common.Hash, error) {
	switch len(h.Payload) {
	case 32:
		return common.Hash(h.Payload), nil
	case 40:
		if chainID := binary.BigEndian.Uint64(h.Payload[32:]); chainID != p.l2ChainID {
			return common.Hash{}, fmt.Errorf("%w: %s hint for chain %d, serving %d", ErrUnsupportedChain, h.Name, chainID, p.l2ChainID)
		}
		return common.Hash(h.Payload[:32]), nil
	default:
		return common.Hash{}, malformed(h.Name, h.Payload)
	}
}

func malformed(name string, payload []byte) error {
	return fmt.Errorf("%w: invalid %s hint: %x", preimage.ErrProtocol, name, payload)
}
