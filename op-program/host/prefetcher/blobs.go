package prefetcher

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"math/bits"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/verify"
)

// RootsOfUnity are the bit-reversed 4096th roots of unity of the BLS12-381 scalar field.
// Field element i of a blob is the blob polynomial evaluated at RootsOfUnity[i].
var RootsOfUnity = generateRootsOfUnity()

func generateRootsOfUnity() *[params.BlobTxFieldElementsPerBlob]fr.Element {
	const (
		n             = params.BlobTxFieldElementsPerBlob
		maxOrderRoot  = 32
		primitiveRoot = "10238227357739495823651030575849232062558860180284477541189508159991286009131"
	)
	roots := new([n]fr.Element)

	// primitiveRoot generates the subgroup of order 2^32; raise it to 2^32/n for order n.
	var rootOfUnity fr.Element
	if _, err := rootOfUnity.SetString(primitiveRoot); err != nil {
		panic("failed to initialize root of unity")
	}
	logn := uint64(bits.TrailingZeros64(n))
	var generator fr.Element
	generator.Exp(rootOfUnity, new(big.Int).SetUint64(1<<(maxOrderRoot-logn)))

	current := fr.One()
	for i := range roots {
		roots[i] = current
		current.Mul(&current, &generator)
	}
	shift := 64 - logn
	for i := uint64(0); i < n; i++ {
		if irev := bits.Reverse64(i) >> shift; irev > i {
			roots[i], roots[irev] = roots[irev], roots[i]
		}
	}
	return roots
}

// prefetchBlob serves the l1-blob hint: versioned hash ++ blob index (u64) ++ block timestamp (u64).
func (p *Prefetcher) prefetchBlob(ctx context.Context, payload []byte) error {
	if len(payload) != 48 {
		return malformed(HintL1Blob, payload)
	}
	versionedHash := common.Hash(payload[:32])
	index := binary.BigEndian.Uint64(payload[32:40])
	timestamp := binary.BigEndian.Uint64(payload[40:48])

	sidecars, err := p.l1Blobs.BlobSidecars(ctx, timestamp, []uint64{index})
	if err != nil {
		return fmt.Errorf("failed to fetch blob sidecar %d at %d: %w", index, timestamp, err)
	}
	if err := verify.VerifyBlobBatch(sidecars, []common.Hash{versionedHash}); err != nil {
		return fmt.Errorf("%w: blob %s: %w", preimage.ErrVerification, versionedHash, err)
	}
	sidecar := sidecars[0]

	if err := p.cache.Put(preimage.Sha256Key(versionedHash), sidecar.Commitment[:]); err != nil {
		return err
	}
	// Field element i is keyed by keccak256(commitment ++ RootsOfUnity[i]).
	fieldKey := make([]byte, 80)
	copy(fieldKey[:48], sidecar.Commitment[:])
	for i := range RootsOfUnity {
		root := RootsOfUnity[i].Bytes()
		copy(fieldKey[48:], root[:])
		fieldKeyHash := crypto.Keccak256Hash(fieldKey)
		if err := p.cache.Put(preimage.Keccak256Key(fieldKeyHash), common.CopyBytes(fieldKey)); err != nil {
			return err
		}
		if err := p.cache.Put(preimage.BlobKey(fieldKeyHash), sidecar.Blob[i<<5:(i+1)<<5]); err != nil {
			return err
		}
	}
	return nil
}
