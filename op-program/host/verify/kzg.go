package verify

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	gokzg4844 "github.com/crate-crypto/go-kzg-4844"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto/kzg4844"
)

const (
	BlobSize       = len(kzg4844.Blob{})
	CommitmentSize = len(kzg4844.Commitment{})
	ProofSize      = len(kzg4844.Proof{})
)

// VerifyBlob checks the KZG opening proof of blob against commitment.
// Malformed input lengths are rejected before any curve arithmetic.
func VerifyBlob(blob, commitment, proof []byte) bool {
	if len(blob) != BlobSize || len(commitment) != CommitmentSize || len(proof) != ProofSize {
		return false
	}
	var b kzg4844.Blob
	copy(b[:], blob)
	return kzg4844.VerifyBlobProof(&b, kzg4844.Commitment(commitment), kzg4844.Proof(proof)) == nil
}

// VersionedHash is the EIP-4844 versioned hash of a commitment.
func VersionedHash(commitment kzg4844.Commitment) common.Hash {
	return kzg4844.CalcBlobHashV1(sha256.New(), &commitment)
}

var kzgContext = sync.OnceValues(gokzg4844.NewContext4096Secure)

// BlobSidecar is the subset of a beacon blob sidecar needed to check it.
type BlobSidecar struct {
	Blob       kzg4844.Blob
	Commitment kzg4844.Commitment
	Proof      kzg4844.Proof
}

// VerifyBlobBatch checks many blob proofs at once and that each commitment matches the
// corresponding versioned hash.
func VerifyBlobBatch(sidecars []*BlobSidecar, versionedHashes []common.Hash) error {
	if len(sidecars) != len(versionedHashes) {
		return fmt.Errorf("%d sidecars for %d versioned hashes", len(sidecars), len(versionedHashes))
	}
	if len(sidecars) == 0 {
		return nil
	}
	ctx, err := kzgContext()
	if err != nil {
		return fmt.Errorf("failed to load KZG trusted setup: %w", err)
	}
	blobs := make([]gokzg4844.Blob, len(sidecars))
	commitments := make([]gokzg4844.KZGCommitment, len(sidecars))
	proofs := make([]gokzg4844.KZGProof, len(sidecars))
	for i, sc := range sidecars {
		if got := VersionedHash(sc.Commitment); got != versionedHashes[i] {
			return fmt.Errorf("sidecar %d commitment has versioned hash %s, expected %s", i, got, versionedHashes[i])
		}
		blobs[i] = gokzg4844.Blob(sc.Blob)
		commitments[i] = gokzg4844.KZGCommitment(sc.Commitment)
		proofs[i] = gokzg4844.KZGProof(sc.Proof)
	}
	if err := ctx.VerifyBlobKZGProofBatch(blobs, commitments, proofs); err != nil {
		for i, sc := range sidecars {
			if !VerifyBlob(sc.Blob[:], sc.Commitment[:], sc.Proof[:]) {
				return fmt.Errorf("sidecar %d has an invalid blob proof: %w", i, err)
			}
		}
		return errors.Join(errors.New("invalid blob proof batch"), err)
	}
	return nil
}
