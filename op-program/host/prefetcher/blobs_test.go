package prefetcher

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/kzg4844"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/verify"
)

func testSidecar(t *testing.T) *verify.BlobSidecar {
	var blob kzg4844.Blob
	_, err := rand.Read(blob[:])
	require.NoError(t, err)
	// keep every field element below the modulus
	for i := 0; i < len(blob); i += 32 {
		blob[i] = 0
	}
	commitment, err := kzg4844.BlobToCommitment(&blob)
	require.NoError(t, err)
	proof, err := kzg4844.ComputeBlobProof(&blob, commitment)
	require.NoError(t, err)
	return &verify.BlobSidecar{Blob: blob, Commitment: commitment, Proof: proof}
}

func blobHint(versionedHash common.Hash, index, timestamp uint64) []byte {
	payload := binary.BigEndian.AppendUint64(versionedHash.Bytes(), index)
	return binary.BigEndian.AppendUint64(payload, timestamp)
}

func TestFetchL1Blob(t *testing.T) {
	sidecar := testSidecar(t)
	versionedHash := verify.VersionedHash(sidecar.Commitment)
	const timestamp, index = uint64(1_700_000_012), uint64(3)

	t.Run("Valid", func(t *testing.T) {
		p := createPrefetcher(t)
		p.blobs.sidecars[timestamp] = map[uint64]*verify.BlobSidecar{index: sidecar}
		require.NoError(t, p.Hint(context.Background(), hint(HintL1Blob, blobHint(versionedHash, index, timestamp))))

		commitment, err := p.GetPreimage(context.Background(), preimage.Sha256Key(versionedHash))
		require.NoError(t, err)
		require.Equal(t, sidecar.Commitment[:], commitment)

		fieldKey := make([]byte, 80)
		copy(fieldKey[:48], commitment)
		for _, i := range []int{0, 1, 2047, params.BlobTxFieldElementsPerBlob - 1} {
			root := RootsOfUnity[i].Bytes()
			copy(fieldKey[48:], root[:])
			keyHash := crypto.Keccak256Hash(fieldKey)

			pre, err := p.GetPreimage(context.Background(), preimage.Keccak256Key(keyHash))
			require.NoError(t, err)
			require.Equal(t, fieldKey, pre)

			element, err := p.GetPreimage(context.Background(), preimage.BlobKey(keyHash))
			require.NoError(t, err)
			require.Equal(t, sidecar.Blob[i*32:(i+1)*32], element)
		}
	})

	t.Run("WrongVersionedHash", func(t *testing.T) {
		p := createPrefetcher(t)
		p.blobs.sidecars[timestamp] = map[uint64]*verify.BlobSidecar{index: sidecar}
		other := versionedHash
		other[31] ^= 0x01
		err := p.Hint(context.Background(), hint(HintL1Blob, blobHint(other, index, timestamp)))
		require.ErrorIs(t, err, preimage.ErrVerification)
		_, err = p.cache.Get(preimage.Sha256Key(other))
		require.ErrorIs(t, err, preimage.ErrNotFound)
	})

	t.Run("BadProof", func(t *testing.T) {
		p := createPrefetcher(t)
		tampered := *sidecar
		tampered.Blob[64] ^= 0x01
		p.blobs.sidecars[timestamp] = map[uint64]*verify.BlobSidecar{index: &tampered}
		err := p.Hint(context.Background(), hint(HintL1Blob, blobHint(versionedHash, index, timestamp)))
		require.ErrorIs(t, err, preimage.ErrVerification)
	})

	t.Run("Missing", func(t *testing.T) {
		p := createPrefetcher(t)
		require.NoError(t, p.Hint(context.Background(), hint(HintL1Blob, blobHint(versionedHash, index, timestamp))))
		_, err := p.GetPreimage(context.Background(), preimage.Sha256Key(versionedHash))
		require.ErrorIs(t, err, preimage.ErrNotFound)
	})
}

// TestRootsOfUnity checks that field element i of a blob is its polynomial evaluated at RootsOfUnity[i].
func TestRootsOfUnity(t *testing.T) {
	require.Equal(t, params.BlobTxFieldElementsPerBlob, len(RootsOfUnity))
	sidecar := testSidecar(t)
	for _, i := range []int{0, 1, 2, 100, 2048, params.BlobTxFieldElementsPerBlob - 1} {
		z := RootsOfUnity[i].Bytes()
		proof, claim, err := kzg4844.ComputeProof(&sidecar.Blob, z)
		require.NoError(t, err)
		require.Equal(t, sidecar.Blob[i*32:(i+1)*32], claim[:])
		require.NoError(t, kzg4844.VerifyProof(sidecar.Commitment, z, claim, proof))
	}
}
