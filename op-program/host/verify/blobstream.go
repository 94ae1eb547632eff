package verify

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
)

// DataCommitmentsSlot is the storage slot of the Blobstream state_dataCommitments mapping.
const DataCommitmentsSlot = 254

// DataCommitmentSlot is the storage slot holding the data commitment for a proof nonce.
func DataCommitmentSlot(nonce uint64) common.Hash {
	key := uint256.NewInt(nonce).Bytes32()
	slot := uint256.NewInt(DataCommitmentsSlot).Bytes32()
	return crypto.Keccak256Hash(key[:], slot[:])
}

// EncodeDataRootTuple is the abi encoding of (uint256 height, bytes32 dataRoot), the leaf of
// the Blobstream data commitment tree.
func EncodeDataRootTuple(height uint64, dataRoot common.Hash) []byte {
	h := uint256.NewInt(height).Bytes32()
	return append(h[:], dataRoot[:]...)
}

// DataCommitmentProof anchors a Blobstream data commitment in the L1 state of a trusted L1 block.
type DataCommitmentProof struct {
	Nonce      uint64
	Commitment common.Hash
	Account    AccountProof
	Storage    StorageProof
}

// VerifyDataCommitment checks that l1Head is the trusted L1 head and that the Blobstream
// contract at address stores p.Commitment under p.Nonce in that block's state.
func VerifyDataCommitment(trustedHead common.Hash, l1Head *types.Header, address common.Address, p *DataCommitmentProof) error {
	if got := l1Head.Hash(); got != trustedHead {
		return fmt.Errorf("%w: L1 header hashes to %s, expected %s", preimage.ErrVerification, got, trustedHead)
	}
	if p.Account.Address != address {
		return fmt.Errorf("%w: account proof is for %s, expected Blobstream at %s", preimage.ErrVerification, p.Account.Address, address)
	}
	if slot := DataCommitmentSlot(p.Nonce); p.Storage.Key != slot {
		return fmt.Errorf("%w: storage proof is for slot %s, expected %s", preimage.ErrVerification, p.Storage.Key, slot)
	}
	if p.Storage.Value != p.Commitment {
		return fmt.Errorf("%w: proven slot value %s does not match data commitment %s", preimage.ErrVerification, p.Storage.Value, p.Commitment)
	}
	if err := VerifyAccountProof(l1Head.Root, &p.Account); err != nil {
		return fmt.Errorf("%w: %w", preimage.ErrVerification, err)
	}
	if err := VerifyStorageProof(p.Account.Account.Root, &p.Storage); err != nil {
		return fmt.Errorf("%w: %w", preimage.ErrVerification, err)
	}
	return nil
}

// VerifyDataRootInclusion checks that the (height, dataRoot) tuple is a leaf of the data commitment.
func VerifyDataRootInclusion(height uint64, dataRoot common.Hash, proof InclusionProof, commitment common.Hash) error {
	if !Verify(EncodeDataRootTuple(height, dataRoot), proof, commitment) {
		return fmt.Errorf("%w: data root %s at height %d is not included in data commitment %s", preimage.ErrVerification, dataRoot, height, commitment)
	}
	return nil
}
