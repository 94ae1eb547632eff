package preimage

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

var ErrPreimageMismatch = errors.New("preimage does not match key")

// BlobVersionKZG is the version byte of an EIP-4844 versioned hash. It replaces the first byte
// of the sha256 digest of a KZG commitment.
const BlobVersionKZG = 0x01

// VerifyPreimage checks a value against a self-verifying key.
// Keys of other kinds are accepted as-is; they are verified by whatever produced them.
func VerifyPreimage(key Key, value []byte) error {
	switch key.Kind {
	case Keccak256KeyKind:
		if got := crypto.Keccak256Hash(value); got != key.Digest {
			return fmt.Errorf("%w: %s hashes to %s", ErrPreimageMismatch, key, got)
		}
	case Sha256KeyKind:
		got := sha256.Sum256(value)
		if key.Digest[0] == BlobVersionKZG && bytes.Equal(got[1:], key.Digest[1:]) {
			return nil
		}
		if got != key.Digest {
			return fmt.Errorf("%w: %s hashes to %x", ErrPreimageMismatch, key, got)
		}
	}
	return nil
}
