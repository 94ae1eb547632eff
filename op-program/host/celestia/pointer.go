package celestia

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/celestiaorg/celestia-openrpc/types/share"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
)

// HintDA is the hint name of a Celestia blob request.
const HintDA = "celestia-da"

const (
	pointerSize          = 8 + common.HashLength
	pointerWithNamespace = pointerSize + NamespaceSize
)

var ErrInvalidPointer = errors.New("invalid blob pointer")

// BlobPointer references a blob by the DA height it was included at, its namespace and its
// share commitment. A nil Namespace means the host's configured namespace.
type BlobPointer struct {
	Height     uint64
	Commitment common.Hash
	Namespace  share.Namespace
}

// MarshalHint encodes the pointer as: height (u64 little-endian) ++ commitment ++ [namespace].
func (p BlobPointer) MarshalHint() []byte {
	out := preimage.DAPointer(p.Height, p.Commitment)
	if p.Namespace != nil {
		out = append(out, p.Namespace...)
	}
	return out
}

func (p BlobPointer) Hint() string {
	return preimage.Hint{Name: HintDA, Payload: p.MarshalHint()}.String()
}

func UnmarshalBlobPointer(data []byte) (BlobPointer, error) {
	if len(data) != pointerSize && len(data) != pointerWithNamespace {
		return BlobPointer{}, fmt.Errorf("%w: length %d", ErrInvalidPointer, len(data))
	}
	p := BlobPointer{
		Height:     binary.LittleEndian.Uint64(data[:8]),
		Commitment: common.BytesToHash(data[8:pointerSize]),
	}
	if len(data) == pointerWithNamespace {
		p.Namespace = share.Namespace(append([]byte{}, data[pointerSize:]...))
	}
	return p, nil
}

// Key is the preimage key the blob data is served under.
func (p BlobPointer) Key() preimage.Key {
	return preimage.DANamespaceKey(p.Height, p.Namespace, p.Commitment)
}

// BundleKey is the preimage key the proof bundle is served under.
func (p BlobPointer) BundleKey() preimage.Key {
	return preimage.GlobalGenericKey(crypto.Keccak256Hash(preimage.DAPointer(p.Height, p.Commitment)))
}

// ParseNamespace parses a hex encoded version 0 namespace ID of up to 10 bytes.
func ParseNamespace(id string) (share.Namespace, error) {
	if id == "" {
		return nil, errors.New("namespace id cannot be blank")
	}
	raw, err := hex.DecodeString(id)
	if err != nil {
		return nil, fmt.Errorf("invalid namespace id: %w", err)
	}
	return share.NewBlobNamespaceV0(raw)
}
