package kvstore

import (
	"encoding/binary"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/config"
)

// Local key indices of the boot inputs served to the guest.
const (
	L1HeadLocalIndex uint64 = iota + 1
	L2OutputRootLocalIndex
	L2ClaimLocalIndex
	L2ClaimBlockNumberLocalIndex
	L2ChainIDLocalIndex
	DANamespaceLocalIndex
	BlobstreamAddressLocalIndex
)

type LocalPreimageSource struct {
	config *config.Config
}

func NewLocalPreimageSource(config *config.Config) *LocalPreimageSource {
	return &LocalPreimageSource{config}
}

var (
	l1HeadKey             = preimage.LocalIndexKey(L1HeadLocalIndex)
	l2OutputRootKey       = preimage.LocalIndexKey(L2OutputRootLocalIndex)
	l2ClaimKey            = preimage.LocalIndexKey(L2ClaimLocalIndex)
	l2ClaimBlockNumberKey = preimage.LocalIndexKey(L2ClaimBlockNumberLocalIndex)
	l2ChainIDKey          = preimage.LocalIndexKey(L2ChainIDLocalIndex)
	daNamespaceKey        = preimage.LocalIndexKey(DANamespaceLocalIndex)
	blobstreamAddressKey  = preimage.LocalIndexKey(BlobstreamAddressLocalIndex)
)

func (s *LocalPreimageSource) Get(key preimage.Key) ([]byte, error) {
	switch key {
	case l1HeadKey:
		return s.config.L1Head.Bytes(), nil
	case l2OutputRootKey:
		return s.config.L2OutputRoot.Bytes(), nil
	case l2ClaimKey:
		return s.config.L2Claim.Bytes(), nil
	case l2ClaimBlockNumberKey:
		return binary.BigEndian.AppendUint64(nil, s.config.L2ClaimBlockNumber), nil
	case l2ChainIDKey:
		return binary.BigEndian.AppendUint64(nil, s.config.L2ChainID), nil
	case daNamespaceKey:
		if !s.config.DAEnabled() {
			return nil, ErrNotFound
		}
		return append([]byte{}, s.config.DANamespace...), nil
	case blobstreamAddressKey:
		if !s.config.DAEnabled() {
			return nil, ErrNotFound
		}
		return s.config.BlobstreamAddress.Bytes(), nil
	default:
		return nil, ErrNotFound
	}
}
