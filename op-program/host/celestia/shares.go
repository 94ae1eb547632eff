// Package celestia describes how blobs are laid out in a Celestia data square.
package celestia

import (
	"fmt"

	"github.com/celestiaorg/celestia-openrpc/types/appconsts"
	"github.com/celestiaorg/celestia-openrpc/types/blob"
	"github.com/celestiaorg/celestia-openrpc/types/share"
)

const (
	ShareSize     = share.Size
	NamespaceSize = appconsts.NamespaceSize
)

var (
	// ParityNamespace is assigned to every share of the extended part of the square.
	ParityNamespace = share.ParitySharesNamespace
	// TailPaddingNamespace fills the original square after the last blob.
	TailPaddingNamespace = share.TailPaddingNamespace
)

// SplitBlob lays data out as the version 0 sparse shares of a blob in namespace ns.
func SplitBlob(ns share.Namespace, data []byte) ([][]byte, error) {
	b, err := blob.NewBlobV0(ns, data)
	if err != nil {
		return nil, fmt.Errorf("invalid blob: %w", err)
	}
	shares, err := blob.SplitBlobs(*b)
	if err != nil {
		return nil, fmt.Errorf("failed to split blob: %w", err)
	}
	return share.ToBytes(shares), nil
}
