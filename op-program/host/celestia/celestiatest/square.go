// Package celestiatest builds small extended data squares for tests.
package celestiatest

import (
	"crypto/sha256"
	"fmt"

	"github.com/celestiaorg/nmt"
	"github.com/celestiaorg/rsmt2d"
	"github.com/ethereum/go-ethereum/common"
	"github.com/tendermint/tendermint/crypto/merkle"

	"github.com/mantlenetworkio/op-celestia-host/op-program/host/celestia"
)

// erasuredTree pushes shares of one row or column of the extended square into an NMT,
// assigning the parity namespace to shares outside the original square.
type erasuredTree struct {
	tree       *nmt.NamespacedMerkleTree
	axisIndex  uint
	shareIndex uint
	odsWidth   uint
}

func newTreeConstructor(odsWidth uint) rsmt2d.TreeConstructorFn {
	return func(_ rsmt2d.Axis, index uint) rsmt2d.Tree {
		return newErasuredTree(odsWidth, index)
	}
}

func newErasuredTree(odsWidth, index uint) *erasuredTree {
	return &erasuredTree{
		tree:      nmt.New(sha256.New(), nmt.NamespaceIDSize(celestia.NamespaceSize), nmt.IgnoreMaxNamespace(true)),
		axisIndex: index,
		odsWidth:  odsWidth,
	}
}

func (w *erasuredTree) Push(data []byte) error {
	ns := data[:celestia.NamespaceSize]
	if w.axisIndex >= w.odsWidth || w.shareIndex >= w.odsWidth {
		ns = celestia.ParityNamespace
	}
	w.shareIndex++
	leaf := make([]byte, 0, celestia.NamespaceSize+len(data))
	leaf = append(leaf, ns...)
	leaf = append(leaf, data...)
	return w.tree.Push(leaf)
}

func (w *erasuredTree) Root() ([]byte, error) {
	return w.tree.Root()
}

// Square is an extended data square holding a single blob at the start of the original square.
type Square struct {
	EDS         *rsmt2d.ExtendedDataSquare
	ODSWidth    int
	RowRoots    [][]byte
	ColumnRoots [][]byte
	DataRoot    common.Hash
	Shares      [][]byte
	// Index is the position of the first blob share in the extended square, row-major.
	Index int
}

// NewSquare lays data out in namespace ns at row startRow of the smallest square that fits.
func NewSquare(ns []byte, data []byte, startRow int) (*Square, error) {
	shares, err := celestia.SplitBlob(ns, data)
	if err != nil {
		return nil, err
	}
	width := 2
	for width*width < startRow*width+len(shares) {
		width *= 2
	}
	// leading rows hold a smaller namespace, so the blob is not the first leaf of the square
	lead := make([]byte, celestia.NamespaceSize)
	ods := make([][]byte, 0, width*width)
	for i := 0; i < startRow*width; i++ {
		s := make([]byte, celestia.ShareSize)
		copy(s, lead)
		ods = append(ods, s)
	}
	ods = append(ods, shares...)
	for len(ods) < width*width {
		s := make([]byte, celestia.ShareSize)
		copy(s, celestia.TailPaddingNamespace)
		ods = append(ods, s)
	}
	eds, err := rsmt2d.ComputeExtendedDataSquare(ods, rsmt2d.NewLeoRSCodec(), newTreeConstructor(uint(width)))
	if err != nil {
		return nil, fmt.Errorf("failed to extend square: %w", err)
	}
	rows, err := eds.RowRoots()
	if err != nil {
		return nil, err
	}
	cols, err := eds.ColRoots()
	if err != nil {
		return nil, err
	}
	leaves := append(append([][]byte{}, rows...), cols...)
	return &Square{
		EDS:         eds,
		ODSWidth:    width,
		RowRoots:    rows,
		ColumnRoots: cols,
		DataRoot:    common.BytesToHash(merkle.HashFromByteSlices(leaves)),
		Shares:      shares,
		Index:       startRow * 2 * width,
	}, nil
}

// ShareProofs returns one NMT range proof per row the blob spans.
func (s *Square) ShareProofs() ([]*nmt.Proof, error) {
	var proofs []*nmt.Proof
	remaining := len(s.Shares)
	edsWidth := 2 * s.ODSWidth
	row := s.Index / edsWidth
	col := s.Index % edsWidth
	for remaining > 0 {
		tree := newErasuredTree(uint(s.ODSWidth), uint(row))
		for _, share := range s.EDS.Row(uint(row)) {
			if err := tree.Push(share); err != nil {
				return nil, err
			}
		}
		end := min(s.ODSWidth, col+remaining)
		proof, err := tree.tree.ProveRange(col, end)
		if err != nil {
			return nil, fmt.Errorf("failed to prove row %d: %w", row, err)
		}
		proofs = append(proofs, &proof)
		remaining -= end - col
		row++
		col = 0
	}
	return proofs, nil
}
