package verify

import (
	"bytes"
	"fmt"
	"math/bits"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tendermint/tendermint/crypto/merkle"
	"github.com/tendermint/tendermint/crypto/tmhash"
)

// RFC-6962 domain separation prefixes, as used by Celestia and Blobstream.
const (
	leafPrefix  = 0x00
	innerPrefix = 0x01
)

// PathStep is one level of an inclusion path, from the leaves upwards.
// Left is set when the sibling is the left child, i.e. the running node is on the right.
type PathStep struct {
	Sibling common.Hash
	Left    bool
}

// InclusionProof proves that Leaves form a subtree of the binary Merkle tree with the given Root.
type InclusionProof struct {
	Root   common.Hash
	Leaves [][]byte
	Path   []PathStep
}

func HashLeaf(leaf []byte) common.Hash {
	return common.BytesToHash(tmhash.Sum(append([]byte{leafPrefix}, leaf...)))
}

func HashInner(left, right common.Hash) common.Hash {
	buf := make([]byte, 0, 1+2*common.HashLength)
	buf = append(buf, innerPrefix)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return common.BytesToHash(tmhash.Sum(buf))
}

// RootFromLeaves is the RFC-6962 root of leaves.
func RootFromLeaves(leaves [][]byte) common.Hash {
	return common.BytesToHash(merkle.HashFromByteSlices(leaves))
}

// Fold applies path to node and returns the resulting root.
func Fold(node common.Hash, path []PathStep) common.Hash {
	for _, step := range path {
		if step.Left {
			node = HashInner(step.Sibling, node)
		} else {
			node = HashInner(node, step.Sibling)
		}
	}
	return node
}

// Verify checks that leaf is one of proof.Leaves, that the leaves fold up to proof.Root along
// proof.Path, and that proof.Root is the trusted root.
func Verify(leaf []byte, proof InclusionProof, trustedRoot common.Hash) bool {
	if len(proof.Leaves) == 0 || proof.Root != trustedRoot {
		return false
	}
	found := false
	for _, l := range proof.Leaves {
		if bytes.Equal(l, leaf) {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	return Fold(RootFromLeaves(proof.Leaves), proof.Path) == proof.Root
}

// splitPoint is the largest power of two strictly less than n, for n > 1.
func splitPoint(n int64) int64 {
	return 1 << (bits.Len64(uint64(n-1)) - 1)
}

// PathFromAunts converts a celestia-core proof of the leaf at index in a tree of total leaves
// into an explicit path. Aunts are ordered from the bottom of the tree to the top.
func PathFromAunts(index, total int64, aunts [][]byte) ([]PathStep, error) {
	if total < 1 || index < 0 || index >= total {
		return nil, fmt.Errorf("invalid proof position %d of %d", index, total)
	}
	steps := make([]PathStep, len(aunts))
	for i := len(aunts) - 1; i >= 0; i-- {
		if total <= 1 {
			return nil, fmt.Errorf("proof has %d aunts, too many for its position", len(aunts))
		}
		if len(aunts[i]) != common.HashLength {
			return nil, fmt.Errorf("aunt %d has invalid length %d", i, len(aunts[i]))
		}
		sibling := common.BytesToHash(aunts[i])
		if numLeft := splitPoint(total); index < numLeft {
			steps[i] = PathStep{Sibling: sibling}
			total = numLeft
		} else {
			steps[i] = PathStep{Sibling: sibling, Left: true}
			index -= numLeft
			total -= numLeft
		}
	}
	if total != 1 {
		return nil, fmt.Errorf("proof has %d aunts, too few for its position", len(aunts))
	}
	return steps, nil
}

// ProofFromTendermint converts a single-leaf celestia-core proof into an InclusionProof.
func ProofFromTendermint(leaf []byte, root common.Hash, p *merkle.Proof) (InclusionProof, error) {
	path, err := PathFromAunts(p.Index, p.Total, p.Aunts)
	if err != nil {
		return InclusionProof{}, err
	}
	return InclusionProof{Root: root, Leaves: [][]byte{leaf}, Path: path}, nil
}
