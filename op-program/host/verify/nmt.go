package verify

import (
	"crypto/sha256"

	"github.com/celestiaorg/nmt"
	"github.com/celestiaorg/nmt/namespace"
	"github.com/ethereum/go-ethereum/common"
)

// VerifyShares checks that shares are covered, in order, by the NMT range proofs against
// consecutive row roots starting at startRow. Every share must be consumed by exactly one proof.
func VerifyShares(ns []byte, shares [][]byte, proofs []*nmt.Proof, rowRoots [][]byte, startRow int) bool {
	if len(proofs) == 0 || startRow < 0 || startRow+len(proofs) > len(rowRoots) {
		return false
	}
	start := 0
	for i, proof := range proofs {
		if proof == nil || proof.End() <= proof.Start() {
			return false
		}
		end := start + (proof.End() - proof.Start())
		if end > len(shares) {
			return false
		}
		if !proof.VerifyInclusion(sha256.New(), namespace.ID(ns), shares[start:end], rowRoots[startRow+i]) {
			return false
		}
		start = end
	}
	return start == len(shares)
}

// DataRootFromDAH recomputes the data root committed in a DA header from its row and column roots.
func DataRootFromDAH(rowRoots, colRoots [][]byte) common.Hash {
	leaves := make([][]byte, 0, len(rowRoots)+len(colRoots))
	leaves = append(leaves, rowRoots...)
	leaves = append(leaves, colRoots...)
	return RootFromLeaves(leaves)
}
