package celestia

import (
	"fmt"

	"github.com/celestiaorg/nmt"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// ShareProof is the serializable form of an NMT range proof over one row.
type ShareProof struct {
	Start              uint64
	End                uint64
	Nodes              [][]byte
	IgnoreMaxNamespace bool
}

// TupleProof proves a data root tuple in a Blobstream data commitment.
type TupleProof struct {
	Index uint64
	Total uint64
	Aunts [][]byte
}

// ProofBundle is everything needed to re-verify a blob against the Blobstream anchor.
// It is served to the guest RLP encoded.
type ProofBundle struct {
	Height         uint64
	Namespace      []byte
	Commitment     common.Hash
	Data           []byte
	StartRow       uint64
	ShareProofs    []ShareProof
	RowRoots       [][]byte
	ColumnRoots    [][]byte
	DataRoot       common.Hash
	ProofNonce     uint64
	DataCommitment common.Hash
	TupleProof     TupleProof
}

func NewShareProofs(proofs []*nmt.Proof) []ShareProof {
	out := make([]ShareProof, len(proofs))
	for i, p := range proofs {
		out[i] = ShareProof{
			Start:              uint64(p.Start()),
			End:                uint64(p.End()),
			Nodes:              p.Nodes(),
			IgnoreMaxNamespace: p.IsMaxNamespaceIDIgnored(),
		}
	}
	return out
}

// NMTProofs converts the bundle's share proofs back into NMT proofs.
func (b *ProofBundle) NMTProofs() []*nmt.Proof {
	out := make([]*nmt.Proof, len(b.ShareProofs))
	for i, p := range b.ShareProofs {
		proof := nmt.NewInclusionProof(int(p.Start), int(p.End), p.Nodes, p.IgnoreMaxNamespace)
		out[i] = &proof
	}
	return out
}

func (b *ProofBundle) MarshalBinary() ([]byte, error) {
	return rlp.EncodeToBytes(b)
}

func (b *ProofBundle) UnmarshalBinary(data []byte) error {
	if err := rlp.DecodeBytes(data, b); err != nil {
		return fmt.Errorf("invalid proof bundle: %w", err)
	}
	return nil
}
