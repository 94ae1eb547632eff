package prefetcher

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
)

// trieNodes builds the index-keyed trie of list and returns its root and every hashed node.
// Nodes shorter than a hash are embedded in their parent and not returned.
func trieNodes(list types.DerivableList) (common.Hash, [][]byte) {
	var nodes [][]byte
	st := trie.NewStackTrie(func(_ []byte, _ common.Hash, blob []byte) {
		nodes = append(nodes, common.CopyBytes(blob))
	})
	return types.DeriveSha(list, st), nodes
}

func (p *Prefetcher) storeHeader(header *types.Header) error {
	data, err := rlp.EncodeToBytes(header)
	if err != nil {
		return fmt.Errorf("failed to encode header %s: %w", header.Hash(), err)
	}
	return p.cache.Put(preimage.Keccak256Key(header.Hash()), data)
}

func (p *Prefetcher) storeTransactions(header *types.Header, txs types.Transactions) error {
	root, nodes := trieNodes(txs)
	if root != header.TxHash {
		return fmt.Errorf("%w: transactions of block %s have root %s, expected %s", preimage.ErrVerification, header.Hash(), root, header.TxHash)
	}
	return p.storeNodes(nodes)
}

func (p *Prefetcher) storeReceipts(header *types.Header, receipts types.Receipts) error {
	root, nodes := trieNodes(receipts)
	if root != header.ReceiptHash {
		return fmt.Errorf("%w: receipts of block %s have root %s, expected %s", preimage.ErrVerification, header.Hash(), root, header.ReceiptHash)
	}
	return p.storeNodes(nodes)
}

func (p *Prefetcher) storeNodes(nodes [][]byte) error {
	for _, node := range nodes {
		if err := p.cache.Put(preimage.Keccak256Key(crypto.Keccak256Hash(node)), node); err != nil {
			return fmt.Errorf("failed to store node: %w", err)
		}
	}
	return nil
}
