package prefetcher

import (
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/celestia"
)

// Hint names understood by the host.
const (
	HintL1BlockHeader  = "l1-block-header"
	HintL1Transactions = "l1-transactions"
	HintL1Receipts     = "l1-receipts"
	HintL1Blob         = "l1-blob"
	HintL1Precompile   = "l1-precompile"
	HintL1PrecompileV2 = "l1-precompile-v2"

	HintL2BlockHeader  = "l2-block-header"
	HintL2Transactions = "l2-transactions"
	HintL2Receipts     = "l2-receipts"
	HintL2StateNode    = "l2-state-node"
	HintL2Code         = "l2-code"
	HintL2Output       = "l2-output"

	HintCelestiaDA = celestia.HintDA
)
