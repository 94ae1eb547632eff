package celestia

import (
	"slices"

	"github.com/ethereum/go-ethereum/common"
)

// blobstreamDeployments lists the canonical Blobstream contract per L1 chain ID.
var blobstreamDeployments = map[uint64]common.Address{
	1:        common.HexToAddress("0x7Cf3876F681Dbb6EdA8f6FfC45D66B996Df08fAe"),
	42161:    common.HexToAddress("0xA83ca7775Bc2889825BcDeDfFa5b758cf69e8794"),
	8453:     common.HexToAddress("0xA83ca7775Bc2889825BcDeDfFa5b758cf69e8794"),
	534352:   common.HexToAddress("0x5008fa5CC3397faEa90fcde71C35945db6822218"),
	11155111: common.HexToAddress("0xF0c6429ebAB2e7DC6e05DaFB61128bE21f13cb1e"),
	421614:   common.HexToAddress("0xc3e209eb245Fd59c8586777b499d6A665DF3ABD2"),
	84532:    common.HexToAddress("0xc3e209eb245Fd59c8586777b499d6A665DF3ABD2"),
	17000:    common.HexToAddress("0x315A044cb95e4d44bBf6253585FbEbcdB6fb41ef"),
}

// BlobstreamAddress returns the canonical Blobstream deployment for the given L1 chain.
func BlobstreamAddress(l1ChainID uint64) (common.Address, bool) {
	addr, ok := blobstreamDeployments[l1ChainID]
	return addr, ok
}

// BlobstreamChainIDs returns the L1 chain IDs with a canonical Blobstream deployment, in ascending order.
func BlobstreamChainIDs() []uint64 {
	ids := make([]uint64, 0, len(blobstreamDeployments))
	for id := range blobstreamDeployments {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
