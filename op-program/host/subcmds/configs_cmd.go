package subcmds

import (
	"fmt"
	"io"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/mantlenetworkio/op-celestia-host/op-program/host/celestia"
)

var ConfigsChainIDFlag = &cli.StringFlag{
	Name:  "l1.chainid",
	Usage: "L1 chain ID to report the Blobstream deployment for",
}

var ConfigsCommand = &cli.Command{
	Name:        "configs",
	Usage:       "List the canonical Blobstream deployments",
	Description: "List the L1 chains with a canonical Blobstream deployment, used when blobstream.address is not set.",
	Action:      ListConfigs,
	Flags: []cli.Flag{
		ConfigsChainIDFlag,
	},
}

func ListConfigs(ctx *cli.Context) error {
	w := ctx.App.Writer
	if ctx.IsSet(ConfigsChainIDFlag.Name) {
		chainID, err := strconv.ParseUint(ctx.String(ConfigsChainIDFlag.Name), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chain ID: %w", err)
		}
		return listChain(w, chainID)
	}
	for _, chainID := range celestia.BlobstreamChainIDs() {
		if err := listChain(w, chainID); err != nil {
			return err
		}
	}
	return nil
}

func listChain(w io.Writer, chainID uint64) error {
	addr, ok := celestia.BlobstreamAddress(chainID)
	if !ok {
		return fmt.Errorf("no canonical blobstream deployment for l1 chain %d", chainID)
	}
	_, err := fmt.Fprintf(w, "l1 chain %d: blobstream %s\n", chainID, addr)
	return err
}
