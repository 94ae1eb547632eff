package main

import (
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/mantlenetworkio/op-celestia-host/op-program/host"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/config"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/flags"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/subcmds"
	opservice "github.com/mantlenetworkio/op-celestia-host/op-service"
	oplog "github.com/mantlenetworkio/op-celestia-host/op-service/log"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

// VersionWithMeta holds the textual version string including the metadata.
var VersionWithMeta = opservice.FormatVersion(Version, GitCommit, GitDate, opservice.Meta)

func main() {
	args := os.Args
	if err := run(args, func(logger log.Logger, cfg *config.Config) error {
		return host.Main(logger, cfg, VersionWithMeta)
	}); err != nil {
		log.Crit("Application failed", "err", err)
	}
}

type ConfigAction func(log log.Logger, config *config.Config) error

// run parses the supplied args to create a config.Config instance, sets up logging
// then calls the supplied ConfigAction.
// This allows testing the translation from CLI arguments to Config
func run(args []string, action ConfigAction) error {
	app := cli.NewApp()
	app.Version = VersionWithMeta
	app.Flags = flags.Flags
	app.Name = "op-celestia-host"
	app.Usage = "Preimage oracle host for Celestia-backed fault proofs"
	app.Description = "Serves verified preimages to a fault proof guest program, " +
		"proving Celestia blobs against the Blobstream commitments of a trusted L1 head."
	app.Commands = []*cli.Command{subcmds.ConfigsCommand}
	app.Action = func(ctx *cli.Context) error {
		logger, err := oplog.SetupDefaults(ctx)
		if err != nil {
			return err
		}
		logger.Info("Starting preimage host", "version", VersionWithMeta)

		cfg, err := config.NewConfigFromCLI(logger, ctx)
		if err != nil {
			return err
		}
		return action(logger, cfg)
	}
	return app.Run(args)
}
