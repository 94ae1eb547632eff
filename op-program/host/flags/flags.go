package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"

	oplog "github.com/mantlenetworkio/op-celestia-host/op-service/log"
)

const EnvVarPrefix = "OP_CELESTIA_HOST"

func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	DataDir = &cli.StringFlag{
		Name:    "datadir",
		Usage:   "Parent directory for the session's scratch preimage store. Default uses in-memory storage. Nothing is kept across sessions.",
		EnvVars: prefixEnvVars("DATADIR"),
	}
	L1Head = &cli.StringFlag{
		Name:    "l1.head",
		Usage:   "Hash of the trusted L1 head block. DA commitments are anchored in the state of this block.",
		EnvVars: prefixEnvVars("L1_HEAD"),
	}
	L1NodeAddr = &cli.StringFlag{
		Name:    "l1",
		Usage:   "Address of L1 JSON-RPC endpoint to use (eth and debug namespace required)",
		EnvVars: prefixEnvVars("L1_RPC"),
	}
	L1BeaconAddr = &cli.StringFlag{
		Name:    "l1.beacon",
		Usage:   "Address of L1 Beacon API endpoint to use",
		EnvVars: prefixEnvVars("L1_BEACON_API"),
	}
	L1ChainID = &cli.Uint64Flag{
		Name:    "l1.chainid",
		Usage:   "Chain ID of the L1 chain. Selects the canonical Blobstream deployment.",
		EnvVars: prefixEnvVars("L1_CHAIN_ID"),
	}
	L2Head = &cli.StringFlag{
		Name:    "l2.head",
		Usage:   "Hash of the L2 block at l2.outputroot",
		EnvVars: prefixEnvVars("L2_HEAD"),
	}
	L2OutputRoot = &cli.StringFlag{
		Name:    "l2.outputroot",
		Usage:   "Agreed L2 Output Root to start derivation from",
		EnvVars: prefixEnvVars("L2_OUTPUT_ROOT"),
	}
	L2Claim = &cli.StringFlag{
		Name:    "l2.claim",
		Usage:   "Claimed L2 output root to validate",
		EnvVars: prefixEnvVars("L2_CLAIM"),
	}
	L2BlockNumber = &cli.Uint64Flag{
		Name:    "l2.blocknumber",
		Usage:   "Number of the L2 block that the claim is from",
		EnvVars: prefixEnvVars("L2_BLOCK_NUM"),
	}
	L2ChainID = &cli.Uint64Flag{
		Name:    "l2.chainid",
		Usage:   "Chain ID of the L2 chain being proven",
		EnvVars: prefixEnvVars("L2_CHAIN_ID"),
	}
	L2NodeAddr = &cli.StringFlag{
		Name:    "l2",
		Usage:   "Address of L2 JSON-RPC endpoint to use (eth and debug namespace required)",
		EnvVars: prefixEnvVars("L2_RPC"),
	}
	CelestiaAddr = &cli.StringFlag{
		Name:    "celestia.rpc",
		Usage:   "Address of the Celestia node JSON-RPC endpoint",
		EnvVars: prefixEnvVars("CELESTIA_RPC"),
	}
	CelestiaCoreAddr = &cli.StringFlag{
		Name:    "celestia.core-rpc",
		Usage:   "Address of the celestia-core (tendermint) RPC endpoint, used for data root inclusion proofs",
		EnvVars: prefixEnvVars("CELESTIA_CORE_RPC"),
	}
	CelestiaAuthToken = &cli.StringFlag{
		Name:    "celestia.auth-token",
		Usage:   "Auth token for the Celestia node",
		EnvVars: prefixEnvVars("CELESTIA_AUTH_TOKEN"),
	}
	CelestiaNamespace = &cli.StringFlag{
		Name:    "celestia.namespace",
		Usage:   "Hex encoded version 0 namespace ID the rollup posts blobs under",
		EnvVars: prefixEnvVars("CELESTIA_NAMESPACE"),
	}
	BlobstreamAddr = &cli.StringFlag{
		Name:    "blobstream.address",
		Usage:   "Address of the Blobstream contract on L1. Defaults to the canonical deployment for l1.chainid.",
		EnvVars: prefixEnvVars("BLOBSTREAM_ADDRESS"),
	}
	FetchAttempts = &cli.IntFlag{
		Name:    "fetch.attempts",
		Usage:   "Number of attempts made for each backend request before the session fails",
		EnvVars: prefixEnvVars("FETCH_ATTEMPTS"),
		Value:   5,
	}
	Exec = &cli.StringFlag{
		Name:    "exec",
		Usage:   "Run the specified guest program as a child process, connected on file descriptors 3 and 4",
		EnvVars: prefixEnvVars("EXEC"),
	}
	Server = &cli.BoolFlag{
		Name:    "server",
		Usage:   "Run in pre-image server mode on inherited file descriptors 3 and 4 without executing a guest",
		EnvVars: prefixEnvVars("SERVER"),
	}
	MetricsEnabled = &cli.BoolFlag{
		Name:    "metrics.enabled",
		Usage:   "Enable the metrics server",
		EnvVars: prefixEnvVars("METRICS_ENABLED"),
	}
	MetricsAddr = &cli.StringFlag{
		Name:    "metrics.addr",
		Usage:   "Metrics listening address",
		Value:   "0.0.0.0",
		EnvVars: prefixEnvVars("METRICS_ADDR"),
	}
	MetricsPort = &cli.IntFlag{
		Name:    "metrics.port",
		Usage:   "Metrics listening port",
		Value:   7300,
		EnvVars: prefixEnvVars("METRICS_PORT"),
	}
)

// Flags contains the list of configuration options available to the binary.
var Flags []cli.Flag

var requiredFlags = []cli.Flag{
	L1Head,
	L2Head,
	L2OutputRoot,
	L2Claim,
	L2BlockNumber,
	L2ChainID,
}

var programFlags = []cli.Flag{
	DataDir,
	L1NodeAddr,
	L1BeaconAddr,
	L1ChainID,
	L2NodeAddr,
	CelestiaAddr,
	CelestiaCoreAddr,
	CelestiaAuthToken,
	CelestiaNamespace,
	BlobstreamAddr,
	FetchAttempts,
	Exec,
	Server,
	MetricsEnabled,
	MetricsAddr,
	MetricsPort,
}

func init() {
	Flags = append(Flags, oplog.CLIFlags(EnvVarPrefix)...)
	Flags = append(Flags, requiredFlags...)
	Flags = append(Flags, programFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, flag := range requiredFlags {
		if !ctx.IsSet(flag.Names()[0]) {
			return fmt.Errorf("flag %s is required", flag.Names()[0])
		}
	}
	if ctx.IsSet(CelestiaAddr.Name) && !ctx.IsSet(BlobstreamAddr.Name) && !ctx.IsSet(L1ChainID.Name) {
		return fmt.Errorf("flag %s or %s is required when %s is set", BlobstreamAddr.Name, L1ChainID.Name, CelestiaAddr.Name)
	}
	return nil
}
