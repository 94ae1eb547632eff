package config

import (
	"errors"
	"fmt"

	"github.com/celestiaorg/celestia-openrpc/types/share"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/mantlenetworkio/op-celestia-host/op-program/host/celestia"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/flags"
	oplog "github.com/mantlenetworkio/op-celestia-host/op-service/log"
)

var (
	ErrMissingL2ChainID      = errors.New("missing l2 chain id")
	ErrInvalidL1Head         = errors.New("invalid l1 head")
	ErrInvalidL2Head         = errors.New("invalid l2 head")
	ErrInvalidL2OutputRoot   = errors.New("invalid l2 output root")
	ErrL1AndL2Inconsistent   = errors.New("l1 and l2 options must be specified together or both omitted")
	ErrInvalidL2Claim        = errors.New("invalid l2 claim")
	ErrInvalidL2ClaimBlock   = errors.New("invalid l2 claim block number")
	ErrFetchingRequired      = errors.New("l1, l1 beacon and l2 endpoints are required")
	ErrNoExecInServerMode    = errors.New("exec command must not be set when in server mode")
	ErrNoGuest               = errors.New("exec command is required unless in server mode")
	ErrInvalidFetchAttempts  = errors.New("fetch attempts must be at least 1")
	ErrDAIncomplete          = errors.New("celestia core rpc and namespace are required when celestia rpc is set")
	ErrMissingBlobstream     = errors.New("blobstream address is required when celestia rpc is set")
	ErrUnknownBlobstreamL1   = errors.New("no canonical blobstream deployment for l1 chain")
	ErrInvalidMetricsAddress = errors.New("invalid metrics listen address")
)

type MetricsConfig struct {
	Enabled    bool
	ListenAddr string
	ListenPort int
}

func (m MetricsConfig) Check() error {
	if !m.Enabled {
		return nil
	}
	if m.ListenPort < 0 || m.ListenPort > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidMetricsAddress, m.ListenPort)
	}
	return nil
}

type Config struct {
	// DataDir is the parent directory of the session scratch store.
	// If not set, an in-memory key-value store is used. Preimages never outlive a session either way.
	DataDir string

	// L1Head is the block hash of the trusted L1 chain head block.
	// All L1 data and every Blobstream anchor is verified against this block.
	L1Head      common.Hash
	L1URL       string
	L1BeaconURL string
	// L1ChainID is used to select the canonical Blobstream deployment. Optional if BlobstreamAddress is set.
	L1ChainID uint64

	// L2Head is the l2 block hash contained in the L2 Output referenced by the L2OutputRoot
	L2Head common.Hash
	// L2OutputRoot is the agreed L2 output root to start derivation from
	L2OutputRoot common.Hash
	L2URL        string
	// L2Claim is the claimed L2 output root to verify
	L2Claim common.Hash
	// L2ClaimBlockNumber is the block number the claimed L2 output root is from
	// Must be above 0 and to be a valid claim needs to be above the L2Head block.
	L2ClaimBlockNumber uint64
	L2ChainID          uint64

	// DAURL is the Celestia node JSON-RPC endpoint. Celestia DA hints are rejected if unset.
	DAURL       string
	DACoreURL   string
	DAAuthToken string
	// DANamespace is the namespace blobs are read from when a pointer carries none.
	DANamespace share.Namespace
	// BlobstreamAddress is the L1 contract holding Celestia data commitments.
	BlobstreamAddress common.Address

	// FetchAttempts bounds the attempts made for each backend request.
	FetchAttempts int

	// ExecCmd specifies the guest program to execute in a separate process.
	ExecCmd string

	// ServerMode indicates that the program should run in pre-image server mode and wait for requests.
	// No guest program is run.
	ServerMode bool

	Metrics MetricsConfig
	Log     oplog.CLIConfig
}

func (c *Config) Check() error {
	if c.L2ChainID == 0 {
		return ErrMissingL2ChainID
	}
	if c.L1Head == (common.Hash{}) {
		return ErrInvalidL1Head
	}
	if c.L2Head == (common.Hash{}) {
		return ErrInvalidL2Head
	}
	if c.L2OutputRoot == (common.Hash{}) {
		return ErrInvalidL2OutputRoot
	}
	if c.L2ClaimBlockNumber == 0 {
		return ErrInvalidL2ClaimBlock
	}
	if (c.L1URL != "") != (c.L2URL != "") {
		return ErrL1AndL2Inconsistent
	}
	if !c.FetchingEnabled() {
		return ErrFetchingRequired
	}
	if c.DAEnabled() {
		if c.DACoreURL == "" || len(c.DANamespace) == 0 {
			return ErrDAIncomplete
		}
		if c.BlobstreamAddress == (common.Address{}) {
			return ErrMissingBlobstream
		}
	}
	if c.FetchAttempts < 1 {
		return ErrInvalidFetchAttempts
	}
	if c.ServerMode && c.ExecCmd != "" {
		return ErrNoExecInServerMode
	}
	if !c.ServerMode && c.ExecCmd == "" {
		return ErrNoGuest
	}
	return c.Metrics.Check()
}

func (c *Config) FetchingEnabled() bool {
	return c.L1URL != "" && c.L2URL != "" && c.L1BeaconURL != ""
}

func (c *Config) DAEnabled() bool {
	return c.DAURL != ""
}

// NewConfig creates a Config with all optional values set to the CLI default value
func NewConfig(
	l2ChainID uint64,
	l1Head common.Hash,
	l2Head common.Hash,
	l2OutputRoot common.Hash,
	l2Claim common.Hash,
	l2ClaimBlockNum uint64,
) *Config {
	return &Config{
		L2ChainID:          l2ChainID,
		L1Head:             l1Head,
		L2Head:             l2Head,
		L2OutputRoot:       l2OutputRoot,
		L2Claim:            l2Claim,
		L2ClaimBlockNumber: l2ClaimBlockNum,
		FetchAttempts:      flags.FetchAttempts.Value,
		Metrics: MetricsConfig{
			ListenAddr: flags.MetricsAddr.Value,
			ListenPort: flags.MetricsPort.Value,
		},
		Log: oplog.DefaultCLIConfig(),
	}
}

func NewConfigFromCLI(log log.Logger, ctx *cli.Context) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, err
	}
	l2Head := common.HexToHash(ctx.String(flags.L2Head.Name))
	if l2Head == (common.Hash{}) {
		return nil, ErrInvalidL2Head
	}
	l2OutputRoot := common.HexToHash(ctx.String(flags.L2OutputRoot.Name))
	if l2OutputRoot == (common.Hash{}) {
		return nil, ErrInvalidL2OutputRoot
	}
	strClaim := ctx.String(flags.L2Claim.Name)
	l2Claim := common.HexToHash(strClaim)
	// Require a valid hash, with the zero hash explicitly allowed.
	if l2Claim == (common.Hash{}) &&
		strClaim != "0x0000000000000000000000000000000000000000000000000000000000000000" &&
		strClaim != "0000000000000000000000000000000000000000000000000000000000000000" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidL2Claim, strClaim)
	}
	l1Head := common.HexToHash(ctx.String(flags.L1Head.Name))
	if l1Head == (common.Hash{}) {
		return nil, ErrInvalidL1Head
	}

	var namespace share.Namespace
	if ctx.IsSet(flags.CelestiaNamespace.Name) {
		ns, err := celestia.ParseNamespace(ctx.String(flags.CelestiaNamespace.Name))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", flags.CelestiaNamespace.Name, err)
		}
		namespace = ns
	}

	l1ChainID := ctx.Uint64(flags.L1ChainID.Name)
	var blobstream common.Address
	if ctx.IsSet(flags.BlobstreamAddr.Name) {
		raw := ctx.String(flags.BlobstreamAddr.Name)
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("invalid %s: %q", flags.BlobstreamAddr.Name, raw)
		}
		blobstream = common.HexToAddress(raw)
	} else if ctx.IsSet(flags.CelestiaAddr.Name) {
		addr, ok := celestia.BlobstreamAddress(l1ChainID)
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownBlobstreamL1, l1ChainID)
		}
		log.Info("Using canonical blobstream deployment", "l1ChainID", l1ChainID, "address", addr)
		blobstream = addr
	}

	logCfg, err := oplog.ReadCLIConfig(ctx)
	if err != nil {
		return nil, err
	}

	return &Config{
		DataDir:            ctx.String(flags.DataDir.Name),
		L1Head:             l1Head,
		L1URL:              ctx.String(flags.L1NodeAddr.Name),
		L1BeaconURL:        ctx.String(flags.L1BeaconAddr.Name),
		L1ChainID:          l1ChainID,
		L2Head:             l2Head,
		L2OutputRoot:       l2OutputRoot,
		L2URL:              ctx.String(flags.L2NodeAddr.Name),
		L2Claim:            l2Claim,
		L2ClaimBlockNumber: ctx.Uint64(flags.L2BlockNumber.Name),
		L2ChainID:          ctx.Uint64(flags.L2ChainID.Name),
		DAURL:              ctx.String(flags.CelestiaAddr.Name),
		DACoreURL:          ctx.String(flags.CelestiaCoreAddr.Name),
		DAAuthToken:        ctx.String(flags.CelestiaAuthToken.Name),
		DANamespace:        namespace,
		BlobstreamAddress:  blobstream,
		FetchAttempts:      ctx.Int(flags.FetchAttempts.Name),
		ExecCmd:            ctx.String(flags.Exec.Name),
		ServerMode:         ctx.Bool(flags.Server.Name),
		Metrics: MetricsConfig{
			Enabled:    ctx.Bool(flags.MetricsEnabled.Name),
			ListenAddr: ctx.String(flags.MetricsAddr.Name),
			ListenPort: ctx.Int(flags.MetricsPort.Name),
		},
		Log: logCfg,
	}, nil
}
