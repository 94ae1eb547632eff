package main

import (
	"strconv"
	"testing"

	"github.com/celestiaorg/celestia-openrpc/types/share"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/op-celestia-host/op-program/host/celestia"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/config"
	oplog "github.com/mantlenetworkio/op-celestia-host/op-service/log"
)

var (
	// Use HexToHash(...).Hex() to ensure the strings are the correct length for a hash
	l1HeadValue        = common.HexToHash("0x111111").Hex()
	l2HeadValue        = common.HexToHash("0x222222").Hex()
	l2ClaimValue       = common.HexToHash("0x333333").Hex()
	l2OutputRoot       = common.HexToHash("0x444444").Hex()
	l2ClaimBlockNumber = uint64(1203)
	l2ChainID          = uint64(5000)
	namespaceID        = "6d616e746c65"
)

func TestLogLevel(t *testing.T) {
	t.Run("RejectInvalid", func(t *testing.T) {
		verifyArgsInvalid(t, "unrecognized log level: \"foo\"", addRequiredArgs("--log.level=foo"))
	})

	for _, lvl := range []string{"trace", "debug", "info", "error", "crit"} {
		lvl := lvl
		t.Run("AcceptValid_"+lvl, func(t *testing.T) {
			logger, _, err := runWithArgs(addRequiredArgs("--log.level", lvl))
			require.NoError(t, err)
			require.NotNil(t, logger)
		})
	}
}

func TestLogFormat(t *testing.T) {
	t.Run("RejectInvalid", func(t *testing.T) {
		verifyArgsInvalid(t, `unrecognized log format: "foo"`, addRequiredArgs("--log.format=foo"))
	})

	for _, format := range []oplog.FormatType{oplog.FormatJSON, oplog.FormatTerminal, oplog.FormatText, oplog.FormatLogFmt} {
		format := format
		t.Run("AcceptValid_"+string(format), func(t *testing.T) {
			logger, _, err := runWithArgs(addRequiredArgs("--log.format", string(format)))
			require.NoError(t, err)
			require.NotNil(t, logger)
		})
	}
}

func TestDefaultCLIOptionsMatchDefaultConfig(t *testing.T) {
	cfg := configForArgs(t, addRequiredArgs())
	defaultCfg := config.NewConfig(
		l2ChainID,
		common.HexToHash(l1HeadValue),
		common.HexToHash(l2HeadValue),
		common.HexToHash(l2OutputRoot),
		common.HexToHash(l2ClaimValue),
		l2ClaimBlockNumber)
	require.Equal(t, defaultCfg, cfg)
}

func TestDataDir(t *testing.T) {
	expected := "/tmp/mainTestDataDir"
	cfg := configForArgs(t, addRequiredArgs("--datadir", expected))
	require.Equal(t, expected, cfg.DataDir)
}

func TestL1Head(t *testing.T) {
	t.Run("Required", func(t *testing.T) {
		verifyArgsInvalid(t, "flag l1.head is required", addRequiredArgsExcept("--l1.head"))
	})

	t.Run("Valid", func(t *testing.T) {
		cfg := configForArgs(t, replaceRequiredArg("--l1.head", l1HeadValue))
		require.Equal(t, common.HexToHash(l1HeadValue), cfg.L1Head)
	})

	t.Run("Invalid", func(t *testing.T) {
		verifyArgsInvalid(t, config.ErrInvalidL1Head.Error(), replaceRequiredArg("--l1.head", "something"))
	})
}

func TestL2Head(t *testing.T) {
	t.Run("Required", func(t *testing.T) {
		verifyArgsInvalid(t, "flag l2.head is required", addRequiredArgsExcept("--l2.head"))
	})

	t.Run("Valid", func(t *testing.T) {
		cfg := configForArgs(t, replaceRequiredArg("--l2.head", l2HeadValue))
		require.Equal(t, common.HexToHash(l2HeadValue), cfg.L2Head)
	})

	t.Run("Invalid", func(t *testing.T) {
		verifyArgsInvalid(t, config.ErrInvalidL2Head.Error(), replaceRequiredArg("--l2.head", "something"))
	})
}

func TestL2OutputRoot(t *testing.T) {
	t.Run("Required", func(t *testing.T) {
		verifyArgsInvalid(t, "flag l2.outputroot is required", addRequiredArgsExcept("--l2.outputroot"))
	})

	t.Run("Valid", func(t *testing.T) {
		cfg := configForArgs(t, replaceRequiredArg("--l2.outputroot", l2OutputRoot))
		require.Equal(t, common.HexToHash(l2OutputRoot), cfg.L2OutputRoot)
	})

	t.Run("Invalid", func(t *testing.T) {
		verifyArgsInvalid(t, config.ErrInvalidL2OutputRoot.Error(), replaceRequiredArg("--l2.outputroot", "something"))
	})
}

func TestL2Claim(t *testing.T) {
	t.Run("Required", func(t *testing.T) {
		verifyArgsInvalid(t, "flag l2.claim is required", addRequiredArgsExcept("--l2.claim"))
	})

	t.Run("Valid", func(t *testing.T) {
		cfg := configForArgs(t, replaceRequiredArg("--l2.claim", l2ClaimValue))
		require.EqualValues(t, common.HexToHash(l2ClaimValue), cfg.L2Claim)
	})

	t.Run("Invalid", func(t *testing.T) {
		verifyArgsInvalid(t, config.ErrInvalidL2Claim.Error(), replaceRequiredArg("--l2.claim", "something"))
	})

	t.Run("Allows all zero without prefix", func(t *testing.T) {
		cfg := configForArgs(t, replaceRequiredArg("--l2.claim", "0000000000000000000000000000000000000000000000000000000000000000"))
		require.EqualValues(t, common.Hash{}, cfg.L2Claim)
	})

	t.Run("Allows all zero with prefix", func(t *testing.T) {
		cfg := configForArgs(t, replaceRequiredArg("--l2.claim", "0x0000000000000000000000000000000000000000000000000000000000000000"))
		require.EqualValues(t, common.Hash{}, cfg.L2Claim)
	})
}

func TestL2BlockNumber(t *testing.T) {
	t.Run("Required", func(t *testing.T) {
		verifyArgsInvalid(t, "flag l2.blocknumber is required", addRequiredArgsExcept("--l2.blocknumber"))
	})

	t.Run("Valid", func(t *testing.T) {
		cfg := configForArgs(t, replaceRequiredArg("--l2.blocknumber", strconv.FormatUint(l2ClaimBlockNumber, 10)))
		require.EqualValues(t, l2ClaimBlockNumber, cfg.L2ClaimBlockNumber)
	})

	t.Run("Invalid", func(t *testing.T) {
		verifyArgsInvalid(t, "invalid value \"something\" for flag -l2.blocknumber", replaceRequiredArg("--l2.blocknumber", "something"))
	})
}

func TestL2ChainID(t *testing.T) {
	t.Run("Required", func(t *testing.T) {
		verifyArgsInvalid(t, "flag l2.chainid is required", addRequiredArgsExcept("--l2.chainid"))
	})

	t.Run("Valid", func(t *testing.T) {
		cfg := configForArgs(t, replaceRequiredArg("--l2.chainid", "17"))
		require.EqualValues(t, 17, cfg.L2ChainID)
	})
}

func TestEndpoints(t *testing.T) {
	cfg := configForArgs(t, addRequiredArgs(
		"--l1", "http://example.com:8545",
		"--l1.beacon", "http://example.com:5052",
		"--l2", "http://example.com:9545",
	))
	require.Equal(t, "http://example.com:8545", cfg.L1URL)
	require.Equal(t, "http://example.com:5052", cfg.L1BeaconURL)
	require.Equal(t, "http://example.com:9545", cfg.L2URL)
	require.True(t, cfg.FetchingEnabled())
}

func TestCelestia(t *testing.T) {
	daArgs := func(extra ...string) []string {
		return addRequiredArgs(append([]string{
			"--celestia.rpc", "http://localhost:26658",
			"--celestia.core-rpc", "http://localhost:26657",
			"--celestia.auth-token", "token",
			"--celestia.namespace", namespaceID,
		}, extra...)...)
	}

	t.Run("DisabledByDefault", func(t *testing.T) {
		cfg := configForArgs(t, addRequiredArgs())
		require.False(t, cfg.DAEnabled())
		require.Nil(t, cfg.DANamespace)
	})

	t.Run("ExplicitBlobstream", func(t *testing.T) {
		cfg := configForArgs(t, daArgs("--blobstream.address", "0x7Cf3876F681Dbb6EdA8f6FfC45D66B996Df08fAe"))
		require.True(t, cfg.DAEnabled())
		require.Equal(t, "http://localhost:26658", cfg.DAURL)
		require.Equal(t, "http://localhost:26657", cfg.DACoreURL)
		require.Equal(t, "token", cfg.DAAuthToken)
		expected, err := share.NewBlobNamespaceV0([]byte("mantle"))
		require.NoError(t, err)
		require.Equal(t, expected, cfg.DANamespace)
		require.Equal(t, common.HexToAddress("0x7Cf3876F681Dbb6EdA8f6FfC45D66B996Df08fAe"), cfg.BlobstreamAddress)
	})

	t.Run("CanonicalBlobstream", func(t *testing.T) {
		expected, ok := celestia.BlobstreamAddress(1)
		require.True(t, ok)
		cfg := configForArgs(t, daArgs("--l1.chainid", "1"))
		require.Equal(t, expected, cfg.BlobstreamAddress)
	})

	t.Run("UnknownL1", func(t *testing.T) {
		verifyArgsInvalid(t, config.ErrUnknownBlobstreamL1.Error(), daArgs("--l1.chainid", "424242"))
	})

	t.Run("RequireBlobstreamOrL1ChainID", func(t *testing.T) {
		verifyArgsInvalid(t, "flag blobstream.address or l1.chainid is required", daArgs())
	})

	t.Run("InvalidNamespace", func(t *testing.T) {
		verifyArgsInvalid(t, "invalid celestia.namespace", addRequiredArgs(
			"--celestia.rpc", "http://localhost:26658",
			"--celestia.namespace", "zz",
			"--l1.chainid", "1"))
	})

	t.Run("InvalidBlobstream", func(t *testing.T) {
		verifyArgsInvalid(t, "invalid blobstream.address", daArgs("--blobstream.address", "0x1234"))
	})
}

func TestFetchAttempts(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		cfg := configForArgs(t, addRequiredArgs())
		require.Equal(t, 5, cfg.FetchAttempts)
	})
	t.Run("Set", func(t *testing.T) {
		cfg := configForArgs(t, addRequiredArgs("--fetch.attempts", "2"))
		require.Equal(t, 2, cfg.FetchAttempts)
	})
}

func TestMetrics(t *testing.T) {
	cfg := configForArgs(t, addRequiredArgs("--metrics.enabled", "--metrics.addr", "127.0.0.1", "--metrics.port", "9100"))
	require.Equal(t, config.MetricsConfig{Enabled: true, ListenAddr: "127.0.0.1", ListenPort: 9100}, cfg.Metrics)
}

func TestExec(t *testing.T) {
	t.Run("DefaultEmpty", func(t *testing.T) {
		cfg := configForArgs(t, addRequiredArgs())
		require.Equal(t, "", cfg.ExecCmd)
	})
	t.Run("Set", func(t *testing.T) {
		cmd := "/bin/echo"
		cfg := configForArgs(t, addRequiredArgs("--exec", cmd))
		require.Equal(t, cmd, cfg.ExecCmd)
	})
}

func TestServerMode(t *testing.T) {
	t.Run("DefaultFalse", func(t *testing.T) {
		cfg := configForArgs(t, addRequiredArgs())
		require.False(t, cfg.ServerMode)
	})
	t.Run("Enabled", func(t *testing.T) {
		cfg := configForArgs(t, addRequiredArgs("--server"))
		require.True(t, cfg.ServerMode)
	})
	t.Run("EnabledWithArg", func(t *testing.T) {
		cfg := configForArgs(t, addRequiredArgs("--server=true"))
		require.True(t, cfg.ServerMode)
	})
	t.Run("DisabledWithArg", func(t *testing.T) {
		cfg := configForArgs(t, addRequiredArgs("--server=false"))
		require.False(t, cfg.ServerMode)
	})
	t.Run("InvalidArg", func(t *testing.T) {
		verifyArgsInvalid(t, "invalid boolean value \"foo\" for -server", addRequiredArgs("--server=foo"))
	})
}

func verifyArgsInvalid(t *testing.T, messageContains string, cliArgs []string) {
	_, _, err := runWithArgs(cliArgs)
	require.ErrorContains(t, err, messageContains)
}

func configForArgs(t *testing.T, cliArgs []string) *config.Config {
	_, cfg, err := runWithArgs(cliArgs)
	require.NoError(t, err)
	return cfg
}

func runWithArgs(cliArgs []string) (log.Logger, *config.Config, error) {
	cfg := new(config.Config)
	var logger log.Logger
	fullArgs := append([]string{"op-celestia-host"}, cliArgs...)
	err := run(fullArgs, func(log log.Logger, config *config.Config) error {
		logger = log
		cfg = config
		return nil
	})
	return logger, cfg, err
}

func addRequiredArgs(args ...string) []string {
	req := requiredArgs()
	combined := toArgList(req)
	return append(combined, args...)
}

func addRequiredArgsExcept(name string, optionalArgs ...string) []string {
	req := requiredArgs()
	delete(req, name)
	return append(toArgList(req), optionalArgs...)
}

func replaceRequiredArg(name string, value string) []string {
	req := requiredArgs()
	req[name] = value
	return toArgList(req)
}

// requiredArgs returns map of argument names to values which are the minimal arguments required
// to create a valid Config
func requiredArgs() map[string]string {
	return map[string]string{
		"--l1.head":        l1HeadValue,
		"--l2.head":        l2HeadValue,
		"--l2.outputroot":  l2OutputRoot,
		"--l2.claim":       l2ClaimValue,
		"--l2.blocknumber": strconv.FormatUint(l2ClaimBlockNumber, 10),
		"--l2.chainid":     strconv.FormatUint(l2ChainID, 10),
	}
}

func toArgList(req map[string]string) []string {
	var combined []string
	for name, value := range req {
		combined = append(combined, name)
		combined = append(combined, value)
	}
	return combined
}
