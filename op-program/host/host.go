package host

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/hashicorp/go-multierror"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
	hostcommon "github.com/mantlenetworkio/op-celestia-host/op-program/host/common"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/config"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/kvstore"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/metrics"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/prefetcher"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/sources"
	opmetrics "github.com/mantlenetworkio/op-celestia-host/op-service/metrics"
)

// Main runs a guest to completion, or serves a guest on the inherited descriptors in server mode.
func Main(logger log.Logger, cfg *config.Config, version string) error {
	if err := cfg.Check(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics()
	m.RecordInfo(version)
	if cfg.Metrics.Enabled {
		srv, err := opmetrics.StartServer(m.Registry(), cfg.Metrics.ListenAddr, cfg.Metrics.ListenPort)
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		logger.Info("Started metrics server", "addr", srv.Addr())
		defer func() {
			if err := srv.Stop(context.Background()); err != nil {
				logger.Error("Failed to stop metrics server", "err", err)
			}
		}()
	}
	m.RecordUp()

	if cfg.ServerMode {
		return hostcommon.RunPreimageServer(ctx, logger, cfg, preimage.HostChannel(), makeDefaultPrefetcher(m), m)
	}
	if err := FaultProofProgramWithDefaultPrefetcher(ctx, logger, cfg, m); err != nil {
		return err
	}
	logger.Info("Guest completed successfully")
	return nil
}

// FaultProofProgramWithDefaultPrefetcher runs the guest against a prefetcher connected to the configured backends.
func FaultProofProgramWithDefaultPrefetcher(ctx context.Context, logger log.Logger, cfg *config.Config, m metrics.Metricer, opts ...hostcommon.ProgramOpt) error {
	var newopts []hostcommon.ProgramOpt
	newopts = append(newopts, hostcommon.WithPrefetcher(makeDefaultPrefetcher(m)), hostcommon.WithMetrics(m))
	newopts = append(newopts, opts...)
	return hostcommon.FaultProofProgram(ctx, logger, cfg, newopts...)
}

// sessionPrefetcher closes the backend connections of a session along with its prefetcher.
type sessionPrefetcher struct {
	*prefetcher.Prefetcher
	closers []func() error
}

var _ io.Closer = (*sessionPrefetcher)(nil)

func (s *sessionPrefetcher) Close() error {
	var result *multierror.Error
	for _, c := range s.closers {
		result = multierror.Append(result, c())
	}
	return result.ErrorOrNil()
}

func makeDefaultPrefetcher(m metrics.Metricer) hostcommon.PrefetcherCreator {
	return func(ctx context.Context, logger log.Logger, cache *kvstore.Cache, cfg *config.Config) (hostcommon.Prefetcher, error) {
		if !cfg.FetchingEnabled() {
			return nil, nil
		}
		session := &sessionPrefetcher{}
		fail := func(err error) (hostcommon.Prefetcher, error) {
			return nil, multierror.Append(err, session.Close()).ErrorOrNil()
		}

		l1Client, err := sources.ConnectEthClient(ctx, logger, "l1", cfg.L1URL, cfg.L1ChainID)
		if err != nil {
			return fail(fmt.Errorf("failed to setup L1 client: %w", err))
		}
		session.closers = append(session.closers, func() error { l1Client.Close(); return nil })
		l2Client, err := sources.ConnectEthClient(ctx, logger, "l2", cfg.L2URL, cfg.L2ChainID)
		if err != nil {
			return fail(fmt.Errorf("failed to setup L2 client: %w", err))
		}
		session.closers = append(session.closers, func() error { l2Client.Close(); return nil })

		logger.Info("Connecting to L1 beacon", "url", cfg.L1BeaconURL)
		beacon := sources.NewBeaconClient(logger.New("source", "l1-beacon"), cfg.L1BeaconURL)

		l1 := sources.NewRetryingEthSource(logger, "l1", l1Client, cfg.FetchAttempts, m)
		srcs := prefetcher.Sources{
			L1:      l1,
			L1Blobs: sources.NewRetryingBlobSource(logger, beacon, cfg.FetchAttempts, m),
			L2:      sources.NewRetryingEthSource(logger, "l2", l2Client, cfg.FetchAttempts, m),
		}

		if cfg.DAEnabled() {
			logger.Info("Connecting to celestia", "url", cfg.DAURL, "core", cfg.DACoreURL, "namespace", cfg.DANamespace)
			da, err := sources.NewCelestiaClient(ctx, logger.New("source", "celestia"), cfg.DAURL, cfg.DACoreURL, cfg.DAAuthToken)
			if err != nil {
				return fail(err)
			}
			session.closers = append(session.closers, da.Close)
			logs, err := sources.NewBlobstreamLogs(cfg.BlobstreamAddress, l1Client)
			if err != nil {
				return fail(fmt.Errorf("failed to bind blobstream contract: %w", err))
			}
			// The anchor only reaches L1 through retrying sources, so it is not wrapped itself.
			srcs.Anchor = sources.NewBlobstreamAnchor(logger.New("source", "blobstream"), l1,
				sources.NewRetryingDataCommitmentLogs(logger, logs, cfg.FetchAttempts, m), cfg.BlobstreamAddress, cfg.L1Head)
			srcs.DA = sources.NewRetryingDASource(logger, da, cfg.FetchAttempts, m)
		}

		session.Prefetcher = prefetcher.NewPrefetcher(logger, srcs, cache, m, cfg.L2ChainID, cfg.L2Head, cfg.DANamespace)
		return session, nil
	}
}
