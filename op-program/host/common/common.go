package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"

	"github.com/ethereum/go-ethereum/log"
	"github.com/hashicorp/go-multierror"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/config"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/kvstore"
)

type Prefetcher interface {
	Hint(ctx context.Context, hint string) error
	GetPreimage(ctx context.Context, key preimage.Key) ([]byte, error)
}

// PrefetcherCreator builds the prefetcher of a session on top of the session's fresh cache.
// Returning a nil Prefetcher runs the session offline, serving only what is already cached.
// A Prefetcher that implements io.Closer is closed when the session ends.
type PrefetcherCreator func(ctx context.Context, logger log.Logger, cache *kvstore.Cache, cfg *config.Config) (Prefetcher, error)

type Metricer interface {
	RecordPreimageRequest(kind string, err error)
}

type programCfg struct {
	prefetcher PrefetcherCreator
	metrics    Metricer
}

type ProgramOpt func(c *programCfg)

// WithPrefetcher configures the prefetcher used by the preimage server.
func WithPrefetcher(creator PrefetcherCreator) ProgramOpt {
	return func(c *programCfg) {
		c.prefetcher = creator
	}
}

func WithMetrics(m Metricer) ProgramOpt {
	return func(c *programCfg) {
		c.metrics = m
	}
}

type noopMetrics struct{}

func (noopMetrics) RecordPreimageRequest(string, error) {}

// FaultProofProgram serves a guest program launched with cfg.ExecCmd until it exits.
// The guest inherits the channel on fds 3 (read) and 4 (write).
func FaultProofProgram(ctx context.Context, logger log.Logger, cfg *config.Config, opts ...ProgramOpt) error {
	programConfig := &programCfg{metrics: noopMetrics{}}
	for _, opt := range opts {
		opt(programConfig)
	}
	if programConfig.prefetcher == nil {
		panic("prefetcher creator is not set")
	}
	if cfg.ExecCmd == "" {
		return config.ErrNoGuest
	}
	preimageServer, err := StartPreimageServer(ctx, logger, cfg, programConfig.prefetcher, programConfig.metrics)
	if err != nil {
		return err
	}

	clientRW := preimageServer.ClientRW()
	cmd := exec.CommandContext(ctx, cfg.ExecCmd)
	cmd.ExtraFiles = make([]*os.File, preimage.MaxFd-3) // not including stdin, stdout and stderr
	cmd.ExtraFiles[preimage.GuestRFd-3] = clientRW.Reader()
	cmd.ExtraFiles[preimage.GuestWFd-3] = clientRW.Writer()
	cmd.Stdout = os.Stdout // for debugging
	cmd.Stderr = os.Stderr // for debugging

	var result *multierror.Error
	if err := cmd.Start(); err != nil {
		result = multierror.Append(result, fmt.Errorf("program cmd failed to start: %w", err))
	} else if err := cmd.Wait(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to wait for child program: %w", err))
	} else {
		logger.Debug("Client program completed successfully")
	}
	result = multierror.Append(result, preimageServer.Close())
	return result.ErrorOrNil()
}

// PreimageServer runs a session in the background, serving the client end of an in-process channel.
type PreimageServer struct {
	logger    log.Logger
	serverErr chan error

	clientRW preimage.FileChannel
}

func StartPreimageServer(ctx context.Context, logger log.Logger, cfg *config.Config, prefetcher PrefetcherCreator, m Metricer) (*PreimageServer, error) {
	server := &PreimageServer{
		logger: logger,
	}
	clientRW, hostRW, err := preimage.CreateBidirectionalChannel()
	if err != nil {
		return nil, fmt.Errorf("failed to create preimage channel: %w", err)
	}
	server.clientRW = clientRW

	// Use a channel to receive the server result so we can wait for it to complete before returning
	server.serverErr = make(chan error, 1)
	go func() {
		defer close(server.serverErr)
		server.serverErr <- RunPreimageServer(ctx, logger, cfg, hostRW, prefetcher, m)
	}()

	return server, nil
}

func (p *PreimageServer) ClientRW() preimage.FileChannel {
	return p.clientRW
}

// Close closes the client end of the channel and returns the session's error once it has stopped.
func (p *PreimageServer) Close() error {
	if p.clientRW != nil {
		_ = p.clientRW.Close()
	}
	err := <-p.serverErr
	if err != nil {
		p.logger.Error("Preimage server failed", "err", err)
		return err
	}
	p.logger.Debug("Preimage server stopped")
	return nil
}

// RunPreimageServer serves hints and preimage requests read from channel until the guest closes it,
// a fatal error occurs, or ctx is done. Every session gets a fresh cache which is dropped on return.
// The supplied channel is closed before this function returns.
func RunPreimageServer(ctx context.Context, logger log.Logger, cfg *config.Config, channel preimage.FileChannel, prefetcherCreator PrefetcherCreator, m Metricer) (err error) {
	var (
		serverDone chan error
		cache      *kvstore.Cache
		prefetch   Prefetcher
	)
	logger.Info("Starting preimage server")

	// Close the channel, and then the prefetcher and cache once the server has exited.
	defer func() {
		closeErr := channel.Close()
		if serverDone != nil {
			<-serverDone
		}
		if c, ok := prefetch.(io.Closer); ok {
			closeErr = multierror.Append(closeErr, c.Close()).ErrorOrNil()
		}
		if cache != nil {
			closeErr = multierror.Append(closeErr, cache.Close()).ErrorOrNil()
		}
		if err == nil {
			err = closeErr
		}
	}()

	kv, err := openStore(logger, cfg)
	if err != nil {
		return err
	}
	cache = kvstore.NewCache(kv)

	prefetch, err = prefetcherCreator(ctx, logger, cache, cfg)
	if err != nil {
		return fmt.Errorf("failed to create prefetcher: %w", err)
	}
	if prefetch == nil {
		logger.Info("Using offline mode. All required pre-images must be pre-populated.")
	}
	handler := &requestHandler{
		logger:     logger,
		local:      kvstore.NewLocalPreimageSource(cfg),
		cache:      cache,
		prefetcher: prefetch,
		metrics:    m,
	}

	serverDone = launchOracleServer(ctx, logger, channel, handler)
	select {
	case err := <-serverDone:
		return err
	case <-ctx.Done():
		logger.Info("Shutting down")
		if errors.Is(ctx.Err(), context.Canceled) {
			// We were asked to shutdown by the context being cancelled so don't treat it as an error condition.
			return nil
		}
		return ctx.Err()
	}
}

func openStore(logger log.Logger, cfg *config.Config) (kvstore.KV, error) {
	if cfg.DataDir == "" {
		logger.Info("Using in-memory storage")
		return kvstore.NewMemKV(), nil
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating datadir: %w", err)
	}
	store, err := kvstore.NewPebbleKV(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("creating kvstore: %w", err)
	}
	logger.Info("Using disk storage", "dir", store.Dir())
	return store, nil
}

func launchOracleServer(ctx context.Context, logger log.Logger, rw io.ReadWriter, handler preimage.RequestHandler) chan error {
	chErr := make(chan error, 1)
	server := preimage.NewOracleServer(rw)
	go func() {
		defer close(chErr)
		for {
			if err := server.NextRequest(ctx, handler); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, fs.ErrClosed) {
					logger.Debug("Closing pre-image server")
					return
				}
				logger.Error("Pre-image server error", "err", err)
				chErr <- err
				return
			}
		}
	}()
	return chErr
}

// requestHandler routes local keys to the boot inputs and everything else through the prefetcher.
type requestHandler struct {
	logger     log.Logger
	local      *kvstore.LocalPreimageSource
	cache      *kvstore.Cache
	prefetcher Prefetcher
	metrics    Metricer
}

var _ preimage.RequestHandler = (*requestHandler)(nil)

func (h *requestHandler) Hint(ctx context.Context, hint string) error {
	if h.prefetcher == nil {
		h.logger.Debug("Ignoring prefetch hint", "hint", hint)
		return nil
	}
	return h.prefetcher.Hint(ctx, hint)
}

func (h *requestHandler) GetPreimage(ctx context.Context, key preimage.Key) (value []byte, err error) {
	defer func() {
		h.metrics.RecordPreimageRequest(key.Kind.String(), err)
	}()
	switch {
	case key.Kind == preimage.LocalKeyKind:
		return h.local.Get(key)
	case h.prefetcher == nil:
		return h.cache.Get(key)
	default:
		return h.prefetcher.GetPreimage(ctx, key)
	}
}
