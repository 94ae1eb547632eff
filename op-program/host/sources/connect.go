package sources

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/mantlenetworkio/op-celestia-host/op-service/retry"
)

var ErrChainIDMismatch = errors.New("rpc chain id does not match configured chain id")

const dialAttempts = 10

// ConnectEthClient dials the execution RPC at url and checks that it serves the expected chain.
// An expectedChainID of 0 skips the check.
func ConnectEthClient(ctx context.Context, logger log.Logger, name string, url string, expectedChainID uint64) (*EthClient, error) {
	logger.Info("Connecting to "+name+" source", "url", url)
	client, err := retry.Do(ctx, dialAttempts, retry.Exponential(), func() (*rpc.Client, error) {
		dialCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		return rpc.DialContext(dialCtx, url)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rpc URL %s: %w", url, err)
	}
	cl, err := NewEthClient(logger.New("source", name), client, DefaultHeadersCacheSize)
	if err != nil {
		client.Close()
		return nil, err
	}
	if expectedChainID == 0 {
		return cl, nil
	}
	chainID, err := loadChainID(ctx, cl)
	if err != nil {
		cl.Close()
		return nil, fmt.Errorf("failed to load chain ID: %w", err)
	}
	if !chainID.IsUint64() || chainID.Uint64() != expectedChainID {
		cl.Close()
		return nil, fmt.Errorf("%w: %s rpc serves chain %v, expected %d", ErrChainIDMismatch, name, chainID, expectedChainID)
	}
	return cl, nil
}

func loadChainID(ctx context.Context, cl *EthClient) (*big.Int, error) {
	return retry.Do(ctx, 3, retry.Exponential(), func() (*big.Int, error) {
		return cl.ChainID(ctx)
	})
}
