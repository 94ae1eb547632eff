package sources

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
)

// FetchError is returned once a backend request has exhausted its retries.
type FetchError struct {
	Source string
	Op     string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Source, e.Op, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{preimage.ErrFetch, e.Err}
}

// maybeAsNotFound maps the various not-found responses of backends to preimage.ErrNotFound.
func maybeAsNotFound(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ethereum.NotFound) || errors.Is(err, preimage.ErrNotFound) {
		return fmt.Errorf("%w: %w", preimage.ErrNotFound, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "not found") || strings.Contains(msg, "unknown block") {
		return fmt.Errorf("%w: %w", preimage.ErrNotFound, err)
	}
	return err
}
