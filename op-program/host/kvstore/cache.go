package kvstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
)

// FetchFn produces the value for a missing key.
type FetchFn func(ctx context.Context) ([]byte, error)

// call is an in-flight fetch. done is closed once val and err are set.
type call struct {
	done chan struct{}
	val  []byte
	err  error
}

// Cache is the write-once pre-image cache of a session.
// Values for self-verifying keys are checked on insert, and a key never changes value once cached.
// Concurrent GetOrFetch calls for the same key share one fetch.
type Cache struct {
	store KV

	mu       sync.Mutex
	inflight map[preimage.Key]*call
}

func NewCache(store KV) *Cache {
	return &Cache{
		store:    store,
		inflight: make(map[preimage.Key]*call),
	}
}

// Get returns the cached value for key, or ErrNotFound.
func (c *Cache) Get(key preimage.Key) ([]byte, error) {
	return c.store.Get(key)
}

// Put inserts value under key. Re-inserting an identical value is a no-op.
// A mismatching value for a self-verifying key, or a value conflicting with the cached one,
// is a verification failure.
func (c *Cache) Put(key preimage.Key, value []byte) error {
	if key.Kind.SelfVerifying() {
		if err := preimage.VerifyPreimage(key, value); err != nil {
			return fmt.Errorf("%w: %w", preimage.ErrVerification, err)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, err := c.store.Get(key)
	switch {
	case err == nil:
		if !bytes.Equal(existing, value) {
			return fmt.Errorf("%w: conflicting value for cached key %s", preimage.ErrVerification, key)
		}
		return nil
	case !errors.Is(err, ErrNotFound):
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := c.store.Put(key, value); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// GetOrFetch returns the cached value for key, running fetch on a miss and caching its result.
// Only one fetch per key runs at a time; other callers wait for it, or give up when their ctx is done.
// Errors are returned to every waiter but never cached.
func (c *Cache) GetOrFetch(ctx context.Context, key preimage.Key, fetch FetchFn) ([]byte, error) {
	if v, err := c.store.Get(key); err == nil {
		return v, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	c.mu.Lock()
	if cl, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-cl.done:
			return cl.val, cl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	// The fetch may have completed between the lookup above and taking the lock.
	if v, err := c.store.Get(key); err == nil {
		c.mu.Unlock()
		return v, nil
	}
	cl := &call{done: make(chan struct{})}
	c.inflight[key] = cl
	c.mu.Unlock()

	cl.val, cl.err = fetch(ctx)
	if cl.err == nil {
		if err := c.Put(key, cl.val); err != nil {
			cl.val, cl.err = nil, err
		}
	}

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
	close(cl.done)
	return cl.val, cl.err
}

// InFlight is the number of fetches currently running.
func (c *Cache) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

func (c *Cache) Close() error {
	return c.store.Close()
}
