package kvstore

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/hashicorp/go-multierror"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
)

// PebbleKV is a disk-backed key value store for a single session, for pre-image sets that do not
// fit in memory. The database lives in a fresh temporary directory that is removed on Close.
type PebbleKV struct {
	sync.RWMutex
	dir string
	db  *pebble.DB
}

var _ KV = (*PebbleKV)(nil)

// NewPebbleKV creates a scratch pebble database in a new temporary directory under parent.
func NewPebbleKV(parent string) (*PebbleKV, error) {
	dir, err := os.MkdirTemp(parent, "preimages-")
	if err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	opts := &pebble.Options{
		Cache:                    pebble.NewCache(int64(32 * 1024 * 1024)),
		MaxConcurrentCompactions: runtime.NumCPU,
		Levels: []pebble.LevelOptions{
			{Compression: pebble.SnappyCompression},
		},
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to open pebbledb at %s: %w", dir, err)
	}
	return &PebbleKV{dir: dir, db: db}, nil
}

func (d *PebbleKV) Put(k preimage.Key, v []byte) error {
	d.Lock()
	defer d.Unlock()
	key := k.Marshal()
	return d.db.Set(key[:], v, pebble.NoSync)
}

func (d *PebbleKV) Get(k preimage.Key) ([]byte, error) {
	d.RLock()
	defer d.RUnlock()
	key := k.Marshal()
	dat, closer, err := d.db.Get(key[:])
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	ret := make([]byte, len(dat))
	copy(ret, dat)
	closer.Close()
	return ret, nil
}

// Dir is the session directory backing the store.
func (d *PebbleKV) Dir() string {
	return d.dir
}

func (d *PebbleKV) Close() error {
	d.Lock()
	defer d.Unlock()
	var result *multierror.Error
	if err := d.db.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close pebbledb: %w", err))
	}
	if err := os.RemoveAll(d.dir); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to remove session directory: %w", err))
	}
	return result.ErrorOrNil()
}
