package kvstore

import (
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
)

func TestMemKV(t *testing.T) {
	kvTest(t, NewMemKV())
}

func TestPebbleKV(t *testing.T) {
	parent := t.TempDir()
	kv, err := NewPebbleKV(parent)
	require.NoError(t, err)
	kvTest(t, kv)
}

func TestPebbleKVRemovesSessionDir(t *testing.T) {
	kv, err := NewPebbleKV(t.TempDir())
	require.NoError(t, err)
	require.DirExists(t, kv.Dir())
	require.NoError(t, kv.Put(preimage.LocalIndexKey(1), []byte{1}))
	require.NoError(t, kv.Close())
	_, err = os.Stat(kv.Dir())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestPebbleKVSessionsAreIsolated(t *testing.T) {
	parent := t.TempDir()
	first, err := NewPebbleKV(parent)
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close() })
	second, err := NewPebbleKV(parent)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	key := preimage.LocalIndexKey(7)
	require.NoError(t, first.Put(key, []byte("first")))
	_, err = second.Get(key)
	require.ErrorIs(t, err, ErrNotFound)
}

func kvTest(t *testing.T, kv KV) {
	t.Cleanup(func() {
		require.NoError(t, kv.Close())
	})

	t.Run("roundtrip", func(t *testing.T) {
		t.Parallel()
		_, err := kv.Get(preimage.Keccak256Key(common.Hash{0xaa}))
		require.Equal(t, err, ErrNotFound, "file (in new tmp dir) does not exist yet")

		value := []byte("hello world")
		key := preimage.Keccak256Key(crypto.Keccak256Hash(value))
		require.NoError(t, kv.Put(key, value))
		got, err := kv.Get(key)
		require.NoError(t, err)
		require.Equal(t, value, got)
	})

	t.Run("empty pre-image", func(t *testing.T) {
		t.Parallel()
		key := preimage.Keccak256Key(crypto.Keccak256Hash(nil))
		require.NoError(t, kv.Put(key, []byte{}))
		got, err := kv.Get(key)
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("kinds are distinct", func(t *testing.T) {
		t.Parallel()
		digest := common.Hash{0xbb}
		require.NoError(t, kv.Put(preimage.GlobalGenericKey(digest), []byte("generic")))
		_, err := kv.Get(preimage.PrecompileKey(digest))
		require.ErrorIs(t, err, ErrNotFound)
	})
}
