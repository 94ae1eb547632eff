package celestia

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
)

func TestBlobPointer(t *testing.T) {
	ns := testNamespace(t)
	ptr := BlobPointer{Height: 0x0102, Commitment: common.Hash{0xcc}, Namespace: ns}

	t.Run("Encoding", func(t *testing.T) {
		data := ptr.MarshalHint()
		require.Len(t, data, 8+32+NamespaceSize)
		require.Equal(t, []byte{0x02, 0x01, 0, 0, 0, 0, 0, 0}, data[:8])
		decoded, err := UnmarshalBlobPointer(data)
		require.NoError(t, err)
		require.Equal(t, ptr, decoded)
	})

	t.Run("WithoutNamespace", func(t *testing.T) {
		bare := BlobPointer{Height: ptr.Height, Commitment: ptr.Commitment}
		data := bare.MarshalHint()
		require.Len(t, data, 40)
		decoded, err := UnmarshalBlobPointer(data)
		require.NoError(t, err)
		require.Nil(t, decoded.Namespace)
	})

	t.Run("InvalidLength", func(t *testing.T) {
		for _, size := range []int{0, 39, 41, 68, 70} {
			_, err := UnmarshalBlobPointer(make([]byte, size))
			require.ErrorIs(t, err, ErrInvalidPointer)
		}
	})

	t.Run("Hint", func(t *testing.T) {
		h, err := preimage.ParseHint(ptr.Hint())
		require.NoError(t, err)
		require.Equal(t, HintDA, h.Name)
		require.Equal(t, ptr.MarshalHint(), h.Payload)
	})

	t.Run("Keys", func(t *testing.T) {
		require.Equal(t, preimage.DANamespaceKey(ptr.Height, ns, ptr.Commitment), ptr.Key())
		other := ptr
		other.Namespace = nil
		require.NotEqual(t, ptr.Key(), other.Key())
		require.Equal(t, ptr.BundleKey(), other.BundleKey())
		require.Equal(t, preimage.GlobalGenericKey(crypto.Keccak256Hash(preimage.DAPointer(ptr.Height, ptr.Commitment))), ptr.BundleKey())
	})
}

func TestParseNamespace(t *testing.T) {
	ns, err := ParseNamespace("6d616e746c65")
	require.NoError(t, err)
	require.Equal(t, testNamespace(t), ns)

	_, err = ParseNamespace("")
	require.Error(t, err)
	_, err = ParseNamespace("zz")
	require.Error(t, err)
	_, err = ParseNamespace("0102030405060708090a0b")
	require.Error(t, err)
}

func TestBlobstreamAddress(t *testing.T) {
	addr, ok := BlobstreamAddress(1)
	require.True(t, ok)
	require.Equal(t, common.HexToAddress("0x7Cf3876F681Dbb6EdA8f6FfC45D66B996Df08fAe"), addr)
	_, ok = BlobstreamAddress(5000)
	require.False(t, ok)
}
