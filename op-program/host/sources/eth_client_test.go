package sources

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/verify"
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/verify/verifytest"
	"github.com/mantlenetworkio/op-celestia-host/op-service/testlog"
)

type fakeEthAPI struct {
	headers     map[common.Hash]*types.Header
	headerCalls atomic.Int32
	proof       *accountResult
}

func (f *fakeEthAPI) ChainId() *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(5000))
}

func (f *fakeEthAPI) GetBlockByHash(hash common.Hash, full bool) (*types.Header, error) {
	f.headerCalls.Add(1)
	return f.headers[hash], nil
}

func (f *fakeEthAPI) GetProof(address common.Address, keys []common.Hash, block common.Hash) (*accountResult, error) {
	return f.proof, nil
}

type fakeDebugAPI struct {
	db map[string]hexutil.Bytes
}

func (f *fakeDebugAPI) DbGet(key string) (hexutil.Bytes, error) {
	v, ok := f.db[key]
	if !ok {
		return nil, errors.New("pebble: not found")
	}
	return v, nil
}

func newTestEthClient(t *testing.T, eth *fakeEthAPI, debug *fakeDebugAPI) *EthClient {
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", eth))
	require.NoError(t, srv.RegisterName("debug", debug))
	t.Cleanup(srv.Stop)
	cl, err := NewEthClient(testlog.Logger(t, log.LevelDebug), rpc.DialInProc(srv), 10)
	require.NoError(t, err)
	t.Cleanup(cl.Close)
	return cl
}

func TestEthClientHeaderByHash(t *testing.T) {
	header := &types.Header{Number: big.NewInt(7), Difficulty: common.Big0, GasLimit: 30_000_000}
	other := &types.Header{Number: big.NewInt(8), Difficulty: common.Big0, GasLimit: 30_000_000}
	forged := common.Hash{0xba, 0xd0}
	eth := &fakeEthAPI{headers: map[common.Hash]*types.Header{
		header.Hash(): header,
		forged:        other,
	}}
	cl := newTestEthClient(t, eth, &fakeDebugAPI{})
	ctx := context.Background()

	t.Run("Verified", func(t *testing.T) {
		got, err := cl.HeaderByHash(ctx, header.Hash())
		require.NoError(t, err)
		require.Equal(t, header.Hash(), got.Hash())
	})

	t.Run("Cached", func(t *testing.T) {
		before := eth.headerCalls.Load()
		_, err := cl.HeaderByHash(ctx, header.Hash())
		require.NoError(t, err)
		require.Equal(t, before, eth.headerCalls.Load())
	})

	t.Run("RejectMismatch", func(t *testing.T) {
		_, err := cl.HeaderByHash(ctx, forged)
		require.ErrorIs(t, err, preimage.ErrVerification)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := cl.HeaderByHash(ctx, common.Hash{0x01})
		require.ErrorIs(t, err, preimage.ErrNotFound)
	})
}

func TestEthClientDBGet(t *testing.T) {
	node := []byte{0xc2, 0x80, 0x80}
	code := []byte{0x60, 0x00, 0x60, 0x00}
	nodeHash := crypto.Keccak256Hash(node)
	codeHash := crypto.Keccak256Hash(code)
	debug := &fakeDebugAPI{db: map[string]hexutil.Bytes{
		hexutil.Encode(nodeHash[:]): node,
		hexutil.Encode(append(append([]byte{}, rawdb.CodePrefix...), codeHash[:]...)): code,
		hexutil.Encode(common.Hash{0x02}.Bytes()):                                      node,
	}}
	cl := newTestEthClient(t, &fakeEthAPI{}, debug)
	ctx := context.Background()

	got, err := cl.NodeByHash(ctx, nodeHash)
	require.NoError(t, err)
	require.Equal(t, node, got)

	got, err = cl.CodeByHash(ctx, codeHash)
	require.NoError(t, err)
	require.Equal(t, code, got)

	_, err = cl.NodeByHash(ctx, common.Hash{0x02})
	require.ErrorIs(t, err, preimage.ErrVerification)

	_, err = cl.NodeByHash(ctx, common.Hash{0x03})
	require.ErrorIs(t, err, preimage.ErrNotFound)
}

func TestEthClientGetProof(t *testing.T) {
	address := common.HexToAddress("0x4200000000000000000000000000000000000016")
	slot := common.Hash{0x05}
	value := common.Hash{0x99}
	st := verifytest.NewContractState(t, address, map[common.Hash]common.Hash{slot: value})
	storage := st.StorageProof(t, slot, value)

	toHex := func(nodes [][]byte) []hexutil.Bytes {
		out := make([]hexutil.Bytes, len(nodes))
		for i, n := range nodes {
			out[i] = n
		}
		return out
	}
	eth := &fakeEthAPI{proof: &accountResult{
		Address:      address,
		AccountProof: toHex(st.Account.Proof),
		Balance:      (*hexutil.Big)(st.Account.Account.Balance.ToBig()),
		CodeHash:     common.BytesToHash(st.Account.Account.CodeHash),
		Nonce:        hexutil.Uint64(st.Account.Account.Nonce),
		StorageHash:  st.Account.Account.Root,
		StorageProof: []storageResult{{
			Key:   slot.Hex(),
			Value: (*hexutil.Big)(value.Big()),
			Proof: toHex(storage.Proof),
		}},
	}}
	cl := newTestEthClient(t, eth, &fakeDebugAPI{})

	account, slots, err := cl.GetProof(context.Background(), address, []common.Hash{slot}, common.Hash{0xaa})
	require.NoError(t, err)
	require.NoError(t, verify.VerifyAccountProof(st.Root, account))
	require.Len(t, slots, 1)
	require.Equal(t, value, slots[0].Value)
	require.NoError(t, verify.VerifyStorageProof(account.Account.Root, &slots[0]))

	t.Run("MissingStorageProof", func(t *testing.T) {
		_, _, err := cl.GetProof(context.Background(), address, []common.Hash{slot, {0x06}}, common.Hash{0xaa})
		require.ErrorContains(t, err, "missing storage proof data")
	})

	t.Run("WrongAccount", func(t *testing.T) {
		_, _, err := cl.GetProof(context.Background(), common.Address{0x01}, []common.Hash{slot}, common.Hash{0xaa})
		require.ErrorContains(t, err, "proof is for account")
	})
}
