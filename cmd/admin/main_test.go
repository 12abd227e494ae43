package main

import (
	"bytes"
	"context"
	"math/big"
	"net"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zucenko/tangerine/chain"
	"github.com/zucenko/tangerine/config"
	"github.com/zucenko/tangerine/wallet"
)

const who = "0x5ae019F7eE28612b058381f4Fea213Cc90ee88A4"

func TestParse(t *testing.T) {
	c, err := parse([]string{"add", who})
	require.NoError(t, err)
	assert.Equal(t, "add", c.name)
	assert.Equal(t, common.HexToAddress(who), c.account)

	c, err = parse([]string{"end", "42", who})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), c.gameID)
	assert.Equal(t, common.HexToAddress(who), c.account)

	c, err = parse([]string{"watch"})
	require.NoError(t, err)
	assert.Equal(t, "watch", c.name)

	c, err = parse([]string{"serve", "127.0.0.1:8545"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8545", c.listen)
}

func TestParseRejects(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"grant", who},
		{"is"},
		{"is", "0x12"},
		{"end", "-1", who},
		{"end", "x", who},
		{"end", "1"},
		{"watch", "now"},
		{"serve"},
		{"serve", "8545"},
	} {
		_, err := parse(args)
		assert.Error(t, err, "%v", args)
	}
}

type adminReader struct {
	contract common.Address
	admin    common.Address
}

func (r adminReader) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	method := chain.MatchABI.Methods["isGameAdmin"]
	if msg.To == nil || *msg.To != r.contract || !bytes.Equal(msg.Data[:4], method.ID) {
		return nil, ethereum.NotFound
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(args[0].(common.Address) == r.admin)
}

func TestIsAdminNeedsNoKey(t *testing.T) {
	cfg := config.Default()
	cfg.WalletPrivateKey = ""
	r := adminReader{contract: common.HexToAddress(cfg.GameContract), admin: common.HexToAddress(who)}

	ok, err := isAdmin(context.Background(), cfg, r, common.HexToAddress(who))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = isAdmin(context.Background(), cfg, r, common.HexToAddress("0x00000000000000000000000000000000000000aa"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestServeWallet(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	kp := wallet.NewKeyProvider(key, chain.Base, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, kp, ln) }()

	c, err := rpc.DialContext(ctx, "http://"+ln.Addr().String())
	require.NoError(t, err)
	p := wallet.NewRPCProvider(c, nil, 0)
	id, err := p.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8453), id.Int64())
	accounts, err := p.RequestAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{kp.Account()}, accounts)
	p.Close()

	cancel()
	require.NoError(t, <-done)
}
