package wallet

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/zucenko/tangerine/chain"
)

// AccountLister is implemented by providers that can list connected
// accounts without prompting.
type AccountLister interface {
	Accounts() []common.Address
}

// NewBridge serves p over JSON-RPC with the method names browser wallets
// use, so RPCProvider can drive it from another process.
func NewBridge(p Provider) (*rpc.Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("eth", &ethAPI{p: p}); err != nil {
		return nil, err
	}
	if err := srv.RegisterName("wallet", &walletAPI{p: p}); err != nil {
		return nil, err
	}
	if err := srv.RegisterName("personal", &personalAPI{p: p}); err != nil {
		return nil, err
	}
	return srv, nil
}

// coded keeps the EIP-1193 code visible to the rpc server, which only looks
// at the outermost error.
func coded(err error) error {
	var pe *chain.ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return err
}

type ethAPI struct {
	p Provider
}

func (a *ethAPI) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	accounts, err := a.p.RequestAccounts(ctx)
	return accounts, coded(err)
}

func (a *ethAPI) Accounts(ctx context.Context) ([]common.Address, error) {
	if l, ok := a.p.(AccountLister); ok {
		return l.Accounts(), nil
	}
	return []common.Address{}, nil
}

func (a *ethAPI) ChainId(ctx context.Context) (*hexutil.Big, error) {
	id, err := a.p.ChainID(ctx)
	if err != nil {
		return nil, coded(err)
	}
	return (*hexutil.Big)(id), nil
}

func (a *ethAPI) SendTransaction(ctx context.Context, args TxArgs) (common.Hash, error) {
	req := TxRequest{From: args.From, To: args.To, Data: args.Data}
	if args.Value != nil {
		req.Value = args.Value.ToInt()
	}
	h, err := a.p.SendTransaction(ctx, req)
	return h, coded(err)
}

type walletAPI struct {
	p Provider
}

func (w *walletAPI) SwitchEthereumChain(ctx context.Context, args switchArgs) error {
	if args.ChainID == nil {
		return errors.New("missing chainId")
	}
	return coded(w.p.SwitchChain(ctx, args.ChainID.ToInt()))
}

func (w *walletAPI) AddEthereumChain(ctx context.Context, params chain.AddChainParams) error {
	n, err := params.Network()
	if err != nil {
		return err
	}
	return coded(w.p.AddChain(ctx, n))
}

type personalAPI struct {
	p Provider
}

func (a *personalAPI) Sign(ctx context.Context, data hexutil.Bytes, account common.Address) (hexutil.Bytes, error) {
	sig, err := a.p.SignMessage(ctx, account, data)
	return sig, coded(err)
}
