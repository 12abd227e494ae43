package wallet

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	log "github.com/sirupsen/logrus"
	"github.com/zucenko/tangerine/chain"
)

// TxArgs is the eth_sendTransaction parameter object.
type TxArgs struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Value *hexutil.Big   `json:"value,omitempty"`
	Data  hexutil.Bytes  `json:"data,omitempty"`
}

type switchArgs struct {
	ChainID *hexutil.Big `json:"chainId"`
}

// ReadTimeout bounds each eth_accounts and eth_chainId poll.
const ReadTimeout = 5 * time.Second

// RPCProvider talks to an external wallet over JSON-RPC. Wallet events are
// found by polling eth_accounts and eth_chainId.
type RPCProvider struct {
	client   *rpc.Client
	clock    clock.Clock
	interval time.Duration
	timeout  time.Duration

	mu       sync.Mutex
	subs     fanout
	stop     chan struct{}
	accounts []common.Address
	chainID  *big.Int
}

func DialRPCProvider(ctx context.Context, url string) (*RPCProvider, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return NewRPCProvider(c, nil, 0), nil
}

func NewRPCProvider(c *rpc.Client, clk clock.Clock, interval time.Duration) *RPCProvider {
	if clk == nil {
		clk = clock.New()
	}
	if interval == 0 {
		interval = 2 * time.Second
	}
	return &RPCProvider{client: c, clock: clk, interval: interval, timeout: ReadTimeout}
}

func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var out []common.Address
	if err := p.client.CallContext(ctx, &out, "eth_requestAccounts"); err != nil {
		return nil, chain.Classify(err)
	}
	return out, nil
}

func (p *RPCProvider) ChainID(ctx context.Context) (*big.Int, error) {
	var out hexutil.Big
	if err := p.client.CallContext(ctx, &out, "eth_chainId"); err != nil {
		return nil, chain.Classify(err)
	}
	return out.ToInt(), nil
}

func (p *RPCProvider) SwitchChain(ctx context.Context, chainID *big.Int) error {
	return chain.Classify(p.client.CallContext(ctx, nil, "wallet_switchEthereumChain",
		switchArgs{ChainID: (*hexutil.Big)(chainID)}))
}

func (p *RPCProvider) AddChain(ctx context.Context, n chain.Network) error {
	return chain.Classify(p.client.CallContext(ctx, nil, "wallet_addEthereumChain", n.AddChainParams()))
}

func (p *RPCProvider) SignMessage(ctx context.Context, account common.Address, msg []byte) ([]byte, error) {
	var sig hexutil.Bytes
	if err := p.client.CallContext(ctx, &sig, "personal_sign", hexutil.Bytes(msg), account); err != nil {
		return nil, chain.Classify(err)
	}
	return sig, nil
}

func (p *RPCProvider) SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error) {
	args := TxArgs{From: tx.From, To: tx.To, Data: tx.Data}
	if tx.Value != nil {
		args.Value = (*hexutil.Big)(tx.Value)
	}
	var hash common.Hash
	if err := p.client.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, chain.Classify(err)
	}
	return hash, nil
}

func (p *RPCProvider) Subscribe(ch chan<- Event) func() {
	p.mu.Lock()
	id := p.subs.add(ch)
	var stop chan struct{}
	if p.stop == nil {
		p.stop = make(chan struct{})
		stop = p.stop
	}
	p.mu.Unlock()
	if stop != nil {
		accounts, chainID := p.read()
		p.mu.Lock()
		if p.stop == stop {
			p.accounts, p.chainID = accounts, chainID
		}
		p.mu.Unlock()
		go p.poll(stop, p.clock.Ticker(p.interval))
	}
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.subs.remove(id)
		if len(p.subs.subs) == 0 && p.stop != nil {
			close(p.stop)
			p.stop = nil
		}
	}
}

// read polls the wallet once. Each call is bounded by the provider timeout.
func (p *RPCProvider) read() ([]common.Address, *big.Int) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	var accounts []common.Address
	if err := p.client.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		log.Debugf("eth_accounts: %v", err)
		accounts = nil
	}
	var id hexutil.Big
	if err := p.client.CallContext(ctx, &id, "eth_chainId"); err != nil {
		log.Debugf("eth_chainId: %v", err)
		return accounts, nil
	}
	return accounts, id.ToInt()
}

func (p *RPCProvider) poll(stop <-chan struct{}, t *clock.Ticker) {
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}
		accounts, id := p.read()
		p.mu.Lock()
		if p.stop != stop {
			p.mu.Unlock()
			return
		}
		if !sameAccounts(accounts, p.accounts) {
			p.accounts = accounts
			p.subs.emit(Event{Kind: AccountsChanged, Accounts: accounts})
		}
		if id != nil && (p.chainID == nil || id.Cmp(p.chainID) != 0) {
			p.chainID = id
			p.subs.emit(Event{Kind: ChainChanged, ChainID: id})
		}
		p.mu.Unlock()
	}
}

func (p *RPCProvider) Close() {
	p.mu.Lock()
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	p.mu.Unlock()
	p.client.Close()
}

func sameAccounts(a, b []common.Address) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
