package wallet

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zucenko/tangerine/chain"
)

var mainnet = chain.Network{
	ChainID:  big.NewInt(1),
	Name:     "Ethereum",
	RPCURL:   "http://mainnet.invalid",
	Currency: chain.Currency{Name: "Ether", Symbol: "ETH", Decimals: 18},
}

type reader struct {
	mu     sync.Mutex
	native *big.Int
	token  *big.Int
	gate   chan struct{}
}

func (r *reader) BalanceAt(ctx context.Context, account common.Address, block *big.Int) (*big.Int, error) {
	r.mu.Lock()
	gate, v := r.gate, r.native
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return new(big.Int).Set(v), nil
}

func (r *reader) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return chain.ERC20ABI.Methods["balanceOf"].Outputs.Pack(r.token)
}

type node struct {
	mu   sync.Mutex
	sent []*types.Transaction
}

func (n *node) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return uint64(len(n.sent)), nil
}

func (n *node) SuggestGasPrice(ctx context.Context) (*big.Int, error) { return big.NewInt(1e9), nil }

func (n *node) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 50000, nil
}

func (n *node) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, tx)
	return nil
}

func newKey(t *testing.T, home chain.Network) (*KeyProvider, *node) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	n := &node{}
	kp := NewKeyProvider(key, home, func(ctx context.Context, url string) (Node, error) { return n, nil })
	return kp, n
}

func newReader() *reader {
	return &reader{native: big.NewInt(5e17), token: big.NewInt(7e18)}
}

func TestConnectWithoutWallet(t *testing.T) {
	s := NewSession(nil, newReader(), Config{})
	err := s.Connect(context.Background())
	assert.ErrorIs(t, err, chain.ErrNoWallet)
	assert.Equal(t, chain.KindConnectivity, chain.KindOf(err))
	st := s.State()
	assert.Equal(t, Disconnected, st.Status)
	assert.ErrorIs(t, st.LastErr, chain.ErrNoWallet)
}

func TestConnectRejected(t *testing.T) {
	kp, _ := newKey(t, chain.Base)
	kp.Approve = func(string) bool { return false }
	s := NewSession(kp, newReader(), Config{})

	err := s.Connect(context.Background())
	assert.ErrorIs(t, err, chain.ErrUserRejected)
	assert.Equal(t, Disconnected, s.State().Status)
	_, err = s.Ready()
	assert.ErrorIs(t, err, chain.ErrNotConnected)
}

func TestConnectAddsAndSwitchesChain(t *testing.T) {
	kp, _ := newKey(t, mainnet)
	s := NewSession(kp, newReader(), Config{Network: chain.Base})
	defer s.Disconnect()

	require.NoError(t, s.Connect(context.Background()))
	st := s.State()
	assert.Equal(t, Connected, st.Status)
	assert.Equal(t, kp.Account(), st.Account)
	assert.False(t, st.WrongNetwork)
	assert.Equal(t, int64(8453), st.ChainID.Int64())
	assert.Equal(t, big.NewInt(5e17), st.Balance)
	assert.Equal(t, big.NewInt(7e18), st.TokenBalance)

	id, err := kp.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(8453), id.Int64())

	account, err := s.Ready()
	require.NoError(t, err)
	assert.Equal(t, kp.Account(), account)
}

func TestWrongNetworkWhenSwitchRefused(t *testing.T) {
	kp, _ := newKey(t, mainnet)
	kp.Approve = func(action string) bool { return action == "connect" }
	s := NewSession(kp, newReader(), Config{Network: chain.Base})
	defer s.Disconnect()

	require.NoError(t, s.Connect(context.Background()))
	st := s.State()
	assert.Equal(t, Connected, st.Status)
	assert.True(t, st.WrongNetwork)
	assert.ErrorIs(t, st.LastErr, chain.ErrWrongNetwork)

	_, err := s.Ready()
	assert.ErrorIs(t, err, chain.ErrWrongNetwork)
}

func TestAccountsEmptiedDisconnects(t *testing.T) {
	kp, _ := newKey(t, chain.Base)
	s := NewSession(kp, newReader(), Config{})
	s.SetPaymentMethod(PayToken)
	require.NoError(t, s.Connect(context.Background()))

	kp.Revoke()
	require.Eventually(t, func() bool { return s.State().Status == Disconnected }, time.Second, time.Millisecond)
	st := s.State()
	assert.Equal(t, common.Address{}, st.Account)
	assert.Nil(t, st.Balance)
	assert.Equal(t, PayToken, st.PaymentMethod)

	s.Disconnect()
	s.Disconnect()
	assert.Equal(t, Disconnected, s.State().Status)
}

func TestAccountSwitchDropsAuthentication(t *testing.T) {
	kp, _ := newKey(t, chain.Base)
	s := NewSession(kp, newReader(), Config{})
	defer s.Disconnect()
	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.SignIn(context.Background()))
	require.True(t, s.State().Authenticated)

	other := common.HexToAddress("0x00000000000000000000000000000000000000b0")
	s.handle(Event{Kind: AccountsChanged, Accounts: []common.Address{other}})
	st := s.State()
	assert.Equal(t, other, st.Account)
	assert.False(t, st.Authenticated)
	assert.Equal(t, big.NewInt(5e17), st.Balance)
}

func TestSignIn(t *testing.T) {
	kp, _ := newKey(t, chain.Base)
	s := NewSession(kp, newReader(), Config{Domain: "play.tangerine.test", Clock: clock.NewMock()})
	defer s.Disconnect()

	assert.ErrorIs(t, s.SignIn(context.Background()), chain.ErrNotConnected)

	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.SignIn(context.Background()))
	st := s.State()
	assert.True(t, st.Authenticated)
	msg := st.SignedMessage
	assert.True(t, strings.HasPrefix(msg, "play.tangerine.test wants you to sign in with your Ethereum account:"))
	assert.Contains(t, msg, kp.Account().Hex())
	assert.Contains(t, msg, DefaultStatement)
	assert.Contains(t, msg, "Chain ID: 8453")
	assert.Contains(t, msg, "Version: 1")
	assert.Contains(t, msg, "URI: https://play.tangerine.test")
}

func TestSignInRejected(t *testing.T) {
	kp, _ := newKey(t, chain.Base)
	kp.Approve = func(action string) bool { return action != "sign message" }
	s := NewSession(kp, newReader(), Config{})
	defer s.Disconnect()
	require.NoError(t, s.Connect(context.Background()))

	err := s.SignIn(context.Background())
	assert.ErrorIs(t, err, chain.ErrUserRejected)
	assert.False(t, s.State().Authenticated)
}

func TestStaleBalanceDropped(t *testing.T) {
	kp, _ := newKey(t, chain.Base)
	r := newReader()
	s := NewSession(kp, r, Config{})
	require.NoError(t, s.Connect(context.Background()))

	gate := make(chan struct{})
	r.mu.Lock()
	r.gate = gate
	r.native = big.NewInt(1)
	r.mu.Unlock()

	done := make(chan error)
	go func() { done <- s.RefreshNative(context.Background()) }()
	s.Disconnect()
	close(gate)
	<-done
	assert.Nil(t, s.State().Balance)
}

func TestKeyProviderSigning(t *testing.T) {
	kp, n := newKey(t, chain.Base)
	msg := []byte("hello tangerine")
	sig, err := kp.SignMessage(context.Background(), kp.Account(), msg)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.True(t, sig[64] == 27 || sig[64] == 28)

	raw := append([]byte(nil), sig...)
	raw[64] -= 27
	pub, err := crypto.SigToPub(accounts.TextHash(msg), raw)
	require.NoError(t, err)
	assert.Equal(t, kp.Account(), crypto.PubkeyToAddress(*pub))

	_, err = kp.SignMessage(context.Background(), common.HexToAddress("0x01"), msg)
	assert.ErrorIs(t, err, chain.ErrUserRejected)

	to := common.HexToAddress("0x00000000000000000000000000000000000000c0")
	h, err := kp.SendTransaction(context.Background(), TxRequest{From: kp.Account(), To: to, Value: big.NewInt(100), Data: []byte{1, 2}})
	require.NoError(t, err)
	require.Len(t, n.sent, 1)
	tx := n.sent[0]
	assert.Equal(t, h, tx.Hash())
	assert.Equal(t, to, *tx.To())
	assert.Equal(t, big.NewInt(100), tx.Value())
	assert.Equal(t, uint64(50000), tx.Gas())
	from, err := types.Sender(types.NewEIP155Signer(chain.Base.ChainID), tx)
	require.NoError(t, err)
	assert.Equal(t, kp.Account(), from)
}

func TestKeyProviderUnknownChain(t *testing.T) {
	kp, _ := newKey(t, mainnet)
	err := kp.SwitchChain(context.Background(), big.NewInt(8453))
	assert.ErrorIs(t, err, chain.ErrUnknownChain)

	require.NoError(t, kp.AddChain(context.Background(), chain.Base))
	events := make(chan Event, 1)
	unsub := kp.Subscribe(events)
	defer unsub()
	require.NoError(t, kp.SwitchChain(context.Background(), big.NewInt(8453)))
	ev := <-events
	assert.Equal(t, ChainChanged, ev.Kind)
	assert.Equal(t, int64(8453), ev.ChainID.Int64())
}

func bridged(t *testing.T, kp *KeyProvider, clk clock.Clock) *RPCProvider {
	t.Helper()
	srv, err := NewBridge(kp)
	require.NoError(t, err)
	p := NewRPCProvider(rpc.DialInProc(srv), clk, time.Second)
	t.Cleanup(func() {
		p.Close()
		srv.Stop()
	})
	return p
}

func TestRPCProviderThroughBridge(t *testing.T) {
	kp, n := newKey(t, mainnet)
	p := bridged(t, kp, clock.NewMock())
	s := NewSession(p, newReader(), Config{Network: chain.Base})
	defer s.Disconnect()

	require.NoError(t, s.Connect(context.Background()))
	st := s.State()
	assert.Equal(t, kp.Account(), st.Account)
	assert.False(t, st.WrongNetwork)
	assert.Equal(t, int64(8453), st.ChainID.Int64())

	require.NoError(t, s.SignIn(context.Background()))
	assert.True(t, s.State().Authenticated)

	to := common.HexToAddress("0x00000000000000000000000000000000000000c0")
	h, err := p.SendTransaction(context.Background(), TxRequest{From: kp.Account(), To: to, Value: big.NewInt(1e14)})
	require.NoError(t, err)
	require.Len(t, n.sent, 1)
	assert.Equal(t, n.sent[0].Hash(), h)

	kp.Approve = func(string) bool { return false }
	_, err = p.SendTransaction(context.Background(), TxRequest{From: kp.Account(), To: to})
	assert.ErrorIs(t, err, chain.ErrUserRejected)
	assert.Equal(t, chain.KindConnectivity, chain.KindOf(err))
}

func TestRPCProviderUnknownChainCode(t *testing.T) {
	kp, _ := newKey(t, mainnet)
	p := bridged(t, kp, clock.NewMock())
	err := p.SwitchChain(context.Background(), big.NewInt(8453))
	assert.ErrorIs(t, err, chain.ErrUnknownChain)
	var re rpc.Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, chain.CodeUnknownChain, re.ErrorCode())
}

func TestRPCProviderPollsEvents(t *testing.T) {
	mock := clock.NewMock()
	kp, _ := newKey(t, chain.Base)
	p := bridged(t, kp, mock)
	events := make(chan Event, 4)
	unsub := p.Subscribe(events)
	defer unsub()

	kp.Revoke()
	var got Event
	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		select {
		case got = <-events:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, AccountsChanged, got.Kind)
	assert.Empty(t, got.Accounts)
}

// slowSubscriber holds Subscribe until release is closed.
type slowSubscriber struct {
	*KeyProvider
	entered chan struct{}
	release chan struct{}
}

func (s *slowSubscriber) Subscribe(ch chan<- Event) func() {
	close(s.entered)
	<-s.release
	return s.KeyProvider.Subscribe(ch)
}

func TestStateNotBlockedBySubscribe(t *testing.T) {
	kp, _ := newKey(t, chain.Base)
	p := &slowSubscriber{KeyProvider: kp, entered: make(chan struct{}), release: make(chan struct{})}
	s := NewSession(p, newReader(), Config{Network: chain.Base})
	defer s.Disconnect()

	done := make(chan error, 1)
	go func() { done <- s.Connect(context.Background()) }()
	<-p.entered

	states := make(chan State, 1)
	go func() { states <- s.State() }()
	select {
	case st := <-states:
		assert.Equal(t, Connecting, st.Status)
	case <-time.After(time.Second):
		t.Fatal("State waited for Subscribe")
	}

	close(p.release)
	require.NoError(t, <-done)
	assert.Equal(t, Connected, s.State().Status)
}

func TestDisconnectDuringSubscribe(t *testing.T) {
	kp, _ := newKey(t, chain.Base)
	p := &slowSubscriber{KeyProvider: kp, entered: make(chan struct{}), release: make(chan struct{})}
	s := NewSession(p, newReader(), Config{Network: chain.Base})

	done := make(chan error, 1)
	go func() { done <- s.Connect(context.Background()) }()
	<-p.entered
	s.Disconnect()
	close(p.release)

	require.NoError(t, <-done)
	assert.Equal(t, Disconnected, s.State().Status)
}

// stuckWallet answers nothing until release is closed.
type stuckWallet struct{ release chan struct{} }

func (w *stuckWallet) Accounts(ctx context.Context) ([]common.Address, error) {
	<-w.release
	return nil, nil
}

func (w *stuckWallet) ChainId(ctx context.Context) (*hexutil.Big, error) {
	<-w.release
	return (*hexutil.Big)(big.NewInt(8453)), nil
}

func TestRPCProviderSubscribeBounded(t *testing.T) {
	stuck := &stuckWallet{release: make(chan struct{})}
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", stuck))
	p := NewRPCProvider(rpc.DialInProc(srv), clock.NewMock(), time.Second)
	p.timeout = 20 * time.Millisecond
	defer srv.Stop()
	defer close(stuck.release)
	defer p.Close()

	subscribed := make(chan func(), 1)
	go func() { subscribed <- p.Subscribe(make(chan Event, 1)) }()
	select {
	case unsub := <-subscribed:
		unsub()
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe hung on an unresponsive wallet")
	}
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod("ETH")
	require.NoError(t, err)
	assert.Equal(t, PayNative, m)
	m, err = ParsePaymentMethod("token")
	require.NoError(t, err)
	assert.Equal(t, "token", m.Name())
	_, err = ParsePaymentMethod("btc")
	assert.Error(t, err)
}
