package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnits(t *testing.T) {
	tests := []struct {
		in   string
		dec  int
		want string
		err  bool
	}{
		{"0.0001", 18, "100000000000000", false},
		{"1", 18, "1000000000000000000", false},
		{" 2.5 ", 6, "2500000", false},
		{"0.0000001", 6, "", true},
		{"-1", 18, "", true},
		{"abc", 18, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := ParseUnits(tt.in, tt.dec)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestFormatUnits(t *testing.T) {
	v, _ := new(big.Int).SetString("1230000000000000000", 10)
	assert.Equal(t, "1.23", FormatUnits(v, 18))
	assert.Equal(t, "0", FormatUnits(nil, 18))
	assert.Equal(t, "100", FormatUnits(big.NewInt(100), 0))
	assert.Equal(t, "0.0001", FormatUnits(big.NewInt(100000000000000), 18))
	assert.InDelta(t, 1.23, ToFloat(v, 18), 1e-12)
	assert.Equal(t, "5000000000000000000000", FromFloat(5000, 18).String())
}

func TestFormatTokenAmount(t *testing.T) {
	assert.Equal(t, "10.00M", FormatTokenAmount(10000000))
	assert.Equal(t, "1.23M", FormatTokenAmount(1234567))
	assert.Equal(t, "4.56K", FormatTokenAmount(4560))
	assert.Equal(t, "999.00", FormatTokenAmount(999))
	assert.Equal(t, "0.50", FormatTokenAmount(0.5))
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind Kind
	}{
		{nil, KindNone},
		{fmt.Errorf("connect: %w", ErrNoWallet), KindConnectivity},
		{Rejected("User denied"), KindConnectivity},
		{UnknownChain("Unrecognized chain"), KindConnectivity},
		{fmt.Errorf("enter: %w", ErrInsufficientFunds), KindFunds},
		{Classify(errors.New("insufficient funds for gas * price + value")), KindFunds},
		{fmt.Errorf("x: %w", ErrReverted), KindTransaction},
		{fmt.Errorf("x: %w", ErrNotMined), KindTransaction},
		{errors.New("boom"), KindOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind.Name(), KindOf(tt.err).Name(), "%v", tt.err)
	}

	assert.ErrorIs(t, Rejected("no"), ErrUserRejected)
	assert.ErrorIs(t, UnknownChain("no"), ErrUnknownChain)
}

type codeErr struct{ code int }

func (e codeErr) Error() string  { return fmt.Sprintf("code %d", e.code) }
func (e codeErr) ErrorCode() int { return e.code }

func TestClassifyRPCCodes(t *testing.T) {
	err := Classify(fmt.Errorf("switch: %w", codeErr{4902}))
	assert.ErrorIs(t, err, ErrUnknownChain)
	assert.Contains(t, err.Error(), "code 4902")

	assert.ErrorIs(t, Classify(codeErr{4001}), ErrUserRejected)
	plain := codeErr{-32000}
	assert.Equal(t, error(plain), Classify(plain))
	assert.Nil(t, Classify(nil))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "Please configure a wallet to play", Message(fmt.Errorf("connect: %w", ErrNoWallet)))
	assert.Equal(t, "Enter game: transaction reverted", Message(fmt.Errorf("enter game: %w", ErrReverted)))
	assert.Equal(t, "A b", Message(errors.New("a\nb")))
}

func TestNetwork(t *testing.T) {
	assert.Equal(t, "0x2105", Base.HexChainID())
	p := Base.AddChainParams()
	assert.Equal(t, []string{"https://mainnet.base.org"}, p.RPCURLs)
	n, err := p.Network()
	require.NoError(t, err)
	assert.Equal(t, 0, n.ChainID.Cmp(big.NewInt(8453)))
	assert.Equal(t, "Base", n.Name)
}

type quoter struct {
	mu    sync.Mutex
	calls int32
	out   *big.Int
	err   error
	gate  chan struct{}
	last  ethereum.CallMsg
}

func (q *quoter) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	atomic.AddInt32(&q.calls, 1)
	q.mu.Lock()
	q.last = msg
	out, err, gate := q.out, q.err, q.gate
	q.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return QuoterABI.Methods["quoteExactInputSingle"].Outputs.Pack(out)
}

func (q *quoter) count() int { return int(atomic.LoadInt32(&q.calls)) }

func weiString(s string) *big.Int {
	v, _ := new(big.Int).SetString(s, 10)
	return v
}

func TestOracleQuoteAndCache(t *testing.T) {
	mock := clock.NewMock()
	token := common.HexToAddress("0x300Ba4799Ab7d6fd55b87BCcBCeCb772b413349b")
	q := &quoter{out: weiString("20000000000")} // 2e-8 native per token
	o := NewPriceOracle(q, OracleConfig{Token: token, Clock: mock})

	assert.InDelta(t, 5000, o.EquivalentAmount(context.Background(), 0.0001), 1e-6)
	assert.Equal(t, 1, q.count())
	require.NotNil(t, q.last.To)
	assert.Equal(t, DefaultQuoter, *q.last.To)

	args, err := QuoterABI.Methods["quoteExactInputSingle"].Inputs.Unpack(q.last.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, token, args[0])
	assert.Equal(t, WrappedNative, args[1])
	assert.Equal(t, int64(QuoteFeeTier), args[2].(*big.Int).Int64())
	assert.Equal(t, "1000000000000000000", args[3].(*big.Int).String())

	mock.Add(4 * time.Minute)
	o.PriceInNative(context.Background())
	assert.Equal(t, 1, q.count(), "served from cache")

	mock.Add(time.Minute)
	o.PriceInNative(context.Background())
	assert.Equal(t, 2, q.count(), "stale after five minutes")
}

func TestOracleFallback(t *testing.T) {
	q := &quoter{err: errors.New("execution reverted")}
	o := NewPriceOracle(q, OracleConfig{Clock: clock.NewMock()})

	assert.InDelta(t, 10000, o.EquivalentAmount(context.Background(), 0.0001), 1e-6)
	assert.InDelta(t, 10000, o.EquivalentAmount(context.Background(), 0.0001), 1e-6)
	assert.Equal(t, 2, q.count(), "failures are not cached")

	zero := &quoter{out: new(big.Int)}
	o = NewPriceOracle(zero, OracleConfig{Clock: clock.NewMock()})
	assert.Equal(t, FallbackPrice, o.PriceInNative(context.Background()))

	o = NewPriceOracle(nil, OracleConfig{FallbackPrice: 0.5})
	assert.Equal(t, 0.5, o.PriceInNative(context.Background()))
	assert.Equal(t, "2000000000000000000", o.EquivalentUnits(context.Background(), 1).String())
}

func TestOracleSharesInflightQuote(t *testing.T) {
	gate := make(chan struct{})
	q := &quoter{out: weiString("1000000000000"), gate: gate}
	o := NewPriceOracle(q, OracleConfig{Clock: clock.NewMock()})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.InDelta(t, 1e-6, o.PriceInNative(context.Background()), 1e-12)
		}()
	}
	require.Eventually(t, func() bool { return q.count() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()
	assert.Equal(t, 1, q.count())
}

type receipts struct {
	mu     sync.Mutex
	after  int
	calls  int
	status uint64
}

func (r *receipts) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls <= r.after {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: r.status, TxHash: hash, BlockNumber: big.NewInt(7)}, nil
}

func TestWaitMined(t *testing.T) {
	hash := common.HexToHash("0x01")
	r := &receipts{after: 2, status: types.ReceiptStatusSuccessful}
	w := &Waiter{Receipts: r, Clock: clock.New(), Interval: time.Millisecond}
	rec, err := w.WaitMined(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, hash, rec.TxHash)
	assert.Equal(t, 3, r.calls)

	r = &receipts{status: types.ReceiptStatusFailed}
	w.Receipts = r
	_, err = w.WaitMined(context.Background(), hash)
	assert.ErrorIs(t, err, ErrReverted)

	w.Receipts = &receipts{after: 100}
	w.Attempts = 3
	_, err = w.WaitMined(context.Background(), hash)
	assert.ErrorIs(t, err, ErrNotMined)

	w.Attempts = 0
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.WaitMined(ctx, hash)
	assert.ErrorIs(t, err, ErrNotMined)
}

type logSource struct {
	head    uint64
	logs    []types.Log
	queries []ethereum.FilterQuery
}

func (s *logSource) BlockNumber(ctx context.Context) (uint64, error) { return s.head, nil }

func (s *logSource) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	s.queries = append(s.queries, q)
	out := s.logs
	s.logs = nil
	return out, nil
}

func startedLog(t *testing.T, p1, p2 common.Address, id int64) types.Log {
	ev := MatchABI.Events["GameStarted"]
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(id))
	require.NoError(t, err)
	return types.Log{
		Topics: []common.Hash{ev.ID, common.BytesToHash(p1.Bytes()), common.BytesToHash(p2.Bytes())},
		Data:   data,
	}
}

func endedLog(id int64, winner common.Address) types.Log {
	ev := MatchABI.Events["GameEnded"]
	return types.Log{Topics: []common.Hash{ev.ID, common.BigToHash(big.NewInt(id)), common.BytesToHash(winner.Bytes())}}
}

func TestWatcherDecodesMatchLogs(t *testing.T) {
	contract := common.HexToAddress("0xc0ffee")
	alice := common.HexToAddress("0xa11ce")
	bob := common.HexToAddress("0xb0b")
	src := &logSource{head: 10}
	w := NewWatcher(src, contract, clock.NewMock(), time.Second).From(5)

	src.logs = []types.Log{startedLog(t, alice, bob, 42), endedLog(42, bob), {Topics: []common.Hash{common.HexToHash("0xdead")}}}
	events, err := w.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)

	s := events[0].Started
	require.NotNil(t, s)
	assert.Equal(t, alice, s.Player1)
	assert.Equal(t, bob, s.Player2)
	assert.Equal(t, int64(42), s.GameId.Int64())
	assert.True(t, s.Involves(bob))
	assert.Equal(t, alice, s.Rival(bob))

	e := events[1].Ended
	require.NotNil(t, e)
	assert.Equal(t, int64(42), e.GameId.Int64())
	assert.Equal(t, bob, e.Winner)

	q := src.queries[0]
	assert.Equal(t, int64(5), q.FromBlock.Int64())
	assert.Equal(t, int64(10), q.ToBlock.Int64())
	assert.Equal(t, []common.Address{contract}, q.Addresses)

	// nothing new until the head moves
	events, err = w.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Len(t, src.queries, 1)

	src.head = 12
	_, err = w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(11), src.queries[1].FromBlock.Int64())
}
