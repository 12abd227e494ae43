package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"github.com/zucenko/tangerine/chain"
)

type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
)

func (s Status) Name() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	}
	return "?"
}

type PaymentMethod int

const (
	PayNative PaymentMethod = iota
	PayToken
)

func (m PaymentMethod) Name() string {
	if m == PayToken {
		return "token"
	}
	return "native"
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(s) {
	case "native", "eth":
		return PayNative, nil
	case "token", "trap":
		return PayToken, nil
	}
	return PayNative, fmt.Errorf("unknown payment method %q", s)
}

// Reader serves balance queries.
type Reader interface {
	chain.Caller
	BalanceAt(ctx context.Context, account common.Address, block *big.Int) (*big.Int, error)
}

// State is a copy of the session for display.
type State struct {
	Status        Status
	Account       common.Address
	ChainID       *big.Int
	Balance       *big.Int
	TokenBalance  *big.Int
	Authenticated bool
	WrongNetwork  bool
	PaymentMethod PaymentMethod
	SignedMessage string
	LastErr       error
}

type Config struct {
	Network chain.Network
	Token   common.Address
	// Domain and URI go into the sign-in message.
	Domain    string
	URI       string
	Statement string
	Clock     clock.Clock
}

func (c Config) withDefaults() Config {
	if c.Network.ChainID == nil {
		c.Network = chain.Base
	}
	if c.Domain == "" {
		c.Domain = "tangerine.local"
	}
	if c.URI == "" {
		c.URI = "https://" + c.Domain
	}
	if c.Statement == "" {
		c.Statement = DefaultStatement
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	return c
}

// Session tracks one wallet connection. The zero provider means no wallet is
// installed.
type Session struct {
	mu       sync.Mutex
	cfg      Config
	provider Provider
	reader   Reader
	state    State

	// gen bumps on connect, disconnect and account switch.
	gen    uint64
	unsub  func()
	events chan Event
	done   chan struct{}
}

func NewSession(provider Provider, reader Reader, cfg Config) *Session {
	return &Session{cfg: cfg.withDefaults(), provider: provider, reader: reader}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.ChainID = cloneInt(s.state.ChainID)
	st.Balance = cloneInt(s.state.Balance)
	st.TokenBalance = cloneInt(s.state.TokenBalance)
	return st
}

func (s *Session) Provider() Provider { return s.provider }

func (s *Session) Network() chain.Network { return s.cfg.Network }

func (s *Session) fail(err error) error {
	s.mu.Lock()
	s.state.LastErr = err
	s.mu.Unlock()
	log.Warnf("wallet: %v", err)
	return err
}

// Connect asks the wallet for an account and checks the network.
func (s *Session) Connect(ctx context.Context) error {
	if s.provider == nil {
		return s.fail(fmt.Errorf("connect: %w", chain.ErrNoWallet))
	}
	s.mu.Lock()
	if s.state.Status != Disconnected {
		s.mu.Unlock()
		return nil
	}
	s.state.Status = Connecting
	s.state.LastErr = nil
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	accounts, err := s.provider.RequestAccounts(ctx)
	if err == nil && len(accounts) == 0 {
		err = chain.ErrUserRejected
	}
	if err != nil {
		s.mu.Lock()
		if gen == s.gen {
			s.state = State{PaymentMethod: s.state.PaymentMethod}
		}
		s.mu.Unlock()
		return s.fail(fmt.Errorf("connect: %w", chain.Classify(err)))
	}

	// Subscribe may talk to the wallet, so it runs without mu.
	events := make(chan Event, 16)
	unsub := s.provider.Subscribe(events)
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		unsub()
		return nil
	}
	s.state.Status = Connected
	s.state.Account = accounts[0]
	s.events, s.unsub = events, unsub
	s.done = make(chan struct{})
	go s.listen(s.events, s.done)
	s.mu.Unlock()
	log.WithField("account", accounts[0].Hex()).Info("wallet connected")

	if err := s.EnsureCorrectNetwork(ctx); err != nil {
		log.Warnf("wallet stays on wrong network: %v", err)
	}
	if err := s.RefreshBalances(ctx); err != nil {
		log.Warnf("balance refresh: %v", err)
	}
	return nil
}

// EnsureCorrectNetwork switches the wallet to the configured chain, adding it
// first when the wallet does not know it.
func (s *Session) EnsureCorrectNetwork(ctx context.Context) error {
	if s.provider == nil {
		return chain.ErrNoWallet
	}
	want := s.cfg.Network
	id, err := s.provider.ChainID(ctx)
	if err != nil {
		return s.wrongNetwork(fmt.Errorf("chain id: %w", chain.Classify(err)))
	}
	if id.Cmp(want.ChainID) == 0 {
		s.setChain(id, false)
		return nil
	}
	log.Infof("wallet on chain %s, switching to %s", id, want.ChainID)
	err = chain.Classify(s.provider.SwitchChain(ctx, want.ChainID))
	if errors.Is(err, chain.ErrUnknownChain) {
		if err = chain.Classify(s.provider.AddChain(ctx, want)); err == nil {
			err = chain.Classify(s.provider.SwitchChain(ctx, want.ChainID))
		}
	}
	if err != nil {
		s.setChain(id, true)
		return s.wrongNetwork(fmt.Errorf("switch to %s: %w: %w", want.Name, chain.ErrWrongNetwork, err))
	}
	s.setChain(want.ChainID, false)
	return nil
}

func (s *Session) setChain(id *big.Int, wrong bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ChainID = cloneInt(id)
	s.state.WrongNetwork = wrong
}

func (s *Session) wrongNetwork(err error) error {
	s.mu.Lock()
	s.state.WrongNetwork = true
	s.mu.Unlock()
	return s.fail(err)
}

// Disconnect clears the session. Calling it twice is harmless.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnect()
}

func (s *Session) disconnect() {
	if s.state.Status == Disconnected && s.unsub == nil {
		return
	}
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	s.gen++
	s.state = State{PaymentMethod: s.state.PaymentMethod}
	log.Info("wallet disconnected")
}

func (s *Session) SetPaymentMethod(m PaymentMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.PaymentMethod = m
}

// Ready returns the account when the session can pay: connected and on the
// configured network.
func (s *Session) Ready() (common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status != Connected {
		return common.Address{}, chain.ErrNotConnected
	}
	if s.state.WrongNetwork {
		return common.Address{}, chain.ErrWrongNetwork
	}
	return s.state.Account, nil
}

func (s *Session) snapshot() (common.Address, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status != Connected {
		return common.Address{}, 0, chain.ErrNotConnected
	}
	return s.state.Account, s.gen, nil
}

// RefreshBalances reloads both balances.
func (s *Session) RefreshBalances(ctx context.Context) error {
	errNative := s.RefreshNative(ctx)
	errToken := s.RefreshToken(ctx)
	return errors.Join(errNative, errToken)
}

func (s *Session) RefreshNative(ctx context.Context) error {
	account, gen, err := s.snapshot()
	if err != nil {
		return err
	}
	if s.reader == nil {
		return errors.New("no chain reader")
	}
	bal, err := s.reader.BalanceAt(ctx, account, nil)
	if err != nil {
		return fmt.Errorf("native balance: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen {
		s.state.Balance = bal
	}
	return nil
}

// RefreshToken reloads the token balance. A failed read shows as zero.
func (s *Session) RefreshToken(ctx context.Context) error {
	account, gen, err := s.snapshot()
	if err != nil {
		return err
	}
	if s.reader == nil {
		return errors.New("no chain reader")
	}
	bal, err := chain.TokenBalance(ctx, s.reader, s.cfg.Token, account)
	if err != nil {
		bal = new(big.Int)
		err = fmt.Errorf("token balance: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen {
		s.state.TokenBalance = bal
	}
	return err
}

func (s *Session) listen(events <-chan Event, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev := <-events:
			s.handle(ev)
		}
	}
}

func (s *Session) handle(ev Event) {
	log.WithField("event", ev.Kind.Name()).Info("wallet event")
	ctx := context.Background()
	switch ev.Kind {
	case AccountsChanged:
		s.mu.Lock()
		if len(ev.Accounts) == 0 {
			s.disconnect()
			s.mu.Unlock()
			return
		}
		if s.state.Account == ev.Accounts[0] {
			s.mu.Unlock()
			return
		}
		s.gen++
		s.state.Account = ev.Accounts[0]
		s.state.Authenticated = false
		s.state.SignedMessage = ""
		s.state.Balance, s.state.TokenBalance = nil, nil
		s.mu.Unlock()
		if err := s.RefreshBalances(ctx); err != nil {
			log.Warnf("balance refresh: %v", err)
		}
	case ChainChanged:
		if err := s.EnsureCorrectNetwork(ctx); err != nil {
			log.Warnf("network check: %v", err)
		}
		if err := s.RefreshBalances(ctx); err != nil {
			log.Warnf("balance refresh: %v", err)
		}
	}
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
