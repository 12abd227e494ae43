package gateway

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	log "github.com/sirupsen/logrus"
	"github.com/zucenko/tangerine/chain"
	"github.com/zucenko/tangerine/engine"
	"github.com/zucenko/tangerine/wallet"
)

// Session is the part of wallet.Session the gateway needs.
type Session interface {
	Ready() (common.Address, error)
	State() wallet.State
	Provider() wallet.Provider
	RefreshNative(ctx context.Context) error
	RefreshToken(ctx context.Context) error
}

type Config struct {
	Contract common.Address
	Token    common.Address
	// NativeFee is the entry fee in wei.
	NativeFee *big.Int
	// TokenFee is a fixed token fee in base units. Nil prices the token fee
	// from the oracle.
	TokenFee *big.Int
}

type Gateway struct {
	cfg     Config
	session Session
	reader  chain.Caller
	waiter  *chain.Waiter
	oracle  *chain.PriceOracle
}

// DefaultNativeFee is 0.0001 ETH.
var DefaultNativeFee = big.NewInt(100000000000000)

func New(cfg Config, session Session, reader chain.Caller, waiter *chain.Waiter, oracle *chain.PriceOracle) *Gateway {
	if cfg.NativeFee == nil {
		cfg.NativeFee = DefaultNativeFee
	}
	return &Gateway{cfg: cfg, session: session, reader: reader, waiter: waiter, oracle: oracle}
}

// TokenFee is the token amount charged for one entry.
func (g *Gateway) TokenFee(ctx context.Context) *big.Int {
	if g.cfg.TokenFee != nil {
		return new(big.Int).Set(g.cfg.TokenFee)
	}
	native := chain.ToFloat(g.cfg.NativeFee, chain.TokenDecimals)
	if g.oracle == nil {
		return chain.FromFloat(native/chain.FallbackPrice, chain.TokenDecimals)
	}
	return g.oracle.EquivalentUnits(ctx, native)
}

// EnterGame pays the entry fee with the session's payment method and waits
// for inclusion.
func (g *Gateway) EnterGame(ctx context.Context) (*types.Receipt, error) {
	account, err := g.session.Ready()
	if err != nil {
		return nil, fmt.Errorf("enter game: %w", err)
	}
	st := g.session.State()
	if st.PaymentMethod == wallet.PayToken {
		return g.enterWithToken(ctx, account, st)
	}
	return g.enterWithNative(ctx, account, st)
}

func (g *Gateway) enterWithNative(ctx context.Context, account common.Address, st wallet.State) (*types.Receipt, error) {
	fee := g.cfg.NativeFee
	if st.Balance == nil || st.Balance.Cmp(fee) < 0 {
		return nil, fmt.Errorf("enter game: need %s ETH: %w", chain.FormatUnits(fee, 18), chain.ErrInsufficientFunds)
	}
	r, err := g.send(ctx, account, g.cfg.Contract, fee, chain.MatchABI, "enterGame")
	if err != nil {
		return nil, fmt.Errorf("enter game: %w", err)
	}
	if err := g.session.RefreshNative(ctx); err != nil {
		log.Warnf("refresh balance: %v", err)
	}
	return r, nil
}

func (g *Gateway) enterWithToken(ctx context.Context, account common.Address, st wallet.State) (*types.Receipt, error) {
	amount := g.TokenFee(ctx)
	if st.TokenBalance == nil || st.TokenBalance.Cmp(amount) < 0 {
		return nil, fmt.Errorf("enter game: need %s TRAP: %w",
			chain.FormatTokenAmount(chain.ToFloat(amount, chain.TokenDecimals)), chain.ErrInsufficientFunds)
	}
	allowance, err := chain.Allowance(ctx, g.reader, g.cfg.Token, account, g.cfg.Contract)
	if err != nil {
		return nil, fmt.Errorf("enter game: %w", err)
	}
	if allowance.Cmp(amount) < 0 {
		log.WithFields(log.Fields{"allowance": allowance, "amount": amount}).Info("approving token spend")
		if _, err := g.send(ctx, account, g.cfg.Token, nil, chain.ERC20ABI, "approve", g.cfg.Contract, amount); err != nil {
			return nil, fmt.Errorf("approve: %w", err)
		}
	}
	r, err := g.send(ctx, account, g.cfg.Contract, nil, chain.MatchABI, "enterGameWithToken", amount)
	if err != nil {
		return nil, fmt.Errorf("enter game with token: %w", err)
	}
	if err := g.session.RefreshToken(ctx); err != nil {
		log.Warnf("refresh token balance: %v", err)
	}
	return r, nil
}

// ClaimReward sends claimReward. A caller who is not the recorded winner
// gets the contract's revert as an ordinary error.
func (g *Gateway) ClaimReward(ctx context.Context) (*types.Receipt, error) {
	account, err := g.session.Ready()
	if err != nil {
		return nil, fmt.Errorf("claim reward: %w", err)
	}
	r, err := g.send(ctx, account, g.cfg.Contract, nil, chain.MatchABI, "claimReward")
	if err != nil {
		return nil, fmt.Errorf("claim reward: %w", err)
	}
	if err := g.session.RefreshNative(ctx); err != nil {
		log.Warnf("refresh balance: %v", err)
	}
	if err := g.session.RefreshToken(ctx); err != nil {
		log.Warnf("refresh token balance: %v", err)
	}
	return r, nil
}

func (g *Gateway) send(ctx context.Context, from, to common.Address, value *big.Int, contract abi.ABI, method string, args ...interface{}) (*types.Receipt, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}
	hash, err := g.session.Provider().SendTransaction(ctx, wallet.TxRequest{From: from, To: to, Value: value, Data: data})
	if err != nil {
		return nil, chain.Classify(err)
	}
	log.WithFields(log.Fields{"method": method, "tx": hash.Hex()}).Info("transaction submitted")
	return g.waiter.WaitMined(ctx, hash)
}

// Payer adapts EnterGame for the match engine.
func (g *Gateway) Payer() engine.Payer {
	return engine.PayerFunc(func(ctx context.Context) (string, error) {
		r, err := g.EnterGame(ctx)
		if err != nil {
			return "", err
		}
		return r.TxHash.Hex(), nil
	})
}
