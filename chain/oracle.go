package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	// FallbackPrice is the native price of one token when no quote is available.
	FallbackPrice = 0.00000001
	QuoteTTL      = 5 * time.Minute
	TokenDecimals = 18
)

type OracleConfig struct {
	Quoter        common.Address
	Token         common.Address
	Wrapped       common.Address
	FallbackPrice float64
	TTL           time.Duration
	Clock         clock.Clock
}

func (c OracleConfig) withDefaults() OracleConfig {
	if c.Quoter == (common.Address{}) {
		c.Quoter = DefaultQuoter
	}
	if c.Wrapped == (common.Address{}) {
		c.Wrapped = WrappedNative
	}
	if c.FallbackPrice <= 0 {
		c.FallbackPrice = FallbackPrice
	}
	if c.TTL == 0 {
		c.TTL = QuoteTTL
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	return c
}

// PriceOracle prices the token in native currency from an on-chain quote.
// It never fails: any quote error yields the fallback price.
type PriceOracle struct {
	caller Caller
	cfg    OracleConfig

	mu        sync.Mutex
	price     float64
	fetchedAt time.Time
	cached    bool

	group singleflight.Group
}

func NewPriceOracle(caller Caller, cfg OracleConfig) *PriceOracle {
	return &PriceOracle{caller: caller, cfg: cfg.withDefaults()}
}

func (o *PriceOracle) fresh() (float64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cached && o.cfg.Clock.Since(o.fetchedAt) < o.cfg.TTL {
		return o.price, true
	}
	return 0, false
}

// PriceInNative returns the native price of one whole token.
func (o *PriceOracle) PriceInNative(ctx context.Context) float64 {
	if p, ok := o.fresh(); ok {
		return p
	}
	v, err, _ := o.group.Do("quote", func() (interface{}, error) {
		if p, ok := o.fresh(); ok {
			return p, nil
		}
		p, err := o.quote(ctx)
		if err != nil {
			return nil, err
		}
		o.mu.Lock()
		o.price, o.fetchedAt, o.cached = p, o.cfg.Clock.Now(), true
		o.mu.Unlock()
		log.WithField("price", p).Info("token quote refreshed")
		return p, nil
	})
	if err != nil {
		log.Warnf("token quote failed, using fallback %g: %v", o.cfg.FallbackPrice, err)
		return o.cfg.FallbackPrice
	}
	return v.(float64)
}

var errBadQuote = errors.New("empty quote")

func (o *PriceOracle) quote(ctx context.Context) (float64, error) {
	if o.caller == nil {
		return 0, errors.New("no chain reader")
	}
	one := new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil)
	var out *big.Int
	err := Call(ctx, o.caller, QuoterABI, o.cfg.Quoter, &out, "quoteExactInputSingle",
		o.cfg.Token, o.cfg.Wrapped, big.NewInt(QuoteFeeTier), one, new(big.Int))
	if err != nil {
		return 0, err
	}
	if out == nil || out.Sign() <= 0 {
		return 0, errBadQuote
	}
	p := ToFloat(out, TokenDecimals)
	if p <= 0 {
		return 0, fmt.Errorf("quote %s: %w", out, errBadQuote)
	}
	return p, nil
}

// EquivalentAmount converts a native amount into whole tokens.
func (o *PriceOracle) EquivalentAmount(ctx context.Context, native float64) float64 {
	return native / o.PriceInNative(ctx)
}

// EquivalentUnits is EquivalentAmount in token base units.
func (o *PriceOracle) EquivalentUnits(ctx context.Context, native float64) *big.Int {
	return FromFloat(o.EquivalentAmount(ctx, native), TokenDecimals)
}

// FormatTokenAmount renders 1234567 as 1.23M and 4560 as 4.56K.
func FormatTokenAmount(v float64) string {
	switch {
	case v >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.2fK", v/1e3)
	}
	return fmt.Sprintf("%.2f", v)
}
