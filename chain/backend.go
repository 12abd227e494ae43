package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	log "github.com/sirupsen/logrus"
)

// Caller runs read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error)
}

// Backend is the read side of a node. *ethclient.Client satisfies it.
type Backend interface {
	Caller
	BalanceAt(ctx context.Context, account common.Address, block *big.Int) (*big.Int, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Call packs method, calls contract at latest block and unpacks into out.
func Call(ctx context.Context, c Caller, contract abi.ABI, to common.Address, out interface{}, method string, args ...interface{}) error {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	res, err := c.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	if err := contract.UnpackIntoInterface(out, method, res); err != nil {
		return fmt.Errorf("decode %s: %w", method, err)
	}
	return nil
}

// TokenBalance reads balanceOf(account) on an ERC-20 token.
func TokenBalance(ctx context.Context, c Caller, token, account common.Address) (*big.Int, error) {
	var bal *big.Int
	if err := Call(ctx, c, ERC20ABI, token, &bal, "balanceOf", account); err != nil {
		return nil, err
	}
	return bal, nil
}

// Allowance reads allowance(owner, spender) on an ERC-20 token.
func Allowance(ctx context.Context, c Caller, token, owner, spender common.Address) (*big.Int, error) {
	var v *big.Int
	if err := Call(ctx, c, ERC20ABI, token, &v, "allowance", owner, spender); err != nil {
		return nil, err
	}
	return v, nil
}

type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Waiter polls for a transaction receipt.
type Waiter struct {
	Receipts ReceiptReader
	Clock    clock.Clock
	Interval time.Duration
	// Attempts bounds polling; zero polls until ctx is done.
	Attempts int
}

func NewWaiter(r ReceiptReader) *Waiter {
	return &Waiter{Receipts: r, Clock: clock.New(), Interval: 2 * time.Second}
}

// WaitMined returns the receipt once the transaction is included. A failed
// status is ErrReverted; running out of attempts is ErrNotMined.
func (w *Waiter) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	c := w.Clock
	if c == nil {
		c = clock.New()
	}
	for i := 0; w.Attempts == 0 || i < w.Attempts; i++ {
		r, err := w.Receipts.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && r != nil:
			if r.Status != types.ReceiptStatusSuccessful {
				return r, fmt.Errorf("tx %s: %w", hash.Hex(), ErrReverted)
			}
			log.WithFields(log.Fields{"tx": hash.Hex(), "block": r.BlockNumber}).Info("transaction mined")
			return r, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			log.Debugf("receipt %s: %v", hash.Hex(), err)
		}
		t := c.Timer(w.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("tx %s: %w: %v", hash.Hex(), ErrNotMined, ctx.Err())
		case <-t.C:
		}
	}
	return nil, fmt.Errorf("tx %s after %d attempts: %w", hash.Hex(), w.Attempts, ErrNotMined)
}
