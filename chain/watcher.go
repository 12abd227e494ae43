package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	log "github.com/sirupsen/logrus"
)

// GameStarted field names follow the ABI argument names.
type GameStarted struct {
	Player1 common.Address
	Player2 common.Address
	GameId  *big.Int
	Raw     types.Log
}

// Involves reports whether account is one of the two players.
func (e *GameStarted) Involves(account common.Address) bool {
	return e.Player1 == account || e.Player2 == account
}

// Rival returns the other player's address.
func (e *GameStarted) Rival(account common.Address) common.Address {
	if e.Player1 == account {
		return e.Player2
	}
	return e.Player1
}

type GameEnded struct {
	GameId *big.Int
	Winner common.Address
	Raw    types.Log
}

// Event holds exactly one decoded match contract log.
type Event struct {
	Started *GameStarted
	Ended   *GameEnded
}

type LogReader interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Watcher polls the match contract for GameStarted and GameEnded logs.
type Watcher struct {
	logs     LogReader
	address  common.Address
	contract *bind.BoundContract
	clock    clock.Clock
	interval time.Duration
	next     uint64
	started  bool
}

func NewWatcher(logs LogReader, address common.Address, clk clock.Clock, interval time.Duration) *Watcher {
	if clk == nil {
		clk = clock.New()
	}
	if interval == 0 {
		interval = 2 * time.Second
	}
	return &Watcher{
		logs:     logs,
		address:  address,
		contract: bind.NewBoundContract(address, MatchABI, nil, nil, nil),
		clock:    clk,
		interval: interval,
	}
}

// From sets the first block to scan. Without it the watcher starts at the
// head seen on the first poll.
func (w *Watcher) From(block uint64) *Watcher {
	w.next, w.started = block, true
	return w
}

// Poll scans the blocks since the previous poll and decodes every match log.
func (w *Watcher) Poll(ctx context.Context) ([]Event, error) {
	head, err := w.logs.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("block number: %w", err)
	}
	if !w.started {
		w.next, w.started = head, true
	}
	if head < w.next {
		return nil, nil
	}
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(w.next),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: []common.Address{w.address},
		Topics: [][]common.Hash{{
			MatchABI.Events["GameStarted"].ID,
			MatchABI.Events["GameEnded"].ID,
		}},
	}
	logs, err := w.logs.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("filter logs %d..%d: %w", w.next, head, err)
	}
	var out []Event
	for _, l := range logs {
		ev, err := w.decode(l)
		if err != nil {
			log.Warnf("skip log %s/%d: %v", l.TxHash.Hex(), l.Index, err)
			continue
		}
		out = append(out, ev)
	}
	w.next = head + 1
	return out, nil
}

func (w *Watcher) decode(l types.Log) (Event, error) {
	if len(l.Topics) == 0 {
		return Event{}, fmt.Errorf("anonymous log")
	}
	switch l.Topics[0] {
	case MatchABI.Events["GameStarted"].ID:
		e := &GameStarted{Raw: l}
		if err := w.contract.UnpackLog(e, "GameStarted", l); err != nil {
			return Event{}, err
		}
		return Event{Started: e}, nil
	case MatchABI.Events["GameEnded"].ID:
		e := &GameEnded{Raw: l}
		if err := w.contract.UnpackLog(e, "GameEnded", l); err != nil {
			return Event{}, err
		}
		return Event{Ended: e}, nil
	}
	return Event{}, fmt.Errorf("unknown topic %s", l.Topics[0].Hex())
}

// Run polls until ctx is done, handing each event to fn. Poll errors are
// logged and retried on the next tick.
func (w *Watcher) Run(ctx context.Context, fn func(Event)) error {
	t := w.clock.Ticker(w.interval)
	defer t.Stop()
	for {
		events, err := w.Poll(ctx)
		if err != nil {
			log.Warnf("match watcher: %v", err)
		}
		for _, ev := range events {
			fn(ev)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
