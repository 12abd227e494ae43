package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"github.com/zucenko/tangerine/chain"
	"github.com/zucenko/tangerine/engine"
	"github.com/zucenko/tangerine/model"
)

// ChainReader is what the on-chain matchmaker reads.
type ChainReader interface {
	chain.LogReader
	chain.ReceiptReader
}

// ChainMatchmaker waits for the contract to pair the player: the first
// GameStarted log naming the account after its entry transaction.
type ChainMatchmaker struct {
	reader   ChainReader
	contract common.Address
	clock    clock.Clock
	interval time.Duration
}

func NewChainMatchmaker(reader ChainReader, contract common.Address, clk clock.Clock, interval time.Duration) *ChainMatchmaker {
	return &ChainMatchmaker{reader: reader, contract: contract, clock: clk, interval: interval}
}

func (m *ChainMatchmaker) FindOpponent(ctx context.Context, req engine.Request) (model.Assignment, error) {
	if !common.IsHexAddress(req.Account) {
		return model.Assignment{}, fmt.Errorf("find opponent: bad account %q", req.Account)
	}
	account := common.HexToAddress(req.Account)
	w := chain.NewWatcher(m.reader, m.contract, m.clock, m.interval)
	if req.EntryTx != "" {
		if r, err := m.reader.TransactionReceipt(ctx, common.HexToHash(req.EntryTx)); err == nil && r.BlockNumber != nil {
			w.From(r.BlockNumber.Uint64())
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var out model.Assignment
	err := w.Run(ctx, func(ev chain.Event) {
		if ev.Started == nil || !ev.Started.Involves(account) || out.MatchID != "" {
			return
		}
		out = model.Assignment{
			MatchID:  ev.Started.GameId.String(),
			Opponent: ev.Started.Rival(account).Hex(),
		}
		if ev.Started.Player2 == account {
			out.Seat = 1
		}
		log.WithFields(log.Fields{"game": out.MatchID, "opponent": out.Opponent}).Info("matched on chain")
		cancel()
	})
	if out.MatchID != "" {
		return out, nil
	}
	return model.Assignment{}, err
}
