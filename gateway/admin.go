package gateway

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/zucenko/tangerine/chain"
)

func (g *Gateway) IsGameAdmin(ctx context.Context, account common.Address) (bool, error) {
	var ok bool
	if err := chain.Call(ctx, g.reader, chain.MatchABI, g.cfg.Contract, &ok, "isGameAdmin", account); err != nil {
		return false, err
	}
	return ok, nil
}

func (g *Gateway) AddGameAdmin(ctx context.Context, account common.Address) (*types.Receipt, error) {
	return g.adminTx(ctx, "addGameAdmin", account)
}

func (g *Gateway) RemoveGameAdmin(ctx context.Context, account common.Address) (*types.Receipt, error) {
	return g.adminTx(ctx, "removeGameAdmin", account)
}

// EndGameWithWinner records the winner of a finished game on chain.
func (g *Gateway) EndGameWithWinner(ctx context.Context, gameID *big.Int, winner common.Address) (*types.Receipt, error) {
	if gameID == nil || gameID.Sign() < 0 {
		return nil, fmt.Errorf("end game: invalid game id")
	}
	return g.adminTx(ctx, "endGameWithWinner", gameID, winner)
}

func (g *Gateway) adminTx(ctx context.Context, method string, args ...interface{}) (*types.Receipt, error) {
	account, err := g.session.Ready()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	r, err := g.send(ctx, account, g.cfg.Contract, nil, chain.MatchABI, method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return r, nil
}
