package engine

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/zucenko/tangerine/model"
)

// Request describes a paid player looking for an opponent.
type Request struct {
	Account string
	EntryTx string
}

// Matchmaker assigns an opponent. FindOpponent must return promptly with
// ctx.Err() once ctx is cancelled.
type Matchmaker interface {
	FindOpponent(ctx context.Context, req Request) (model.Assignment, error)
}

// SimulatedOpponent is the synthetic rival address used when no lobby is
// configured.
const SimulatedOpponent = "0x1234567890abcdef1234567890abcdef12345678"

// SimulatedMatchmaker hands out a synthetic opponent after a fixed delay.
type SimulatedMatchmaker struct {
	Delay    time.Duration
	Opponent string
	Clock    clock.Clock
}

func NewSimulatedMatchmaker(delay time.Duration) *SimulatedMatchmaker {
	return &SimulatedMatchmaker{Delay: delay, Opponent: SimulatedOpponent, Clock: clock.New()}
}

func (s *SimulatedMatchmaker) FindOpponent(ctx context.Context, req Request) (model.Assignment, error) {
	c := s.Clock
	if c == nil {
		c = clock.New()
	}
	t := c.Timer(s.Delay)
	defer t.Stop()
	log.Printf("simulated matchmaking for %s", req.Account)
	select {
	case <-ctx.Done():
		return model.Assignment{}, ctx.Err()
	case <-t.C:
	}
	return model.Assignment{MatchID: uuid.NewString(), Opponent: s.Opponent, Seat: 0}, nil
}
