package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/zucenko/tangerine/model"
)

const (
	PlayerStep   = 0.1
	OpponentStep = 0.08
	CaptureRange = 0.5
	DotPoints    = 10
	Countdown    = 3
)

var ErrWrongPhase = errors.New("action not allowed in current phase")

// Payer settles the entry fee. It blocks until the payment is mined or fails.
type Payer interface {
	EnterGame(ctx context.Context) (string, error)
}

// PayerFunc adapts a plain function to Payer.
type PayerFunc func(ctx context.Context) (string, error)

func (f PayerFunc) EnterGame(ctx context.Context) (string, error) {
	return f(ctx)
}

type Config struct {
	// Maze builds the board of a new match. Nil means the default maze.
	Maze func() *model.Maze
	// CountdownTick is the length of one countdown step.
	CountdownTick time.Duration
	Clock         clock.Clock
}

func (c Config) withDefaults() Config {
	if c.Maze == nil {
		c.Maze = model.NewDefaultMaze
	}
	if c.CountdownTick == 0 {
		c.CountdownTick = time.Second
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	return c
}

type Match struct {
	ID          string
	Maze        *model.Maze
	Player      model.Participant
	Opponent    model.Participant
	Dots        []model.Dot
	InitialDots int
	Winner      string
	Draw        bool
}

// Snapshot is a copy of the engine state for rendering.
type Snapshot struct {
	Phase     model.Phase
	Countdown int
	Match     *Match
	Err       error
	EntryTx   string
}

type Engine struct {
	mu         sync.Mutex
	cfg        Config
	payer      Payer
	matchmaker Matchmaker

	phase     model.Phase
	account   string
	entryTx   string
	request   Request
	match     *Match
	countdown int
	err       error

	// gen bumps on every state exit; callbacks of an older state are dropped.
	gen    uint64
	cancel context.CancelFunc
	timer  *clock.Timer
}

func New(cfg Config, payer Payer, matchmaker Matchmaker) *Engine {
	return &Engine{
		cfg:        cfg.withDefaults(),
		payer:      payer,
		matchmaker: matchmaker,
		phase:      model.AwaitingPayment,
	}
}

func (e *Engine) Phase() model.Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Snapshot{Phase: e.phase, Countdown: e.countdown, Err: e.err, EntryTx: e.entryTx}
	if e.match != nil {
		m := *e.match
		m.Dots = append([]model.Dot(nil), e.match.Dots...)
		s.Match = &m
	}
	return s
}

// enter switches phase and tears down whatever the previous phase scheduled.
// Caller holds mu.
func (e *Engine) enter(p model.Phase) uint64 {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.gen++
	log.WithFields(log.Fields{"from": e.phase.Name(), "to": p.Name()}).Info("match phase")
	e.phase = p
	return e.gen
}

// Pay runs the entry-fee payment for account. It blocks until the payer
// returns; on success the engine is AwaitingOpponent and the opponent search
// runs in the background.
func (e *Engine) Pay(ctx context.Context, account string) error {
	e.mu.Lock()
	if e.phase != model.AwaitingPayment {
		e.mu.Unlock()
		return fmt.Errorf("pay in %s: %w", e.phase.Name(), ErrWrongPhase)
	}
	e.err = nil
	e.account = account
	gen := e.enter(model.ProcessingPayment)
	e.mu.Unlock()

	tx, err := e.payer.EnterGame(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		log.Warn("payment result after teardown dropped")
		return ErrWrongPhase
	}
	if err != nil {
		log.Warnf("entry payment failed: %v", err)
		e.err = err
		e.enter(model.AwaitingPayment)
		return err
	}
	e.entryTx = tx
	e.request = Request{Account: account, EntryTx: tx}
	e.find(e.enter(model.AwaitingOpponent))
	return nil
}

// Retry restarts a failed opponent search. The entry fee is already paid, so
// the recorded request is reused and the payer is not called.
func (e *Engine) Retry() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != model.AwaitingOpponent || e.err == nil {
		return fmt.Errorf("retry in %s: %w", e.phase.Name(), ErrWrongPhase)
	}
	e.err = nil
	log.WithField("tx", e.request.EntryTx).Info("retrying opponent search")
	e.find(e.enter(model.AwaitingOpponent))
	return nil
}

// find runs the opponent search for the current request. Caller holds mu.
func (e *Engine) find(gen uint64) {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go e.search(ctx, gen, e.request)
}

func (e *Engine) search(ctx context.Context, gen uint64, req Request) {
	a, err := e.matchmaker.FindOpponent(ctx, req)
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return
	}
	if err != nil {
		log.Warnf("opponent search failed: %v", err)
		e.err = fmt.Errorf("find opponent: %w", err)
		if e.cancel != nil {
			e.cancel()
			e.cancel = nil
		}
		return
	}
	e.start(a)
}

// start sets up the board and the countdown. Caller holds mu.
func (e *Engine) start(a model.Assignment) {
	gen := e.enter(model.Playing)
	maze := e.cfg.Maze()
	dots := maze.Dots()
	id := a.MatchID
	if id == "" {
		id = uuid.NewString()
	}
	e.match = &Match{
		ID:          id,
		Maze:        maze,
		Player:      model.Participant{ID: e.account, X: 1, Y: 1, Facing: model.Right},
		Opponent:    model.Participant{ID: a.Opponent, X: float64(maze.Width - 2), Y: float64(maze.Height - 2), Facing: model.Left},
		Dots:        dots,
		InitialDots: len(dots),
	}
	e.countdown = Countdown
	log.WithFields(log.Fields{"match": id, "opponent": a.Opponent, "dots": len(dots)}).Info("match assigned")
	e.tick(gen)
}

// tick schedules the next countdown step. Caller holds mu.
func (e *Engine) tick(gen uint64) {
	e.timer = e.cfg.Clock.AfterFunc(e.cfg.CountdownTick, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if gen != e.gen || e.countdown <= 0 {
			return
		}
		e.countdown--
		if e.countdown > 0 {
			e.tick(gen)
			return
		}
		e.timer = nil
		log.Info("countdown over")
	})
}

// Running reports whether frames are being simulated.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running()
}

func (e *Engine) running() bool {
	return e.phase == model.Playing && e.countdown == 0 && e.match != nil
}

// SetDirection records the player's intent. It does not move the player.
func (e *Engine) SetDirection(d model.Direction) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running() {
		return
	}
	e.match.Player.Facing = d
}

// PlayAgain resets a finished match.
func (e *Engine) PlayAgain() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != model.GameOver {
		return fmt.Errorf("play again in %s: %w", e.phase.Name(), ErrWrongPhase)
	}
	e.enter(model.AwaitingPayment)
	e.match = nil
	e.err = nil
	e.entryTx = ""
	e.request = Request{}
	e.countdown = 0
	return nil
}

// Close cancels every pending task. The engine stays in its phase but no
// callback will touch it again.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.gen++
}
