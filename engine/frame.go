package engine

import (
	log "github.com/sirupsen/logrus"
	"github.com/zucenko/tangerine/model"
)

// Frame advances the simulation by one rendered frame. It returns false when
// nothing was simulated (countdown running or not playing).
func (e *Engine) Frame() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running() {
		return false
	}
	m := e.match
	m.Maze.Move(&m.Player, PlayerStep)

	model.Pursue(&m.Opponent, m.Player.X, m.Player.Y)
	m.Maze.Move(&m.Opponent, OpponentStep)

	m.collect(&m.Player)
	m.collect(&m.Opponent)

	if len(m.Dots) == 0 {
		m.settle()
		e.enter(model.GameOver)
		log.WithFields(log.Fields{
			"match":    m.ID,
			"player":   m.Player.Score,
			"opponent": m.Opponent.Score,
			"winner":   m.Winner,
			"draw":     m.Draw,
		}).Info("match over")
	}
	return true
}

// collect removes every remaining dot within capture range of p. A dot that
// is gone cannot be scored again.
func (m *Match) collect(p *model.Participant) {
	kept := m.Dots[:0]
	for _, d := range m.Dots {
		if d.Distance(p.X, p.Y) < CaptureRange {
			p.Score += DotPoints
			continue
		}
		kept = append(kept, d)
	}
	m.Dots = kept
}

// settle records the strictly higher score as winner; equal scores are a draw.
func (m *Match) settle() {
	switch {
	case m.Player.Score > m.Opponent.Score:
		m.Winner = m.Player.ID
	case m.Opponent.Score > m.Player.Score:
		m.Winner = m.Opponent.ID
	default:
		m.Draw = true
	}
}

// Won reports whether account is the recorded winner.
func (m *Match) Won(account string) bool {
	return m != nil && !m.Draw && m.Winner != "" && m.Winner == account
}
