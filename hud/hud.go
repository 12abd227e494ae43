// Package hud turns session and match state into the lines the client draws.
package hud

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"github.com/zucenko/tangerine/chain"
	"github.com/zucenko/tangerine/engine"
	"github.com/zucenko/tangerine/model"
	"github.com/zucenko/tangerine/wallet"
)

func ShortAddress(a common.Address) string {
	h := a.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}

// ShortID shortens an account string that may not be an address.
func ShortID(s string) string {
	if common.IsHexAddress(s) {
		return ShortAddress(common.HexToAddress(s))
	}
	if len(s) > 10 {
		return s[:10] + "..."
	}
	return s
}

// Native renders wei as ETH with up to six significant fraction digits.
func Native(wei *big.Int) string {
	if wei == nil {
		return "-- ETH"
	}
	return humanize.CommafWithDigits(chain.ToFloat(wei, 18), 6) + " ETH"
}

func Token(units *big.Int) string {
	if units == nil {
		return "-- TRAP"
	}
	return chain.FormatTokenAmount(chain.ToFloat(units, chain.TokenDecimals)) + " TRAP"
}

// Status is the wallet line at the top of every screen.
func Status(st wallet.State) string {
	switch st.Status {
	case wallet.Connecting:
		return "Connecting wallet..."
	case wallet.Connected:
	default:
		return "Wallet not connected"
	}
	parts := []string{ShortAddress(st.Account), Native(st.Balance), Token(st.TokenBalance)}
	if st.WrongNetwork {
		parts = append(parts, "WRONG NETWORK")
	}
	if st.Authenticated {
		parts = append(parts, "signed in")
	}
	return strings.Join(parts, "  |  ")
}

// Fee describes the entry price for the chosen payment method.
func Fee(method wallet.PaymentMethod, native, token *big.Int) string {
	if method == wallet.PayToken {
		return "Entry fee: " + Token(token)
	}
	return "Entry fee: " + Native(native)
}

func Reward(wei *big.Int, platformPct float64) string {
	return fmt.Sprintf("Winner takes %s (after %s%% platform fee)", Native(wei), humanize.Ftoa(platformPct))
}

// Hints lists the keys that do something in the current state.
func Hints(st wallet.State, s engine.Snapshot) []string {
	if st.Status != wallet.Connected {
		return []string{"[C] connect wallet"}
	}
	hints := make([]string, 0, 4)
	if st.WrongNetwork {
		hints = append(hints, "[N] switch network")
	}
	switch s.Phase {
	case model.AwaitingPayment:
		if !st.Authenticated {
			hints = append(hints, "[S] sign in")
		}
		hints = append(hints, "[T] pay with "+other(st.PaymentMethod).Name(), "[P] pay entry fee")
	case model.AwaitingOpponent:
		if s.Err != nil {
			hints = append(hints, "[F] find opponent again")
		}
	case model.Playing:
		hints = append(hints, "[arrows] steer")
	case model.GameOver:
		if s.Match != nil && s.Match.Won(s.Match.Player.ID) {
			hints = append(hints, "[R] claim reward")
		}
		hints = append(hints, "[SPACE] play again")
	}
	return append(hints, "[D] disconnect")
}

func other(m wallet.PaymentMethod) wallet.PaymentMethod {
	if m == wallet.PayToken {
		return wallet.PayNative
	}
	return wallet.PayToken
}

// Headline is the large text of a phase screen.
func Headline(s engine.Snapshot) string {
	switch s.Phase {
	case model.AwaitingPayment:
		return "Tangerine Pacman PVP"
	case model.ProcessingPayment:
		return "Processing payment..."
	case model.AwaitingOpponent:
		return "Waiting for an opponent..."
	case model.Playing:
		if s.Countdown > 0 {
			return fmt.Sprint(s.Countdown)
		}
		return ""
	case model.GameOver:
		return "Game over"
	}
	return s.Phase.Name()
}

// Scores is the in-game scoreboard.
func Scores(m *engine.Match) string {
	if m == nil {
		return ""
	}
	return fmt.Sprintf("You %d  :  %d %s   dots left %d/%d",
		m.Player.Score, m.Opponent.Score, ShortID(m.Opponent.ID), len(m.Dots), m.InitialDots)
}

// Result is the game over verdict for the local player.
func Result(m *engine.Match) string {
	switch {
	case m == nil:
		return ""
	case m.Draw:
		return fmt.Sprintf("Draw, %d all", m.Player.Score)
	case m.Won(m.Player.ID):
		return fmt.Sprintf("You win %d to %d!", m.Player.Score, m.Opponent.Score)
	default:
		return fmt.Sprintf("You lose %d to %d", m.Player.Score, m.Opponent.Score)
	}
}

// Error is the one-line message for err, empty for nil.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return chain.Message(err)
}
