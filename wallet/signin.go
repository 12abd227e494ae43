package wallet

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spruceid/siwe-go"
	"github.com/zucenko/tangerine/chain"
)

const DefaultStatement = "Sign in with Ethereum to Tangerine Pacman PVP"

// SignIn asks the wallet to sign an EIP-4361 message for the connected
// account. The signature is not verified; signing marks the session
// authenticated.
func (s *Session) SignIn(ctx context.Context) error {
	account, gen, err := s.snapshot()
	if err != nil {
		return s.fail(fmt.Errorf("sign in: %w", err))
	}
	chainID, err := s.provider.ChainID(ctx)
	if err != nil {
		return s.fail(fmt.Errorf("sign in: %w", chain.Classify(err)))
	}
	msg, err := siwe.InitMessage(s.cfg.Domain, account.Hex(), s.cfg.URI, siwe.GenerateNonce(), map[string]interface{}{
		"statement": s.cfg.Statement,
		"chainId":   int(chainID.Int64()),
		"issuedAt":  s.cfg.Clock.Now().UTC(),
	})
	if err != nil {
		return s.fail(fmt.Errorf("sign in message: %w", err))
	}
	text := msg.String()
	if _, err := s.provider.SignMessage(ctx, account, []byte(text)); err != nil {
		return s.fail(fmt.Errorf("sign in: %w", chain.Classify(err)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return nil
	}
	s.state.Authenticated = true
	s.state.SignedMessage = text
	log.WithField("account", account.Hex()).Info("signed in")
	return nil
}
