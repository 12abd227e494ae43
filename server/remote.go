package server

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/zucenko/tangerine/engine"
	"github.com/zucenko/tangerine/model"
)

var ErrLobby = errors.New("lobby refused")

// RemoteMatchmaker finds an opponent through the lobby at URL, a ws:// or
// wss:// address of the /play endpoint.
type RemoteMatchmaker struct {
	URL    string
	Dialer *websocket.Dialer
}

func NewRemoteMatchmaker(url string) *RemoteMatchmaker {
	return &RemoteMatchmaker{URL: url, Dialer: websocket.DefaultDialer}
}

func (m *RemoteMatchmaker) FindOpponent(ctx context.Context, req engine.Request) (model.Assignment, error) {
	dialer := m.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, m.URL, nil)
	if err != nil {
		return model.Assignment{}, fmt.Errorf("dial lobby: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	w, err := conn.NextWriter(websocket.BinaryMessage)
	if err != nil {
		return model.Assignment{}, m.fail(ctx, err)
	}
	hello := model.ClientMessage{Hello: []model.Hello{{Account: req.Account, EntryTx: req.EntryTx}}}
	if err := gob.NewEncoder(w).Encode(hello); err != nil {
		return model.Assignment{}, fmt.Errorf("encode hello: %w", err)
	}
	if err := w.Close(); err != nil {
		return model.Assignment{}, m.fail(ctx, err)
	}
	log.WithField("lobby", m.URL).Info("waiting in lobby")

	for {
		_, r, err := conn.NextReader()
		if err != nil {
			return model.Assignment{}, m.fail(ctx, err)
		}
		var sm model.ServerMessage
		if err := gob.NewDecoder(r).Decode(&sm); err != nil {
			return model.Assignment{}, fmt.Errorf("decode lobby message: %w", err)
		}
		if len(sm.Errors) > 0 {
			return model.Assignment{}, fmt.Errorf("%w: %s", ErrLobby, strings.Join(sm.Errors, "; "))
		}
		if len(sm.Assignments) > 0 {
			return sm.Assignments[0], nil
		}
	}
}

// fail prefers the cancellation over the connection error it caused.
func (m *RemoteMatchmaker) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("lobby connection: %w", err)
}
