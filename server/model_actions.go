package server

import (
	"context"
	"encoding/gob"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/zucenko/tangerine/model"
)

func NewGameServer(metrics *Metrics) *GameServer {
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	return &GameServer{
		GameSessions: make(map[string]*GameSession),
		Joins:        make(chan PlayerHello),
		Leaves:       make(chan *PlayerSession),
		Done:         make(chan struct{}),
		Upgrader:     &websocket.Upgrader{},
		Metrics:      metrics,
		Timeout:      200 * time.Millisecond,
	}
}

func (s *GameServer) HandleHttpCall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("HandleHttpCall - connection received from %s", r.RemoteAddr)
		// Upgrade replies to the client itself on failure.
		con, err := s.Upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warnf("HandleHttpCall websocket upgrade err %v", err)
			return
		}
		defer con.Close()
		s.Metrics.Connections.Inc()
		defer s.Metrics.Connections.Dec()

		ps := s.addPlayer(con)
		go ps.LoopChannelWrite()
		ps.LoopChannelRead(s)
		log.Info("HandleHttpCall connection done")
	}
}

func (s *GameServer) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-s.Done:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		}
	}
}

// Loop owns the waiting slot and the session table until ctx ends.
func (s *GameServer) Loop(ctx context.Context) {
	log.Printf("GameServer.Loop starting")
	defer close(s.Done)
	for {
		select {
		case <-ctx.Done():
			log.Printf("GameServer.Loop stopped")
			return
		case ph := <-s.Joins:
			s.join(ph)
		case ps := <-s.Leaves:
			s.leave(ps)
		}
	}
}

func (s *GameServer) join(ph PlayerHello) {
	ps := ph.Player
	if ps.State == PS_PAIRED {
		s.reject(ps, "already paired in %s", ps.GameSession.ID)
		return
	}
	waiting := s.Waiting
	if waiting != nil && waiting != ps && strings.EqualFold(waiting.Account, ph.Hello.Account) {
		s.reject(ps, "%s is already waiting", ph.Hello.Account)
		return
	}
	ps.Account, ps.EntryTx = ph.Hello.Account, ph.Hello.EntryTx
	if waiting == nil || waiting == ps {
		if waiting == nil {
			s.Metrics.Waiting.Inc()
		}
		ps.State = PS_WAIT
		s.Waiting = ps
		log.WithFields(log.Fields{"account": ps.Account, "tx": ps.EntryTx}).Info("player waiting")
		return
	}

	s.Waiting = nil
	s.Metrics.Waiting.Dec()
	gs := &GameSession{
		ID:             uuid.NewString(),
		State:          GS_PAIRED,
		PlayerSessions: [2]*PlayerSession{waiting, ps},
		Created:        time.Now(),
	}
	s.GameSessions[gs.ID] = gs
	for seat, p := range gs.PlayerSessions {
		p.State = PS_PAIRED
		p.GameSession = gs
		p.send(model.ServerMessage{Assignments: []model.Assignment{{
			MatchID:  gs.ID,
			Opponent: gs.PlayerSessions[1-seat].Account,
			Seat:     seat,
		}}})
	}
	s.Metrics.Matches.Inc()
	log.WithFields(log.Fields{"match": gs.ID, "p0": waiting.Account, "p1": ps.Account}).Info("players paired")
}

func (s *GameServer) reject(ps *PlayerSession, format string, args ...interface{}) {
	s.Metrics.Rejected.Inc()
	msg := errorMessage(format, args...)
	log.Warnf("hello rejected: %s", msg[0])
	ps.send(model.ServerMessage{Errors: msg})
}

func (s *GameServer) leave(ps *PlayerSession) {
	if s.Waiting == ps {
		s.Waiting = nil
		s.Metrics.Waiting.Dec()
		log.WithField("account", ps.Account).Info("waiting player left")
	}
	if gs := ps.GameSession; gs != nil {
		over := true
		for i, p := range gs.PlayerSessions {
			if p == ps {
				gs.PlayerSessions[i] = nil
			} else if p != nil {
				over = false
			}
		}
		if over {
			gs.State = GS_OVER
			delete(s.GameSessions, gs.ID)
		}
	}
	ps.State = PS_ERR
}

func (s *GameServer) addPlayer(conn *websocket.Conn) *PlayerSession {
	ps := &PlayerSession{
		State:          PS_NEW,
		Conn:           conn,
		GameOver:       make(chan struct{}),
		MessagesToSend: make(chan model.ServerMessage, 10),
	}
	conn.SetPingHandler(
		func(message string) error {
			err := conn.WriteControl(websocket.PongMessage, []byte(message), time.Now().Add(time.Second))
			ps.DebugLastPing = time.Now()
			ps.DebugPings++
			var ne net.Error
			if err == websocket.ErrCloseSent {
				return nil
			} else if errors.As(err, &ne) && ne.Timeout() {
				return nil
			}
			return err
		})
	return ps
}

// send never blocks the caller; a full queue drops the message.
func (ps *PlayerSession) send(m model.ServerMessage) {
	select {
	case ps.MessagesToSend <- m:
	default:
		log.Warnf("dropping message to %s, queue full", ps.Account)
	}
}

// LoopChannelRead decodes hellos until the connection fails, then reports
// the player gone.
func (ps *PlayerSession) LoopChannelRead(s *GameServer) {
	log.Printf("LoopChannelRead STARTED")
loop:
	for {
		messageType, r, err := ps.Conn.NextReader()
		if err != nil {
			log.Printf("LoopChannelRead connection closed: %v", err)
			break loop
		}
		log.Printf("LoopChannelRead received message type: %d", messageType)
		cm := &model.ClientMessage{}
		if err := gob.NewDecoder(r).Decode(cm); err != nil {
			log.Warnf("cant decode: %v", err)
			break loop
		}
		ps.DebugLastMessage = time.Now()
		ps.DebugInMessages++

		for _, h := range cm.Hello {
			if !common.IsHexAddress(h.Account) {
				s.Metrics.Rejected.Inc()
				ps.send(model.ServerMessage{Errors: errorMessage("bad account %q", h.Account)})
				continue
			}
			h.Account = common.HexToAddress(h.Account).Hex()
			select {
			case s.Joins <- PlayerHello{Player: ps, Hello: h}:
			case <-s.Done:
				break loop
			case <-time.After(s.Timeout):
				log.Warn("Joins TIMEOUTED")
				ps.send(model.ServerMessage{Errors: errorMessage("lobby busy")})
			}
		}
	}
	close(ps.GameOver)
	select {
	case s.Leaves <- ps:
	case <-s.Done:
	}
	log.Printf("LoopChannelRead ENDED")
}

// LoopChannelWrite only consumes MessagesToSend, so senders never get stuck
// on a dead connection.
func (ps *PlayerSession) LoopChannelWrite() {
	log.Printf("PlayerSession.LoopChannelWrite STARTED")
loop:
	for {
		select {
		case <-ps.GameOver:
			break loop
		case mes := <-ps.MessagesToSend:
			w, err := ps.Conn.NextWriter(websocket.BinaryMessage)
			if err != nil {
				log.Warnf("PlayerSession.LoopChannelWrite cant get writer %v", err)
				break loop
			}
			if err := gob.NewEncoder(w).Encode(mes); err != nil {
				log.Warnf("PlayerSession.LoopChannelWrite cant encode %v", err)
				break loop
			}
			if err := w.Close(); err != nil {
				log.Warnf("PlayerSession.LoopChannelWrite cant flush %v", err)
				break loop
			}
			ps.DebugOutMessages++
		}
	}
	// unblock the reader if the writer failed first
	ps.Conn.Close()
	log.Printf("LoopChannelWrite ENDED")
}
