package server

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/zucenko/tangerine/model"
)

// GameServer pairs players that said hello. Its Loop goroutine owns Waiting
// and GameSessions.
type GameServer struct {
	Waiting      *PlayerSession
	GameSessions map[string]*GameSession
	Joins        chan PlayerHello
	Leaves       chan *PlayerSession
	Done         chan struct{} // closed when Loop returns
	Upgrader     *websocket.Upgrader
	Metrics      *Metrics
	Timeout      time.Duration
}

type GameSessionState int

const (
	GS_NEW GameSessionState = iota
	GS_PAIRED
	GS_OVER
)

// GameSession is one pairing handed out by the lobby.
type GameSession struct {
	ID             string
	State          GameSessionState
	PlayerSessions [2]*PlayerSession
	Created        time.Time
}

type PlayerSessionState int

const (
	PS_NEW PlayerSessionState = iota + 1
	PS_WAIT
	PS_PAIRED
	PS_ERR
)

type PlayerSession struct {
	State       PlayerSessionState
	Account     string
	EntryTx     string
	GameSession *GameSession
	Conn        *websocket.Conn
	GameOver    chan struct{}

	MessagesToSend chan model.ServerMessage

	DebugInMessages  int
	DebugOutMessages int
	DebugLastMessage time.Time
	DebugLastPing    time.Time
	DebugPings       int
}

// PlayerHello is a validated hello on its way to the server loop.
type PlayerHello struct {
	Player *PlayerSession
	Hello  model.Hello
}
