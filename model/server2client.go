package model

type ServerMessage struct {
	Assignments []Assignment
	Errors      []string
}

// Assignment pairs the receiving account with an opponent.
type Assignment struct {
	MatchID  string
	Opponent string
	Seat     int
}

type ClientMessage struct {
	Hello []Hello
}

type Hello struct {
	Account string
	EntryTx string
}
