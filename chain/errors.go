package chain

import (
	"errors"
	"strings"
	"unicode"

	"github.com/ethereum/go-ethereum/rpc"
)

var (
	ErrNoWallet          = errors.New("no wallet available")
	ErrUserRejected      = errors.New("request rejected in wallet")
	ErrWrongNetwork      = errors.New("wallet is on the wrong network")
	ErrUnknownChain      = errors.New("network not known to wallet")
	ErrNotConnected      = errors.New("wallet not connected")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrReverted          = errors.New("transaction reverted")
	ErrNotMined          = errors.New("transaction not mined")
)

// EIP-1193 provider error codes.
const (
	CodeUserRejected = 4001
	CodeUnauthorized = 4100
	CodeUnknownChain = 4902
)

// ProviderError is an error with an EIP-1193 code. It satisfies rpc.Error so
// an rpc.Server hands the code to its clients unchanged.
type ProviderError struct {
	Code int
	Msg  string
}

func (e *ProviderError) Error() string  { return e.Msg }
func (e *ProviderError) ErrorCode() int { return e.Code }

func (e *ProviderError) Unwrap() error {
	switch e.Code {
	case CodeUserRejected, CodeUnauthorized:
		return ErrUserRejected
	case CodeUnknownChain:
		return ErrUnknownChain
	}
	return nil
}

func Rejected(msg string) error {
	return &ProviderError{Code: CodeUserRejected, Msg: msg}
}

func UnknownChain(msg string) error {
	return &ProviderError{Code: CodeUnknownChain, Msg: msg}
}

// Classify maps codes and node messages coming back from a wallet or a node
// onto the package sentinels. Unknown errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	var re rpc.Error
	if errors.As(err, &re) {
		switch re.ErrorCode() {
		case CodeUserRejected, CodeUnauthorized:
			return &wrapped{err: err, kind: ErrUserRejected}
		case CodeUnknownChain:
			return &wrapped{err: err, kind: ErrUnknownChain}
		}
	}
	if strings.Contains(err.Error(), "insufficient funds") && !errors.Is(err, ErrInsufficientFunds) {
		return &wrapped{err: err, kind: ErrInsufficientFunds}
	}
	return err
}

type wrapped struct {
	err  error
	kind error
}

func (w *wrapped) Error() string   { return w.err.Error() }
func (w *wrapped) Unwrap() []error { return []error{w.err, w.kind} }

type Kind int

const (
	KindNone Kind = iota
	KindConnectivity
	KindFunds
	KindTransaction
	KindOther
)

func (k Kind) Name() string {
	switch k {
	case KindNone:
		return "NONE"
	case KindConnectivity:
		return "CONNECTIVITY"
	case KindFunds:
		return "FUNDS"
	case KindTransaction:
		return "TRANSACTION"
	case KindOther:
		return "OTHER"
	}
	return "?"
}

func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNoWallet),
		errors.Is(err, ErrUserRejected),
		errors.Is(err, ErrWrongNetwork),
		errors.Is(err, ErrUnknownChain),
		errors.Is(err, ErrNotConnected):
		return KindConnectivity
	case errors.Is(err, ErrInsufficientFunds):
		return KindFunds
	case errors.Is(err, ErrReverted), errors.Is(err, ErrNotMined):
		return KindTransaction
	}
	return KindOther
}

// Message renders err as the one line shown to the player.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNoWallet) {
		return "Please configure a wallet to play"
	}
	s := strings.TrimSpace(strings.ReplaceAll(err.Error(), "\n", " "))
	if s == "" {
		return "Unknown error"
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
