package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zucenko/tangerine/chain"
)

// Provider is an EIP-1193 style wallet. Errors carrying code 4001 or 4902
// unwrap to chain.ErrUserRejected and chain.ErrUnknownChain.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SwitchChain(ctx context.Context, chainID *big.Int) error
	AddChain(ctx context.Context, n chain.Network) error
	SignMessage(ctx context.Context, account common.Address, msg []byte) ([]byte, error)
	SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error)
	// Subscribe delivers wallet events to ch until the returned func is called.
	Subscribe(ch chan<- Event) (unsubscribe func())
}

type TxRequest struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
}

type EventKind int

const (
	AccountsChanged EventKind = iota + 1
	ChainChanged
)

func (k EventKind) Name() string {
	switch k {
	case AccountsChanged:
		return "accountsChanged"
	case ChainChanged:
		return "chainChanged"
	}
	return "?"
}

type Event struct {
	Kind     EventKind
	Accounts []common.Address
	ChainID  *big.Int
}

type fanout struct {
	subs map[int]chan<- Event
	next int
}

func (f *fanout) add(ch chan<- Event) int {
	if f.subs == nil {
		f.subs = make(map[int]chan<- Event)
	}
	f.next++
	f.subs[f.next] = ch
	return f.next
}

func (f *fanout) remove(id int) {
	delete(f.subs, id)
}

// emit never blocks; a full subscriber misses the event.
func (f *fanout) emit(ev Event) {
	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
