package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"
	"github.com/zucenko/tangerine/chain"
)

// Node submits signed transactions. *ethclient.Client satisfies it.
type Node interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

type Dialer func(ctx context.Context, url string) (Node, error)

func DialNode(ctx context.Context, url string) (Node, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return c, nil
}

const defaultGasLimit = 200000

// KeyProvider is an in-process wallet holding one private key. It starts on
// the first network it is given; other chains must be added before a switch.
type KeyProvider struct {
	key     *ecdsa.PrivateKey
	account common.Address
	dial    Dialer

	// Approve is asked before every user-facing action; nil approves all.
	Approve func(action string) bool

	mu       sync.Mutex
	networks map[string]chain.Network
	current  chain.Network
	nodes    map[string]Node
	revoked  bool
	subs     fanout
}

func NewKeyProvider(key *ecdsa.PrivateKey, home chain.Network, dial Dialer) *KeyProvider {
	if dial == nil {
		dial = DialNode
	}
	return &KeyProvider{
		key:      key,
		account:  crypto.PubkeyToAddress(key.PublicKey),
		dial:     dial,
		networks: map[string]chain.Network{home.ChainID.String(): home},
		current:  home,
		nodes:    make(map[string]Node),
	}
}

// KeyProviderFromHex parses a hex private key, with or without 0x.
func KeyProviderFromHex(hex string, home chain.Network, dial Dialer) (*KeyProvider, error) {
	if len(hex) > 1 && hex[:2] == "0x" {
		hex = hex[2:]
	}
	key, err := crypto.HexToECDSA(hex)
	if err != nil {
		return nil, fmt.Errorf("wallet key: %w", err)
	}
	return NewKeyProvider(key, home, dial), nil
}

func (k *KeyProvider) Account() common.Address { return k.account }

func (k *KeyProvider) approve(action string) error {
	if k.Approve != nil && !k.Approve(action) {
		return chain.Rejected("User rejected the request: " + action)
	}
	return nil
}

func (k *KeyProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if err := k.approve("connect"); err != nil {
		return nil, err
	}
	k.mu.Lock()
	k.revoked = false
	k.mu.Unlock()
	return []common.Address{k.account}, nil
}

func (k *KeyProvider) ChainID(ctx context.Context) (*big.Int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return new(big.Int).Set(k.current.ChainID), nil
}

func (k *KeyProvider) SwitchChain(ctx context.Context, chainID *big.Int) error {
	k.mu.Lock()
	n, ok := k.networks[chainID.String()]
	k.mu.Unlock()
	if !ok {
		return chain.UnknownChain(fmt.Sprintf("Unrecognized chain ID %s", hexutil.EncodeBig(chainID)))
	}
	if err := k.approve("switch to " + n.Name); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.current.ChainID.Cmp(n.ChainID) == 0 {
		return nil
	}
	k.current = n
	log.Infof("key wallet switched to %s (%s)", n.Name, n.ChainID)
	k.subs.emit(Event{Kind: ChainChanged, ChainID: new(big.Int).Set(n.ChainID)})
	return nil
}

func (k *KeyProvider) AddChain(ctx context.Context, n chain.Network) error {
	if n.ChainID == nil {
		return fmt.Errorf("add chain: missing chain id")
	}
	if err := k.approve("add " + n.Name); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.networks[n.ChainID.String()] = n
	return nil
}

// SignMessage produces an EIP-191 personal_sign signature with v in {27,28}.
func (k *KeyProvider) SignMessage(ctx context.Context, account common.Address, msg []byte) ([]byte, error) {
	if account != k.account {
		return nil, &chain.ProviderError{Code: chain.CodeUnauthorized, Msg: "unknown account " + account.Hex()}
	}
	if err := k.approve("sign message"); err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(accounts.TextHash(msg), k.key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

func (k *KeyProvider) node(ctx context.Context) (Node, *big.Int, error) {
	k.mu.Lock()
	n := k.current
	node, ok := k.nodes[n.ChainID.String()]
	k.mu.Unlock()
	if ok {
		return node, n.ChainID, nil
	}
	node, err := k.dial(ctx, n.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", n.RPCURL, err)
	}
	k.mu.Lock()
	k.nodes[n.ChainID.String()] = node
	k.mu.Unlock()
	return node, n.ChainID, nil
}

// SendTransaction signs a legacy EIP-155 transaction and submits it.
func (k *KeyProvider) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	if req.From != (common.Address{}) && req.From != k.account {
		return common.Hash{}, &chain.ProviderError{Code: chain.CodeUnauthorized, Msg: "unknown account " + req.From.Hex()}
	}
	if err := k.approve("send transaction"); err != nil {
		return common.Hash{}, err
	}
	node, chainID, err := k.node(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	nonce, err := node.PendingNonceAt(ctx, k.account)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := node.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas price: %w", err)
	}
	to := req.To
	gas, err := node.EstimateGas(ctx, ethereum.CallMsg{From: k.account, To: &to, Value: value, Data: req.Data})
	if err != nil {
		// a failing estimate is usually a revert or missing funds; surface it
		if e := chain.Classify(err); e != err {
			return common.Hash{}, fmt.Errorf("estimate gas: %w", e)
		}
		log.Warnf("gas estimation failed: %v, using %d", err, defaultGasLimit)
		gas = defaultGasLimit
	}
	tx := types.NewTransaction(nonce, to, value, gas, gasPrice, req.Data)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), k.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}
	if err := node.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", chain.Classify(err))
	}
	log.WithFields(log.Fields{"tx": signed.Hash().Hex(), "to": to.Hex(), "value": value}).Info("transaction sent")
	return signed.Hash(), nil
}

func (k *KeyProvider) Subscribe(ch chan<- Event) func() {
	k.mu.Lock()
	defer k.mu.Unlock()
	id := k.subs.add(ch)
	return func() {
		k.mu.Lock()
		defer k.mu.Unlock()
		k.subs.remove(id)
	}
}

// Revoke drops the dapp connection, like locking a browser wallet.
func (k *KeyProvider) Revoke() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.revoked = true
	k.subs.emit(Event{Kind: AccountsChanged})
}

// Accounts lists connected accounts without prompting.
func (k *KeyProvider) Accounts() []common.Address {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.revoked {
		return nil
	}
	return []common.Address{k.account}
}
