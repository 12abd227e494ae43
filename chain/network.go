package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

type Currency struct {
	Name     string `yaml:"name" json:"name"`
	Symbol   string `yaml:"symbol" json:"symbol"`
	Decimals int    `yaml:"decimals" json:"decimals"`
}

// Network is what a wallet needs to add and select a chain.
type Network struct {
	ChainID  *big.Int
	Name     string
	RPCURL   string
	Explorer string
	Currency Currency
}

var Base = Network{
	ChainID:  big.NewInt(8453),
	Name:     "Base",
	RPCURL:   "https://mainnet.base.org",
	Explorer: "https://basescan.org",
	Currency: Currency{Name: "ETH", Symbol: "ETH", Decimals: 18},
}

// HexChainID is the 0x-prefixed chain id wallets expect, 0x2105 for Base.
func (n Network) HexChainID() string {
	if n.ChainID == nil {
		return "0x0"
	}
	return hexutil.EncodeBig(n.ChainID)
}

// AddChainParams is the wallet_addEthereumChain payload.
type AddChainParams struct {
	ChainID           string   `json:"chainId"`
	ChainName         string   `json:"chainName"`
	NativeCurrency    Currency `json:"nativeCurrency"`
	RPCURLs           []string `json:"rpcUrls"`
	BlockExplorerURLs []string `json:"blockExplorerUrls,omitempty"`
}

func (n Network) AddChainParams() AddChainParams {
	p := AddChainParams{
		ChainID:        n.HexChainID(),
		ChainName:      n.Name,
		NativeCurrency: n.Currency,
		RPCURLs:        []string{n.RPCURL},
	}
	if n.Explorer != "" {
		p.BlockExplorerURLs = []string{n.Explorer}
	}
	return p
}

// Network rebuilds a Network from an add-chain request.
func (p AddChainParams) Network() (Network, error) {
	id, err := hexutil.DecodeBig(p.ChainID)
	if err != nil {
		return Network{}, err
	}
	n := Network{ChainID: id, Name: p.ChainName, Currency: p.NativeCurrency}
	if len(p.RPCURLs) > 0 {
		n.RPCURL = p.RPCURLs[0]
	}
	if len(p.BlockExplorerURLs) > 0 {
		n.Explorer = p.BlockExplorerURLs[0]
	}
	return n, nil
}
