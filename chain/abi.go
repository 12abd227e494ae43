package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const matchABIJSON = `[
	{"inputs":[],"name":"enterGame","outputs":[],"stateMutability":"payable","type":"function"},
	{"inputs":[{"name":"amount","type":"uint256"}],"name":"enterGameWithToken","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[],"name":"claimReward","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"account","type":"address"}],"name":"isGameAdmin","outputs":[{"type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"account","type":"address"}],"name":"addGameAdmin","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"account","type":"address"}],"name":"removeGameAdmin","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"gameId","type":"uint256"},{"name":"winner","type":"address"}],"name":"endGameWithWinner","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"player1","type":"address"},{"indexed":true,"name":"player2","type":"address"},{"indexed":false,"name":"gameId","type":"uint256"}],"name":"GameStarted","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"gameId","type":"uint256"},{"indexed":true,"name":"winner","type":"address"}],"name":"GameEnded","type":"event"}
]`

const erc20ABIJSON = `[
	{"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

const quoterABIJSON = `[
	{"inputs":[{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"fee","type":"uint24"},{"name":"amountIn","type":"uint256"},{"name":"sqrtPriceLimitX96","type":"uint160"}],"name":"quoteExactInputSingle","outputs":[{"name":"amountOut","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var (
	MatchABI  = mustParse("match", matchABIJSON)
	ERC20ABI  = mustParse("erc20", erc20ABIJSON)
	QuoterABI = mustParse("quoter", quoterABIJSON)
)

// Well-known Base addresses.
var (
	WrappedNative = common.HexToAddress("0x4200000000000000000000000000000000000006")
	DefaultQuoter = common.HexToAddress("0x2626664c2603336E57B271c5C0b26F421741e481")
)

// QuoteFeeTier is the 0.3% pool.
const QuoteFeeTier = 3000

func mustParse(name, js string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(js))
	if err != nil {
		panic(fmt.Sprintf("parse %s abi: %v", name, err))
	}
	return a
}
