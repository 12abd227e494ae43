package config

import (
	"fmt"
	"math"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	log "github.com/sirupsen/logrus"
	"github.com/zucenko/tangerine/chain"
	"github.com/zucenko/tangerine/gateway"
	"gopkg.in/yaml.v3"
)

type Config struct {
	GameContract string `yaml:"game_contract"`
	AdminWallet  string `yaml:"admin_wallet"`
	TrapToken    string `yaml:"trap_token"`
	// EthEntryFee is a decimal ETH amount, "0.0001".
	EthEntryFee string `yaml:"eth_entry_fee"`
	// TokenEntryFee is a decimal TRAP amount. Empty prices the fee from the
	// oracle.
	TokenEntryFee         string  `yaml:"token_entry_fee"`
	PlatformFeePercentage float64 `yaml:"platform_fee_percentage"`
	ChainID               string  `yaml:"chain_id"`
	RPCURL                string  `yaml:"rpc_url"`
	Explorer              string  `yaml:"explorer"`

	LobbyURL         string `yaml:"lobby_url"`
	WalletRPCURL     string `yaml:"wallet_rpc_url"`
	WalletPrivateKey string `yaml:"wallet_private_key"`
	// ChainMatchmaking waits for the contract's GameStarted event instead of
	// a lobby.
	ChainMatchmaking bool          `yaml:"chain_matchmaking"`
	OpponentDelay    time.Duration `yaml:"opponent_delay"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	// MazeFile is an optional text layout, '#' for walls.
	MazeFile string `yaml:"maze_file"`

	Port string `yaml:"port"`
}

func Default() *Config {
	return &Config{
		GameContract:          "0x0000000000000000000000000000000000000000",
		AdminWallet:           "0x5ae019F7eE28612b058381f4Fea213Cc90ee88A4",
		TrapToken:             "0x300Ba4799Ab7d6fd55b87BCcBCeCb772b413349b",
		EthEntryFee:           "0.0001",
		PlatformFeePercentage: 6.9,
		ChainID:               chain.Base.HexChainID(),
		RPCURL:                chain.Base.RPCURL,
		Explorer:              chain.Base.Explorer,
		OpponentDelay:         3 * time.Second,
		PollInterval:          2 * time.Second,
		Port:                  "8080",
	}
}

// Load reads defaults, then the YAML file at path if path is not empty, then
// the environment.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		log.Infof("config loaded from %s", path)
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"GAME_CONTRACT_ADDRESS": &c.GameContract,
		"ADMIN_WALLET_ADDRESS":  &c.AdminWallet,
		"TRAP_TOKEN_ADDRESS":    &c.TrapToken,
		"ETH_ENTRY_FEE":         &c.EthEntryFee,
		"TOKEN_ENTRY_FEE":       &c.TokenEntryFee,
		"BASE_NETWORK_CHAIN_ID": &c.ChainID,
		"BASE_NETWORK_RPC_URL":  &c.RPCURL,
		"LOBBY_URL":             &c.LobbyURL,
		"WALLET_RPC_URL":        &c.WalletRPCURL,
		"WALLET_PRIVATE_KEY":    &c.WalletPrivateKey,
		"MAZE_FILE":             &c.MazeFile,
		"PORT":                  &c.Port,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("PLATFORM_FEE_PERCENTAGE"); v != "" {
		pct, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("PLATFORM_FEE_PERCENTAGE: %w", err)
		}
		c.PlatformFeePercentage = pct
	}
	return nil
}

func (c *Config) Validate() error {
	for name, addr := range map[string]string{
		"game contract": c.GameContract,
		"admin wallet":  c.AdminWallet,
		"trap token":    c.TrapToken,
	} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("%s: bad address %q", name, addr)
		}
	}
	if _, err := c.NativeFee(); err != nil {
		return err
	}
	if _, err := c.TokenFee(); err != nil {
		return err
	}
	if c.PlatformFeePercentage < 0 || c.PlatformFeePercentage >= 100 || math.IsNaN(c.PlatformFeePercentage) {
		return fmt.Errorf("platform fee %v%% out of range", c.PlatformFeePercentage)
	}
	if _, err := hexutil.DecodeBig(c.ChainID); err != nil {
		return fmt.Errorf("chain id %q: %w", c.ChainID, err)
	}
	return nil
}

func (c *Config) NativeFee() (*big.Int, error) {
	v, err := chain.ParseUnits(c.EthEntryFee, chain.Base.Currency.Decimals)
	if err != nil {
		return nil, fmt.Errorf("eth entry fee: %w", err)
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("eth entry fee must be positive")
	}
	return v, nil
}

// TokenFee is nil when the token fee comes from the oracle.
func (c *Config) TokenFee() (*big.Int, error) {
	if c.TokenEntryFee == "" {
		return nil, nil
	}
	v, err := chain.ParseUnits(c.TokenEntryFee, chain.TokenDecimals)
	if err != nil {
		return nil, fmt.Errorf("token entry fee: %w", err)
	}
	return v, nil
}

// Network is Base with the configured chain id and RPC URL.
func (c *Config) Network() chain.Network {
	n := chain.Base
	if id, err := hexutil.DecodeBig(c.ChainID); err == nil {
		n.ChainID = id
	}
	n.RPCURL = c.RPCURL
	n.Explorer = c.Explorer
	return n
}

func (c *Config) Gateway() gateway.Config {
	native, _ := c.NativeFee()
	token, _ := c.TokenFee()
	return gateway.Config{
		Contract:  common.HexToAddress(c.GameContract),
		Token:     common.HexToAddress(c.TrapToken),
		NativeFee: native,
		TokenFee:  token,
	}
}

// RewardEstimate is what the winner of a two-player pot receives once the
// platform fee is taken, in wei.
func (c *Config) RewardEstimate() *big.Int {
	fee, err := c.NativeFee()
	if err != nil {
		return new(big.Int)
	}
	pot := new(big.Int).Mul(fee, big.NewInt(2))
	bps := int64(math.Round(c.PlatformFeePercentage * 100))
	pot.Mul(pot, big.NewInt(10000-bps))
	return pot.Div(pot, big.NewInt(10000))
}
