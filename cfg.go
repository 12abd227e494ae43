package main

import (
	"context"
	"fmt"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"
	"github.com/zucenko/tangerine/chain"
	"github.com/zucenko/tangerine/config"
	"github.com/zucenko/tangerine/engine"
	"github.com/zucenko/tangerine/gateway"
	"github.com/zucenko/tangerine/model"
	"github.com/zucenko/tangerine/server"
	"github.com/zucenko/tangerine/wallet"
)

// App holds the long-lived handles the screens act on.
type App struct {
	Config  *config.Config
	Session *wallet.Session
	Gateway *gateway.Gateway
	Engine  *engine.Engine
	closers []func()
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	node, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
	}
	app := &App{Config: cfg, closers: []func(){node.Close}}

	provider, err := app.provider(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	gw := cfg.Gateway()
	app.Session = wallet.NewSession(provider, node, wallet.Config{Network: cfg.Network(), Token: gw.Token})
	oracle := chain.NewPriceOracle(node, chain.OracleConfig{Token: gw.Token})
	app.Gateway = gateway.New(gw, app.Session, node, chain.NewWaiter(node), oracle)

	maze, err := loadMaze(cfg.MazeFile)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Engine = engine.New(engine.Config{Maze: maze}, app.Gateway.Payer(), app.matchmaker(node, gw.Contract))
	app.closers = append(app.closers, app.Session.Disconnect, app.Engine.Close)
	return app, nil
}

func (a *App) provider(ctx context.Context) (wallet.Provider, error) {
	cfg := a.Config
	switch {
	case cfg.WalletPrivateKey != "":
		kp, err := wallet.KeyProviderFromHex(cfg.WalletPrivateKey, cfg.Network(), wallet.DialNode)
		if err != nil {
			return nil, fmt.Errorf("wallet key: %w", err)
		}
		log.WithField("account", kp.Account().Hex()).Info("using local key wallet")
		return kp, nil
	case cfg.WalletRPCURL != "":
		p, err := wallet.DialRPCProvider(ctx, cfg.WalletRPCURL)
		if err != nil {
			return nil, fmt.Errorf("wallet rpc: %w", err)
		}
		a.closers = append(a.closers, p.Close)
		log.WithField("url", cfg.WalletRPCURL).Info("using remote wallet")
		return p, nil
	}
	log.Warn("no wallet configured")
	return nil, nil
}

func (a *App) matchmaker(node *ethclient.Client, contract common.Address) engine.Matchmaker {
	cfg := a.Config
	switch {
	case cfg.LobbyURL != "":
		log.WithField("lobby", cfg.LobbyURL).Info("matchmaking through lobby")
		return server.NewRemoteMatchmaker(cfg.LobbyURL)
	case cfg.ChainMatchmaking:
		log.Info("matchmaking on chain")
		return gateway.NewChainMatchmaker(node, contract, clock.New(), cfg.PollInterval)
	}
	log.Infof("simulated opponent after %s", cfg.OpponentDelay)
	return engine.NewSimulatedMatchmaker(cfg.OpponentDelay)
}

// Close runs the closers newest first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// loadMaze returns nil for the default board.
func loadMaze(path string) (func() *model.Maze, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open maze: %w", err)
	}
	defer file.Close()
	m, err := model.ReadMaze(file)
	if err != nil {
		return nil, fmt.Errorf("maze %s: %w", path, err)
	}
	log.Infof("maze %s loaded, %dx%d", path, m.Width, m.Height)
	return func() *model.Maze { return m }, nil
}
