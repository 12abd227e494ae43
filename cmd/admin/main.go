package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"
	"github.com/zucenko/tangerine/chain"
	"github.com/zucenko/tangerine/config"
	"github.com/zucenko/tangerine/gateway"
	"github.com/zucenko/tangerine/wallet"
)

const usage = `usage: admin [-config file] <command>

  is <address>               report whether address is a game admin
  add <address>              grant admin rights
  remove <address>           revoke admin rights
  end <game id> <winner>     record the winner of a game
  watch                      print GameStarted and GameEnded events
  serve <host:port>          serve the key wallet over JSON-RPC for WALLET_RPC_URL clients`

var errUsage = errors.New(usage)

// command is one parsed admin invocation.
type command struct {
	name    string
	account common.Address
	gameID  *big.Int
	listen  string
}

func parse(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, errUsage
	}
	c := command{name: args[0]}
	switch c.name {
	case "is", "add", "remove":
		if len(args) != 2 || !common.IsHexAddress(args[1]) {
			return command{}, errUsage
		}
		c.account = common.HexToAddress(args[1])
	case "end":
		if len(args) != 3 || !common.IsHexAddress(args[2]) {
			return command{}, errUsage
		}
		id, ok := new(big.Int).SetString(args[1], 10)
		if !ok || id.Sign() < 0 {
			return command{}, fmt.Errorf("bad game id %q", args[1])
		}
		c.gameID = id
		c.account = common.HexToAddress(args[2])
	case "watch":
		if len(args) != 1 {
			return command{}, errUsage
		}
	case "serve":
		if len(args) != 2 {
			return command{}, errUsage
		}
		if _, _, err := net.SplitHostPort(args[1]); err != nil {
			return command{}, fmt.Errorf("bad listen address %q: %w", args[1], err)
		}
		c.listen = args[1]
	default:
		return command{}, errUsage
	}
	return c, nil
}

func main() {
	cfgPath := flag.String("config", os.Getenv("TANGERINE_CONFIG"), "YAML config file")
	flag.Parse()
	cmd, err := parse(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, cmd); err != nil {
		log.Fatal(chain.Message(err))
	}
}

func run(ctx context.Context, cfg *config.Config, cmd command) error {
	node, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return err
	}
	defer node.Close()
	contract := common.HexToAddress(cfg.GameContract)

	if cmd.name == "watch" {
		w := chain.NewWatcher(node, contract, clock.New(), cfg.PollInterval)
		err := w.Run(ctx, func(ev chain.Event) {
			switch {
			case ev.Started != nil:
				log.WithFields(log.Fields{
					"game": ev.Started.GameId, "p1": ev.Started.Player1.Hex(), "p2": ev.Started.Player2.Hex(),
				}).Info("game started")
			case ev.Ended != nil:
				log.WithFields(log.Fields{"game": ev.Ended.GameId, "winner": ev.Ended.Winner.Hex()}).Info("game ended")
			}
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	if cmd.name == "is" {
		ok, err := isAdmin(ctx, cfg, node, cmd.account)
		if err != nil {
			return err
		}
		fmt.Printf("%s admin: %t\n", cmd.account.Hex(), ok)
		return nil
	}

	if cfg.WalletPrivateKey == "" {
		return fmt.Errorf("%s needs WALLET_PRIVATE_KEY: %w", cmd.name, chain.ErrNoWallet)
	}
	key, err := wallet.KeyProviderFromHex(cfg.WalletPrivateKey, cfg.Network(), wallet.DialNode)
	if err != nil {
		return err
	}
	if cmd.name == "serve" {
		ln, err := net.Listen("tcp", cmd.listen)
		if err != nil {
			return err
		}
		return serve(ctx, key, ln)
	}
	session := wallet.NewSession(key, node, wallet.Config{Network: cfg.Network()})
	if err := session.Connect(ctx); err != nil {
		return err
	}
	defer session.Disconnect()
	gw := gateway.New(cfg.Gateway(), session, node, chain.NewWaiter(node), nil)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	switch cmd.name {
	case "add":
		return report(gw.AddGameAdmin(ctx, cmd.account))
	case "remove":
		return report(gw.RemoveGameAdmin(ctx, cmd.account))
	case "end":
		return report(gw.EndGameWithWinner(ctx, cmd.gameID, cmd.account))
	}
	return errUsage
}

// isAdmin is a plain contract read; it needs no wallet.
func isAdmin(ctx context.Context, cfg *config.Config, node chain.Caller, account common.Address) (bool, error) {
	return gateway.New(cfg.Gateway(), nil, node, nil, nil).IsGameAdmin(ctx, account)
}

// serve answers wallet calls on ln until ctx ends. Transactions are signed
// without a prompt, so ln should not be reachable by strangers.
func serve(ctx context.Context, p wallet.Provider, ln net.Listener) error {
	srv, err := wallet.NewBridge(p)
	if err != nil {
		return err
	}
	defer srv.Stop()
	hs := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdown); err != nil {
			log.Warnf("wallet server shutdown: %v", err)
		}
	}()
	log.WithField("addr", ln.Addr().String()).Info("serving wallet")
	if err := hs.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func report(r *types.Receipt, err error) error {
	if err != nil {
		return err
	}
	fmt.Printf("mined %s in block %s\n", r.TxHash.Hex(), r.BlockNumber)
	return nil
}
