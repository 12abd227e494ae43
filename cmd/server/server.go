package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/matryer/way"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/zucenko/tangerine/config"
	"github.com/zucenko/tangerine/server"
)

type Server struct {
	router     *way.Router
	registry   *prometheus.Registry
	GameServer *server.GameServer
}

func NewServer() *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	s := &Server{
		registry:   reg,
		GameServer: server.NewGameServer(server.NewMetrics(reg)),
	}
	s.routes()
	return s
}

func main() {
	cfgPath := flag.String("config", os.Getenv("TANGERINE_CONFIG"), "YAML config file")
	flag.Parse()
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := NewServer()
	go s.GameServer.Loop(ctx)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: s.router}
	go func() {
		<-ctx.Done()
		log.Info("shutting down lobby")
		_ = srv.Shutdown(context.Background())
	}()
	log.Printf("lobby listening on port %s", cfg.Port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalln(err)
	}
}
