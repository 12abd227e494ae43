package main

import (
	"github.com/matryer/way"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	URI_WS      = "/play"
	URI_HEALTH  = "/health"
	URI_METRICS = "/metrics"
)

func (s *Server) routes() {
	s.router = way.NewRouter()
	s.router.HandleFunc("GET", URI_WS, s.GameServer.HandleHttpCall())
	s.router.HandleFunc("GET", URI_HEALTH, s.GameServer.HandleHealth())
	s.router.Handle("GET", URI_METRICS, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}
