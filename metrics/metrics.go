// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package metrics exports claim outcomes as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/forkclaim/claim"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "forkclaim"

// Collector counts discoveries and claims.  It implements claim.Notifier.
type Collector struct {
	accounts       prometheus.Gauge
	available      prometheus.Gauge
	discoveries    *prometheus.CounterVec
	claims         *prometheus.CounterVec
	claimedSats    prometheus.Counter
	feeSats        prometheus.Counter
	lastSettlement prometheus.Gauge
}

// A compile-time assertion to ensure that Collector implements the
// claim.Notifier interface.
var _ claim.Notifier = (*Collector)(nil)

// NewCollector creates a collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		accounts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "accounts",
			Help:      "Number of origin accounts discovered",
		}),
		available: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "available_sats",
			Help:      "Spendable value across discovered accounts",
		}),
		discoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discoveries_total",
			Help:      "Number of account discoveries by status",
		}, []string{"status"}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_total",
			Help:      "Number of claims by outcome",
		}, []string{"outcome"}),
		claimedSats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claimed_sats_total",
			Help:      "Value paid to claim targets",
		}),
		feeSats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fee_sats_total",
			Help:      "Fees paid by claim transactions",
		}),
		lastSettlement: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_settlement_timestamp_seconds",
			Help:      "Unix timestamp of the last settled claim",
		}),
	}

	collectors := []prometheus.Collector{
		c.accounts, c.available, c.discoveries, c.claims,
		c.claimedSats, c.feeSats, c.lastSettlement,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// AccountsDiscovered implements claim.Notifier.
func (c *Collector) AccountsDiscovered(accounts int,
	available btcutil.Amount) {

	c.discoveries.WithLabelValues("ok").Inc()
	c.accounts.Set(float64(accounts))
	c.available.Set(float64(available))
}

// DiscoveryFailed implements claim.Notifier.
func (c *Collector) DiscoveryFailed(error) {
	c.discoveries.WithLabelValues("error").Inc()
}

// ClaimSettled implements claim.Notifier.
func (c *Collector) ClaimSettled(_ uint32, claimed, fee,
	available btcutil.Amount) {

	c.claims.WithLabelValues("settled").Inc()
	c.claimedSats.Add(float64(claimed))
	c.feeSats.Add(float64(fee))
	c.available.Set(float64(available))
	c.lastSettlement.SetToCurrentTime()
}

// ClaimFailed implements claim.Notifier.
func (c *Collector) ClaimFailed(stage claim.ClaimState, _ error) {
	outcome := "broadcast_failed"
	if stage == claim.StateAwaitingSignature {
		outcome = "sign_failed"
	}
	c.claims.WithLabelValues(outcome).Inc()
}

// Server serves the metrics of a registry over HTTP.
type Server struct {
	server *http.Server
}

// NewServer creates a server listening on addr exposing /metrics and
// /healthz.
func NewServer(addr string, gatherer prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		gatherer, promhttp.HandlerOpts{},
	))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter,
		_ *http.Request) {

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       time.Minute,
		},
	}
}

// Start serves in the background until Shutdown.  Serve errors are sent on
// the returned channel.
func (s *Server) Start() <-chan error {
	errChan := make(chan error, 1)
	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()
	return errChan
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
