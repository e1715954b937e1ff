// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"go.qwm.io/wm/api"
	"go.qwm.io/wm/logging"
	"go.qwm.io/wm/manager"
	"go.qwm.io/wm/registry"
	"go.qwm.io/wm/transport"
)

type options struct {
	LogLevel         string        `long:"log-level" default:"info" description:"log level"`
	Host             string        `long:"host" default:"0.0.0.0" description:"API listen host"`
	Port             int           `long:"port" default:"8989" description:"API listen port"`
	TotalSlots       int           `long:"total-slots" default:"16" description:"cluster-wide guaranteed slots"`
	SendTimeout      time.Duration `long:"send-timeout" default:"10s" description:"allocation update delivery timeout"`
	MaxSendAttempts  int           `long:"max-send-attempts" default:"3" description:"allocation update delivery attempts"`
	DiscoveryTimeout time.Duration `long:"discovery-timeout" default:"30s" description:"endpoint discovery wait"`
	SessionTTL       time.Duration `long:"session-ttl" default:"30m" description:"idle session lifetime"`
	RetryDelay       time.Duration `long:"update-error-retry-delay" default:"10s" description:"pause before retrying a failed session"`
}

func main() {
	opts := getCLIArgs()
	logging.SetLogLevel(opts.LogLevel)

	cfg := manager.DefaultConfig()
	cfg.TotalSlots = opts.TotalSlots
	cfg.SendTimeout = opts.SendTimeout
	cfg.MaxSendAttempts = opts.MaxSendAttempts
	cfg.DiscoveryTimeout = opts.DiscoveryTimeout
	cfg.SessionTTL = opts.SessionTTL
	cfg.UpdateErrorRetryDelay = opts.RetryDelay

	promRegistry := prometheus.NewRegistry()
	mgr := manager.New(cfg, transport.NewHTTP(opts.SendTimeout), promRegistry)
	rgy := registry.New(promRegistry)

	server := api.NewServer(opts.Host, opts.Port, mgr, rgy, promRegistry)
	if err := server.Listen(); err != nil {
		log.WithError(err).Fatal("Failed to listen")
	}

	ctx, cancel := context.WithCancel(context.Background())
	trapSignals(cancel, rgy)

	log.Infof("qwmd listening on %s:%d", server.Host(), server.Port())
	if err := server.Serve(ctx); err != nil && err != context.Canceled {
		log.WithError(err).Fatal("Server exited")
	}
}

func getCLIArgs() options {
	var opts options
	parser := flags.NewParser(&opts, flags.IgnoreUnknown)
	if _, err := parser.ParseArgs(os.Args); err != nil {
		log.WithError(err).Fatal("Failed to parse command line arguments:", os.Args)
	}
	return opts
}

// Trap SIGINT and SIGTERM signals, stop taking new watches and shut down
func trapSignals(cancel context.CancelFunc, rgy *registry.Registry) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		log.Infof("Received %s, shutting down", sig)
		rgy.TurnOff()
		cancel()
	}()
}
