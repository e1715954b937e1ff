// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"go.qwm.io/wm/manager"
	"go.qwm.io/wm/registry"
)

const versionWm = "/wm"

// Server is the workload manager API server.
type Server struct {
	host     string
	port     int
	server   *http.Server
	listener net.Listener
}

// NewServer creates a new API server.
//
// Unlike net/http server's ListenAndServe, we separate Listen() and
// Serve(); this lets the caller learn the bound port before serving when
// port 0 asks the OS for a dynamic one.
func NewServer(host string, port int, mgr *manager.Manager, rgy *registry.Registry, gatherer prometheus.Gatherer) *Server {
	router := chi.NewRouter()
	router.Mount(versionWm, NewRouter(mgr, rgy))
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Server{
		host:   host,
		port:   port,
		server: &http.Server{Handler: router},
	}
}

// Listen on port.
func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.listener = ln
	if s.port == 0 {
		s.port = ln.Addr().(*net.TCPAddr).Port
	}
	log.Debugf("API server listening on %s:%d", s.host, s.port)
	return nil
}

// IsListening ...
func (s *Server) IsListening() bool {
	return s.listener != nil
}

// Serve requests and close on cancelation signals.
func (s *Server) Serve(ctx context.Context) error {
	defer s.Close()

	select {
	case err := <-s.serveAsync():
		return err

	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) serveAsync() chan error {
	errors := make(chan error)
	go func() {
		errors <- s.server.Serve(s.listener)
	}()

	return errors
}

// Host is server's host.
func (s *Server) Host() string {
	return s.host
}

// Port is server's port.
func (s *Server) Port() int {
	return s.port
}

// URL is the full server url for the specified endpoint.
func (s *Server) URL(endpoint string) string {
	return fmt.Sprintf("http://%s:%d%s%s", s.host, s.port, versionWm, endpoint)
}

// Close terminates the server.
func (s *Server) Close() error {
	return s.server.Close()
}
