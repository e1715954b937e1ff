// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	log "github.com/sirupsen/logrus"

	"go.qwm.io/wm/manager"
	"go.qwm.io/wm/registry"
)

// NewRouter returns a chi router implementing the workload manager
// control and introspection API.
func NewRouter(mgr *manager.Manager, rgy *registry.Registry) http.Handler {
	router := chi.NewRouter()
	router.Use(accessLogDecorator)

	router.Get("/ping", (&pingHandler{}).ServeHTTP)

	router.Get("/sessions", (&listSessionsHandler{manager: mgr}).ServeHTTP)
	router.Post("/sessions", (&createSessionHandler{manager: mgr, registry: rgy}).ServeHTTP)
	router.Get("/sessions/{sessionid}", (&getSessionHandler{manager: mgr}).ServeHTTP)
	router.Delete("/sessions/{sessionid}", (&killSessionHandler{manager: mgr, registry: rgy}).ServeHTTP)

	router.Put("/endpoints/{applicationid}", (&registerEndpointHandler{registry: rgy}).ServeHTTP)
	router.Delete("/endpoints/{applicationid}", (&removeEndpointHandler{registry: rgy}).ServeHTTP)

	return router
}

func accessLogDecorator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debugf("api: -> %s %s", r.Method, r.URL)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if status/100 != 2 {
			log.Errorf("api: <- %s %s %d", r.Method, r.URL, status)
		} else {
			log.Debugf("api: <- %s %s %d", r.Method, r.URL, status)
		}
	})
}
