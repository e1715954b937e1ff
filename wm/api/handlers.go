// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	log "github.com/sirupsen/logrus"

	"go.qwm.io/wm/core"
	"go.qwm.io/wm/manager"
	"go.qwm.io/wm/registry"
)

const (
	errorTypeInvalidRequest  = "InvalidRequest"
	errorTypeSessionNotFound = "SessionNotFound"
	errorTypeSessionKilled   = "SessionKilled"
	errorTypeRegistryOff     = "RegistryOff"
)

func renderError(w http.ResponseWriter, r *http.Request, status int, errorType, message string) {
	render.Status(r, status)
	render.JSON(w, r, &ErrorResponse{ErrorType: errorType, ErrorMessage: message})
}

type pingHandler struct {
	//
}

func (h *pingHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if _, err := writer.Write([]byte("pong")); err != nil {
		log.WithError(err).Fatal("Failed to write 'pong' response")
	}
}

type listSessionsHandler struct {
	manager *manager.Manager
}

func (h *listSessionsHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	render.JSON(writer, request, h.manager.Describe())
}

type createSessionHandler struct {
	manager  *manager.Manager
	registry *registry.Registry
}

func (h *createSessionHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	var req CreateSessionRequest
	if err := render.DecodeJSON(request.Body, &req); err != nil {
		renderError(writer, request, http.StatusBadRequest, errorTypeInvalidRequest, err.Error())
		return
	}
	if req.ApplicationID == "" {
		renderError(writer, request, http.StatusBadRequest, errorTypeInvalidRequest, "applicationId is required")
		return
	}
	if req.ClusterFraction < 0 || req.ClusterFraction > 1 {
		renderError(writer, request, http.StatusBadRequest, errorTypeInvalidRequest, "clusterFraction must be in [0, 1]")
		return
	}

	s := h.manager.CreateSession()
	s.SetApplicationID(req.ApplicationID)
	h.manager.AssignToPool(s, req.PoolName, req.ClusterFraction, req.QueryID)
	if err := h.registry.Watch(req.ApplicationID, s); err != nil {
		renderError(writer, request, http.StatusServiceUnavailable, errorTypeRegistryOff, err.Error())
		return
	}
	h.manager.RedistributeSlots()

	render.Status(request, http.StatusCreated)
	render.JSON(writer, request, s.Describe())
}

type getSessionHandler struct {
	manager *manager.Manager
}

func (h *getSessionHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	id := chi.URLParam(request, "sessionid")
	s, found := h.manager.FindSessionByID(id)
	if !found {
		renderError(writer, request, http.StatusNotFound, errorTypeSessionNotFound, id)
		return
	}
	render.JSON(writer, request, s.Describe())
}

type killSessionHandler struct {
	manager  *manager.Manager
	registry *registry.Registry
}

func (h *killSessionHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	id := chi.URLParam(request, "sessionid")
	s, found := h.manager.FindSessionByID(id)
	if !found {
		renderError(writer, request, http.StatusNotFound, errorTypeSessionNotFound, id)
		return
	}
	if s.IsIrrelevantForWm() {
		renderError(writer, request, http.StatusConflict, errorTypeSessionKilled, s.ReasonForKill())
		return
	}
	reason := request.URL.Query().Get("reason")
	if reason == "" {
		reason = "killed via API"
	}
	if s.ApplicationID() != "" {
		h.registry.Unwatch(s.ApplicationID())
	}
	h.manager.KillSession(s, reason)
	h.manager.RedistributeSlots()
	render.NoContent(writer, request)
}

type registerEndpointHandler struct {
	registry *registry.Registry
}

func (h *registerEndpointHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	applicationID := chi.URLParam(request, "applicationid")
	var req EndpointRequest
	if err := render.DecodeJSON(request.Body, &req); err != nil {
		renderError(writer, request, http.StatusBadRequest, errorTypeInvalidRequest, err.Error())
		return
	}
	if req.Host == "" || req.Port == 0 {
		renderError(writer, request, http.StatusBadRequest, errorTypeInvalidRequest, "host and port are required")
		return
	}
	version := h.registry.RegisterEndpoint(applicationID, &core.EndpointInfo{
		Host:       req.Host,
		Port:       req.Port,
		Token:      req.Token,
		TokenJobID: req.JobID,
	})
	render.JSON(writer, request, &EndpointResponse{ApplicationID: applicationID, Version: version})
}

type removeEndpointHandler struct {
	registry *registry.Registry
}

func (h *removeEndpointHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	applicationID := chi.URLParam(request, "applicationid")
	version := h.registry.RemoveEndpoint(applicationID)
	render.JSON(writer, request, &EndpointResponse{ApplicationID: applicationID, Version: version})
}
