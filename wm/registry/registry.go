// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"go.qwm.io/wm/core"
	"go.qwm.io/wm/faults"
	"go.qwm.io/wm/session"
)

type registryState int

const (
	registryOn registryState = iota
	registryOff
)

// ErrRegistryOff returned on attempt to watch after the registry has been
// turned off.
var ErrRegistryOff = errors.New("ErrRegistryOff")

// Registry tracks query coordinator endpoints and pushes versioned updates
// to the sessions watching them. Each watched application id carries an
// epoch version that grows with every observed endpoint state, including
// its removal. Delivery to a session may be duplicated or reordered within
// a version; the session's version gate sorts that out downstream.
type Registry struct {
	mutex   sync.Mutex
	state   registryState
	watches map[string]*watch

	ignoredUpdates prometheus.Counter
}

type watch struct {
	session  *session.Session
	version  int
	info     *core.EndpointInfo
	hasState bool
}

// New returns a registry; metrics are registered with reg.
func New(reg prometheus.Registerer) *Registry {
	return &Registry{
		watches: make(map[string]*watch),
		ignoredUpdates: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name:        "qwm_registry_ignored_updates_total",
			Help:        "Endpoint updates a session rejected as stale or duplicate.",
			ConstLabels: prometheus.Labels{"type": string(faults.StaleUpdate)},
		}),
	}
}

// Watch subscribes a session to endpoint updates for an application id.
// If an endpoint state was already observed, it is delivered immediately.
func (r *Registry) Watch(applicationID string, s *session.Session) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.state == registryOff {
		return ErrRegistryOff
	}
	w := r.watchLocked(applicationID)
	w.session = s
	if w.hasState {
		r.pushLocked(applicationID, w)
	}
	return nil
}

// Unwatch detaches the session watching an application id. The observed
// endpoint state and its version are kept: versions keep growing if the
// application is watched again.
func (r *Registry) Unwatch(applicationID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if w, ok := r.watches[applicationID]; ok {
		w.session = nil
	}
}

// RegisterEndpoint records a newly observed endpoint for an application id
// and pushes it to the watching session. Returns the assigned version.
func (r *Registry) RegisterEndpoint(applicationID string, info *core.EndpointInfo) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	w := r.watchLocked(applicationID)
	w.version++
	w.info = info
	w.hasState = true
	r.pushLocked(applicationID, w)
	return w.version
}

// RemoveEndpoint records the removal of an application's endpoint. Removal
// is the terminal event of the version it closes, so it is pushed under
// the current version, not a new one.
func (r *Registry) RemoveEndpoint(applicationID string) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	w := r.watchLocked(applicationID)
	if !w.hasState {
		w.version++
		w.hasState = true
	}
	w.info = nil
	r.pushLocked(applicationID, w)
	return w.version
}

// Redeliver pushes the last observed state again under its original
// version, as happens when a watch reconnects. The session's version gate
// drops it when it was already applied.
func (r *Registry) Redeliver(applicationID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	w, ok := r.watches[applicationID]
	if !ok || !w.hasState {
		return
	}
	r.pushLocked(applicationID, w)
}

// TurnOff stops accepting new watches, e.g. during shutdown.
func (r *Registry) TurnOff() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.state = registryOff
}

func (r *Registry) watchLocked(applicationID string) *watch {
	w, ok := r.watches[applicationID]
	if !ok {
		w = &watch{}
		r.watches[applicationID] = w
	}
	return w
}

// pushLocked delivers the current state to the watching session. The
// session's discovery lock never calls back into the registry, so holding
// the registry mutex across the push cannot deadlock.
func (r *Registry) pushLocked(applicationID string, w *watch) {
	if w.session == nil {
		return
	}
	if !w.session.UpdateFromRegistry(w.info, w.version) {
		r.ignoredUpdates.Inc()
		log.Debugf("Session %s ignored endpoint update %d for %s", w.session.ID(), w.version, applicationID)
	}
}
