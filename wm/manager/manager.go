// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"go.qwm.io/wm/core"
	"go.qwm.io/wm/faults"
	"go.qwm.io/wm/session"
	"go.qwm.io/wm/statejson"
	"go.qwm.io/wm/transport"
)

// ErrEndpointRemoved returned by the sender path when the endpoint was
// removed while waiting for it.
var ErrEndpointRemoved = errors.New("ErrEndpointRemoved")

// Config holds manager tunables.
type Config struct {
	// TotalSlots is the cluster-wide number of guaranteed slots to
	// distribute among sessions by their cluster fraction.
	TotalSlots int
	// SendTimeout bounds a single allocation update delivery.
	SendTimeout time.Duration
	// MaxSendAttempts bounds retries of one logical allocation update.
	MaxSendAttempts int
	// DiscoveryTimeout bounds how long a sender waits for the endpoint to
	// be discovered.
	DiscoveryTimeout time.Duration
	// SessionTTL is how long an untouched session lives.
	SessionTTL time.Duration
	// ExpiryInterval is how often expired sessions are collected.
	ExpiryInterval time.Duration
	// UpdateErrorRetryDelay is the pause before retrying a session whose
	// update delivery was given up on.
	UpdateErrorRetryDelay time.Duration
}

// DefaultConfig ...
func DefaultConfig() Config {
	return Config{
		TotalSlots:            16,
		SendTimeout:           10 * time.Second,
		MaxSendAttempts:       3,
		DiscoveryTimeout:      30 * time.Second,
		SessionTTL:            30 * time.Minute,
		ExpiryInterval:        time.Minute,
		UpdateErrorRetryDelay: 10 * time.Second,
	}
}

// Manager is the parent workload manager: it owns the sessions,
// distributes guaranteed slots among them by pool fraction, and delivers
// allocation updates to their endpoints through a Transport. It is the
// single sender per session: a sender goroutine is started only when the
// session's allocation coordinator asks for one.
type Manager struct {
	cfg       Config
	transport transport.Transport
	scheduler core.Scheduler
	metrics   *Metrics

	mutex sync.Mutex
	// sessions is keyed by identity: distinct instances are distinct live
	// resources and must never be merged by value.
	sessions     map[*session.Session]struct{}
	byID         map[string]*session.Session
	updateErrors map[*session.Session]int
	// senders marks sessions with a sender goroutine running. The
	// allocation coordinator enforces at most one in-flight send; this
	// map keeps the manager from ever starting a second sender that
	// would trip that contract.
	senders map[*session.Session]struct{}
	expiry  *cache.Cache
}

// New returns a manager delivering updates through tr; metrics are
// registered with reg.
func New(cfg Config, tr transport.Transport, reg prometheus.Registerer) *Manager {
	m := &Manager{
		cfg:          cfg,
		transport:    tr,
		scheduler:    core.NewScheduler(),
		metrics:      newMetrics(reg),
		sessions:     make(map[*session.Session]struct{}),
		byID:         make(map[string]*session.Session),
		updateErrors: make(map[*session.Session]int),
		senders:      make(map[*session.Session]struct{}),
		expiry:       cache.New(cfg.SessionTTL, cfg.ExpiryInterval),
	}
	m.expiry.OnEvicted(m.onSessionEvicted)
	return m
}

// CreateSession registers a new session with the manager.
func (m *Manager) CreateSession() *session.Session {
	s := session.New(uuid.New().String(), m)
	m.mutex.Lock()
	m.sessions[s] = struct{}{}
	m.byID[s.ID()] = s
	m.mutex.Unlock()
	m.expiry.SetDefault(s.ID(), s)
	log.Infof("Created %s", s)
	return s
}

// TouchSession resets the session's expiration clock.
func (m *Manager) TouchSession(s *session.Session) {
	m.expiry.SetDefault(s.ID(), s)
}

// AssignToPool places a session into a pool with a cluster fraction and
// binds it to the query it serves.
func (m *Manager) AssignToPool(s *session.Session, poolName string, fraction float64, queryID string) {
	s.SetPoolName(poolName)
	s.SetClusterFraction(fraction)
	s.SetQueryID(queryID)
	m.TouchSession(s)
}

// ReleaseFromPool returns a session to the unassigned state and revokes
// its guaranteed allocation.
func (m *Manager) ReleaseFromPool(s *session.Session) {
	s.ClearWm()
	m.UpdateSessionTarget(s, 0)
}

// KillSession marks the session irrelevant and removes it. The kill
// decision is made under m.mutex, so a TTL eviction racing an explicit
// kill cannot both reach the write-once latch; the loser is a no-op.
func (m *Manager) KillSession(s *session.Session, reason string) {
	if !m.retire(s, reason) {
		log.Debugf("Session %s is already gone, not killing: %s", s.ID(), reason)
		return
	}
	m.expiry.Delete(s.ID())
	log.Infof("Killed session %s: %s", s.ID(), reason)
}

// RedistributeSlots recomputes every live session's guaranteed share of
// the cluster slots and triggers the sends that matter.
func (m *Manager) RedistributeSlots() {
	m.mutex.Lock()
	live := make([]*session.Session, 0, len(m.sessions))
	for s := range m.sessions {
		live = append(live, s)
	}
	m.mutex.Unlock()

	for _, s := range live {
		target := int(float64(m.cfg.TotalSlots) * s.ClusterFraction())
		m.UpdateSessionTarget(s, target)
	}
}

// UpdateSessionTarget records a new target allocation for the session and
// starts a sender when one must run. When a send is already in flight the
// in-flight sender picks up the drift; when the target equals the
// confirmed value there is nothing to send.
func (m *Manager) UpdateSessionTarget(s *session.Session, target int) {
	if s.IsIrrelevantForWm() {
		return
	}
	if s.Allocation().RequestSend(target) {
		m.startSender(s)
	}
}

func (m *Manager) startSender(s *session.Session) {
	m.mutex.Lock()
	if _, active := m.senders[s]; active {
		// The running sender re-checks drift when it finishes.
		m.mutex.Unlock()
		return
	}
	m.senders[s] = struct{}{}
	m.mutex.Unlock()
	go m.runSender(s)
}

// finishSender releases sender ownership. A target recorded between the
// sender's last coordinator call and this release would otherwise be
// lost, so the current target is re-requested unless a delayed retry is
// already scheduled.
func (m *Manager) finishSender(s *session.Session, recheck bool) {
	m.mutex.Lock()
	delete(m.senders, s)
	m.mutex.Unlock()
	if recheck && !s.IsIrrelevantForWm() && s.Allocation().RequestSend(s.Allocation().Target()) {
		m.startSender(s)
	}
}

// AddUpdateError records that a session's endpoint could not be updated
// and schedules a delayed retry. Implements session.UpdateErrorReporter.
func (m *Manager) AddUpdateError(s *session.Session, endpointVersion int) {
	m.mutex.Lock()
	m.updateErrors[s] = endpointVersion
	m.mutex.Unlock()
	m.metrics.UpdateErrors.Inc()
	m.scheduler.Schedule(m.cfg.UpdateErrorRetryDelay, func() { m.retryAfterUpdateError(s) })
}

// LastUpdateError returns the endpoint version of the session's last
// recorded update error.
func (m *Manager) LastUpdateError(s *session.Session) (int, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	version, ok := m.updateErrors[s]
	return version, ok
}

// FindSessionByID ...
func (m *Manager) FindSessionByID(id string) (*session.Session, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	s, ok := m.byID[id]
	return s, ok
}

// Sessions returns a snapshot of the live sessions.
func (m *Manager) Sessions() []*session.Session {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	out := make([]*session.Session, 0, len(m.sessions))
	for s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Describe returns the manager state for the debug API.
func (m *Manager) Describe() statejson.ManagerDescription {
	desc := statejson.ManagerDescription{TotalSlots: m.cfg.TotalSlots}
	for _, s := range m.Sessions() {
		desc.Sessions = append(desc.Sessions, s.Describe())
	}
	return desc
}

// retire removes a live session and marks it with reason, reporting
// whether this caller won. Liveness flips together with the latch under
// one lock hold, so only the winner ever reaches MarkIrrelevant; the
// latch itself stays strictly write-once underneath.
func (m *Manager) retire(s *session.Session, reason string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, live := m.sessions[s]; !live {
		return false
	}
	delete(m.sessions, s)
	delete(m.byID, s.ID())
	delete(m.updateErrors, s)
	// senders is left alone: a sender still running for this session
	// releases its own entry when it finishes.
	s.MarkIrrelevant(reason)
	return true
}

// onSessionEvicted runs when the expiration tracker drops a session. It
// also fires for manual deletes, which KillSession has already handled.
func (m *Manager) onSessionEvicted(id string, value interface{}) {
	s := value.(*session.Session)
	if !m.retire(s, "session expired") {
		return
	}
	m.metrics.SessionsExpired.Inc()
	log.Infof("Expired session %s", id)
}

// retryAfterUpdateError re-requests the session's current target. The
// allocation coordinator decides whether anything actually needs sending.
func (m *Manager) retryAfterUpdateError(s *session.Session) {
	m.mutex.Lock()
	delete(m.updateErrors, s)
	m.mutex.Unlock()
	m.UpdateSessionTarget(s, s.Allocation().Target())
}

// runSender is the single in-flight sender for a session. It owns the
// BeginSend/CompleteSend-or-FailSend pair and loops while the coordinator
// reports drift or a retryable failure.
func (m *Manager) runSender(s *session.Session) {
	attempts := 0
	for {
		value := s.Allocation().BeginSend()

		// awaitEndpoint classifies its own faults; only a failed delivery
		// counts as a delivery error.
		info, version, err := m.awaitEndpoint(s)
		if err == nil {
			if err = m.deliver(info, value); err != nil {
				m.metrics.countFault(faults.DeliveryError)
			}
		}
		if err != nil {
			if s.Allocation().FailSend() {
				// The target reverted to the confirmed value while the
				// attempt was failing; nothing to retry.
				log.Debugf("Skipping failed guaranteed update %d for session %s", value, s.ID())
				m.finishSender(s, true)
				return
			}
			attempts++
			if attempts >= m.cfg.MaxSendAttempts {
				log.WithError(err).Warnf("Giving up on guaranteed update %d for session %s after %d attempts",
					value, s.ID(), attempts)
				m.finishSender(s, false)
				s.HandleUpdateError(version)
				return
			}
			continue
		}

		m.metrics.GuaranteedSends.Inc()
		next, again := s.Allocation().CompleteSend()
		if !again {
			m.finishSender(s, true)
			return
		}
		log.Debugf("Target drifted to %d for session %s during send, re-sending", next, s.ID())
		attempts = 0
	}
}

// awaitEndpoint returns the session's endpoint, waiting for discovery
// when it is not known yet.
func (m *Manager) awaitEndpoint(s *session.Session) (*core.EndpointInfo, int, error) {
	if info, version, ok := s.EndpointInfo(); ok && info != nil {
		return info, version, nil
	}
	future := s.WaitForRegistryAsync(m.cfg.DiscoveryTimeout, m.scheduler)
	if _, err := future.Await(); err != nil {
		switch err {
		case core.ErrWaitCanceled:
			m.metrics.countFault(faults.Timeout)
		case core.ErrMultipleWaiters:
			m.metrics.countFault(faults.ConcurrencyMisuse)
		}
		return nil, 0, err
	}
	info, version, _ := s.EndpointInfo()
	if info == nil {
		// Removed between resolution and the re-read.
		return nil, version, ErrEndpointRemoved
	}
	return info, version, nil
}

func (m *Manager) deliver(info *core.EndpointInfo, value int) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SendTimeout)
	defer cancel()
	return m.transport.UpdateGuaranteed(ctx, info, value)
}
