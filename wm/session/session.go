// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"time"

	"go.qwm.io/wm/core"
	"go.qwm.io/wm/statejson"
)

// UpdateErrorReporter records failed endpoint update deliveries so the
// owner can decide whether and when to retry. Implemented by the parent
// workload manager.
type UpdateErrorReporter interface {
	AddUpdateError(s *Session, endpointVersion int)
}

// Session is the per-session coordination object of the workload manager.
// It tracks asynchronous discovery of the session's query coordinator
// endpoint and coordinates guaranteed-allocation updates to it.
//
// Sessions are compared by identity: two distinct instances are never the
// same session even with identical pool, query and endpoint state. The
// manager keys its maps by *Session, which gives exactly that.
type Session struct {
	id            string
	applicationID string
	parent        UpdateErrorReporter

	// Workload management assignment. Set by the manager and cleared
	// together when the session is released back to an unassigned state.
	poolName        string
	clusterFraction float64
	queryID         string

	discovery  *core.DiscoveryTracker
	allocation *core.AllocationCoordinator
	kill       *core.KillLatch
}

// New returns a session registered with its parent manager.
func New(id string, parent UpdateErrorReporter) *Session {
	s := &Session{
		id:         id,
		parent:     parent,
		allocation: core.NewAllocationCoordinator(),
		kill:       &core.KillLatch{},
	}
	s.discovery = core.NewDiscoveryTracker(s)
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// SetApplicationID records the id of the query coordinator application
// this session is bound to in the registry.
func (s *Session) SetApplicationID(applicationID string) {
	s.applicationID = applicationID
}

// ApplicationID returns the bound application id, or "" when unbound.
func (s *Session) ApplicationID() string {
	return s.applicationID
}

// WaitForRegistryAsync returns a future that resolves with the session
// itself once the endpoint is known. See core.DiscoveryTracker.WaitAsync.
func (s *Session) WaitForRegistryAsync(timeout time.Duration, scheduler core.Scheduler) *core.SettableFuture {
	return s.discovery.WaitAsync(timeout, scheduler)
}

// UpdateFromRegistry applies a registry-pushed endpoint update. A nil info
// means the endpoint was removed. Reports whether the update was accepted.
func (s *Session) UpdateFromRegistry(info *core.EndpointInfo, version int) bool {
	return s.discovery.OnUpdate(version, info)
}

// EndpointInfo returns the cached endpoint state.
func (s *Session) EndpointInfo() (info *core.EndpointInfo, version int, ok bool) {
	return s.discovery.Current()
}

// Allocation returns the session's guaranteed-allocation coordinator.
func (s *Session) Allocation() *core.AllocationCoordinator {
	return s.allocation
}

// HandleUpdateError forwards a failed endpoint update to the parent
// manager; the session does not interpret or retry the error itself.
func (s *Session) HandleUpdateError(endpointVersion int) {
	s.parent.AddUpdateError(s, endpointVersion)
}

// MarkIrrelevant records the reason the session was killed. Write-once.
func (s *Session) MarkIrrelevant(killReason string) {
	s.kill.MarkIrrelevant(killReason)
}

// IsIrrelevantForWm reports whether the session has been killed.
func (s *Session) IsIrrelevantForWm() bool {
	return s.kill.IsIrrelevant()
}

// ReasonForKill returns the kill reason, or "" when the session is live.
func (s *Session) ReasonForKill() string {
	return s.kill.Reason()
}

func (s *Session) SetPoolName(poolName string) {
	s.poolName = poolName
}

func (s *Session) PoolName() string {
	return s.poolName
}

func (s *Session) SetClusterFraction(fraction float64) {
	s.clusterFraction = fraction
}

func (s *Session) ClusterFraction() float64 {
	return s.clusterFraction
}

func (s *Session) SetQueryID(queryID string) {
	s.queryID = queryID
}

func (s *Session) QueryID() string {
	return s.queryID
}

// ClearWm resets the workload management assignment when the session is
// returned to the pool.
func (s *Session) ClearWm() {
	s.poolName = ""
	s.clusterFraction = 0
	s.queryID = ""
}

// Describe returns the session state for the debug API.
func (s *Session) Describe() statejson.SessionDescription {
	desc := statejson.SessionDescription{
		ID:              s.id,
		PoolName:        s.poolName,
		ClusterFraction: s.clusterFraction,
		QueryID:         s.queryID,
		KillReason:      s.kill.Reason(),
	}
	if info, version, ok := s.discovery.Current(); ok {
		endpoint := &statejson.EndpointDescription{Version: version, Removed: info == nil}
		if info != nil {
			endpoint.Host = info.Host
			endpoint.Port = info.Port
			endpoint.JobID = info.TokenJobID
		}
		desc.Endpoint = endpoint
	}
	target, sending, sent := s.allocation.Snapshot()
	desc.Allocation = statejson.AllocationDescription{Target: target, Sending: sending, Sent: sent}
	return desc
}

func (s *Session) String() string {
	return fmt.Sprintf("session %s, poolName=%s, clusterFraction=%f, queryId=%s, killReason=%s",
		s.id, s.poolName, s.clusterFraction, s.queryID, s.kill.Reason())
}
