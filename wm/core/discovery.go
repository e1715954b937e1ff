// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrMultipleWaiters returned when a discovery wait is requested while
// another wait is still pending. Only one waiter at a time is supported.
var ErrMultipleWaiters = errors.New("ErrMultipleWaiters")

// DiscoveryTracker tracks asynchronous discovery of a session's remote
// endpoint. The registry-push path feeds accepted updates into the cache;
// a single caller may wait for the endpoint to become known. One lock
// covers the cached state, the pending waiter and its timeout timer, so
// the timer path and the registry-push path cannot race a wakeup away
// from each other.
type DiscoveryTracker struct {
	// owner is the value pending waiters are resolved with, the session
	// that owns this tracker.
	owner interface{}

	mutex  sync.Mutex
	gate   VersionGate
	waiter *SettableFuture
	timer  TimerHandle
}

// NewDiscoveryTracker returns a tracker whose waiters resolve with owner.
func NewDiscoveryTracker(owner interface{}) *DiscoveryTracker {
	return &DiscoveryTracker{owner: owner}
}

// WaitAsync returns a future that resolves with the tracker's owner once
// the endpoint is known. If the endpoint is already known the future is
// resolved immediately and no timer is scheduled. A second wait while one
// is pending fails immediately with ErrMultipleWaiters; the pending wait
// is left untouched. A timeout of zero or less means wait indefinitely.
func (d *DiscoveryTracker) WaitAsync(timeout time.Duration, scheduler Scheduler) *SettableFuture {
	future := NewSettableFuture()
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if info, _, ok := d.gate.Current(); ok && info != nil {
		future.Set(d.owner)
		return future
	}
	if d.waiter != nil {
		future.SetError(ErrMultipleWaiters)
		return future
	}
	d.waiter = future
	if timeout <= 0 {
		return future
	}
	d.timer = scheduler.Schedule(timeout, func() { d.expire(future) })
	return future
}

// expire is the timeout path. If the pending waiter is still the one the
// timer was armed for and is still unresolved, it is canceled and both
// references are cleared. Otherwise the firing is a no-op: an update beat
// the timer to the lock.
func (d *DiscoveryTracker) expire(future *SettableFuture) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.timer = nil
	if d.waiter != future || future.IsDone() {
		return
	}
	future.Cancel()
	d.waiter = nil
}

// OnUpdate applies a registry-pushed endpoint update and reports whether
// it was accepted. An accepted non-nil update resolves the pending waiter,
// if any, and cancels its timer; the cancel is best effort since double
// resolution is guarded by the future itself. An accepted removal only
// updates the cache: there is nothing to wait for.
func (d *DiscoveryTracker) OnUpdate(version int, info *EndpointInfo) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if !d.gate.Apply(version, info) {
		log.Infof("Ignoring an outdated endpoint update %d: %s", version, info)
		return false
	}
	if info == nil {
		return true
	}
	if d.waiter != nil {
		d.waiter.Set(d.owner)
		d.waiter = nil
	}
	if d.timer != nil {
		d.timer.Cancel()
		d.timer = nil
	}
	return true
}

// Current returns the cached endpoint state without side effects.
func (d *DiscoveryTracker) Current() (info *EndpointInfo, version int, ok bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.gate.Current()
}
