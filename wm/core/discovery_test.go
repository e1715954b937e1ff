// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// manualScheduler captures scheduled callbacks so tests can fire or cancel
// them deterministically.
type manualScheduler struct {
	timers []*manualTimer
}

type manualTimer struct {
	fn       func()
	canceled bool
}

func (h *manualTimer) Cancel() {
	h.canceled = true
}

func (h *manualTimer) fire() {
	if !h.canceled {
		h.fn()
	}
}

func (s *manualScheduler) Schedule(delay time.Duration, fn func()) TimerHandle {
	timer := &manualTimer{fn: fn}
	s.timers = append(s.timers, timer)
	return timer
}

type trackerOwner struct{}

func TestDiscoveryResolvesSynchronouslyWhenCached(t *testing.T) {
	owner := &trackerOwner{}
	d := NewDiscoveryTracker(owner)
	assert.True(t, d.OnUpdate(1, &EndpointInfo{Host: "host"}))

	scheduler := &manualScheduler{}
	future := d.WaitAsync(time.Second, scheduler)
	assert.True(t, future.IsDone())
	assert.Empty(t, scheduler.timers) // no timer for an immediate resolve

	value, err := future.Await()
	assert.NoError(t, err)
	assert.Same(t, owner, value)
}

func TestDiscoverySecondWaiterFailsImmediately(t *testing.T) {
	owner := &trackerOwner{}
	d := NewDiscoveryTracker(owner)
	scheduler := &manualScheduler{}

	first := d.WaitAsync(0, scheduler)
	assert.False(t, first.IsDone())

	second := d.WaitAsync(0, scheduler)
	assert.True(t, second.IsDone())
	_, err := second.Await()
	assert.Equal(t, ErrMultipleWaiters, err)

	// The first waiter is untouched and still resolves normally.
	assert.True(t, d.OnUpdate(1, &EndpointInfo{Host: "host"}))
	value, err := first.Await()
	assert.NoError(t, err)
	assert.Same(t, owner, value)
}

func TestDiscoveryUpdateResolvesWaiterAndCancelsTimer(t *testing.T) {
	d := NewDiscoveryTracker(&trackerOwner{})
	scheduler := &manualScheduler{}

	future := d.WaitAsync(time.Second, scheduler)
	assert.Len(t, scheduler.timers, 1)

	assert.True(t, d.OnUpdate(1, &EndpointInfo{Host: "host"}))
	assert.True(t, future.IsDone())
	assert.True(t, scheduler.timers[0].canceled)

	// The timer firing after resolution is a no-op.
	scheduler.timers[0].canceled = false
	scheduler.timers[0].fire()
	value, err := future.Await()
	assert.NoError(t, err)
	assert.NotNil(t, value)
}

func TestDiscoveryTimeoutCancelsWaiter(t *testing.T) {
	d := NewDiscoveryTracker(&trackerOwner{})
	scheduler := &manualScheduler{}

	future := d.WaitAsync(time.Second, scheduler)
	scheduler.timers[0].fire()

	_, err := future.Await()
	assert.Equal(t, ErrWaitCanceled, err)

	// A later update still lands in the cache but cannot resolve the
	// already-canceled future.
	assert.True(t, d.OnUpdate(1, &EndpointInfo{Host: "host"}))
	info, version, ok := d.Current()
	assert.True(t, ok)
	assert.Equal(t, 1, version)
	assert.Equal(t, "host", info.Host)
	_, err = future.Await()
	assert.Equal(t, ErrWaitCanceled, err)

	// The tracker is free for a new wait after the timeout.
	next := d.WaitAsync(0, scheduler)
	assert.True(t, next.IsDone())
}

func TestDiscoveryRemovalDoesNotResolveWaiter(t *testing.T) {
	d := NewDiscoveryTracker(&trackerOwner{})
	scheduler := &manualScheduler{}

	future := d.WaitAsync(0, scheduler)
	assert.True(t, d.OnUpdate(1, nil))
	assert.False(t, future.IsDone())

	info, version, ok := d.Current()
	assert.True(t, ok)
	assert.Equal(t, 1, version)
	assert.Nil(t, info)

	// The removal epoch is over; the next version resolves the wait.
	assert.True(t, d.OnUpdate(2, &EndpointInfo{Host: "host"}))
	assert.True(t, future.IsDone())
}

func TestDiscoveryStaleUpdateIgnored(t *testing.T) {
	d := NewDiscoveryTracker(&trackerOwner{})
	assert.True(t, d.OnUpdate(2, &EndpointInfo{Host: "hostB"}))
	assert.False(t, d.OnUpdate(1, &EndpointInfo{Host: "hostA"}))
	assert.False(t, d.OnUpdate(2, &EndpointInfo{Host: "hostC"}))

	info, version, _ := d.Current()
	assert.Equal(t, 2, version)
	assert.Equal(t, "hostB", info.Host)
}
