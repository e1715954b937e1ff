// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"testing"
	"time"
)

func TestSchedulerFires(t *testing.T) {
	fired := make(chan struct{})
	NewScheduler().Schedule(time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestSchedulerCancel(t *testing.T) {
	fired := make(chan struct{})
	handle := NewScheduler().Schedule(50*time.Millisecond, func() { close(fired) })
	handle.Cancel()

	select {
	case <-fired:
		t.Fatal("canceled timer fired")
	case <-time.After(100 * time.Millisecond):
	}
}
