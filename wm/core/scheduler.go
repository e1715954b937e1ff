// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"time"
)

// TimerHandle cancels a scheduled one-shot timer. Cancellation is best
// effort: a callback that already started running is not interrupted.
type TimerHandle interface {
	Cancel()
}

// Scheduler schedules one-shot timer callbacks.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) TimerHandle
}

type timerScheduler struct{}

type timerHandle struct {
	timer *time.Timer
}

func (h *timerHandle) Cancel() {
	h.timer.Stop()
}

func (s *timerScheduler) Schedule(delay time.Duration, fn func()) TimerHandle {
	return &timerHandle{timer: time.AfterFunc(delay, fn)}
}

// NewScheduler returns a Scheduler backed by the runtime timer heap.
func NewScheduler() Scheduler {
	return &timerScheduler{}
}
