// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// KillLatch records the reason a session became irrelevant to workload
// management. The reason is for the entire session, not just for a query:
// a session can only be killed once, so the latch is strictly write-once.
type KillLatch struct {
	mutex  sync.Mutex
	reason string
	set    bool
}

// MarkIrrelevant stores the kill reason permanently. Setting a reason
// twice, even the same one, is a programming error.
func (l *KillLatch) MarkIrrelevant(reason string) {
	if reason == "" {
		log.Panicf("Kill reason must be provided")
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.set {
		log.Panicf("Cannot reset the kill reason %q to %q", l.reason, reason)
	}
	l.reason = reason
	l.set = true
}

// IsIrrelevant reports whether a kill reason has been set.
func (l *KillLatch) IsIrrelevant() bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.set
}

// Reason returns the kill reason, or "" when none is set.
func (l *KillLatch) Reason() string {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.reason
}
