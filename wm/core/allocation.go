// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// allocNone marks sending/sent as "no value". Kept as a plain sentinel so
// the drift checks below stay exact integer comparisons.
const allocNone = -1

// AllocationCoordinator tracks the desired (target), in-flight (sending)
// and confirmed (sent) guaranteed allocation for a session. It decides
// when a send must be issued so that at most one update is in flight,
// redundant sends are skipped, and drift during an in-flight send is
// never lost. Only one BeginSend/CompleteSend-or-FailSend pair may be
// outstanding at a time; that is a caller contract, and violating it is
// a programming error.
//
// The coordinator's lock is disjoint from the discovery lock; the two
// are never held together.
type AllocationCoordinator struct {
	mutex   sync.Mutex
	target  int
	sending int
	sent    int
}

// NewAllocationCoordinator returns a coordinator with target 0 and no
// in-flight or confirmed value.
func NewAllocationCoordinator() *AllocationCoordinator {
	return &AllocationCoordinator{sending: allocNone, sent: allocNone}
}

// RequestSend records a new target allocation and reports whether the
// caller must issue a send now. While a send is in flight the in-flight
// sender picks up the drift when it completes, and a target equal to the
// confirmed value needs no send at all.
func (c *AllocationCoordinator) RequestSend(target int) bool {
	if target < 0 {
		log.Panicf("Guaranteed allocation cannot be negative: %d", target)
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.target = target
	if c.sending != allocNone {
		return false // The sender will take care of this.
	}
	if c.sent == target {
		return false // The value didn't change.
	}
	return true
}

// BeginSend moves the current target into the in-flight slot and returns
// the value to send. The caller must have just observed RequestSend
// return true, or a re-send signal from CompleteSend or FailSend.
func (c *AllocationCoordinator) BeginSend() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.sending != allocNone {
		log.Panicf("Send already in flight for value %d", c.sending)
	}
	c.sending = c.target
	return c.sending
}

// CompleteSend confirms the in-flight value. When the target drifted while
// the send was in flight it returns (target, true), signaling the caller
// must issue another send; otherwise it returns (0, false).
func (c *AllocationCoordinator) CompleteSend() (int, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.sending == allocNone {
		log.Panicf("CompleteSend without a send in flight")
	}
	c.sent = c.sending
	c.sending = allocNone
	if c.sent == c.target {
		return 0, false
	}
	return c.target, true
}

// FailSend clears the in-flight value without confirming it. It reports
// whether the failure can be skipped with no retry: true when the target
// reverted to the already-confirmed value during the failed attempt.
func (c *AllocationCoordinator) FailSend() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.sending == allocNone {
		log.Panicf("FailSend without a send in flight")
	}
	c.sending = allocNone
	// It's ok to skip a failed message if the target changed back to the
	// old value.
	return c.sent == c.target
}

// Target returns the current desired allocation.
func (c *AllocationCoordinator) Target() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.target
}

// Snapshot returns the current state for introspection. Sending and sent
// are nil when not applicable.
func (c *AllocationCoordinator) Snapshot() (target int, sending, sent *int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.target, optionalAlloc(c.sending), optionalAlloc(c.sent)
}

func optionalAlloc(v int) *int {
	if v == allocNone {
		return nil
	}
	value := v
	return &value
}
