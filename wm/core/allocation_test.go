// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocationSimpleSend(t *testing.T) {
	c := NewAllocationCoordinator()
	assert.True(t, c.RequestSend(5))
	assert.Equal(t, 5, c.BeginSend())

	next, again := c.CompleteSend()
	assert.False(t, again)
	assert.Equal(t, 0, next)
}

func TestAllocationRedundantSendSkipped(t *testing.T) {
	c := NewAllocationCoordinator()
	assert.True(t, c.RequestSend(5))
	c.BeginSend()
	_, again := c.CompleteSend()
	assert.False(t, again)

	// Same value again; nothing changed that matters.
	assert.False(t, c.RequestSend(5))
}

func TestAllocationDriftDuringSend(t *testing.T) {
	c := NewAllocationCoordinator()
	assert.True(t, c.RequestSend(5))
	assert.Equal(t, 5, c.BeginSend())

	// Target drifts while the send is in flight; the in-flight sender is
	// responsible for the re-send.
	assert.False(t, c.RequestSend(7))
	assert.Equal(t, 7, c.Target())

	next, again := c.CompleteSend()
	assert.True(t, again)
	assert.Equal(t, 7, next)

	assert.Equal(t, 7, c.BeginSend())
	_, again = c.CompleteSend()
	assert.False(t, again)
}

func TestAllocationFailedSendNeedsRetry(t *testing.T) {
	c := NewAllocationCoordinator()
	assert.True(t, c.RequestSend(5))
	c.BeginSend()
	assert.False(t, c.FailSend())

	// Nothing was confirmed; the retry goes through the full cycle.
	assert.Equal(t, 5, c.BeginSend())
	_, again := c.CompleteSend()
	assert.False(t, again)
}

func TestAllocationFailedSendSkippedWhenTargetReverted(t *testing.T) {
	c := NewAllocationCoordinator()
	assert.True(t, c.RequestSend(5))
	c.BeginSend()
	_, again := c.CompleteSend()
	assert.False(t, again)

	assert.True(t, c.RequestSend(7))
	c.BeginSend()
	// The target reverts to the confirmed value during the failed attempt.
	assert.False(t, c.RequestSend(5))
	assert.True(t, c.FailSend())
}

func TestAllocationBeginSendWhileSendingPanics(t *testing.T) {
	c := NewAllocationCoordinator()
	assert.True(t, c.RequestSend(5))
	c.BeginSend()
	assert.Panics(t, func() { c.BeginSend() })
}

func TestAllocationCompleteWithoutSendPanics(t *testing.T) {
	c := NewAllocationCoordinator()
	assert.Panics(t, func() { c.CompleteSend() })
	assert.Panics(t, func() { c.FailSend() })
}

func TestAllocationNegativeTargetPanics(t *testing.T) {
	c := NewAllocationCoordinator()
	assert.Panics(t, func() { c.RequestSend(-1) })
}

func TestAllocationSnapshot(t *testing.T) {
	c := NewAllocationCoordinator()
	target, sending, sent := c.Snapshot()
	assert.Equal(t, 0, target)
	assert.Nil(t, sending)
	assert.Nil(t, sent)

	c.RequestSend(3)
	c.BeginSend()
	target, sending, sent = c.Snapshot()
	assert.Equal(t, 3, target)
	assert.Equal(t, 3, *sending)
	assert.Nil(t, sent)

	c.CompleteSend()
	_, sending, sent = c.Snapshot()
	assert.Nil(t, sending)
	assert.Equal(t, 3, *sent)
}
