// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"errors"
	"sync"
)

// ErrWaitCanceled returned by Await when the future was canceled, e.g.
// because a discovery wait timed out.
var ErrWaitCanceled = errors.New("ErrWaitCanceled")

// SettableFuture is a single-value future that can be resolved, failed or
// canceled exactly once. Only the first of Set, SetError and Cancel takes
// effect; the rest are no-ops, which makes races between a resolving
// update and a firing timeout timer safe to ignore.
type SettableFuture struct {
	mutex sync.Mutex
	done  chan struct{}
	value interface{}
	err   error
}

// NewSettableFuture returns a new unresolved future.
func NewSettableFuture() *SettableFuture {
	return &SettableFuture{done: make(chan struct{})}
}

// Set resolves the future with value. Reports whether this call won the
// resolution.
func (f *SettableFuture) Set(value interface{}) bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.isDoneLocked() {
		return false
	}
	f.value = value
	close(f.done)
	return true
}

// SetError fails the future with err.
func (f *SettableFuture) SetError(err error) bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.isDoneLocked() {
		return false
	}
	f.err = err
	close(f.done)
	return true
}

// Cancel fails the future with ErrWaitCanceled.
func (f *SettableFuture) Cancel() bool {
	return f.SetError(ErrWaitCanceled)
}

// IsDone reports whether the future has been resolved, failed or canceled.
func (f *SettableFuture) IsDone() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.isDoneLocked()
}

func (f *SettableFuture) isDoneLocked() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the future completes.
func (f *SettableFuture) Await() (interface{}, error) {
	<-f.done
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.value, f.err
}

// AwaitWithContext blocks until the future completes or ctx is done.
func (f *SettableFuture) AwaitWithContext(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.Await()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
