// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go.qwm.io/wm/core"
)

type fakeReporter struct {
	session *Session
	version int
	calls   int
}

func (r *fakeReporter) AddUpdateError(s *Session, endpointVersion int) {
	r.session = s
	r.version = endpointVersion
	r.calls++
}

func TestSessionIdentityAsMapKey(t *testing.T) {
	a := New("s-1", &fakeReporter{})
	b := New("s-1", &fakeReporter{})

	// Two sessions with identical state are still distinct map keys.
	a.SetPoolName("etl")
	b.SetPoolName("etl")

	m := map[*Session]int{}
	m[a] = 1
	m[b] = 2
	assert.Len(t, m, 2)
	assert.Equal(t, 1, m[a])
	assert.Equal(t, 2, m[b])
}

func TestSessionClearWm(t *testing.T) {
	s := New("s-1", &fakeReporter{})
	s.SetPoolName("bi")
	s.SetClusterFraction(0.25)
	s.SetQueryID("query-7")

	s.ClearWm()
	assert.Equal(t, "", s.PoolName())
	assert.Equal(t, float64(0), s.ClusterFraction())
	assert.Equal(t, "", s.QueryID())
}

func TestSessionForwardsUpdateErrors(t *testing.T) {
	reporter := &fakeReporter{}
	s := New("s-1", reporter)

	s.HandleUpdateError(4)
	assert.Equal(t, 1, reporter.calls)
	assert.Same(t, s, reporter.session)
	assert.Equal(t, 4, reporter.version)
}

func TestSessionDiscoveryResolvesWithSession(t *testing.T) {
	s := New("s-1", &fakeReporter{})
	future := s.WaitForRegistryAsync(0, core.NewScheduler())

	assert.True(t, s.UpdateFromRegistry(&core.EndpointInfo{Host: "host", Port: 9000}, 1))
	value, err := future.Await()
	assert.NoError(t, err)
	assert.Same(t, s, value)

	info, version, ok := s.EndpointInfo()
	assert.True(t, ok)
	assert.Equal(t, 1, version)
	assert.Equal(t, "host", info.Host)
}

func TestSessionDescribe(t *testing.T) {
	s := New("s-1", &fakeReporter{})
	s.SetPoolName("bi")
	s.SetQueryID("query-7")
	s.UpdateFromRegistry(&core.EndpointInfo{Host: "host", Port: 9000, TokenJobID: "job-1"}, 3)
	s.Allocation().RequestSend(4)

	desc := s.Describe()
	assert.Equal(t, "s-1", desc.ID)
	assert.Equal(t, "bi", desc.PoolName)
	assert.Equal(t, "query-7", desc.QueryID)
	assert.NotNil(t, desc.Endpoint)
	assert.Equal(t, 3, desc.Endpoint.Version)
	assert.Equal(t, "host", desc.Endpoint.Host)
	assert.Equal(t, 4, desc.Allocation.Target)
	assert.Nil(t, desc.Allocation.Sent)
}
