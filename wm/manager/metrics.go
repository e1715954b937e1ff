// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"go.qwm.io/wm/faults"
)

// Metrics counts manager-side coordination events.
type Metrics struct {
	GuaranteedSends prometheus.Counter
	UpdateErrors    prometheus.Counter
	SessionsExpired prometheus.Counter
	Faults          *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		GuaranteedSends: factory.NewCounter(prometheus.CounterOpts{
			Name: "qwm_guaranteed_sends_total",
			Help: "Guaranteed-allocation updates confirmed by an endpoint.",
		}),
		UpdateErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "qwm_update_errors_total",
			Help: "Guaranteed-allocation updates given up on after retries.",
		}),
		SessionsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "qwm_sessions_expired_total",
			Help: "Sessions removed by the expiration tracker.",
		}),
		Faults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qwm_session_faults_total",
			Help: "Session coordination faults by type.",
		}, []string{"type"}),
	}
	return m
}

func (m *Metrics) countFault(t faults.FaultType) {
	m.Faults.WithLabelValues(string(t)).Inc()
}
