// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package statejson

import (
	"encoding/json"

	log "github.com/sirupsen/logrus"
)

// EndpointDescription ...
type EndpointDescription struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	JobID   string `json:"jobId"`
	Version int    `json:"version"`
	Removed bool   `json:"removed"`
}

// AllocationDescription ...
type AllocationDescription struct {
	Target  int  `json:"target"`
	Sending *int `json:"sending"`
	Sent    *int `json:"sent"`
}

// SessionDescription describes a session's coordination state for debugging purposes.
type SessionDescription struct {
	ID              string                `json:"id"`
	PoolName        string                `json:"poolName"`
	ClusterFraction float64               `json:"clusterFraction"`
	QueryID         string                `json:"queryId"`
	KillReason      string                `json:"killReason,omitempty"`
	Endpoint        *EndpointDescription  `json:"endpoint"`
	Allocation      AllocationDescription `json:"allocation"`
}

// ManagerDescription describes the manager's internal state for debugging purposes.
type ManagerDescription struct {
	TotalSlots int                  `json:"totalSlots"`
	Sessions   []SessionDescription `json:"sessions"`
}

func (d *ManagerDescription) AsJSON() []byte {
	bytes, err := json.Marshal(d)
	if err != nil {
		log.Panicf("Failed to marshal internal state: %s", err)
	}
	return bytes
}
