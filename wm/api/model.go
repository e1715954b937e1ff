// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package api

// ErrorResponse is the body of any non-2xx answer.
type ErrorResponse struct {
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
}

// CreateSessionRequest ...
type CreateSessionRequest struct {
	ApplicationID   string  `json:"applicationId"`
	PoolName        string  `json:"poolName"`
	ClusterFraction float64 `json:"clusterFraction"`
	QueryID         string  `json:"queryId"`
}

// EndpointRequest is the body a registry bridge posts when it observes a
// query coordinator endpoint.
type EndpointRequest struct {
	Host  string `json:"host"`
	Port  int    `json:"port"`
	Token string `json:"token"`
	JobID string `json:"jobId"`
}

// EndpointResponse ...
type EndpointResponse struct {
	ApplicationID string `json:"applicationId"`
	Version       int    `json:"version"`
}
