// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"fmt"
)

// EndpointInfo is the address and credentials of the remote query
// coordinator process a session communicates with. Immutable once
// constructed; a nil *EndpointInfo means the endpoint was removed.
type EndpointInfo struct {
	Host       string
	Port       int
	Token      string
	TokenJobID string
}

func (e *EndpointInfo) String() string {
	if e == nil {
		return "(removed)"
	}
	return fmt.Sprintf("%s:%d (job %s)", e.Host, e.Port, e.TokenJobID)
}
