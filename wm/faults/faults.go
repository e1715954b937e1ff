// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package faults

// This package defines constant fault types used in logs and metrics when
// session coordination goes wrong. Separate package for namespacing.

// FaultType classifies a coordination failure.
type FaultType string

const (
	// Timeout is a discovery wait that was not resolved within its deadline.
	Timeout FaultType = "Discovery.Timeout"
	// ConcurrencyMisuse is a second discovery wait while one is pending.
	ConcurrencyMisuse FaultType = "Discovery.ConcurrentWait"
	// StaleUpdate is a registry update rejected by the version gate.
	StaleUpdate FaultType = "Registry.StaleUpdate"
	// DeliveryError is a transport-level failure of an allocation update.
	DeliveryError FaultType = "Allocation.DeliveryError"
)
