// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

// VersionGate decides whether an incoming (version, info) endpoint update
// should replace the cached state. The registry assigns each observed
// endpoint state, including its removal, a non-decreasing version. Delivery
// may be duplicated or reordered within a version; removal is the last
// event of any version, so a removal at the cached version is always let
// through while a non-removal duplicate is dropped.
//
// VersionGate is not synchronized; the owning DiscoveryTracker guards it.
type VersionGate struct {
	version    int
	hasVersion bool
	info       *EndpointInfo
}

// Apply applies an update and reports whether it was accepted. On
// acceptance the cached state becomes (version, info).
func (g *VersionGate) Apply(version int, info *EndpointInfo) bool {
	if g.hasVersion && (g.version > version || (g.version == version && info != nil)) {
		return false
	}
	g.version = version
	g.hasVersion = true
	g.info = info
	return true
}

// Current returns the cached endpoint state. ok is false until the first
// update is accepted; info is nil once the endpoint was removed.
func (g *VersionGate) Current() (info *EndpointInfo, version int, ok bool) {
	return g.info, g.version, g.hasVersion
}
