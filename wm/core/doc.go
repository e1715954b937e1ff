// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

/*
Package core provides the per-session coordination primitives of the
workload manager.

# Discovery

Each session talks to a remote query coordinator process (the endpoint)
whose address and credentials are discovered asynchronously through the
registry. DiscoveryTracker caches the last accepted endpoint state and
exposes a single-waiter, timeout-capable future for "endpoint is known".
VersionGate decides which registry pushes replace the cached state:
registry delivery may be duplicated or reordered within a version epoch,
and only the endpoint's removal is guaranteed to be the last event of an
epoch.

# Allocation

AllocationCoordinator tracks the desired, in-flight and confirmed
guaranteed allocation for a session and decides when an update must be
(re-)sent to the endpoint. At most one send is in flight per session;
redundant sends are skipped; drift between the desired and confirmed
value during an in-flight send is picked up when the send completes.

The discovery state and the allocation state are guarded by two separate
locks. Neither path ever acquires the other's lock, so the two domains
cannot deadlock against each other.

# Faults

Misuse of the single-sender contract (BeginSend while a send is in
flight) and double kill-reason sets are programming errors, not business
conditions. They fail fast with a panic.
*/
package core
