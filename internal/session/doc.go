// Package session provides the top-level conversation session controller.
//
// # Overview
//
// The Controller is the single source of truth for the active thread id,
// the ordered thread list, and the resolved identity. It binds to exactly
// one chat.Store per identity (the remote store for authenticated users,
// the local guest store for anonymous ones) and composes the quota guard,
// mode registry, exchange protocol, and title editor around that binding.
// Any UI layer is a pure consumer: it reads snapshots and receives events,
// it never owns state.
//
// # Identity transitions
//
// SetIdentity clears the active thread id and the in-memory thread list on
// every transition. Guest-persisted data is never deleted by an identity
// change; it is simply not displayed while authenticated, and resumes when
// the session returns to guest identity. Authenticated transitions eagerly
// load the full thread list and mode set.
//
// # Events
//
// Thread-list mutations flow through Listener callbacks (OnThreadCreated,
// OnThreadUpdated, OnThreadDeleted) so downstream components keep the list
// authoritative without direct access. Quota denials surface as
// OnQuotaExceeded events carrying a suggested next action (login or
// register); the controller simultaneously clears the active thread id so
// the interrupted guest thread is not left selected under the auth screen.
//
// # Concurrency
//
// All mutations to the thread list, the active id, and guest quota state
// are serialized under the controller's mutex. The exchange protocol's
// single-send-per-thread rule means no two in-flight operations ever race
// on one thread's message sequence.
package session
