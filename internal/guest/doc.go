// Package guest provides local persistence for anonymous sessions.
//
// # Overview
//
// Guest conversations never reach the backend's database. The Store keeps
// threads, messages, and quota counters in a local SQLite file, implementing
// the same chat.Store interface as the remote store so the session layer
// binds one or the other once per identity.
//
// # Persistence model
//
// Entries are created on first guest write, read on session resume, and
// deleted only on explicit thread deletion, never implicitly cleared by
// identity changes. Logging in hides guest data without destroying it;
// returning to guest identity finds it again.
//
// Delete purges everything keyed to the thread id in one transaction:
// messages, the quota counter row, and the thread record. Orphaned counter
// state after a delete is a defect.
//
// # Sending
//
// SendMessage relays only the content and mode id to the backend's
// anonymous endpoint; the local database is the sole owner of the
// conversation. The user's turn is recorded before the network call and
// marked failed if the call errors, so no turn silently disappears.
//
// # SQLite Configuration
//
// The store uses SQLite via modernc.org/sqlite (pure Go) with:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
package guest
