// Package quota enforces guest usage limits.
//
// A guest may hold one live thread and send ten messages within it. The
// Guard answers allow/deny over counters persisted in the guest store, so a
// restart does not reset usage. Checks are synchronous and local: a denial
// short-circuits before any network call could be issued, which is what
// makes the limit race-free. Authenticated identities always pass.
package quota
