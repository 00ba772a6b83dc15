// Package chat defines the domain model shared by the whole client.
//
// # Overview
//
// The package holds the plain data types (Thread, Message, Mode, Identity)
// and the Store capability interface the session layer programs against.
// It deliberately contains no I/O: both the remote HTTP store and the local
// guest store implement Store, and every other package depends
// only on these types.
//
// # Identity
//
// Identity is a closed two-variant type: Guest() or Authenticated(user).
// The zero value is Guest. The session controller selects which Store
// implementation serves a session once per identity, instead of branching
// on identity at every call site.
//
// # Delivery states
//
// Optimistic sends tag the user message with a DeliveryState:
//
//   - DeliveryPending: appended locally, backend call in flight
//   - DeliveryDelivered: confirmed
//   - DeliveryFailed: backend call failed; the message stays visible
//
// # Error Handling
//
// Sentinel errors:
//
//   - ErrNotFound: requested thread does not exist
//   - ErrThreadLimit, ErrMessageLimit: guest quota outcomes (not failures)
//   - ErrSendPending: a send is already in flight for the thread
//   - ErrEmptyMessage: rejected before any state change
package chat
