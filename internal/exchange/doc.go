// Package exchange implements the optimistic send/receive protocol.
//
// # State machine
//
// Each send moves a thread through idle -> pending -> fulfilled or failed:
//
//   - idle -> pending: non-empty submission while no send is in flight. The
//     user's message is appended to the sequence immediately, tagged
//     DeliveryPending, before any network confirmation. Guest sends must
//     pass the quota guard first; a denial short-circuits back to idle with
//     chat.ErrMessageLimit and no append.
//   - pending -> fulfilled: the backend returns an assistant message; the
//     user turn flips to DeliveryDelivered, the reply is appended, and the
//     thread is bumped in the list.
//   - pending -> failed: the backend call errors; the user turn is kept,
//     tagged DeliveryFailed, no assistant message is appended, and the
//     pending flag clears. Retry is explicit: resubmitting is a new
//     exchange.
//
// Only one send may be pending per thread; a second submission is rejected
// with chat.ErrSendPending rather than queued. Exchanges on different
// threads are independent.
//
// The protocol owns no thread state. It mutates the session's threads only
// through the Events callbacks, which the session controller serializes.
package exchange
