// Package remote implements chat.Store over the backend's REST API.
//
// # Endpoints
//
//   - POST   /chat/create              create a thread
//   - GET    /chat/get-all             list threads
//   - GET    /chat/{id}                fetch one thread with messages
//   - PATCH  /chat/{id}                rename ({title})
//   - DELETE /chat/{id}                delete
//   - POST   /messages/send            send ({chat_id, content, mode_id})
//   - POST   /messages/send-anonymous  guest send ({content, mode_id}), no auth
//   - GET    /messages/modes           list assistant modes
//
// # Authentication
//
// All operations except SendAnonymous attach a bearer token from the
// injected TokenSource. A missing token is a programming error (the session
// layer only binds this store for authenticated identities) and surfaces as
// a wrapped error.
//
// # Error Handling
//
// 404 responses map to chat.ErrNotFound; other non-2xx responses become
// errors carrying the status and a truncated body. The store never retries;
// retry policy belongs to the caller.
package remote
