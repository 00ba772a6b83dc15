// Package auth manages client-side credentials for the assistant backend.
//
// # Overview
//
// Three concerns live here:
//
//   - Client: HTTP calls to the backend's auth endpoints (login, register, me)
//   - Credentials: persistence of the bearer token and account snapshot
//   - InspectToken: unverified JWT claim reads for identity resolution
//
// Token issuance and signature verification are the backend's job. The
// client never holds the signing secret; InspectToken only decodes claims
// so startup can pick Guest vs Authenticated and refuse stale tokens.
//
// # Storage
//
// The token is stored at ~/.config/assist/token (ASSIST_TOKEN overrides it),
// the account snapshot at user.json next to it. Logout clears both; guest
// conversation data is unrelated and survives in the guest store.
package auth
