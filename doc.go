// Package admin is the access-control and audit core of an operator console:
// durable sessions, an append-only audit ledger, the operator directory and a
// request guard, all backed by bun.
//
// Sessions:
//   - SessionStore issues opaque 256 bit tokens with a configured TTL. A
//     session is invalid from its expiry instant on, whether or not the
//     Janitor has swept the row yet.
//
// Directory:
//   - UserDirectory owns the cross-entity rules. Deactivating or deleting a
//     user, or changing someone else's password, revokes the user's sessions.
//     An actor can never delete their own account.
//
// Audit ledger:
//   - AuditLedger.Record is best-effort: failures go to the logger and an
//     optional AuditFailureHandler and never reach the caller. Append is the
//     strict variant for callers that want the error.
//   - Entries without an action get one derived from the request path with
//     identifier segments stripped, e.g. "/conversations/42/messages" becomes
//     "conversations.messages".
//
// Guard:
//   - AuthGuard reads a bearer token, falling back to the session cookie, and
//     resolves it to an Identity. RouteGuard exposes the guard as go-router
//     middleware and as a net/http handler.
//
// Service is the composition root that wires all of the above over one
// *bun.DB.
package admin
