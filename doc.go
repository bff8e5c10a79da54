// Package auth provides cookie based authentication for a single service:
// JWT credential pairs, a per principal session pointer, request mediation
// with transparent renewal, and the account flows built on top of them.
//
// Credentials:
//   - TokenService signs an access credential and a refresh credential with
//     separate secrets. The refresh credential carries a session id (sid) that
//     is new for every pair.
//   - SessionStore keeps one current sid per principal. Only the refresh
//     credential whose sid matches the pointer is honored, so issuing a new
//     pair revokes the previous one.
//
// Rotation:
//   - Rotator exchanges a refresh credential for a new pair using a compare
//     and swap on the pointer. A stale sid, or a lost swap, is treated as
//     replay: the pointer is cleared and the principal must sign in again.
//
// Mediation:
//   - Mediator.Middleware admits a request on a valid access cookie, falls back
//     to rotation when the access cookie is missing or expired, and rejects a
//     forged access cookie outright. Renewed credentials are written back as
//     cookies on the same response.
//
// Account flows:
//   - SignUp, VerifyAccount, SignIn, ForgotPassword, ResetPassword,
//     ResendVerification and SignOut are command handlers executed by
//     AuthController. Multi row changes run inside RepositoryManager.RunInTx.
//   - Verification and password reset tokens are opaque random strings kept
//     by a TokenRegistry with a fixed time to live. Issuing a token replaces
//     the principal's previous token of the same kind.
//
// Activity sinks:
//   - ActivitySink receives audit events from the flows and the rotator.
//     Sinks run best-effort (errors are logged) so you can forward to metrics,
//     a log, or a queue without blocking authentication.
package auth
