// Package dualAuth authenticates users with a password followed by a one-time
// code, and enforces a single live session per account.
//
// The code is delivered in one of two modes. When the process can reach the
// outside world the user receives a six digit OTP by email (online mode).
// When it cannot, a four digit code is generated, stored only as a low-cost
// hash, and shown locally (offline mode). Verifying either code mints a
// signed access token and binds it to the user's session.
//
// # Architecture boundaries
//
// dualAuth is the public surface: [Engine], [Builder], [Config] and the value
// types returned by Engine methods. User storage, credential hashing and
// email delivery are collaborators supplied by the caller through
// [UserRepository], [AccountCreator] and [Mailer]. Session bookkeeping goes
// through [session.Store], which can be process-local or Redis-backed.
//
// # Token gate
//
// [Engine.VerifyToken] accepts a local token only while its session is live
// and still bound to that exact token, so logout, forced logout and a newer
// login all revoke otherwise valid tokens. Federated tokens (Google sign-in)
// skip the liveness check and instead (re)create their session.
//
// Engine methods are safe for concurrent use after [Builder.Build].
package dualAuth
