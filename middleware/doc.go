// Package middleware adapts the dualAuth token gate to net/http and gin.
//
// # Guards
//
//   - [Guard] runs Engine.VerifyToken and stores the [dualAuth.Principal]
//     in the request context.
//   - [RequireAdmin] rejects principals without the configured admin role.
//   - [RequireBearerShape] rejects requests whose Authorization header is
//     not a three-segment base64url token, without touching keys or stores.
//
// The Gin* functions are the same checks for gin routers.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It never parses
// token claims or reads the session store itself.
package middleware
