// Package httpapi exposes a dualAuth Engine over HTTP with gin.
//
// Status codes follow the engine's error kinds with one deliberate
// exception: POST /login answers bad credentials with 200 and
// success=false so that the response does not reveal whether the email
// exists. Internal failures are logged and answered with an opaque 500.
//
// Routes guarded by a bearer token first pass [middleware.GinBearerShape],
// which rejects tokens that are not three base64url segments before any
// key or store is touched.
package httpapi
