// Package session keeps the single live session each user is allowed.
//
// A [Session] binds one access token to one user id. The [Store] interface
// has two implementations: [MemoryStore], a mutex-guarded map for a single
// process, and [RedisStore], which lets several server instances share one
// view of who is logged in. Both treat an entry whose ExpiresAt has passed as
// absent on read; a [Sweeper] removes such entries in the background.
//
// This package does not interpret tokens or make authorization decisions.
// It must not import dualAuth or jwt.
package session
