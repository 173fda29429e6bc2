// Package userstore provides reference dualAuth.UserRepository
// implementations: an in-memory store for tests and single-process demos,
// and a SQLite store. Both hash passwords with Argon2id and implement
// dualAuth.AccountCreator.
package userstore
