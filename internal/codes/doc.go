// Package codes generates the numeric one-time codes handed out during login
// and hashes the short offline codes that are stored on the user record.
//
// Online OTPs are compared verbatim; offline codes are only ever stored as a
// bcrypt hash at a deliberately low cost because they are short-lived and
// single-use.
package codes
