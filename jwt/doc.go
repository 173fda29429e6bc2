// Package jwt signs and verifies the bearer tokens handed out after code
// verification, plus the short-lived password-reset tokens issued by admins.
//
// Parse failures are classified into [ErrExpired], [ErrMalformed] and
// [ErrInvalid] so callers can map them to distinct responses. [PeekUserID]
// reads a payload without verification for cleanup paths only.
package jwt
