package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dualAuth "github.com/MrEthical07/dualAuth"
	"github.com/MrEthical07/dualAuth/password"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                   TEXT PRIMARY KEY,
	email                TEXT NOT NULL UNIQUE COLLATE NOCASE,
	name                 TEXT NOT NULL,
	role                 TEXT NOT NULL DEFAULT 'user',
	password_hash        TEXT NOT NULL,
	otp                  TEXT NOT NULL DEFAULT '',
	otp_expires          INTEGER NOT NULL DEFAULT 0,
	offline_code_hash    TEXT NOT NULL DEFAULT '',
	offline_code_expires INTEGER NOT NULL DEFAULT 0,
	created_at           INTEGER NOT NULL
);
`

// SQLiteStore persists users in a SQLite database through the pure Go
// modernc.org/sqlite driver.
type SQLiteStore struct {
	db     *sql.DB
	hasher *password.Argon2
}

// OpenSQLite opens (creating if needed) the database at path. Use
// ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string, hasher *password.Argon2) (*SQLiteStore, error) {
	if hasher == nil {
		h, err := password.NewArgon2(password.DefaultConfig())
		if err != nil {
			return nil, err
		}
		hasher = h
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; also keeps ":memory:" to a single database
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db, hasher: hasher}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const selectUser = `SELECT id, email, name, role, otp, otp_expires, offline_code_hash, offline_code_expires FROM users `

func scanUser(row *sql.Row) (*dualAuth.User, error) {
	var (
		u                  dualAuth.User
		otpExp, offlineExp int64
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role,
		&u.Pending.OTP, &otpExp, &u.Pending.OfflineCodeHash, &offlineExp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dualAuth.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Pending.OTPExpires = fromUnixMilli(otpExp)
	u.Pending.OfflineCodeExpires = fromUnixMilli(offlineExp)
	return &u, nil
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, userID string) (*dualAuth.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, selectUser+`WHERE id = ?`, userID))
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*dualAuth.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, selectUser+`WHERE email = ?`, strings.TrimSpace(email)))
}

func (s *SQLiteStore) VerifyPassword(ctx context.Context, user *dualAuth.User, pw string) (bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id = ?`, user.ID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	match, err := s.hasher.Verify(pw, hash)
	if err != nil || !match {
		return match, err
	}
	if stale, _ := s.hasher.NeedsUpgrade(hash); stale {
		if fresh, err := s.hasher.Hash(pw); err == nil {
			// a concurrent ChangePassword wins
			_, _ = s.db.ExecContext(ctx,
				`UPDATE users SET password_hash = ? WHERE id = ? AND password_hash = ?`, fresh, user.ID, hash)
		}
	}
	return true, nil
}

func (s *SQLiteStore) ChangePassword(ctx context.Context, userID, newPassword string) error {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.updateOne(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, userID)
}

func (s *SQLiteStore) SavePendingVerification(ctx context.Context, userID string, p dualAuth.PendingVerification) error {
	return s.updateOne(ctx,
		`UPDATE users SET otp = ?, otp_expires = ?, offline_code_hash = ?, offline_code_expires = ? WHERE id = ?`,
		p.OTP, toUnixMilli(p.OTPExpires), p.OfflineCodeHash, toUnixMilli(p.OfflineCodeExpires), userID)
}

func (s *SQLiteStore) ClearPendingVerification(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET otp = '', otp_expires = 0, offline_code_hash = '', offline_code_expires = 0 WHERE id = ?`, userID)
	return err
}

// ConsumePendingVerification clears the codes in one conditional UPDATE, so
// only the first of two concurrent callers sees true.
func (s *SQLiteStore) ConsumePendingVerification(ctx context.Context, userID string, seen dualAuth.PendingVerification) (bool, error) {
	if seen.Empty() {
		return false, nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET otp = '', otp_expires = 0, offline_code_hash = '', offline_code_expires = 0
		 WHERE id = ? AND otp = ? AND otp_expires = ? AND offline_code_hash = ? AND offline_code_expires = ?`,
		userID, seen.OTP, toUnixMilli(seen.OTPExpires), seen.OfflineCodeHash, toUnixMilli(seen.OfflineCodeExpires))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, account dualAuth.NewAccount) (*dualAuth.User, error) {
	hash, err := s.hasher.Hash(account.Password)
	if err != nil {
		return nil, err
	}
	role := account.Role
	if role == "" {
		role = "user"
	}
	u := &dualAuth.User{
		ID:    uuid.NewString(),
		Email: strings.TrimSpace(account.Email),
		Name:  account.Name,
		Role:  role,
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, role, password_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.Role, hash, time.Now().UnixMilli())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, dualAuth.ErrAccountExists
		}
		return nil, err
	}
	return u, nil
}

// Delete removes a user row.
func (s *SQLiteStore) Delete(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	return err
}

// Count returns the number of stored users.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return dualAuth.ErrUserNotFound
	}
	return nil
}

func toUnixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
