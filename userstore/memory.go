package userstore

import (
	"context"
	"strings"
	"sync"

	dualAuth "github.com/MrEthical07/dualAuth"
	"github.com/MrEthical07/dualAuth/password"
	"github.com/google/uuid"
)

type record struct {
	user dualAuth.User
	hash string
}

// MemoryStore keeps users in a map keyed by id. Emails are unique and
// matched case-insensitively.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*record
	byEmail map[string]string
	hasher  *password.Argon2
}

// NewMemoryStore returns an empty store. A nil hasher uses
// password.DefaultConfig.
func NewMemoryStore(hasher *password.Argon2) (*MemoryStore, error) {
	if hasher == nil {
		h, err := password.NewArgon2(password.DefaultConfig())
		if err != nil {
			return nil, err
		}
		hasher = h
	}
	return &MemoryStore{
		byID:    make(map[string]*record),
		byEmail: make(map[string]string),
		hasher:  hasher,
	}, nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *MemoryStore) GetUserByID(_ context.Context, userID string) (*dualAuth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[userID]
	if !ok {
		return nil, dualAuth.ErrUserNotFound
	}
	u := rec.user
	return &u, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*dualAuth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, dualAuth.ErrUserNotFound
	}
	u := s.byID[id].user
	return &u, nil
}

func (s *MemoryStore) VerifyPassword(_ context.Context, user *dualAuth.User, pw string) (bool, error) {
	s.mu.RLock()
	rec, ok := s.byID[user.ID]
	var hash string
	if ok {
		hash = rec.hash
	}
	hasher := s.hasher
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	match, err := hasher.Verify(pw, hash)
	if err != nil || !match {
		return match, err
	}
	if stale, _ := hasher.NeedsUpgrade(hash); stale {
		if fresh, err := hasher.Hash(pw); err == nil {
			s.mu.Lock()
			if rec, ok := s.byID[user.ID]; ok && rec.hash == hash {
				rec.hash = fresh
			}
			s.mu.Unlock()
		}
	}
	return true, nil
}

// WithHasher swaps the hasher used for new hashes. Existing hashes keep
// verifying and are upgraded on the next successful VerifyPassword.
func (s *MemoryStore) WithHasher(h *password.Argon2) *MemoryStore {
	s.mu.Lock()
	s.hasher = h
	s.mu.Unlock()
	return s
}

func (s *MemoryStore) currentHasher() *password.Argon2 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasher
}

func (s *MemoryStore) ChangePassword(_ context.Context, userID, newPassword string) error {
	hash, err := s.currentHasher().Hash(newPassword)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[userID]
	if !ok {
		return dualAuth.ErrUserNotFound
	}
	rec.hash = hash
	return nil
}

func (s *MemoryStore) SavePendingVerification(_ context.Context, userID string, pending dualAuth.PendingVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[userID]
	if !ok {
		return dualAuth.ErrUserNotFound
	}
	rec.user.Pending = pending
	return nil
}

func (s *MemoryStore) ClearPendingVerification(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.byID[userID]; ok {
		rec.user.Pending = dualAuth.PendingVerification{}
	}
	return nil
}

// ConsumePendingVerification clears the user's codes if they still equal seen.
func (s *MemoryStore) ConsumePendingVerification(_ context.Context, userID string, seen dualAuth.PendingVerification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[userID]
	if !ok || seen.Empty() || !samePending(rec.user.Pending, seen) {
		return false, nil
	}
	rec.user.Pending = dualAuth.PendingVerification{}
	return true, nil
}

func samePending(a, b dualAuth.PendingVerification) bool {
	return a.OTP == b.OTP && a.OfflineCodeHash == b.OfflineCodeHash &&
		a.OTPExpires.Equal(b.OTPExpires) && a.OfflineCodeExpires.Equal(b.OfflineCodeExpires)
}

// CreateUser stores a new user with a random id. Role defaults to "user".
func (s *MemoryStore) CreateUser(_ context.Context, account dualAuth.NewAccount) (*dualAuth.User, error) {
	hash, err := s.currentHasher().Hash(account.Password)
	if err != nil {
		return nil, err
	}
	key := emailKey(account.Email)
	role := account.Role
	if role == "" {
		role = "user"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[key]; exists {
		return nil, dualAuth.ErrAccountExists
	}
	rec := &record{
		user: dualAuth.User{
			ID:    uuid.NewString(),
			Email: strings.TrimSpace(account.Email),
			Name:  account.Name,
			Role:  role,
		},
		hash: hash,
	}
	s.byID[rec.user.ID] = rec
	s.byEmail[key] = rec.user.ID

	u := rec.user
	return &u, nil
}

// Delete removes a user. Deleting an unknown id is a no-op.
func (s *MemoryStore) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.byID[userID]; ok {
		delete(s.byEmail, emailKey(rec.user.Email))
		delete(s.byID, userID)
	}
}
