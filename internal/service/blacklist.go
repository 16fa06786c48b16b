package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/travel-availability/internal/utils"
)

// BlacklistStore persists token hashes.  *repository.TokenBlacklistRepo
// satisfies it.
type BlacklistStore interface {
	Add(ctx context.Context, tokenHash string, exp time.Time) error
	Exists(ctx context.Context, tokenHash string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// TokenBlacklist invalidates access tokens before their natural expiry.
// Tokens are stored by their SHA-256 digest, never verbatim.
type TokenBlacklist struct {
	store BlacklistStore
	now   func() time.Time
}

func NewTokenBlacklist(store BlacklistStore) *TokenBlacklist {
	return &TokenBlacklist{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the time source used by CleanExpired.
func (b *TokenBlacklist) WithClock(now func() time.Time) *TokenBlacklist {
	b.now = now
	return b
}

// Add blacklists token until expiresAt.  Adding the same token twice is
// a no-op.
func (b *TokenBlacklist) Add(ctx context.Context, token string, expiresAt time.Time) error {
	if token == "" {
		return errors.New("blacklist: empty token")
	}
	return b.store.Add(ctx, utils.HashToken(token), expiresAt.UTC())
}

// IsBlacklisted reports whether token was added and not yet swept.
func (b *TokenBlacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	return b.store.Exists(ctx, utils.HashToken(token))
}

// CleanExpired removes entries whose token has expired on its own and
// returns how many were removed.
func (b *TokenBlacklist) CleanExpired(ctx context.Context) (int64, error) {
	return b.store.DeleteExpired(ctx, b.now())
}
