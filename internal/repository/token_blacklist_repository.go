package repository

import (
	"context"
	"database/sql"
	"time"
)

// TokenBlacklistRepo persists revoked access tokens.  Rows are keyed by
// the SHA-256 hex of the token ('token_hash', unique).
type TokenBlacklistRepo struct{ DB *sql.DB }

func NewTokenBlacklistRepo(db *sql.DB) *TokenBlacklistRepo { return &TokenBlacklistRepo{DB: db} }

// Add inserts a blacklist row.  A hash that is already present is not an
// error.
func (r *TokenBlacklistRepo) Add(ctx context.Context, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO token_blacklist (token_hash, expires_at) VALUES (?,?)",
		tokenHash, exp)
	if err != nil && isDuplicateKey(err) {
		return nil
	}
	return err
}

// Exists reports whether tokenHash has been blacklisted.
func (r *TokenBlacklistRepo) Exists(ctx context.Context, tokenHash string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM token_blacklist WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteExpired removes rows whose token expired before now and returns
// how many were removed.
func (r *TokenBlacklistRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM token_blacklist WHERE expires_at < ?",
		now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
