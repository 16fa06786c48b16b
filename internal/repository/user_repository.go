package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/travel-availability/internal/model"
)

const userColumns = "id,name,email,password_hash,role_id,status,created_at,updated_at"

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NormalizeEmail lower-cases and trims an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts u (PasswordHash already set) and fills ID and timestamps.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = NormalizeEmail(u.Email)
	if u.Status == "" {
		u.Status = model.StatusActive
	}
	if u.RoleID == 0 {
		u.RoleID = model.RoleUser
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, role_id, status) VALUES (?,?,?,?,?)",
		u.Name, u.Email, u.PasswordHash, u.RoleID, u.Status)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	fresh, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*u = *fresh
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (*model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx, q, arg).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.RoleID, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}
