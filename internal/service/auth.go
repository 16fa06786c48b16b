package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/travel-availability/internal/model"
	"github.com/iliyamo/travel-availability/internal/repository"
	"github.com/iliyamo/travel-availability/internal/utils"
)

// Auth failures surfaced to handlers.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrAdminRequired      = errors.New("admin access required")
	ErrEmailTaken         = errors.New("user already exists with this email")
)

// UserStore is the user persistence used by AuthService and the guard.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// AuthService registers users, issues tokens and revokes them.
type AuthService struct {
	users      UserStore
	issuer     *utils.TokenIssuer
	blacklist  *TokenBlacklist
	bcryptCost int
}

func NewAuthService(users UserStore, issuer *utils.TokenIssuer, blacklist *TokenBlacklist, bcryptCost int) *AuthService {
	return &AuthService{users: users, issuer: issuer, blacklist: blacklist, bcryptCost: bcryptCost}
}

// Register creates an active standard user.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		RoleID:       model.RoleUser,
		Status:       model.StatusActive,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return u, nil
}

// Login checks credentials and issues a token for scope.  Admin scope
// tokens are only handed to users holding the admin role.
func (s *AuthService) Login(ctx context.Context, email, password string, scope utils.Scope) (*model.User, utils.AccessToken, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			utils.BurnPasswordCheck(password)
			return nil, utils.AccessToken{}, ErrInvalidCredentials
		}
		return nil, utils.AccessToken{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, utils.AccessToken{}, ErrInvalidCredentials
	}
	if !u.IsActive() {
		return nil, utils.AccessToken{}, ErrAccountInactive
	}
	if scope == utils.ScopeAdmin && !u.IsAdmin() {
		return nil, utils.AccessToken{}, ErrAdminRequired
	}
	tok, err := s.issuer.Issue(u.ID, scope)
	if err != nil {
		return nil, utils.AccessToken{}, err
	}
	return u, tok, nil
}

// Logout blacklists token until its own expiry.
func (s *AuthService) Logout(ctx context.Context, token string, expiresAt time.Time) error {
	return s.blacklist.Add(ctx, token, expiresAt)
}
