package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/sha256" // SHA‑256 hashing for blacklist keys
	"encoding/hex"  // hex encoding of digests
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"
)

// Scope is the authorization tier a token was minted for.  Each scope has
// its own signing secret, so a token is only ever valid for the scope
// whose secret produced it.
type Scope string

const (
	ScopeUser  Scope = "user"
	ScopeAdmin Scope = "admin"
)

var (
	// ErrTokenExpired is returned by Parse when the signature is good but
	// the exp claim has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers every other verification failure: malformed
	// input, wrong algorithm, wrong secret, missing subject.
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims is the payload carried by access tokens.  The subject holds the
// decimal user id and ID (jti) is a random uuid so two tokens issued in
// the same second never collide in the blacklist.
type Claims struct {
	Scope Scope `json:"scope"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uint64, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrTokenInvalid
	}
	return id, nil
}

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp, identical to the exp claim inside the token.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
	Scope Scope     // scope whose secret signed the token
}

// TokenIssuer mints and verifies HS256 access tokens for both scopes.
type TokenIssuer struct {
	secrets map[Scope][]byte
	ttls    map[Scope]time.Duration
	now     func() time.Time
}

// NewTokenIssuer builds an issuer.  The two secrets must be distinct and
// non-empty; otherwise an admin token could be forged with the user key.
func NewTokenIssuer(userSecret, adminSecret string, userTTL, adminTTL time.Duration) (*TokenIssuer, error) {
	if userSecret == "" || adminSecret == "" {
		return nil, errors.New("token issuer: empty signing secret")
	}
	if userSecret == adminSecret {
		return nil, errors.New("token issuer: user and admin secrets must differ")
	}
	if userTTL <= 0 || adminTTL <= 0 {
		return nil, errors.New("token issuer: ttl must be positive")
	}
	return &TokenIssuer{
		secrets: map[Scope][]byte{ScopeUser: []byte(userSecret), ScopeAdmin: []byte(adminSecret)},
		ttls:    map[Scope]time.Duration{ScopeUser: userTTL, ScopeAdmin: adminTTL},
		now:     time.Now,
	}, nil
}

// WithClock replaces the time source.  Used by tests.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	i.now = now
	return i
}

// Issue builds and signs a token for userID in the given scope.  The
// expiry is embedded as the exp claim so logout can copy it into the
// blacklist without a lookup.
func (i *TokenIssuer) Issue(userID uint64, scope Scope) (AccessToken, error) {
	secret, ok := i.secrets[scope]
	if !ok {
		return AccessToken{}, fmt.Errorf("token issuer: unknown scope %q", scope)
	}
	now := i.now().UTC()
	// JWT NumericDate has second precision; truncate so Exp matches the claim exactly.
	exp := now.Add(i.ttls[scope]).Truncate(time.Second)
	claims := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp, Scope: scope}, nil
}

// Parse verifies raw with the secret of the requested scope.  Expired
// tokens yield ErrTokenExpired; anything else that fails yields
// ErrTokenInvalid.
func (i *TokenIssuer) Parse(raw string, scope Scope) (*Claims, error) {
	secret, ok := i.secrets[scope]
	if !ok {
		return nil, ErrTokenInvalid
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		// Reject anything that is not HMAC before handing out the key.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !tok.Valid || claims.Scope != scope {
		return nil, ErrTokenInvalid
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// HashToken returns the SHA‑256 hash of a raw token as a hex string.
// The blacklist is keyed by this digest so the table never holds a
// usable credential and the unique index stays fixed width.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
