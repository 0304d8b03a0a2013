package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the fixed session length. There is no server-side
// revocation: a token stays valid until it expires or the signing secret
// is rotated.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Claims are the identity facts embedded in a session token.
type Claims struct {
	CPF  string  `json:"cpf"`
	Role RoleTag `json:"nivel"`
	jwt.RegisteredClaims
}

// IdentityID returns the subject claim.
func (c *Claims) IdentityID() string { return c.Subject }

// TokenConfig carries everything the token service needs. The secret is
// injected explicitly so tests can isolate themselves with distinct
// secrets instead of sharing ambient process state.
type TokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

// TokenService issues and verifies signed session tokens. Verification is
// pure computation; the service never touches storage.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService validates the config and constructs the service.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("auth: token secret is required")
	}
	svc := &TokenService{
		secret: []byte(cfg.Secret),
		issuer: strings.TrimSpace(cfg.Issuer),
		ttl:    cfg.TTL,
		now:    cfg.Now,
	}
	if svc.ttl <= 0 {
		svc.ttl = DefaultTokenTTL
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// Issue signs a token for the identity using HS256.
func (t *TokenService) Issue(identityID, cpf string, role RoleTag) (string, time.Time, error) {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return "", time.Time{}, errors.New("auth: identity id is required")
	}
	now := t.now().UTC()
	expiresAt := now.Add(t.ttl)
	claims := Claims{
		CPF:  cpf,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   identityID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks signature and expiry and returns the claims. Every
// failure mode maps to ErrInvalidToken so the caller cannot build an
// oracle distinguishing expired from tampered from malformed.
func (t *TokenService) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	if t.issuer != "" && claims.Issuer != t.issuer {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ExtractBearerToken parses an Authorization header. Anything other than
// exactly "Bearer <token>" yields false: missing header, another scheme,
// extra segments.
func ExtractBearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
