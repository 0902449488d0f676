package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers every reason a token cannot be trusted: bad
// signature, wrong algorithm, expired, malformed or missing claims.
var ErrInvalidToken = errors.New("invalid token")

// Identity is what a token asserts about its bearer.
type Identity struct {
	UserID    uuid.UUID
	TenantID  uuid.UUID
	Email     string
	Role      string
	Name      string
	AvatarURL *string
}

// Claims is the JWT payload. RegisteredClaims.ID carries the jti used for
// revocation.
type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Name      string    `json:"name"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() Identity {
	return Identity{
		UserID:    c.UserID,
		TenantID:  c.TenantID,
		Email:     c.Email,
		Role:      c.Role,
		Name:      c.Name,
		AvatarURL: c.AvatarURL,
	}
}

// Signer issues and verifies bearer tokens.
type Signer interface {
	Issue(id Identity) (string, *Claims, error)
	Verify(token string) (*Claims, error)
}

// TokenService signs HS256 tokens with a shared secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration, issuer string) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}
}

func (s *TokenService) Issue(id Identity) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		UserID:    id.UserID,
		TenantID:  id.TenantID,
		Email:     id.Email,
		Role:      id.Role,
		Name:      id.Name,
		AvatarURL: id.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UserID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			// Only HMAC; anything else ("none", RSA with our secret as a
			// public key) is an algorithm-confusion attempt.
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == uuid.Nil || claims.TenantID == uuid.Nil || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
