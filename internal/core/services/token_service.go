package services

import (
	"errors"
	"time"

	"c5isr-identity/internal/core/domain"
	"c5isr-identity/internal/pkg/jwt"
)

// TokenTypeBearer is the only token type issued
const TokenTypeBearer = "bearer"

// IssuedToken is a freshly minted access token
type IssuedToken struct {
	AccessToken string               `json:"access_token"`
	TokenType   string               `json:"token_type"`
	ExpiresIn   int                  `json:"expires_in"`
	Claims      *domain.AccessClaims `json:"-"`
}

// TokenService issues and verifies access tokens at two capability levels:
// password (legacy single step) and mfa (full two-step flow)
type TokenService struct {
	signer *jwt.Signer
	ttl    time.Duration
}

// NewTokenService creates a new token issuer
func NewTokenService(signer *jwt.Signer, ttl time.Duration) *TokenService {
	return &TokenService{signer: signer, ttl: ttl}
}

// TTL returns the token lifetime
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue mints a token carrying the identity's role and clearance
func (s *TokenService) Issue(identity *domain.Identity, level domain.AuthLevel) (*IssuedToken, error) {
	if !level.Valid() {
		return nil, domain.ErrInvalidInput
	}

	signed, claims, err := s.signer.GenerateAccessToken(
		identity.Username,
		string(identity.Role),
		identity.Clearance.String(),
		string(level),
		s.ttl,
	)
	if err != nil {
		return nil, err
	}

	access, err := toAccessClaims(claims)
	if err != nil {
		return nil, err
	}

	return &IssuedToken{
		AccessToken: signed,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int(s.ttl.Seconds()),
		Claims:      access,
	}, nil
}

// Verify checks signature and expiry. There is no revocation lookup.
func (s *TokenService) Verify(token string) (*domain.AccessClaims, error) {
	claims, err := s.signer.ValidateAccessToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}
	return toAccessClaims(claims)
}

// toAccessClaims rejects tokens whose claims fall outside the closed enums
func toAccessClaims(c *jwt.Claims) (*domain.AccessClaims, error) {
	role, err := domain.ParseRole(c.Role)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}
	clearance, err := domain.ParseClearance(c.Clearance)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}
	level := domain.AuthLevel(c.AuthLevel)
	if !level.Valid() || c.Subject == "" || c.ExpiresAt == nil {
		return nil, domain.ErrTokenInvalid
	}

	return &domain.AccessClaims{
		Subject:   c.Subject,
		Role:      role,
		Clearance: clearance,
		AuthLevel: level,
		TokenID:   c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
