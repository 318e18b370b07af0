package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
	ErrEmptySecret  = errors.New("signing secret is empty")
)

// Claims represents the access token claims
type Claims struct {
	Role      string `json:"role"`
	Clearance string `json:"clearance"`
	AuthLevel string `json:"auth_level"`
	jwt.RegisteredClaims
}

// Signer mints and verifies HS256 access tokens
type Signer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewSigner creates a signer. now is the time source for both issuing and verifying.
func NewSigner(secret, issuer string, now func() time.Time) *Signer {
	if now == nil {
		now = time.Now
	}
	return &Signer{
		secret: []byte(secret),
		issuer: issuer,
		now:    now,
	}
}

// GenerateAccessToken signs a token for subject valid for ttl
func (s *Signer) GenerateAccessToken(subject, role, clearance, authLevel string, ttl time.Duration) (string, *Claims, error) {
	if len(s.secret) == 0 {
		return "", nil, ErrEmptySecret
	}
	now := s.now()
	claims := &Claims{
		Role:      role,
		Clearance: clearance,
		AuthLevel: authLevel,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ValidateAccessToken validates signature, issuer and expiry and returns claims
func (s *Signer) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secret, nil
	},
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrTokenInvalid
}
