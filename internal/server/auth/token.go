// Package auth issues and verifies the signed, time-bounded tokens used by
// the credential workflows: temporary-password redemption and password
// reset.
package auth

import (
	"errors"
	"time"

	"github.com/ateliertech/portal/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Kind discriminates what a token is good for. Verification always checks
// the kind, so a reset token can never redeem a temporary password.
type Kind string

const (
	KindTemporaryPassword Kind = "temporary_password"
	KindPasswordReset     Kind = "password_reset"
	KindAccess            Kind = "access"
)

// Claims — registered claims plus the portal-specific token kind.
// Subject carries the user's e-mail address.
type Claims struct {
	jwt.RegisteredClaims
	Kind Kind `json:"kind"`
}

// Info is the result of verifying a token. Expired tokens still carry their
// subject and kind so callers can report precise errors.
type Info struct {
	SubjectEmail string
	Kind         Kind
	Expired      bool
}

// Service signs and verifies tokens with a shared HMAC secret (HS256).
// Verification is pure: no I/O, no clock injection beyond jwt's own.
type Service struct {
	secret []byte
}

func NewService(secretKey string) *Service {
	return &Service{secret: []byte(secretKey)}
}

// Issue mints a signed token for subjectEmail with the given kind and ttl.
func (s *Service) Issue(subjectEmail string, kind Kind, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectEmail,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind: kind,
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// Verify checks the signature and decodes the claims. A token past its
// expiry is NOT an error here: it comes back with Expired=true so the
// caller can distinguish "expired" from "forged". Any other defect maps to
// common.ErrInvalidToken.
func (s *Service) Verify(tokenString string) (*Info, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return &Info{SubjectEmail: claims.Subject, Kind: claims.Kind, Expired: true}, nil
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return &Info{SubjectEmail: claims.Subject, Kind: claims.Kind}, nil
}
