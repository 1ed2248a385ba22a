package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/congo-pay/congo_points/internal/account"
)

var (
	// ErrInvalidToken is returned for tokens that fail verification or carry
	// a malformed subject.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrMissingSecret is returned when signing is attempted without a key.
	ErrMissingSecret = errors.New("auth: signing secret not configured")
)

// Issuer is the value of the iss claim on every token this package signs.
const Issuer = "congo_points"

// Tokens signs and verifies HS256 access tokens whose subject is the SS58
// address of the calling account.
type Tokens struct {
	secret []byte
	now    func() time.Time
}

// NewTokens builds a signer with the given secret.
func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret), now: time.Now}
}

// Sign issues a token for id that expires after ttl.
func (t *Tokens) Sign(id account.ID, ttl time.Duration) (string, error) {
	if len(t.secret) == 0 {
		return "", ErrMissingSecret
	}
	now := t.now()
	claims := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   id.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies token and returns the account it was issued for.
func (t *Tokens) Parse(token string) (account.ID, error) {
	if len(t.secret) == 0 {
		return account.ID{}, ErrMissingSecret
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return account.ID{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id, err := account.Parse(claims.Subject)
	if err != nil {
		return account.ID{}, fmt.Errorf("%w: subject: %v", ErrInvalidToken, err)
	}
	return id, nil
}
