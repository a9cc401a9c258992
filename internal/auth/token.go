// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionTokenExpiry is the lifetime of an issued session token.
const SessionTokenExpiry = 24 * time.Hour

// SessionClaims is the validated identity carried by a session token.
// Claims are ephemeral: reconstructed from the token on every request,
// never persisted.
type SessionClaims struct {
	AccountID ulid.ULID
	Username  string
	ExpiresAt time.Time
}

// sessionClaims is the internal claims type used for JWT signing/parsing.
type sessionClaims struct {
	jwt.RegisteredClaims
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
}

// TokenIssuer signs and verifies time-bounded session claims with a single
// symmetric secret. There is no revocation list: a leaked token stays valid
// until natural expiry, and rotating the secret invalidates every
// outstanding token.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer with the given signing secret.
// The secret is injected, never read from process-global state.
func NewTokenIssuer(secret []byte) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, oops.Errorf("signing secret is required")
	}
	return &TokenIssuer{secret: secret, now: time.Now}, nil
}

// NewTokenIssuerWithClock creates a TokenIssuer with an injectable clock.
func NewTokenIssuerWithClock(secret []byte, now func() time.Time) (*TokenIssuer, error) {
	issuer, err := NewTokenIssuer(secret)
	if err != nil {
		return nil, err
	}
	if now != nil {
		issuer.now = now
	}
	return issuer, nil
}

// Issue signs a session token for the account, expiring in SessionTokenExpiry.
func (i *TokenIssuer) Issue(accountID ulid.ULID, username string) (string, error) {
	now := i.now().UTC()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTokenExpiry)),
		},
		AccountID: accountID.String(),
		Username:  username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", oops.Code("SESSION_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Verify parses a session token and checks signature and expiry.
// Expiry is reported as SESSION_EXPIRED, every other defect as
// SESSION_INVALID, so callers can prompt re-login versus reject outright.
func (i *TokenIssuer) Verify(token string) (SessionClaims, error) {
	if token == "" {
		return SessionClaims{}, oops.Code("SESSION_INVALID").Errorf("session token cannot be empty")
	}

	var parsed sessionClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return SessionClaims{}, oops.Code("SESSION_EXPIRED").Errorf("session token has expired")
		}
		return SessionClaims{}, oops.Code("SESSION_INVALID").Errorf("session token is invalid")
	}

	if parsed.ExpiresAt == nil {
		return SessionClaims{}, oops.Code("SESSION_INVALID").Errorf("session token has no expiry")
	}

	accountID, err := ulid.Parse(parsed.AccountID)
	if err != nil {
		return SessionClaims{}, oops.Code("SESSION_INVALID").Errorf("session token carries a malformed account id")
	}

	return SessionClaims{
		AccountID: accountID,
		Username:  parsed.Username,
		ExpiresAt: parsed.ExpiresAt.Time.UTC(),
	}, nil
}
