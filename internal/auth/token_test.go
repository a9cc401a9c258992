// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuseforge/fuseforge/internal/auth"
	"github.com/fuseforge/fuseforge/pkg/errutil"
)

var testSecret = []byte("test-signing-secret-0123456789ab")

func TestNewTokenIssuer_EmptySecret(t *testing.T) {
	issuer, err := auth.NewTokenIssuer(nil)
	require.Error(t, err)
	assert.Nil(t, issuer)
}

func TestTokenIssuer_IssueAndVerify(t *testing.T) {
	issuer, err := auth.NewTokenIssuer(testSecret)
	require.NoError(t, err)

	accountID := ulid.Make()
	token, err := issuer.Issue(accountID, "playerone")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, accountID, claims.AccountID)
	assert.Equal(t, "playerone", claims.Username)
	assert.WithinDuration(t, time.Now().Add(auth.SessionTokenExpiry), claims.ExpiresAt, 5*time.Second)
}

func TestTokenIssuer_ExpiryBoundaries(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := issuedAt

	issuer, err := auth.NewTokenIssuerWithClock(testSecret, func() time.Time { return clock })
	require.NoError(t, err)

	token, err := issuer.Issue(ulid.Make(), "playerone")
	require.NoError(t, err)

	t.Run("valid just before expiry", func(t *testing.T) {
		clock = issuedAt.Add(23*time.Hour + 59*time.Minute)
		_, err := issuer.Verify(token)
		require.NoError(t, err)
	})

	t.Run("expired just after expiry", func(t *testing.T) {
		clock = issuedAt.Add(24*time.Hour + 1*time.Minute)
		_, err := issuer.Verify(token)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_EXPIRED")
	})
}

func TestTokenIssuer_Verify_Invalid(t *testing.T) {
	issuer, err := auth.NewTokenIssuer(testSecret)
	require.NoError(t, err)

	t.Run("empty token", func(t *testing.T) {
		_, err := issuer.Verify("")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID")
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := issuer.Verify("not.a.jwt")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID")
	})

	t.Run("token signed with a different secret", func(t *testing.T) {
		other, err := auth.NewTokenIssuer([]byte("rotated-secret-invalidates-all!!"))
		require.NoError(t, err)
		token, err := other.Issue(ulid.Make(), "playerone")
		require.NoError(t, err)

		_, err = issuer.Verify(token)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID")
	})

	t.Run("tampered token", func(t *testing.T) {
		token, err := issuer.Issue(ulid.Make(), "playerone")
		require.NoError(t, err)

		tampered := token[:len(token)-2] + "xx"
		_, err = issuer.Verify(tampered)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID")
	})
}
