// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

package auth_test

import (
	"context"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuseforge/fuseforge/internal/auth"
	"github.com/fuseforge/fuseforge/pkg/errutil"
)

// fakeAccountRepo is an in-memory AccountRepository enforcing the same
// case-insensitive username uniqueness as the real store.
type fakeAccountRepo struct {
	accounts map[string]*auth.Account // keyed by lowercase username
	failWith error
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[string]*auth.Account)}
}

func (r *fakeAccountRepo) Create(_ context.Context, account *auth.Account) error {
	if r.failWith != nil {
		return r.failWith
	}
	key := strings.ToLower(account.Username)
	if _, exists := r.accounts[key]; exists {
		return oops.Code("AUTH_USERNAME_TAKEN").
			With("username", account.Username).
			Errorf("username is already taken")
	}
	copied := *account
	r.accounts[key] = &copied
	return nil
}

func (r *fakeAccountRepo) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	for _, a := range r.accounts {
		if a.ID == id {
			copied := *a
			return &copied, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *fakeAccountRepo) GetByUsername(_ context.Context, username string) (*auth.Account, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	a, ok := r.accounts[strings.ToLower(username)]
	if !ok {
		return nil, auth.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func newDirectory(t *testing.T) (*auth.Directory, *fakeAccountRepo) {
	t.Helper()
	repo := newFakeAccountRepo()
	dir, err := auth.NewDirectory(repo, auth.NewPBKDF2Hasher())
	require.NoError(t, err)
	return dir, repo
}

func TestNewDirectory_NilDependencies(t *testing.T) {
	_, err := auth.NewDirectory(nil, auth.NewPBKDF2Hasher())
	require.Error(t, err)

	_, err = auth.NewDirectory(newFakeAccountRepo(), nil)
	require.Error(t, err)
}

func TestDirectory_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account and hashes password", func(t *testing.T) {
		dir, repo := newDirectory(t)

		id, err := dir.Register(ctx, "playerone", "hunter2hunter2")
		require.NoError(t, err)
		assert.NotEqual(t, ulid.ULID{}, id)

		stored, err := repo.GetByUsername(ctx, "playerone")
		require.NoError(t, err)
		assert.Equal(t, id, stored.ID)
		assert.NotEmpty(t, stored.Credential.Salt)
		assert.NotContains(t, stored.Credential.Digest, "hunter2")
	})

	t.Run("duplicate username yields conflict, first account intact", func(t *testing.T) {
		dir, repo := newDirectory(t)

		firstID, err := dir.Register(ctx, "playerone", "firstpassword")
		require.NoError(t, err)

		_, err = dir.Register(ctx, "playerone", "secondpassword")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_USERNAME_TAKEN")

		stored, err := repo.GetByUsername(ctx, "playerone")
		require.NoError(t, err)
		assert.Equal(t, firstID, stored.ID)

		account, err := dir.Authenticate(ctx, "playerone", "firstpassword")
		require.NoError(t, err)
		assert.Equal(t, firstID, account.ID)
	})

	t.Run("invalid usernames rejected", func(t *testing.T) {
		dir, _ := newDirectory(t)

		for _, username := range []string{"", "ab", "1leading", "has space", strings.Repeat("x", 31)} {
			_, err := dir.Register(ctx, username, "validpassword")
			require.Error(t, err, "username %q", username)
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_USERNAME")
		}
	})
}

func TestDirectory_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials return the account", func(t *testing.T) {
		dir, _ := newDirectory(t)
		id, err := dir.Register(ctx, "playerone", "hunter2hunter2")
		require.NoError(t, err)

		account, err := dir.Authenticate(ctx, "playerone", "hunter2hunter2")
		require.NoError(t, err)
		assert.Equal(t, id, account.ID)
		assert.Equal(t, "playerone", account.Username)
	})

	t.Run("unknown user and wrong password yield the same error", func(t *testing.T) {
		dir, _ := newDirectory(t)
		_, err := dir.Register(ctx, "playerone", "hunter2hunter2")
		require.NoError(t, err)

		_, unknownErr := dir.Authenticate(ctx, "nosuchuser", "hunter2hunter2")
		require.Error(t, unknownErr)
		errutil.AssertErrorCode(t, unknownErr, "AUTH_INVALID_CREDENTIALS")

		_, wrongErr := dir.Authenticate(ctx, "playerone", "wrongpassword")
		require.Error(t, wrongErr)
		errutil.AssertErrorCode(t, wrongErr, "AUTH_INVALID_CREDENTIALS")

		assert.Equal(t, unknownErr.Error(), wrongErr.Error())
	})

	t.Run("repository failure is not masked as bad credentials", func(t *testing.T) {
		dir, repo := newDirectory(t)
		repo.failWith = oops.Errorf("connection refused")

		_, err := dir.Authenticate(ctx, "playerone", "hunter2hunter2")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_LOOKUP_FAILED")
	})
}

func TestDirectory_LookupID(t *testing.T) {
	ctx := context.Background()
	dir, _ := newDirectory(t)

	id, err := dir.Register(ctx, "playerone", "hunter2hunter2")
	require.NoError(t, err)

	t.Run("resolves known username", func(t *testing.T) {
		got, err := dir.LookupID(ctx, "playerone")
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})

	t.Run("unknown username", func(t *testing.T) {
		_, err := dir.LookupID(ctx, "nosuchuser")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_ACCOUNT_NOT_FOUND")
	})
}
