// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// dummyCredential is verified when a username does not exist so that the
// lookup path costs the same as a real verification. The all-zero digest
// can never match a PBKDF2 output derived from a random salt.
var dummyCredential = HashedCredential{
	Salt:   "00000000000000000000000000000000",
	Digest: "0000000000000000000000000000000000000000000000000000000000000000",
}

// Directory maps usernames to account identity and credential records.
type Directory struct {
	accounts AccountRepository
	hasher   PasswordHasher
}

// NewDirectory creates a new Directory.
func NewDirectory(accounts AccountRepository, hasher PasswordHasher) (*Directory, error) {
	if accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	return &Directory{accounts: accounts, hasher: hasher}, nil
}

// Register creates an account for the username and returns its id.
// Uniqueness is enforced by the store's constraint; only a genuine
// unique violation surfaces as AUTH_USERNAME_TAKEN.
func (d *Directory) Register(ctx context.Context, username, password string) (ulid.ULID, error) {
	if err := ValidateUsername(username); err != nil {
		return ulid.ULID{}, err
	}

	cred, err := d.hasher.Hash(password)
	if err != nil {
		return ulid.ULID{}, err
	}

	account := &Account{
		ID:         ulid.Make(),
		Username:   username,
		Credential: cred,
		CreatedAt:  time.Now().UTC(),
	}

	if err := d.accounts.Create(ctx, account); err != nil {
		return ulid.ULID{}, err
	}

	return account.ID, nil
}

// Authenticate verifies a username/password pair and returns the account.
// An unknown username and a wrong password both yield the same
// AUTH_INVALID_CREDENTIALS error to prevent username enumeration, and a
// dummy verification keeps the unknown-username path at the same cost.
func (d *Directory) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	account, lookupErr := d.accounts.GetByUsername(ctx, username)

	var target HashedCredential
	var accountExists bool

	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			target = dummyCredential
			accountExists = false
		} else {
			return nil, oops.Code("AUTH_LOOKUP_FAILED").
				With("operation", "get account by username").
				Wrap(lookupErr)
		}
	} else {
		target = account.Credential
		accountExists = true
	}

	valid, verifyErr := d.hasher.Verify(password, target)
	if verifyErr != nil {
		if !accountExists {
			return nil, invalidCredentials()
		}
		return nil, oops.Code("AUTH_VERIFY_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if !accountExists || !valid {
		return nil, invalidCredentials()
	}

	return account, nil
}

// LookupID resolves a username to an account id. Used by payment callbacks
// that only know a username.
func (d *Directory) LookupID(ctx context.Context, username string) (ulid.ULID, error) {
	account, err := d.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ulid.ULID{}, oops.Code("AUTH_ACCOUNT_NOT_FOUND").
				With("username", username).
				Wrap(ErrNotFound)
		}
		return ulid.ULID{}, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "lookup account id").
			Wrap(err)
	}
	return account.ID, nil
}

func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid username or password")
}
