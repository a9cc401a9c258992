// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

// Package auth provides account identity, credential, and session primitives.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/samber/oops"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2-HMAC-SHA256 parameters. Fixed: no per-call tuning.
const (
	pbkdf2Iterations = 100_000
	pbkdf2SaltLen    = 16 // salt length in bytes
	pbkdf2KeyLen     = 32 // derived key length in bytes
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// HashedCredential is a salted one-way digest of a password.
// Salt and Digest are hex text, stored verbatim and never decrypted.
type HashedCredential struct {
	Salt   string
	Digest string
}

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted PBKDF2 credential for the password.
	Hash(password string) (HashedCredential, error)

	// Verify checks if the password matches the credential.
	// Returns (true, nil) on match, (false, nil) on mismatch, or an error
	// when the stored credential is corrupt.
	Verify(password string, cred HashedCredential) (bool, error)
}

// PBKDF2Hasher implements PasswordHasher using PBKDF2-HMAC-SHA256.
type PBKDF2Hasher struct{}

// NewPBKDF2Hasher creates a new PBKDF2Hasher.
func NewPBKDF2Hasher() *PBKDF2Hasher {
	return &PBKDF2Hasher{}
}

// Hash produces a salted PBKDF2 credential for the password.
func (h *PBKDF2Hasher) Hash(password string) (HashedCredential, error) {
	if password == "" {
		return HashedCredential{}, ErrEmptyPassword
	}

	salt := make([]byte, pbkdf2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return HashedCredential{}, oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	digest := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)

	return HashedCredential{
		Salt:   hex.EncodeToString(salt),
		Digest: hex.EncodeToString(digest),
	}, nil
}

// Verify re-derives the digest with the stored salt and compares it in
// constant time. A credential whose salt or digest is not valid hex is
// treated as a corrupted record, fatal to this single lookup.
func (h *PBKDF2Hasher) Verify(password string, cred HashedCredential) (bool, error) {
	salt, err := hex.DecodeString(cred.Salt)
	if err != nil {
		return false, oops.Code("AUTH_CORRUPT_CREDENTIAL").
			With("field", "salt").
			Wrap(err)
	}

	expected, err := hex.DecodeString(cred.Digest)
	if err != nil {
		return false, oops.Code("AUTH_CORRUPT_CREDENTIAL").
			With("field", "digest").
			Wrap(err)
	}

	computed := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, len(expected), sha256.New)

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// Compile-time interface check.
var _ PasswordHasher = (*PBKDF2Hasher)(nil)
