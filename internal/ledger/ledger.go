// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

// Package ledger provides the append-only real-money currency ledger.
package ledger

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Entry is a single signed-amount ledger row. Entries are append-only:
// never updated, never deleted. An account's balance is always the sum of
// its entries — balance is never stored as mutable state, which removes
// lost-update races on concurrent credits and debits.
type Entry struct {
	ID          ulid.ULID
	AccountID   ulid.ULID
	AmountCents int64
	CreatedAt   time.Time
}

// EntryRepository manages ledger entry persistence.
type EntryRepository interface {
	// Append stores a new entry.
	Append(ctx context.Context, entry *Entry) error

	// SumByAccount returns the sum of all entry amounts for the account.
	// An account with no entries sums to zero.
	SumByAccount(ctx context.Context, accountID ulid.ULID) (int64, error)

	// ListByAccount returns all entries for the account, oldest first.
	ListByAccount(ctx context.Context, accountID ulid.ULID) ([]*Entry, error)
}

// Service provides ledger operations.
type Service struct {
	entries EntryRepository
}

// NewService creates a ledger Service.
func NewService(entries EntryRepository) (*Service, error) {
	if entries == nil {
		return nil, oops.Errorf("entries repository is required")
	}
	return &Service{entries: entries}, nil
}

// Credit appends a positive entry for the account.
func (s *Service) Credit(ctx context.Context, accountID ulid.ULID, amountCents int64) error {
	if amountCents <= 0 {
		return oops.Code("LEDGER_INVALID_AMOUNT").
			With("amount_cents", amountCents).
			Errorf("credit amount must be positive")
	}
	return s.append(ctx, accountID, amountCents)
}

// Debit appends a negative entry for the account.
func (s *Service) Debit(ctx context.Context, accountID ulid.ULID, amountCents int64) error {
	if amountCents <= 0 {
		return oops.Code("LEDGER_INVALID_AMOUNT").
			With("amount_cents", amountCents).
			Errorf("debit amount must be positive")
	}
	return s.append(ctx, accountID, -amountCents)
}

// Balance returns the sum of the account's entries. An account with no
// entries has a zero balance: a valid but never-funded account is
// indistinguishable from one whose entries cancel out.
func (s *Service) Balance(ctx context.Context, accountID ulid.ULID) (int64, error) {
	sum, err := s.entries.SumByAccount(ctx, accountID)
	if err != nil {
		return 0, oops.Code("LEDGER_BALANCE_FAILED").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return sum, nil
}

func (s *Service) append(ctx context.Context, accountID ulid.ULID, signedAmount int64) error {
	entry := &Entry{
		ID:          ulid.Make(),
		AccountID:   accountID,
		AmountCents: signedAmount,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.entries.Append(ctx, entry); err != nil {
		return oops.Code("LEDGER_APPEND_FAILED").
			With("account_id", accountID.String()).
			With("amount_cents", signedAmount).
			Wrap(err)
	}
	return nil
}
