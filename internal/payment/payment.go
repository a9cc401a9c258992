// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

// Package payment records confirmed deposits against the real-money
// ledger.
package payment

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/fuseforge/fuseforge/internal/auth"
)

// Ledger is the balance side of a confirmed deposit.
type Ledger interface {
	Credit(ctx context.Context, accountID ulid.ULID, amountCents int64) error
}

// AccountResolver maps a username to its account id.
type AccountResolver interface {
	LookupID(ctx context.Context, username string) (ulid.ULID, error)
}

// Service confirms deposits. The transaction id is recorded for audit
// but not verified against a payment provider; the caller vouches for it.
type Service struct {
	accounts AccountResolver
	ledger   Ledger
	logger   *slog.Logger
}

// NewService creates a payment Service.
func NewService(accounts AccountResolver, ledger Ledger, logger *slog.Logger) (*Service, error) {
	if accounts == nil || ledger == nil || logger == nil {
		return nil, oops.Errorf("accounts, ledger, and logger are required")
	}
	return &Service{accounts: accounts, ledger: ledger, logger: logger}, nil
}

// Confirm credits a deposit to the named account.
func (s *Service) Confirm(ctx context.Context, username string, amountCents int64, transactionID string) error {
	if amountCents <= 0 {
		return oops.Code("PAYMENT_INVALID_AMOUNT").
			With("amount_cents", amountCents).
			Errorf("deposit amount must be positive")
	}
	if transactionID == "" {
		return oops.Code("PAYMENT_MISSING_TRANSACTION").
			Errorf("transaction id is required")
	}

	accountID, err := s.accounts.LookupID(ctx, username)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return oops.Code("PAYMENT_UNKNOWN_ACCOUNT").
				With("username", username).
				Wrap(err)
		}
		return oops.Code("PAYMENT_LOOKUP_FAILED").Wrap(err)
	}

	if err := s.ledger.Credit(ctx, accountID, amountCents); err != nil {
		return oops.Code("PAYMENT_CREDIT_FAILED").
			With("account_id", accountID.String()).
			With("transaction_id", transactionID).
			Wrap(err)
	}

	s.logger.Info("deposit confirmed",
		"account_id", accountID.String(),
		"amount_cents", amountCents,
		"transaction_id", transactionID)
	return nil
}
