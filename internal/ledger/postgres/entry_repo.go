// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

// Package postgres implements ledger repositories using PostgreSQL.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/fuseforge/fuseforge/internal/ledger"
)

// poolIface is the subset of pgxpool.Pool used by the repository.
// It allows substituting pgxmock in unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// EntryRepository implements ledger.EntryRepository using PostgreSQL.
// Inserts are plain appends with no row updates, so concurrent credits
// commute without locking.
type EntryRepository struct {
	pool poolIface
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool poolIface) *EntryRepository {
	return &EntryRepository{pool: pool}
}

// Append stores a new entry.
func (r *EntryRepository) Append(ctx context.Context, entry *ledger.Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO ledger_entries (id, account_id, amount_cents, created_at)
		VALUES ($1, $2, $3, $4)
	`,
		entry.ID.String(),
		entry.AccountID.String(),
		entry.AmountCents,
		entry.CreatedAt,
	)
	if err != nil {
		return oops.Code("LEDGER_INSERT_FAILED").
			With("operation", "insert ledger entry").
			With("account_id", entry.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// SumByAccount returns the sum of all entry amounts for the account.
// COALESCE turns the empty sum into zero.
func (r *EntryRepository) SumByAccount(ctx context.Context, accountID ulid.ULID) (int64, error) {
	var sum int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM ledger_entries
		WHERE account_id = $1
	`, accountID.String()).Scan(&sum)
	if err != nil {
		return 0, oops.Code("LEDGER_SUM_FAILED").
			With("operation", "sum ledger entries").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return sum, nil
}

// ListByAccount returns all entries for the account, oldest first.
func (r *EntryRepository) ListByAccount(ctx context.Context, accountID ulid.ULID) ([]*ledger.Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, amount_cents, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY id
	`, accountID.String())
	if err != nil {
		return nil, oops.Code("LEDGER_LIST_FAILED").
			With("operation", "list ledger entries").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		var (
			idStr        string
			accountIDStr string
			amount       int64
			createdAt    time.Time
		)
		if err := rows.Scan(&idStr, &accountIDStr, &amount, &createdAt); err != nil {
			return nil, oops.Code("LEDGER_SCAN_FAILED").
				With("operation", "scan ledger entry").
				Wrap(err)
		}

		id, err := ulid.Parse(idStr)
		if err != nil {
			return nil, oops.Code("LEDGER_INVALID_ID").
				With("id", idStr).
				Wrap(err)
		}
		entryAccountID, err := ulid.Parse(accountIDStr)
		if err != nil {
			return nil, oops.Code("LEDGER_INVALID_ID").
				With("account_id", accountIDStr).
				Wrap(err)
		}

		entries = append(entries, &ledger.Entry{
			ID:          id,
			AccountID:   entryAccountID,
			AmountCents: amount,
			CreatedAt:   createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("LEDGER_LIST_FAILED").
			With("operation", "iterate ledger entries").
			Wrap(err)
	}
	return entries, nil
}

// Compile-time interface check.
var _ ledger.EntryRepository = (*EntryRepository)(nil)
