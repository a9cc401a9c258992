// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

// Package postgres implements collection repositories using PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/fuseforge/fuseforge/internal/collection"
	"github.com/fuseforge/fuseforge/internal/store"
)

// poolIface is the subset of pgxpool.Pool used by the repository.
// It allows substituting pgxmock in unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SaveRepository implements collection.SaveRepository using PostgreSQL.
// Saves are stored as one row per account with the collection and team
// serialized to JSONB.
type SaveRepository struct {
	pool poolIface
}

// NewSaveRepository creates a new SaveRepository.
func NewSaveRepository(pool poolIface) *SaveRepository {
	return &SaveRepository{pool: pool}
}

var _ collection.SaveRepository = (*SaveRepository)(nil)

// Get retrieves the save for an account.
func (r *SaveRepository) Get(ctx context.Context, accountID ulid.ULID) (*collection.GameSave, error) {
	var q interface {
		QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	} = r.pool
	if tx, ok := store.TxFromContext(ctx); ok {
		q = tx
	}

	var (
		gold           int64
		collectionJSON []byte
		teamJSON       []byte
		save           collection.GameSave
	)
	err := q.QueryRow(ctx, `
		SELECT gold, collection, team, updated_at
		FROM game_saves
		WHERE account_id = $1
	`, accountID.String()).Scan(&gold, &collectionJSON, &teamJSON, &save.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SAVE_NOT_FOUND").
			With("account_id", accountID.String()).
			Wrap(collection.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SAVE_GET_FAILED").
			With("account_id", accountID.String()).
			Wrap(err)
	}

	save.AccountID = accountID
	save.Gold = gold
	if err := json.Unmarshal(collectionJSON, &save.Collection); err != nil {
		return nil, oops.Code("SAVE_CORRUPT").
			With("account_id", accountID.String()).
			With("field", "collection").
			Wrap(err)
	}
	if err := json.Unmarshal(teamJSON, &save.Team); err != nil {
		return nil, oops.Code("SAVE_CORRUPT").
			With("account_id", accountID.String()).
			With("field", "team").
			Wrap(err)
	}
	return &save, nil
}

// Upsert writes the full snapshot, creating or replacing the row. When the
// context carries an open transaction the write joins it.
func (r *SaveRepository) Upsert(ctx context.Context, save *collection.GameSave) error {
	collectionJSON, err := json.Marshal(save.Collection)
	if err != nil {
		return oops.Code("SAVE_UPSERT_FAILED").
			With("operation", "marshal collection").
			Wrap(err)
	}
	teamJSON, err := json.Marshal(save.Team)
	if err != nil {
		return oops.Code("SAVE_UPSERT_FAILED").
			With("operation", "marshal team").
			Wrap(err)
	}

	var exec interface {
		Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	} = r.pool
	if tx, ok := store.TxFromContext(ctx); ok {
		exec = tx
	}

	_, err = exec.Exec(ctx, `
		INSERT INTO game_saves (account_id, gold, collection, team, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id) DO UPDATE
		SET gold = EXCLUDED.gold,
		    collection = EXCLUDED.collection,
		    team = EXCLUDED.team,
		    updated_at = EXCLUDED.updated_at
	`, save.AccountID.String(), save.Gold, collectionJSON, teamJSON, save.UpdatedAt)
	if err != nil {
		return oops.Code("SAVE_UPSERT_FAILED").
			With("account_id", save.AccountID.String()).
			Wrap(err)
	}
	return nil
}
