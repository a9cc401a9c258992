// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fuseforge/fuseforge/internal/store"
)

// exec runs a statement on the transaction carried by ctx when present,
// falling back to the pool otherwise. Mint operations join the fusion
// transaction this way.
func exec(ctx context.Context, pool poolIface, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx, ok := store.TxFromContext(ctx); ok {
		return tx.Exec(ctx, sql, args...)
	}
	return pool.Exec(ctx, sql, args...)
}
