// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

// Package postgres implements catalog repositories using PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/fuseforge/fuseforge/internal/catalog"
)

// poolIface is the subset of pgxpool.Pool used by the repository.
// It allows substituting pgxmock in unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TemplateRepository implements catalog.TemplateRepository using PostgreSQL.
type TemplateRepository struct {
	pool poolIface
}

// NewTemplateRepository creates a new TemplateRepository.
func NewTemplateRepository(pool poolIface) *TemplateRepository {
	return &TemplateRepository{pool: pool}
}

// Insert stores a new template. When the context carries an open
// transaction the insert joins it, so fusion mints commit atomically with
// the collection mutations.
func (r *TemplateRepository) Insert(ctx context.Context, template *catalog.Template) error {
	movesJSON, err := json.Marshal(template.Moves)
	if err != nil {
		return oops.Code("TEMPLATE_INSERT_FAILED").
			With("operation", "marshal moves").
			Wrap(err)
	}

	_, err = exec(ctx, r.pool, `
		INSERT INTO character_templates (
			id, name, rarity, type, sprite_set,
			base_hp, base_attack, base_defense, moves, fused, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		template.ID.String(),
		template.Name,
		string(template.Rarity),
		template.Type,
		template.SpriteSet,
		template.BaseStats.HP,
		template.BaseStats.Attack,
		template.BaseStats.Defense,
		movesJSON,
		template.Fused,
		template.CreatedAt,
	)
	if err != nil {
		return oops.Code("TEMPLATE_INSERT_FAILED").
			With("operation", "insert template").
			With("name", template.Name).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a template by ID.
func (r *TemplateRepository) GetByID(ctx context.Context, id ulid.ULID) (*catalog.Template, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, rarity, type, sprite_set,
		       base_hp, base_attack, base_defense, moves, fused, created_at
		FROM character_templates
		WHERE id = $1
	`, id.String())

	template, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TEMPLATE_NOT_FOUND").
			With("id", id.String()).
			Wrap(catalog.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TEMPLATE_GET_FAILED").
			With("operation", "get template by id").
			With("id", id.String()).
			Wrap(err)
	}
	return template, nil
}

// List returns all templates, oldest first.
func (r *TemplateRepository) List(ctx context.Context) ([]*catalog.Template, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, rarity, type, sprite_set,
		       base_hp, base_attack, base_defense, moves, fused, created_at
		FROM character_templates
		ORDER BY id
	`)
	if err != nil {
		return nil, oops.Code("TEMPLATE_LIST_FAILED").
			With("operation", "list templates").
			Wrap(err)
	}
	defer rows.Close()

	var templates []*catalog.Template
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, oops.Code("TEMPLATE_LIST_FAILED").
				With("operation", "scan template row").
				Wrap(err)
		}
		templates = append(templates, template)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("TEMPLATE_LIST_FAILED").
			With("operation", "iterate templates").
			Wrap(err)
	}
	return templates, nil
}

// Count returns the number of templates.
func (r *TemplateRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM character_templates`).Scan(&count)
	if err != nil {
		return 0, oops.Code("TEMPLATE_COUNT_FAILED").
			With("operation", "count templates").
			Wrap(err)
	}
	return count, nil
}

// scanTemplate scans a single row into a Template.
// Callers are responsible for handling pgx.ErrNoRows.
func scanTemplate(row pgx.Row) (*catalog.Template, error) {
	var (
		idStr     string
		name      string
		rarity    string
		kind      string
		spriteSet string
		baseHP    int
		baseAtk   int
		baseDef   int
		movesJSON []byte
		fused     bool
		createdAt time.Time
	)

	err := row.Scan(&idStr, &name, &rarity, &kind, &spriteSet,
		&baseHP, &baseAtk, &baseDef, &movesJSON, &fused, &createdAt)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("TEMPLATE_SCAN_FAILED").
			With("operation", "scan template").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("TEMPLATE_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}

	var moves []catalog.Move
	if len(movesJSON) > 0 {
		if err := json.Unmarshal(movesJSON, &moves); err != nil {
			return nil, oops.Code("TEMPLATE_INVALID_MOVES").
				With("operation", "unmarshal moves").
				Wrap(err)
		}
	}

	return &catalog.Template{
		ID:        id,
		Name:      name,
		Rarity:    catalog.Rarity(rarity),
		Type:      kind,
		SpriteSet: spriteSet,
		BaseStats: catalog.Stats{HP: baseHP, Attack: baseAtk, Defense: baseDef},
		Moves:     moves,
		Fused:     fused,
		CreatedAt: createdAt,
	}, nil
}

// Compile-time interface check.
var _ catalog.TemplateRepository = (*TemplateRepository)(nil)
