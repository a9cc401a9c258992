// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

// Package catalog defines character templates: the catalog entries that
// describe a character's base stats and moves, distinct from the instances
// players own.
package catalog

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Rarity is the closed set of character rarities.
type Rarity string

// Known rarities.
const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// IsValid reports whether r is one of the known rarities.
func (r Rarity) IsValid() bool {
	switch r {
	case RarityCommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	}
	return false
}

// Stats are a character's combat attributes.
type Stats struct {
	HP      int `json:"hp"`
	Attack  int `json:"attack"`
	Defense int `json:"defense"`
}

// Move is a single ability a character can use.
type Move struct {
	Name        string `json:"name"`
	Damage      int    `json:"damage"`
	Description string `json:"description,omitempty"`
}

// Template is a catalog entry, one row per known base or fused character.
// Rows are created at bootstrap (seed data) or minted by a fusion.
type Template struct {
	ID        ulid.ULID
	Name      string
	Rarity    Rarity
	Type      string
	SpriteSet string
	BaseStats Stats
	Moves     []Move
	Fused     bool
	CreatedAt time.Time
}

// CollectionKey derives the key joining this template to owned instances.
func (t *Template) CollectionKey() string {
	return t.Name + "-" + string(t.Rarity)
}

// TemplateRepository manages template persistence.
type TemplateRepository interface {
	// Insert stores a new template.
	Insert(ctx context.Context, template *Template) error

	// GetByID retrieves a template by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Template, error)

	// List returns all templates, oldest first.
	List(ctx context.Context) ([]*Template, error)

	// Count returns the number of templates.
	Count(ctx context.Context) (int64, error)
}
