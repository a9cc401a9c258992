// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

// Package collection provides the persisted snapshot of a player's
// currency, roster, and active team.
package collection

import (
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fuseforge/fuseforge/internal/catalog"
)

// TeamSize is the fixed number of team slots.
const TeamSize = 5

// ErrNotFound is returned when a save or owned character does not exist.
var ErrNotFound = errors.New("not found")

// SpriteRefs point at the rendered sprite sheets for a character.
type SpriteRefs struct {
	Default     string `json:"default"`
	Spinning    string `json:"spinning"`
	BattleLeft  string `json:"battle_left"`
	BattleRight string `json:"battle_right"`
}

// OwnedCharacter is one entry of a player's collection. The Key joins
// ownership checks to the stored roster and is unique within a save;
// entries whose count reaches zero are removed, never zeroed and kept.
type OwnedCharacter struct {
	Key        string         `json:"key"`
	Name       string         `json:"name"`
	Rarity     catalog.Rarity `json:"rarity"`
	Sprites    SpriteRefs     `json:"sprites"`
	Stats      catalog.Stats  `json:"stats"`
	Moves      []catalog.Move `json:"moves"`
	Count      int            `json:"count"`
	ObtainedAt time.Time      `json:"obtained_at"`
}

// CollectionKey derives the key for a name/rarity pair.
func CollectionKey(name string, rarity catalog.Rarity) string {
	return name + "-" + string(rarity)
}

// GameSave is the full persisted snapshot for one account. One save per
// account, written with upsert semantics.
type GameSave struct {
	AccountID  ulid.ULID
	Gold       int64
	Collection []OwnedCharacter
	Team       [TeamSize]*string // collection keys, nil = empty slot
	UpdatedAt  time.Time
}

// StartingGold is the gold balance of a brand-new save.
const StartingGold = 100

// NewStartingSave builds the default starting state for an account that
// has never saved: starting gold, empty roster, empty team.
func NewStartingSave(accountID ulid.ULID) *GameSave {
	return &GameSave{
		AccountID: accountID,
		Gold:      StartingGold,
	}
}

// Find returns a pointer to the first entry with the given key, or nil.
func (s *GameSave) Find(key string) *OwnedCharacter {
	for i := range s.Collection {
		if s.Collection[i].Key == key {
			return &s.Collection[i]
		}
	}
	return nil
}
