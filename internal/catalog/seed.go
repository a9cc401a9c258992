// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// baseTemplates is the starting catalog loaded when the table is empty.
func baseTemplates() []*Template {
	now := time.Now().UTC()
	mk := func(name string, rarity Rarity, kind, spriteSet string, stats Stats, moves []Move) *Template {
		return &Template{
			ID:        ulid.Make(),
			Name:      name,
			Rarity:    rarity,
			Type:      kind,
			SpriteSet: spriteSet,
			BaseStats: stats,
			Moves:     moves,
			CreatedAt: now,
		}
	}

	return []*Template{
		mk("KnightValor", RarityCommon, "warrior", "knightvalor",
			Stats{HP: 90, Attack: 12, Defense: 10},
			[]Move{
				{Name: "Slash", Damage: 15, Description: "A quick sword strike"},
				{Name: "Shield Bash", Damage: 12, Description: "Strike with shield"},
			}),
		mk("ForestRanger", RarityCommon, "ranger", "forestranger",
			Stats{HP: 80, Attack: 14, Defense: 7},
			[]Move{
				{Name: "Arrow Shot", Damage: 16, Description: "A precise arrow"},
				{Name: "Quick Step", Damage: 10, Description: "Strike while dodging"},
			}),
		mk("CaveBrute", RarityCommon, "beast", "cavebrute",
			Stats{HP: 75, Attack: 15, Defense: 6},
			[]Move{
				{Name: "Claw", Damage: 14, Description: "Sharp claw attack"},
				{Name: "Bite", Damage: 16, Description: "Vicious bite"},
			}),
		mk("StormMage", RarityRare, "mage", "stormmage",
			Stats{HP: 70, Attack: 20, Defense: 5},
			[]Move{
				{Name: "Lightning Bolt", Damage: 24, Description: "A crackling bolt"},
				{Name: "Static Field", Damage: 14, Description: "A shocking aura"},
			}),
		mk("EmberDrake", RarityEpic, "dragon", "emberdrake",
			Stats{HP: 110, Attack: 22, Defense: 12},
			[]Move{
				{Name: "Flame Breath", Damage: 28, Description: "A cone of fire"},
				{Name: "Tail Sweep", Damage: 18, Description: "A sweeping tail strike"},
			}),
		mk("AuroraPhoenix", RarityLegendary, "mythic", "auroraphoenix",
			Stats{HP: 130, Attack: 26, Defense: 14},
			[]Move{
				{Name: "Solar Flare", Damage: 32, Description: "A blinding burst of light"},
				{Name: "Rebirth Flame", Damage: 20, Description: "Fire that mends its wielder"},
			}),
	}
}

// Seed inserts the base templates when the catalog is empty. Seeding an
// already-populated catalog is a no-op, so it is safe to run on every boot.
func Seed(ctx context.Context, repo TemplateRepository, logger *slog.Logger) error {
	count, err := repo.Count(ctx)
	if err != nil {
		return oops.Code("CATALOG_SEED_FAILED").
			With("operation", "count templates").
			Wrap(err)
	}
	if count > 0 {
		logger.Debug("catalog already seeded", "templates", count)
		return nil
	}

	templates := baseTemplates()
	for _, tpl := range templates {
		if err := repo.Insert(ctx, tpl); err != nil {
			return oops.Code("CATALOG_SEED_FAILED").
				With("operation", "insert template").
				With("name", tpl.Name).
				Wrap(err)
		}
	}

	logger.Info("catalog seeded", "templates", len(templates))
	return nil
}
