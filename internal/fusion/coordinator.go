// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

// Package fusion coordinates combining two owned characters into a new
// generated one.
package fusion

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/fuseforge/fuseforge/internal/catalog"
	"github.com/fuseforge/fuseforge/internal/collection"
	"github.com/fuseforge/fuseforge/internal/generator"
)

// ContentGenerator produces raw fused-character content.
type ContentGenerator interface {
	GenerateFusion(ctx context.Context, first, second generator.SourceCharacter) (json.RawMessage, error)
}

// SpriteGenerator produces sprite sheets for a fused character.
type SpriteGenerator interface {
	GenerateSheets(ctx context.Context, spriteSet, description string) (generator.SheetPaths, error)

	// DiscardSheets removes a sprite set written by GenerateSheets.
	DiscardSheets(spriteSet string)
}

// Request identifies the two characters to fuse, by template id. The
// requester must own an instance of each template's collection key.
type Request struct {
	AccountID ulid.ULID
	FirstID   ulid.ULID
	SecondID  ulid.ULID
}

// ConsumedCharacter reports a fusion input and the copies left after it.
type ConsumedCharacter struct {
	Key       string `json:"key"`
	Remaining int    `json:"remaining"`
}

// Result is the outcome of a successful fusion.
type Result struct {
	Fused            FusedCharacter        `json:"fused_character"`
	TemplateID       ulid.ULID             `json:"template_id"`
	Sprites          collection.SpriteRefs `json:"sprites"`
	SpritesGenerated bool                  `json:"sprites_generated"`
	Consumed         []ConsumedCharacter   `json:"consumed_characters"`
}

// Coordinator runs fusions end to end: ownership checks, content
// generation, sprite generation, and the atomic state change that
// consumes the sources and grants the result.
type Coordinator struct {
	templates catalog.TemplateRepository
	saves     *collection.Store
	content   ContentGenerator
	sprites   SpriteGenerator
	tx        collection.Transactor
	logger    *slog.Logger
}

// NewCoordinator creates a Coordinator. The sprite generator may be nil;
// fusions then always fall back to the first source's sprites.
func NewCoordinator(
	templates catalog.TemplateRepository,
	saves *collection.Store,
	content ContentGenerator,
	sprites SpriteGenerator,
	tx collection.Transactor,
	logger *slog.Logger,
) (*Coordinator, error) {
	if templates == nil || saves == nil || content == nil || tx == nil || logger == nil {
		return nil, oops.Errorf("templates, saves, content, tx, and logger are required")
	}
	return &Coordinator{
		templates: templates,
		saves:     saves,
		content:   content,
		sprites:   sprites,
		tx:        tx,
		logger:    logger,
	}, nil
}

// Fuse combines two owned characters. Generation happens before any
// state changes; the consume-and-grant step runs in one transaction, so
// a failure at any point leaves the player's collection untouched.
func (c *Coordinator) Fuse(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	status := StatusError
	defer func() { recordFusion(status, time.Since(start)) }()

	if req.FirstID == req.SecondID {
		status = StatusSameSource
		return nil, oops.Code("FUSION_SAME_SOURCE").
			With("template_id", req.FirstID.String()).
			Errorf("cannot fuse a character with itself")
	}

	firstTpl, err := c.resolveTemplate(ctx, req.FirstID, &status)
	if err != nil {
		return nil, err
	}
	secondTpl, err := c.resolveTemplate(ctx, req.SecondID, &status)
	if err != nil {
		return nil, err
	}

	firstKey := firstTpl.CollectionKey()
	secondKey := secondTpl.CollectionKey()
	// Distinct template ids sharing one collection key would double-consume
	// a single entry; reject them like a self-fuse.
	if firstKey == secondKey {
		status = StatusSameSource
		return nil, oops.Code("FUSION_SAME_SOURCE").
			With("key", firstKey).
			Errorf("cannot fuse a character with itself")
	}

	unlock := c.saves.Lock(req.AccountID)
	defer unlock()

	save, err := c.saves.Load(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, collection.ErrNotFound) {
			status = StatusNotOwned
			return nil, oops.Code("FUSION_NOT_OWNED").
				With("account_id", req.AccountID.String()).
				Wrap(err)
		}
		return nil, err
	}

	first := save.Find(firstKey)
	second := save.Find(secondKey)
	if first == nil || second == nil {
		missing := firstKey
		if first != nil {
			missing = secondKey
		}
		status = StatusNotOwned
		return nil, oops.Code("FUSION_NOT_OWNED").
			With("account_id", req.AccountID.String()).
			With("key", missing).
			Wrap(collection.ErrNotFound)
	}
	// Zero-count entries can reach storage through older client builds;
	// consuming one would mint a character from nothing.
	if first.Count < 1 || second.Count < 1 {
		exhausted := firstKey
		if first.Count >= 1 {
			exhausted = secondKey
		}
		status = StatusInsufficient
		return nil, oops.Code("FUSION_INSUFFICIENT_COUNT").
			With("account_id", req.AccountID.String()).
			With("key", exhausted).
			Errorf("no copies left to consume")
	}

	raw, err := c.content.GenerateFusion(ctx, sourceFor(firstTpl), sourceFor(secondTpl))
	if err != nil {
		status = StatusGenerator
		return nil, err
	}
	fused, err := parsePayload(raw)
	if err != nil {
		status = StatusGenerator
		return nil, err
	}

	templateID := ulid.Make()
	spriteSet := spriteSetName(fused.Name, templateID.String()[20:])
	sprites, generated := c.generateSprites(ctx, spriteSet, fused, first)

	template := &catalog.Template{
		ID:        templateID,
		Name:      fused.Name,
		Rarity:    fused.Rarity,
		Type:      "fusion",
		SpriteSet: spriteSet,
		BaseStats: catalog.Stats{
			HP:      fused.Stats.BaseHP,
			Attack:  fused.Stats.BaseAttack,
			Defense: fused.Stats.BaseDefense,
		},
		Moves:     movesFromAbilities(fused),
		Fused:     true,
		CreatedAt: time.Now().UTC(),
	}

	err = c.tx.InTransaction(ctx, func(txCtx context.Context) error {
		if err := c.templates.Insert(txCtx, template); err != nil {
			return err
		}
		if err := c.saves.SetCountLocked(txCtx, req.AccountID, firstKey, first.Count-1); err != nil {
			return err
		}
		if err := c.saves.SetCountLocked(txCtx, req.AccountID, secondKey, second.Count-1); err != nil {
			return err
		}
		return c.saves.GrantLocked(txCtx, req.AccountID, collection.OwnedCharacter{
			Key:        collection.CollectionKey(fused.Name, fused.Rarity),
			Name:       fused.Name,
			Rarity:     fused.Rarity,
			Sprites:    sprites,
			Stats:      template.BaseStats,
			Moves:      template.Moves,
			Count:      1,
			ObtainedAt: template.CreatedAt,
		})
	})
	if err != nil {
		// Nothing references the sheets once the transaction rolls back.
		if generated {
			c.sprites.DiscardSheets(spriteSet)
		}
		return nil, err
	}

	status = StatusSuccess
	c.logger.Info("fusion completed",
		"account_id", req.AccountID.String(),
		"template_id", templateID.String(),
		"name", fused.Name,
		"rarity", fused.Rarity,
		"sprites_generated", generated)

	return &Result{
		Fused:            *fused,
		TemplateID:       templateID,
		Sprites:          sprites,
		SpritesGenerated: generated,
		Consumed: []ConsumedCharacter{
			{Key: firstKey, Remaining: first.Count - 1},
			{Key: secondKey, Remaining: second.Count - 1},
		},
	}, nil
}

// generateSprites tries the sprite service and falls back to the first
// source's sprites. Sprite failures never abort a fusion.
func (c *Coordinator) generateSprites(ctx context.Context, spriteSet string, fused *FusedCharacter, fallback *collection.OwnedCharacter) (collection.SpriteRefs, bool) {
	if c.sprites == nil {
		SpriteFallbacks.Inc()
		return fallback.Sprites, false
	}
	paths, err := c.sprites.GenerateSheets(ctx, spriteSet, fused.Description)
	if err != nil {
		c.logger.Warn("sprite generation failed, using fallback sprites",
			"sprite_set", spriteSet,
			"error", err)
		SpriteFallbacks.Inc()
		return fallback.Sprites, false
	}
	return collection.SpriteRefs{
		Default:     paths.Default,
		Spinning:    paths.Spinning,
		BattleLeft:  paths.BattleLeft,
		BattleRight: paths.BattleRight,
	}, true
}

// resolveTemplate looks a fusion source up in the catalog.
func (c *Coordinator) resolveTemplate(ctx context.Context, id ulid.ULID, status *string) (*catalog.Template, error) {
	tpl, err := c.templates.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			*status = StatusTemplateMissing
			return nil, oops.Code("FUSION_TEMPLATE_NOT_FOUND").
				With("template_id", id.String()).
				Wrap(err)
		}
		return nil, err
	}
	return tpl, nil
}

func sourceFor(t *catalog.Template) generator.SourceCharacter {
	moves := make([]string, 0, len(t.Moves))
	for _, m := range t.Moves {
		moves = append(moves, m.Name)
	}
	return generator.SourceCharacter{
		Name:    t.Name,
		Rarity:  string(t.Rarity),
		Type:    t.Type,
		Moves:   moves,
		BaseHP:  t.BaseStats.HP,
		BaseAtk: t.BaseStats.Attack,
		BaseDef: t.BaseStats.Defense,
	}
}

func movesFromAbilities(fused *FusedCharacter) []catalog.Move {
	moves := make([]catalog.Move, 0, len(fused.Abilities))
	for _, ability := range fused.Abilities {
		moves = append(moves, catalog.Move{
			Name:        ability.Name,
			Damage:      ability.Damage,
			Description: ability.Description,
		})
	}
	return moves
}
