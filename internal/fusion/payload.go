// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

package fusion

import (
	"encoding/json"
	"strings"
	"sync"
	"unicode"

	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/fuseforge/fuseforge/internal/catalog"
)

// payloadSchema constrains generated fusion content before any field is
// trusted. Rarity is deliberately loose: unknown tiers are coerced in
// parsePayload rather than rejected.
const payloadSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "rarity", "description", "stats", "abilities"],
  "properties": {
    "name": {"type": "string", "minLength": 1, "maxLength": 60},
    "rarity": {"type": "string", "minLength": 1},
    "description": {"type": "string", "minLength": 1, "maxLength": 1000},
    "stats": {
      "type": "object",
      "required": ["base_hp", "base_attack", "base_defense"],
      "properties": {
        "base_hp": {"type": "integer", "minimum": 1, "maximum": 1000},
        "base_attack": {"type": "integer", "minimum": 0, "maximum": 1000},
        "base_defense": {"type": "integer", "minimum": 0, "maximum": 1000}
      }
    },
    "abilities": {
      "type": "array",
      "maxItems": 4,
      "items": {
        "type": "object",
        "required": ["name", "damage"],
        "properties": {
          "name": {"type": "string", "minLength": 1, "maxLength": 60},
          "damage": {"type": "integer", "minimum": 0, "maximum": 1000},
          "description": {"type": "string", "maxLength": 300}
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jschema.Schema
	schemaErr      error
)

func compiledPayloadSchema() (*jschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jschema.UnmarshalJSON(strings.NewReader(payloadSchema))
		if err != nil {
			schemaErr = err
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource("fusion-payload.json", doc); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = c.Compile("fusion-payload.json")
	})
	return compiledSchema, schemaErr
}

// FusedStats are the base stats the content service invents.
type FusedStats struct {
	BaseHP      int `json:"base_hp"`
	BaseAttack  int `json:"base_attack"`
	BaseDefense int `json:"base_defense"`
}

// FusedAbility is one generated move for a fused character.
type FusedAbility struct {
	Name        string `json:"name"`
	Damage      int    `json:"damage"`
	Description string `json:"description"`
}

// FusedCharacter is the validated content for a newly fused character.
type FusedCharacter struct {
	Name        string         `json:"name"`
	Rarity      catalog.Rarity `json:"rarity"`
	Description string         `json:"description"`
	Stats       FusedStats     `json:"stats"`
	Abilities   []FusedAbility `json:"abilities"`
}

// parsePayload validates the raw generator response against the payload
// schema and decodes it. A rarity outside the known tiers is coerced to
// rare, the mid tier, so one hallucinated tier name cannot mint a
// legendary.
func parsePayload(raw json.RawMessage) (*FusedCharacter, error) {
	sch, err := compiledPayloadSchema()
	if err != nil {
		return nil, oops.Code("FUSION_SCHEMA_BROKEN").Wrap(err)
	}

	doc, err := jschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, oops.Code("FUSION_BAD_PAYLOAD").
			With("operation", "decode payload").
			Wrap(err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, oops.Code("FUSION_BAD_PAYLOAD").
			With("operation", "validate payload").
			Wrap(err)
	}

	var fused FusedCharacter
	if err := json.Unmarshal(raw, &fused); err != nil {
		return nil, oops.Code("FUSION_BAD_PAYLOAD").
			With("operation", "unmarshal payload").
			Wrap(err)
	}

	if !fused.Rarity.IsValid() {
		fused.Rarity = catalog.RarityRare
	}
	return &fused, nil
}

// spriteSetName derives a filesystem-safe sprite set name from the fused
// character's name plus a unique suffix. Runs of spaces and hyphens
// collapse to a single hyphen; other non-alphanumerics are stripped.
func spriteSetName(name, suffix string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLower(r) || unicode.IsDigit(r):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case r == ' ' || r == '-':
			pendingHyphen = true
		}
	}
	base := b.String()
	if base == "" {
		base = "fused"
	}
	return base + "-" + strings.ToLower(suffix)
}
