// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuseforge/fuseforge/pkg/errutil"
)

type fakeTemplateRepo struct {
	templates []*Template
	countErr  error
	insertErr error
}

func (f *fakeTemplateRepo) Insert(_ context.Context, t *Template) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.templates = append(f.templates, t)
	return nil
}

func (f *fakeTemplateRepo) GetByID(_ context.Context, id ulid.ULID) (*Template, error) {
	for _, t := range f.templates {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeTemplateRepo) List(_ context.Context) ([]*Template, error) {
	return f.templates, nil
}

func (f *fakeTemplateRepo) Count(_ context.Context) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.templates)), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSeed_EmptyCatalog(t *testing.T) {
	repo := &fakeTemplateRepo{}

	err := Seed(context.Background(), repo, discardLogger())
	require.NoError(t, err)
	require.NotEmpty(t, repo.templates)

	rarities := make(map[Rarity]int)
	for _, tpl := range repo.templates {
		require.True(t, tpl.Rarity.IsValid(), "seeded rarity %q", tpl.Rarity)
		assert.False(t, tpl.Fused, "seeded templates are not fused")
		rarities[tpl.Rarity]++
	}
	// The base roster spans every rarity tier.
	for _, r := range []Rarity{RarityCommon, RarityRare, RarityEpic, RarityLegendary} {
		assert.Positive(t, rarities[r], "missing rarity %s", r)
	}
}

func TestSeed_AlreadySeededIsNoOp(t *testing.T) {
	repo := &fakeTemplateRepo{}
	require.NoError(t, Seed(context.Background(), repo, discardLogger()))
	seeded := len(repo.templates)

	require.NoError(t, Seed(context.Background(), repo, discardLogger()))
	assert.Equal(t, seeded, len(repo.templates))
}

func TestSeed_CountFailure(t *testing.T) {
	repo := &fakeTemplateRepo{countErr: errors.New("db down")}

	err := Seed(context.Background(), repo, discardLogger())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CATALOG_SEED_FAILED")
}

func TestSeed_InsertFailure(t *testing.T) {
	repo := &fakeTemplateRepo{insertErr: errors.New("insert denied")}

	err := Seed(context.Background(), repo, discardLogger())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CATALOG_SEED_FAILED")
}

func TestCollectionKey(t *testing.T) {
	tpl := Template{Name: "StormMage", Rarity: RarityRare}
	assert.Equal(t, "StormMage-rare", tpl.CollectionKey())
}

func TestRarity_IsValid(t *testing.T) {
	assert.True(t, RarityCommon.IsValid())
	assert.True(t, RarityLegendary.IsValid())
	assert.False(t, Rarity("mythical").IsValid())
	assert.False(t, Rarity("").IsValid())
}
