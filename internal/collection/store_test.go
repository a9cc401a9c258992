// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

package collection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuseforge/fuseforge/internal/catalog"
	"github.com/fuseforge/fuseforge/pkg/errutil"
)

// fakeSaveRepo is an in-memory SaveRepository storing deep copies, so
// callers cannot mutate stored state through returned pointers.
type fakeSaveRepo struct {
	mu       sync.Mutex
	saves    map[ulid.ULID]GameSave
	failWith error
}

func newFakeSaveRepo() *fakeSaveRepo {
	return &fakeSaveRepo{saves: make(map[ulid.ULID]GameSave)}
}

func (f *fakeSaveRepo) Get(_ context.Context, accountID ulid.ULID) (*GameSave, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	save, ok := f.saves[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := save
	copied.Collection = append([]OwnedCharacter(nil), save.Collection...)
	return &copied, nil
}

func (f *fakeSaveRepo) Upsert(_ context.Context, save *GameSave) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	copied := *save
	copied.Collection = append([]OwnedCharacter(nil), save.Collection...)
	f.saves[save.AccountID] = copied
	return nil
}

func owned(name string, rarity catalog.Rarity, count int) OwnedCharacter {
	return OwnedCharacter{
		Key:        CollectionKey(name, rarity),
		Name:       name,
		Rarity:     rarity,
		Stats:      catalog.Stats{HP: 90, Attack: 12, Defense: 10},
		Count:      count,
		ObtainedAt: time.Now().UTC(),
	}
}

func newTestStore(t *testing.T) (*Store, *fakeSaveRepo) {
	t.Helper()
	repo := newFakeSaveRepo()
	store, err := NewStore(repo)
	require.NoError(t, err)
	return store, repo
}

func TestNewStore_RequiresRepository(t *testing.T) {
	_, err := NewStore(nil)
	require.Error(t, err)
}

func TestStore_Load_NeverSavedAccount(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Load(context.Background(), ulid.Make())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveThenLoad_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	accountID := ulid.Make()
	ctx := context.Background()

	save := NewStartingSave(accountID)
	save.Collection = []OwnedCharacter{owned("KnightValor", catalog.RarityCommon, 2)}
	key := save.Collection[0].Key
	save.Team[0] = &key

	require.NoError(t, store.Save(ctx, accountID, save))

	got, err := store.Load(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(StartingGold), got.Gold)
	require.Len(t, got.Collection, 1)
	assert.Equal(t, 2, got.Collection[0].Count)
	require.NotNil(t, got.Team[0])
	assert.Equal(t, key, *got.Team[0])
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestStore_Save_RejectsDuplicateKeys(t *testing.T) {
	store, repo := newTestStore(t)
	accountID := ulid.Make()
	ctx := context.Background()

	save := NewStartingSave(accountID)
	save.Collection = []OwnedCharacter{
		owned("KnightValor", catalog.RarityCommon, 1),
		owned("KnightValor", catalog.RarityCommon, 3),
	}
	err := store.Save(ctx, accountID, save)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SAVE_DUPLICATE_KEY")
	assert.Empty(t, repo.saves, "rejected snapshot must not persist")
}

func TestStore_Save_DropsNonPositiveCounts(t *testing.T) {
	store, _ := newTestStore(t)
	accountID := ulid.Make()
	ctx := context.Background()

	save := NewStartingSave(accountID)
	save.Collection = []OwnedCharacter{
		owned("KnightValor", catalog.RarityCommon, 2),
		owned("StormMage", catalog.RarityRare, 0),
		owned("EmberDrake", catalog.RarityEpic, -1),
	}
	require.NoError(t, store.Save(ctx, accountID, save))

	got, err := store.Load(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, got.Collection, 1)
	assert.Equal(t, "KnightValor-common", got.Collection[0].Key)
}

func TestStore_LoadTwice_SameState(t *testing.T) {
	store, _ := newTestStore(t)
	accountID := ulid.Make()
	ctx := context.Background()

	save := NewStartingSave(accountID)
	save.Collection = []OwnedCharacter{owned("StormMage", catalog.RarityRare, 1)}
	require.NoError(t, store.Save(ctx, accountID, save))

	first, err := store.Load(ctx, accountID)
	require.NoError(t, err)
	second, err := store.Load(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, first.Gold, second.Gold)
	assert.Equal(t, first.Collection, second.Collection)
}

func TestStore_FindOwned(t *testing.T) {
	store, _ := newTestStore(t)
	accountID := ulid.Make()
	ctx := context.Background()

	save := NewStartingSave(accountID)
	save.Collection = []OwnedCharacter{owned("KnightValor", catalog.RarityCommon, 3)}
	require.NoError(t, store.Save(ctx, accountID, save))

	oc, err := store.FindOwned(ctx, accountID, "KnightValor-common")
	require.NoError(t, err)
	assert.Equal(t, 3, oc.Count)

	_, err = store.FindOwned(ctx, accountID, "EmberDrake-epic")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	errutil.AssertErrorCode(t, err, "SAVE_CHARACTER_NOT_OWNED")
}

func TestStore_SetCount_Decrement(t *testing.T) {
	store, _ := newTestStore(t)
	accountID := ulid.Make()
	ctx := context.Background()

	save := NewStartingSave(accountID)
	save.Collection = []OwnedCharacter{owned("KnightValor", catalog.RarityCommon, 2)}
	require.NoError(t, store.Save(ctx, accountID, save))

	require.NoError(t, store.SetCount(ctx, accountID, "KnightValor-common", 1))

	got, err := store.Load(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, got.Collection, 1)
	assert.Equal(t, 1, got.Collection[0].Count)
}

func TestStore_SetCount_ZeroRemovesEntry(t *testing.T) {
	store, _ := newTestStore(t)
	accountID := ulid.Make()
	ctx := context.Background()

	save := NewStartingSave(accountID)
	save.Collection = []OwnedCharacter{
		owned("KnightValor", catalog.RarityCommon, 1),
		owned("StormMage", catalog.RarityRare, 1),
	}
	require.NoError(t, store.Save(ctx, accountID, save))

	require.NoError(t, store.SetCount(ctx, accountID, "KnightValor-common", 0))

	got, err := store.Load(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, got.Collection, 1)
	assert.Equal(t, "StormMage-rare", got.Collection[0].Key)
	assert.Nil(t, got.Find("KnightValor-common"))
}

func TestStore_SetCount_NotOwned(t *testing.T) {
	store, _ := newTestStore(t)
	accountID := ulid.Make()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, accountID, NewStartingSave(accountID)))

	err := store.SetCount(ctx, accountID, "EmberDrake-epic", 1)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SAVE_CHARACTER_NOT_OWNED")
}

func TestStore_Append_RejectsDuplicateKey(t *testing.T) {
	store, _ := newTestStore(t)
	accountID := ulid.Make()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, accountID, NewStartingSave(accountID)))
	require.NoError(t, store.Append(ctx, accountID, owned("KnightValor", catalog.RarityCommon, 1)))

	err := store.Append(ctx, accountID, owned("KnightValor", catalog.RarityCommon, 1))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SAVE_DUPLICATE_KEY")

	got, err := store.Load(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, got.Collection, 1)
	assert.Equal(t, 1, got.Collection[0].Count)
}

func TestStore_Grant_MergesIntoExistingEntry(t *testing.T) {
	store, _ := newTestStore(t)
	accountID := ulid.Make()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, accountID, NewStartingSave(accountID)))
	require.NoError(t, store.Grant(ctx, accountID, owned("StormMage", catalog.RarityRare, 1)))
	require.NoError(t, store.Grant(ctx, accountID, owned("StormMage", catalog.RarityRare, 1)))

	got, err := store.Load(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, got.Collection, 1)
	assert.Equal(t, 2, got.Collection[0].Count)
}

func TestStore_CreditGold(t *testing.T) {
	store, _ := newTestStore(t)
	accountID := ulid.Make()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, accountID, NewStartingSave(accountID)))
	require.NoError(t, store.CreditGold(ctx, accountID, 500))

	got, err := store.Load(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(StartingGold+500), got.Gold)
}

func TestStore_Load_RepoFailureNotMasked(t *testing.T) {
	repo := newFakeSaveRepo()
	repo.failWith = errors.New("connection refused")
	store, err := NewStore(repo)
	require.NoError(t, err)

	_, err = store.Load(context.Background(), ulid.Make())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SAVE_LOAD_FAILED")
}

func TestStore_ConcurrentGrants_NoLostUpdates(t *testing.T) {
	store, _ := newTestStore(t)
	accountID := ulid.Make()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, accountID, NewStartingSave(accountID)))

	const workers = 8
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Grant(ctx, accountID, owned("KnightValor", catalog.RarityCommon, 1))
		}()
	}
	wg.Wait()

	got, err := store.Load(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, got.Collection, 1)
	assert.Equal(t, workers, got.Collection[0].Count)
}
