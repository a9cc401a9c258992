// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

package collection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SaveRepository manages game save persistence.
type SaveRepository interface {
	// Get retrieves the save for an account. Returns an error wrapping
	// ErrNotFound for a never-saved account.
	Get(ctx context.Context, accountID ulid.ULID) (*GameSave, error)

	// Upsert writes the full snapshot, creating or replacing the row.
	Upsert(ctx context.Context, save *GameSave) error
}

// Transactor runs a function inside a single store transaction.
// Repository writes made within fn join the transaction.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store provides collection operations on top of full-snapshot saves.
// Every mutation is a load-modify-store cycle with last-writer-wins
// semantics; a per-account mutex serializes those cycles in-process so
// two concurrent mutations for the same account cannot interleave.
type Store struct {
	saves SaveRepository

	mu    sync.Mutex
	locks map[ulid.ULID]*sync.Mutex
}

// NewStore creates a collection Store.
func NewStore(saves SaveRepository) (*Store, error) {
	if saves == nil {
		return nil, oops.Errorf("saves repository is required")
	}
	return &Store{
		saves: saves,
		locks: make(map[ulid.ULID]*sync.Mutex),
	}, nil
}

// accountLock returns the mutex serializing mutations for one account.
func (s *Store) accountLock(accountID ulid.ULID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[accountID] = lock
	}
	return lock
}

// Lock acquires the per-account mutation lock and returns its release
// function. Exposed for callers that span several mutations, like the
// fusion coordinator.
func (s *Store) Lock(accountID ulid.ULID) func() {
	lock := s.accountLock(accountID)
	lock.Lock()
	return lock.Unlock
}

// Load returns the save for an account, or an ErrNotFound-wrapping error
// for a never-saved account. The store does not synthesize defaults; the
// transport layer substitutes the starting state.
func (s *Store) Load(ctx context.Context, accountID ulid.ULID) (*GameSave, error) {
	save, err := s.saves.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err //nolint:wrapcheck // repo already wraps with context
		}
		return nil, oops.Code("SAVE_LOAD_FAILED").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return save, nil
}

// Save writes the full snapshot for an account. Snapshots arrive from
// clients, so the collection is normalized first: zero-count entries are
// dropped (SetCount removes them, a snapshot must not reintroduce them)
// and duplicate keys are rejected outright.
func (s *Store) Save(ctx context.Context, accountID ulid.ULID, save *GameSave) error {
	cleaned, err := normalizeCollection(accountID, save.Collection)
	if err != nil {
		return err
	}
	save.Collection = cleaned

	unlock := s.Lock(accountID)
	defer unlock()
	return s.write(ctx, accountID, save)
}

func normalizeCollection(accountID ulid.ULID, entries []OwnedCharacter) ([]OwnedCharacter, error) {
	seen := make(map[string]struct{}, len(entries))
	cleaned := make([]OwnedCharacter, 0, len(entries))
	for _, oc := range entries {
		if oc.Count <= 0 {
			continue
		}
		if _, dup := seen[oc.Key]; dup {
			return nil, oops.Code("SAVE_DUPLICATE_KEY").
				With("account_id", accountID.String()).
				With("key", oc.Key).
				Errorf("collection holds more than one entry for this key")
		}
		seen[oc.Key] = struct{}{}
		cleaned = append(cleaned, oc)
	}
	return cleaned, nil
}

// FindOwned returns the owned character with the given key, or an
// ErrNotFound-wrapping error when the account does not own it.
func (s *Store) FindOwned(ctx context.Context, accountID ulid.ULID, key string) (*OwnedCharacter, error) {
	save, err := s.Load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	owned := save.Find(key)
	if owned == nil {
		return nil, oops.Code("SAVE_CHARACTER_NOT_OWNED").
			With("account_id", accountID.String()).
			With("key", key).
			Wrap(ErrNotFound)
	}
	copied := *owned
	return &copied, nil
}

// SetCount rewrites the entry with the given key to the new count,
// dropping the entry entirely when newCount is zero or negative.
func (s *Store) SetCount(ctx context.Context, accountID ulid.ULID, key string, newCount int) error {
	unlock := s.Lock(accountID)
	defer unlock()
	return s.setCountLocked(ctx, accountID, key, newCount)
}

// SetCountLocked is SetCount for callers already holding the account lock.
func (s *Store) SetCountLocked(ctx context.Context, accountID ulid.ULID, key string, newCount int) error {
	return s.setCountLocked(ctx, accountID, key, newCount)
}

func (s *Store) setCountLocked(ctx context.Context, accountID ulid.ULID, key string, newCount int) error {
	save, err := s.Load(ctx, accountID)
	if err != nil {
		return err
	}

	found := false
	rewritten := save.Collection[:0]
	for _, oc := range save.Collection {
		if oc.Key == key {
			found = true
			if newCount <= 0 {
				continue // count reached zero: remove, don't keep
			}
			oc.Count = newCount
		}
		rewritten = append(rewritten, oc)
	}
	if !found {
		return oops.Code("SAVE_CHARACTER_NOT_OWNED").
			With("account_id", accountID.String()).
			With("key", key).
			Wrap(ErrNotFound)
	}
	save.Collection = rewritten

	return s.write(ctx, accountID, save)
}

// Append adds a new entry to the collection. A key already present is
// rejected: the collection holds at most one entry per key.
func (s *Store) Append(ctx context.Context, accountID ulid.ULID, oc OwnedCharacter) error {
	unlock := s.Lock(accountID)
	defer unlock()
	return s.appendLocked(ctx, accountID, oc)
}

func (s *Store) appendLocked(ctx context.Context, accountID ulid.ULID, oc OwnedCharacter) error {
	save, err := s.Load(ctx, accountID)
	if err != nil {
		return err
	}
	if save.Find(oc.Key) != nil {
		return oops.Code("SAVE_DUPLICATE_KEY").
			With("account_id", accountID.String()).
			With("key", oc.Key).
			Errorf("collection already holds an entry for this key")
	}
	save.Collection = append(save.Collection, oc)
	return s.write(ctx, accountID, save)
}

// Grant adds one copy of a character: an existing entry's count is
// incremented, otherwise the character is appended with its given count.
func (s *Store) Grant(ctx context.Context, accountID ulid.ULID, oc OwnedCharacter) error {
	unlock := s.Lock(accountID)
	defer unlock()
	return s.GrantLocked(ctx, accountID, oc)
}

// GrantLocked is Grant for callers already holding the account lock.
func (s *Store) GrantLocked(ctx context.Context, accountID ulid.ULID, oc OwnedCharacter) error {
	save, err := s.Load(ctx, accountID)
	if err != nil {
		return err
	}
	if existing := save.Find(oc.Key); existing != nil {
		existing.Count++
		return s.write(ctx, accountID, save)
	}
	save.Collection = append(save.Collection, oc)
	return s.write(ctx, accountID, save)
}

// CreditGold increments the stored gold directly. Unlike the real-money
// ledger this is a mutable-field update: in-game currency takes the
// simpler path on purpose.
func (s *Store) CreditGold(ctx context.Context, accountID ulid.ULID, goldDelta int64) error {
	unlock := s.Lock(accountID)
	defer unlock()

	save, err := s.Load(ctx, accountID)
	if err != nil {
		return err
	}
	save.Gold += goldDelta
	return s.write(ctx, accountID, save)
}

func (s *Store) write(ctx context.Context, accountID ulid.ULID, save *GameSave) error {
	save.AccountID = accountID
	save.UpdatedAt = time.Now().UTC()
	if err := s.saves.Upsert(ctx, save); err != nil {
		return oops.Code("SAVE_WRITE_FAILED").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return nil
}
