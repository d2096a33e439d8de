package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Pebble key schema. The whole account record (balance + order history) lives
// under one key, so every read-modify-write commits as a single atomic set.
//
// Format: "acc:{id}"
const prefixAccount = "acc:"

func accountKey(id string) []byte {
	return []byte(prefixAccount + id)
}

func accountPrefix() []byte {
	return []byte(prefixAccount)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}

// Store provides Pebble-based persistence for account records.
// Serialization of same-account writers is the Ledger's job, not the Store's.
type Store struct {
	db *pebble.DB
}

// NewStore opens a Pebble database at the given path.
func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                 pebble.NewCache(32 << 20),
		MemTableSize:          16 << 20,
		L0CompactionThreshold: 2,
		MaxOpenFiles:          1000,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveAccount persists an account record as one synced write.
func (s *Store) SaveAccount(acc *Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	if err := s.db.Set(accountKey(acc.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	return nil
}

// LoadAccount loads an account record.
// Returns nil if the account doesn't exist.
func (s *Store) LoadAccount(id string) (*Account, error) {
	data, closer, err := s.db.Get(accountKey(id))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	defer closer.Close()

	var acc Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}

	if acc.Orders == nil {
		acc.Orders = []Order{}
	}

	return &acc, nil
}

// LoadAllAccounts scans every persisted account record. Used to warm the
// ledger cache at startup.
func (s *Store) LoadAllAccounts() ([]*Account, error) {
	prefix := accountPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open account iterator: %w", err)
	}
	defer iter.Close()

	var accounts []*Account
	for iter.First(); iter.Valid(); iter.Next() {
		var acc Account
		if err := json.Unmarshal(iter.Value(), &acc); err != nil {
			continue // skip invalid entries
		}
		if acc.Orders == nil {
			acc.Orders = []Order{}
		}
		accounts = append(accounts, &acc)
	}

	return accounts, nil
}
