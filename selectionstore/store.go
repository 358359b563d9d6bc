// Package selectionstore persists the player's pony and bet selection so a
// restarted client resumes where it left off.
package selectionstore

import (
	"encoding/json"
	"fmt"
	"math/big"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.etcd.io/bbolt"
)

const selectionBucket = "selection"

// Selection is the persisted record. Horse is a lane index in [0,16); a
// negative Horse or nil Bet means that half of the selection is unset.
type Selection struct {
	Horse int
	Bet   *big.Int
}

type record struct {
	Horse *int   `json:"horse,omitempty"`
	Bet   string `json:"bet,omitempty"`
}

// Store is a BoltDB-backed selection store keyed by player address.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open selection db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(selectionBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save persists the selection for player. Unset halves are omitted from the
// stored record; a fully unset selection removes the entry instead.
func (s *Store) Save(player common.Address, sel Selection) error {
	if sel.Horse < 0 && sel.Bet == nil {
		return s.Clear(player)
	}
	rec := record{}
	if sel.Horse >= 0 {
		h := sel.Horse
		rec.Horse = &h
	}
	if sel.Bet != nil {
		rec.Bet = sel.Bet.String()
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode selection: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(selectionBucket)).Put(player.Bytes(), raw)
	})
}

// Load returns the stored selection for player. The second return is false
// when no entry exists.
func (s *Store) Load(player common.Address) (Selection, bool, error) {
	sel := Selection{Horse: -1}
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(selectionBucket)).Get(player.Bytes())
		if raw == nil {
			return nil
		}
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode selection: %w", err)
		}
		if rec.Horse != nil {
			sel.Horse = *rec.Horse
		}
		if rec.Bet != "" {
			bet, ok := new(big.Int).SetString(rec.Bet, 10)
			if !ok {
				return fmt.Errorf("decode selection bet %q", rec.Bet)
			}
			sel.Bet = bet
		}
		found = true
		return nil
	})
	if err != nil {
		return Selection{Horse: -1}, false, err
	}
	return sel, found, nil
}

// Clear removes the player's entry entirely rather than storing an empty
// marker.
func (s *Store) Clear(player common.Address) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(selectionBucket)).Delete(player.Bytes())
	})
}
