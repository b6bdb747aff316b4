package repositories

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/desertthunder/voxup/internal/models"
	"github.com/desertthunder/voxup/internal/shared"
)

// Ledger implements [models.Ledger] on SQLite for a single owner.
//
// Rows are loaded into memory at open so [Ledger.Has] and [Ledger.Keys] never touch the database.
type Ledger struct {
	db    *sql.DB
	owner string
	now   func() time.Time

	mu   sync.RWMutex
	keys map[string]string // locator key -> content hash
}

// NewLedger opens the ledger for owner and loads its existing completions.
func NewLedger(db *sql.DB, owner string) (*Ledger, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: ledger owner is required", shared.ErrInvalidArgument)
	}

	l := &Ledger{db: db, owner: owner, now: time.Now, keys: make(map[string]string)}

	rows, err := db.Query(`SELECT locator_key, content_hash FROM completions WHERE owner_id = ?`, owner)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load completions: %v", shared.ErrDatabase, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, hash string
		if err := rows.Scan(&key, &hash); err != nil {
			return nil, fmt.Errorf("%w: failed to scan completion: %v", shared.ErrDatabase, err)
		}
		l.keys[key] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate completions: %v", shared.ErrDatabase, err)
	}

	return l, nil
}

// Owner returns the owner this ledger records for.
func (l *Ledger) Owner() string {
	return l.owner
}

// Has reports whether key is recorded as complete.
func (l *Ledger) Has(key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.keys[key]
	return ok
}

// Keys returns every completed locator key, sorted.
func (l *Ledger) Keys() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]string, 0, len(l.keys))
	for k := range l.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of completed keys.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.keys)
}

// Record persists a completion for key and then adds it to the in-memory set.
//
// Recording an already-completed key is a no-op. Failures wrap [shared.ErrLedgerWrite].
func (l *Ledger) Record(key, hash string, source models.CompletionSource) error {
	if l.Has(key) {
		return nil
	}

	c := models.Completion{OwnerID: l.owner, Key: key, Hash: hash, Source: source, CompletedAt: l.now().UTC()}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrLedgerWrite, err)
	}

	query := `
		INSERT OR IGNORE INTO completions (owner_id, locator_key, content_hash, source, completed_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := l.db.Exec(query, c.OwnerID, c.Key, c.Hash, string(c.Source), c.CompletedAt); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrLedgerWrite, err)
	}

	l.mu.Lock()
	l.keys[key] = hash
	l.mu.Unlock()
	return nil
}

// RecordMany persists several completions from the same source in one transaction.
func (l *Ledger) RecordMany(items []models.Item, source models.CompletionSource) error {
	var fresh []models.Item
	for _, item := range items {
		if !l.Has(item.Key) {
			fresh = append(fresh, item)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	completedAt := l.now().UTC()
	err := withTx(l.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT OR IGNORE INTO completions (owner_id, locator_key, content_hash, source, completed_at)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, item := range fresh {
			c := models.Completion{OwnerID: l.owner, Key: item.Key, Hash: item.Hash, Source: source}
			if err := c.Validate(); err != nil {
				return err
			}
			if _, err := stmt.Exec(c.OwnerID, c.Key, c.Hash, string(c.Source), completedAt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrLedgerWrite, err)
	}

	l.mu.Lock()
	for _, item := range fresh {
		l.keys[item.Key] = item.Hash
	}
	l.mu.Unlock()
	return nil
}

// List returns the owner's completions, newest first.
func (l *Ledger) List() ([]models.Completion, error) {
	query := `
		SELECT owner_id, locator_key, content_hash, source, completed_at
		FROM completions
		WHERE owner_id = ?
		ORDER BY completed_at DESC, locator_key ASC
	`

	rows, err := l.db.Query(query, l.owner)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query completions: %v", shared.ErrDatabase, err)
	}
	defer rows.Close()

	var completions []models.Completion
	for rows.Next() {
		var (
			c      models.Completion
			source string
		)
		if err := rows.Scan(&c.OwnerID, &c.Key, &c.Hash, &source, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan completion: %v", shared.ErrDatabase, err)
		}
		c.Source = models.CompletionSource(source)
		completions = append(completions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate completions: %v", shared.ErrDatabase, err)
	}

	return completions, nil
}

// Reset removes every completion for the owner.
func (l *Ledger) Reset() error {
	if _, err := l.db.Exec(`DELETE FROM completions WHERE owner_id = ?`, l.owner); err != nil {
		return fmt.Errorf("%w: failed to reset ledger: %v", shared.ErrDatabase, err)
	}

	l.mu.Lock()
	l.keys = make(map[string]string)
	l.mu.Unlock()
	return nil
}
