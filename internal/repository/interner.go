package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"unscored/internal/database"
	"unscored/internal/models"

	"gorm.io/gorm"
)

// Interner caches board and author ids by case-insensitive name. Ids are
// assigned on first reference; a unique violation from a concurrent insert is
// resolved by looking the row up again.
//
// An id inserted inside a transaction is only cached once another connection
// has seen the row, so a rolled back insert never leaves a dangling id behind.
type Interner struct {
	mu      sync.RWMutex
	boards  map[string]uint64
	authors map[string]uint64
	pending map[string]gorm.ConnPool
}

// NewInterner returns an empty Interner.
func NewInterner() *Interner {
	return &Interner{
		boards:  make(map[string]uint64),
		authors: make(map[string]uint64),
		pending: make(map[string]gorm.ConnPool),
	}
}

// NameKey is the case-insensitive key of a board or author name.
func NameKey(name string) string {
	return strings.ToLower(name)
}

// Warm loads every existing board and author into the cache.
func (i *Interner) Warm(ctx context.Context, db *gorm.DB) error {
	var boards []models.Board
	if err := db.WithContext(ctx).Select("id", "name_key").Find(&boards).Error; err != nil {
		return fmt.Errorf("load boards: %w", err)
	}
	var authors []models.Author
	if err := db.WithContext(ctx).Select("id", "name_key").Find(&authors).Error; err != nil {
		return fmt.Errorf("load authors: %w", err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	for _, b := range boards {
		i.boards[b.NameKey] = b.ID
	}
	for _, a := range authors {
		i.authors[a.NameKey] = a.ID
	}
	return nil
}

// BoardID returns the id of the named board, inserting it when unknown.
func (i *Interner) BoardID(ctx context.Context, tx *gorm.DB, name string) (uint64, error) {
	return i.intern(ctx, tx, i.boards, "boards", name, true)
}

// AuthorID returns the id of the named author, inserting it when unknown.
func (i *Interner) AuthorID(ctx context.Context, tx *gorm.DB, name string) (uint64, error) {
	return i.intern(ctx, tx, i.authors, "authors", name, true)
}

// LookupBoardID returns the id of the named board without inserting it. The
// result is 0 when the board was never archived.
func (i *Interner) LookupBoardID(ctx context.Context, tx *gorm.DB, name string) (uint64, error) {
	return i.intern(ctx, tx, i.boards, "boards", name, false)
}

// LookupAuthorID returns the id of the named author without inserting it.
func (i *Interner) LookupAuthorID(ctx context.Context, tx *gorm.DB, name string) (uint64, error) {
	return i.intern(ctx, tx, i.authors, "authors", name, false)
}

func (i *Interner) cached(ids map[string]uint64, key string) (uint64, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	id, ok := ids[key]
	return id, ok
}

func (i *Interner) remember(ids map[string]uint64, key string, id uint64) {
	i.mu.Lock()
	ids[key] = id
	i.mu.Unlock()
}

// settle caches an id found by lookup unless the row is still uncommitted in
// the transaction that inserted it.
func (i *Interner) settle(ids map[string]uint64, table, key string, id uint64, pool gorm.ConnPool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	pk := table + ":" + key
	if owner, ok := i.pending[pk]; ok {
		if owner == pool {
			return
		}
		delete(i.pending, pk)
	}
	ids[key] = id
}

// hold marks key as inserted by pool's open transaction. A later insert after
// a rollback replaces the entry.
func (i *Interner) hold(table, key string, pool gorm.ConnPool) {
	i.mu.Lock()
	i.pending[table+":"+key] = pool
	i.mu.Unlock()
}

func inTransaction(pool gorm.ConnPool) bool {
	_, ok := pool.(gorm.TxCommitter)
	return ok
}

func (i *Interner) intern(ctx context.Context, tx *gorm.DB, ids map[string]uint64, table, name string, insert bool) (uint64, error) {
	key := NameKey(name)
	if id, ok := i.cached(ids, key); ok {
		return id, nil
	}

	id, err := lookupID(ctx, tx, table, key)
	if err != nil {
		return 0, err
	}
	pool := tx.Statement.ConnPool
	if id != 0 {
		i.settle(ids, table, key, id, pool)
		return id, nil
	}
	if !insert {
		return 0, nil
	}

	err = tx.WithContext(ctx).Transaction(func(sp *gorm.DB) error {
		var createErr error
		id, createErr = insertNamed(sp, table, name, key)
		return createErr
	})
	if err != nil {
		if !database.IsUniqueViolation(err) {
			return 0, fmt.Errorf("insert %s %q: %w", table, name, err)
		}
		if id, err = lookupID(ctx, tx, table, key); err != nil {
			return 0, err
		}
		if id == 0 {
			return 0, fmt.Errorf("%s %q vanished after unique violation", table, name)
		}
		i.remember(ids, key, id)
		return id, nil
	}

	if inTransaction(pool) {
		i.hold(table, key, pool)
	} else {
		i.remember(ids, key, id)
	}
	return id, nil
}

func lookupID(ctx context.Context, tx *gorm.DB, table, key string) (uint64, error) {
	var ids []uint64
	err := tx.WithContext(ctx).Table(table).Where("name_key = ?", key).Limit(1).Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("lookup %s %q: %w", table, key, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return ids[0], nil
}

func insertNamed(tx *gorm.DB, table, name, key string) (uint64, error) {
	if table == "boards" {
		row := models.Board{Name: name, NameKey: key}
		err := tx.Create(&row).Error
		return row.ID, err
	}
	row := models.Author{Name: name, NameKey: key}
	err := tx.Create(&row).Error
	return row.ID, err
}
