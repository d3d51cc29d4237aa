package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"unscored/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StateRepository persists scheduler state, job checkpoints and the address
// block list.
type StateRepository interface {
	LoadStates(ctx context.Context) ([]models.IngestState, error)
	SaveState(ctx context.Context, state *models.IngestState) error
	Checkpoint(ctx context.Context, name string) (uint64, error)
	SaveCheckpoint(ctx context.Context, name string, position uint64) error
	BlockedAddresses(ctx context.Context) ([]string, error)
	BlockAddress(ctx context.Context, addr string) error
	UnblockAddress(ctx context.Context, addr string) error
}

type stateRepository struct {
	db *gorm.DB
}

// NewStateRepository creates a new state repository.
func NewStateRepository(db *gorm.DB) StateRepository {
	return &stateRepository{db: db}
}

func (r *stateRepository) LoadStates(ctx context.Context) ([]models.IngestState, error) {
	var states []models.IngestState
	if err := r.db.WithContext(ctx).Order("community").Find(&states).Error; err != nil {
		return nil, fmt.Errorf("load ingest states: %w", err)
	}
	return states, nil
}

// SaveState upserts the whole record in one transaction.
func (r *stateRepository) SaveState(ctx context.Context, state *models.IngestState) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "community"}},
			UpdateAll: true,
		}).Create(state).Error; err != nil {
			return fmt.Errorf("save ingest state %s: %w", state.Community, err)
		}
		return nil
	})
}

func (r *stateRepository) Checkpoint(ctx context.Context, name string) (uint64, error) {
	var cp models.Checkpoint
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&cp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load checkpoint %s: %w", name, err)
	}
	return cp.Position, nil
}

func (r *stateRepository) SaveCheckpoint(ctx context.Context, name string, position uint64) error {
	cp := models.Checkpoint{Name: name, Position: position, UpdatedAt: time.Now()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"position", "updated_at"}),
	}).Create(&cp).Error
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", name, err)
	}
	return nil
}

func (r *stateRepository) BlockedAddresses(ctx context.Context) ([]string, error) {
	var addrs []string
	if err := r.db.WithContext(ctx).Model(&models.BlockedAddress{}).Order("addr").Pluck("addr", &addrs).Error; err != nil {
		return nil, fmt.Errorf("load blocked addresses: %w", err)
	}
	return addrs, nil
}

func (r *stateRepository) BlockAddress(ctx context.Context, addr string) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.BlockedAddress{Addr: addr, CreatedAt: time.Now()}).Error
	if err != nil {
		return fmt.Errorf("block address %s: %w", addr, err)
	}
	return nil
}

func (r *stateRepository) UnblockAddress(ctx context.Context, addr string) error {
	if err := r.db.WithContext(ctx).Where("addr = ?", addr).Delete(&models.BlockedAddress{}).Error; err != nil {
		return fmt.Errorf("unblock address %s: %w", addr, err)
	}
	return nil
}
