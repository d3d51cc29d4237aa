package database

import "unscored/internal/models"

// PersistentModels lists every table managed by AutoMigrate.
func PersistentModels() []any {
	return []any{
		&models.Board{},
		&models.Author{},
		&models.Post{},
		&models.Comment{},
		&models.ModlogRecord{},
		&models.KnownBan{},
		&models.RemovalRequest{},
		&models.IngestState{},
		&models.Checkpoint{},
		&models.BlockedAddress{},
	}
}
