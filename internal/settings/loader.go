package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/alcms-dev/alcms-server/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Reload reads every setting and replaces the in-memory snapshot. Readers
// only see the snapshot, so call it at startup and after writes.
func Reload(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("settings: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var rows []models.Setting
	if errFind := db.WithContext(ctx).
		Select("key", "value", "updated_at").
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		return errFind
	}

	values := make(map[string]json.RawMessage, len(rows))
	maxUpdatedAt := time.Time{}
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		values[key] = row.Value
		if row.UpdatedAt.UTC().After(maxUpdatedAt) {
			maxUpdatedAt = row.UpdatedAt.UTC()
		}
	}

	Replace(maxUpdatedAt, values)
	return nil
}

// Put upserts setting values and refreshes the snapshot.
func Put(ctx context.Context, db *gorm.DB, values map[string]json.RawMessage, updatedBy uint64) error {
	if db == nil {
		return errors.New("settings: nil db")
	}
	now := time.Now().UTC()
	errTx := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			row := models.Setting{Key: strings.TrimSpace(key), Value: value, UpdatedAt: now}
			if updatedBy != 0 {
				row.UpdatedBy = &updatedBy
			}
			if errUpsert := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
			}).Create(&row).Error; errUpsert != nil {
				return errUpsert
			}
		}
		return nil
	})
	if errTx != nil {
		return errTx
	}
	return Reload(ctx, db)
}
