package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cas-inventory/backend/internal/domain/shared"
	"github.com/cas-inventory/backend/internal/infrastructure/persistence/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists collections in a relational database through gorm
type GormStore struct {
	db    *Database
	clock shared.Clock
}

// NewGormStore creates a GormStore over an open database
func NewGormStore(db *Database) *GormStore {
	return &GormStore{db: db, clock: shared.SystemClock}
}

// Load implements shared.CollectionStore
func (s *GormStore) Load(ctx context.Context, collection shared.Collection) ([]json.RawMessage, error) {
	var row models.CollectionSnapshot
	err := s.db.DB.WithContext(ctx).Where("name = ?", collection.String()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load collection %s: %w", collection, err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(row.Records, &records); err != nil {
		return nil, fmt.Errorf("decode collection %s: %w", collection, err)
	}
	if records == nil {
		records = []json.RawMessage{}
	}
	return records, nil
}

// Save implements shared.CollectionStore
func (s *GormStore) Save(ctx context.Context, collection shared.Collection, records []json.RawMessage) error {
	return s.SaveBatch(ctx, shared.Batch{collection: records})
}

// SaveBatch upserts every collection of the batch in one transaction
func (s *GormStore) SaveBatch(ctx context.Context, batch shared.Batch) error {
	if err := validateBatch(batch); err != nil {
		return err
	}

	now := s.clock().UTC()
	rows := make([]models.CollectionSnapshot, 0, len(batch))
	for _, c := range sortedCollections(batch) {
		records := batch[c]
		if records == nil {
			records = []json.RawMessage{}
		}
		data, err := json.Marshal(records)
		if err != nil {
			return fmt.Errorf("encode collection %s: %w", c, err)
		}
		rows = append(rows, models.CollectionSnapshot{Name: c.String(), Records: datatypes.JSON(data), UpdatedAt: now})
	}

	return s.db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"records", "updated_at"}),
			}).Create(&rows[i]).Error
			if err != nil {
				return fmt.Errorf("save collection %s: %w", rows[i].Name, err)
			}
		}
		return nil
	})
}

// Ping checks the database connection
func (s *GormStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection
func (s *GormStore) Close(context.Context) error {
	return s.db.Close()
}
