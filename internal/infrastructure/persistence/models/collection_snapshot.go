package models

import (
	"time"

	"gorm.io/datatypes"
)

// CollectionSnapshot is one row per collection holding its records as a JSON array
type CollectionSnapshot struct {
	Name      string         `gorm:"column:name;primaryKey;size:64"`
	Records   datatypes.JSON `gorm:"column:records;not null"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null"`
}

// TableName returns the table name for GORM
func (CollectionSnapshot) TableName() string {
	return "collection_snapshots"
}
