package model

import "gorm.io/gorm"

type Batch struct {
	BatchID     string         `gorm:"column:batch_id;primaryKey"`
	BatchNumber uint64         `gorm:"column:batch_number;not null;uniqueIndex"`
	Label       string         `gorm:"column:label;type:text;not null"`
	StartedAt   string         `gorm:"column:started_at;type:text;not null"`
	EndedAt     *string        `gorm:"column:ended_at;type:text"`
	Error       *string        `gorm:"column:error;type:text"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (Batch) TableName() string {
	return "batches"
}
