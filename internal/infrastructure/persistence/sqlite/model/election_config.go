package model

import "gorm.io/datatypes"

// ElectionConfig is the single-row election configuration for this scanner.
type ElectionConfig struct {
	ID                  uint64         `gorm:"column:id;primaryKey"`
	ElectionJSON        datatypes.JSON `gorm:"column:election_json"`
	ElectionHash        string         `gorm:"column:election_hash;type:text;not null;default:''"`
	TestMode            bool           `gorm:"column:test_mode;not null;default:1"`
	CurrentPrecinctID   string         `gorm:"column:current_precinct_id;type:text;not null;default:''"`
	AdjudicationReasons datatypes.JSON `gorm:"column:adjudication_reasons_json"`
	MarkThresholds      datatypes.JSON `gorm:"column:mark_thresholds_json"`
	UpdatedAt           string         `gorm:"column:updated_at;type:text;not null"`
}

func (ElectionConfig) TableName() string {
	return "election_config"
}
