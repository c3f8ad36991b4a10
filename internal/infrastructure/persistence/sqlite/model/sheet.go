package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Sheet struct {
	SheetID string `gorm:"column:sheet_id;primaryKey"`
	BatchID string `gorm:"column:batch_id;index;not null"`

	FrontOriginalPath   string `gorm:"column:front_original_path;type:text;not null"`
	FrontNormalizedPath string `gorm:"column:front_normalized_path;type:text;not null"`
	BackOriginalPath    string `gorm:"column:back_original_path;type:text;not null"`
	BackNormalizedPath  string `gorm:"column:back_normalized_path;type:text;not null"`

	FrontInterpretation datatypes.JSON `gorm:"column:front_interpretation_json;not null"`
	BackInterpretation  datatypes.JSON `gorm:"column:back_interpretation_json;not null"`
	FrontContestIDs     datatypes.JSON `gorm:"column:front_contest_ids_json"`
	BackContestIDs      datatypes.JSON `gorm:"column:back_contest_ids_json"`

	FrontAdjudication  datatypes.JSON `gorm:"column:front_adjudication_json"`
	BackAdjudication   datatypes.JSON `gorm:"column:back_adjudication_json"`
	FrontAdjudicatedAt *string        `gorm:"column:front_adjudicated_at;type:text"`
	BackAdjudicatedAt  *string        `gorm:"column:back_adjudicated_at;type:text"`

	RequiresAdjudication bool           `gorm:"column:requires_adjudication;not null;default:0"`
	CreatedAt            string         `gorm:"column:created_at;type:text;not null"`
	DeletedAt            gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (Sheet) TableName() string {
	return "sheets"
}
