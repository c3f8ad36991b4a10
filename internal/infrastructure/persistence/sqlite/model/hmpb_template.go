package model

import "gorm.io/datatypes"

type HmpbTemplate struct {
	TemplateID    uint64         `gorm:"column:template_id;primaryKey;autoIncrement"`
	BallotStyleID string         `gorm:"column:ballot_style_id;type:text;not null;index"`
	PrecinctID    string         `gorm:"column:precinct_id;type:text;not null;default:''"`
	PageNumber    int            `gorm:"column:page_number;not null"`
	ContestIDs    datatypes.JSON `gorm:"column:contest_ids_json;not null"`
	CreatedAt     string         `gorm:"column:created_at;type:text;not null"`
}

func (HmpbTemplate) TableName() string {
	return "hmpb_templates"
}
