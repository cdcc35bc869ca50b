package model

import (
	"gorm.io/datatypes"
)

// swagger:model ActivityItem
type ActivityItem struct {
	UUIDBase

	ActivityID       string             `gorm:"type:varchar(36);index;not null" json:"activity_id"`
	ActivityType     ActivityType       `gorm:"size:32;not null" json:"activity_type"`
	MaxRetries       int                `gorm:"not null" json:"max_retries"`
	AttemptedRetries int                `gorm:"not null" json:"attempted_retries"`
	Status           ActivityItemStatus `gorm:"size:32;not null;index" json:"status"`
	// Position mirrors QuestionConfig.Order so presentation order can be queried.
	Position                 int                                          `gorm:"not null" json:"position"`
	QuestionConfig           datatypes.JSONType[QuestionConfig]           `json:"question_config"`
	QuestionEvaluationConfig datatypes.JSONType[QuestionEvaluationConfig] `json:"question_evaluation_config"`
}

func (ActivityItem) TableName() string {
	return "activity_items"
}

func (i *ActivityItem) Hints() []Hint {
	hints := i.QuestionConfig.Data().Hints
	if hints == nil {
		return []Hint{}
	}
	return hints
}
