package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActivityAnswer 每次提交一行，只追加不修改
type ActivityAnswer struct {
	ID             string                            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ActivityItemID string                            `gorm:"type:varchar(36);index;not null" json:"activity_item_id"`
	ActivityType   ActivityType                      `gorm:"size:32;not null" json:"activity_type"`
	Answer         datatypes.JSONType[AnswerPayload] `json:"answer"`
	Skip           bool                              `gorm:"not null" json:"skip"`
	IsCorrect      bool                              `gorm:"not null" json:"is_correct"`
	IsIntelligible *bool                             `json:"is_intelligible,omitempty"`
	AttemptedAt    time.Time                         `gorm:"not null;index" json:"attempted_at"`
}

func (ActivityAnswer) TableName() string {
	return "activity_answers"
}

func (a *ActivityAnswer) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = NewID()
	}
	if a.AttemptedAt.IsZero() {
		a.AttemptedAt = time.Now()
	}
	return
}
