package model

import "time"

// swagger:model Activity
type Activity struct {
	UUIDBase

	UserID         string         `gorm:"type:varchar(36);index;not null" json:"user_id"`
	Status         ActivityStatus `gorm:"size:20;not null" json:"status"`
	GeneratedTitle *string        `gorm:"size:255" json:"generated_title"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (Activity) TableName() string {
	return "activities"
}
