package model

import "time"

// PatientProfile 患者资料，生成练习内容时作为上下文
type PatientProfile struct {
	UserID    string `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	Name      string `gorm:"size:100" json:"patient_name"`
	Age       string `gorm:"size:20" json:"patient_age"`
	City      string `gorm:"size:100" json:"city"`
	Language  string `gorm:"size:50" json:"language"`
	Diagnosis string `gorm:"size:255" json:"diagnosis"`
	Severity  string `gorm:"size:50" json:"severity,omitempty"`

	Address    string    `gorm:"size:255" json:"patient_address,omitempty"`
	State      string    `gorm:"size:100" json:"state,omitempty"`
	Country    string    `gorm:"size:100" json:"country,omitempty"`
	Profession string    `gorm:"size:100" json:"profession,omitempty"`
	Education  string    `gorm:"size:100" json:"education,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (PatientProfile) TableName() string {
	return "patient_profiles"
}
