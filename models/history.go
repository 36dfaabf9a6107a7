package models

import (
	"time"
)

const (
	HistoryStatusCorrect = "correct"
	HistoryStatusWrong   = "wrong"
)

// ProblemHistory records one attempt of a user at a problem inside a test center
type ProblemHistory struct {
	ID           int64     `gorm:"primaryKey" json:"id,omitempty"`
	UID          string    `gorm:"type:uuid;not null;index" json:"uid,omitempty"`
	ProblemID    int64     `gorm:"not null;index" json:"problem_id"`
	TestCenterID *int64    `gorm:"index" json:"test_center_id,omitempty"`
	MyOption     string    `json:"my_option"`
	Status       string    `gorm:"type:varchar(16)" json:"status"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at,omitzero"`
}

func (ProblemHistory) TableName() string {
	return "problem_history"
}

// TestResult is a completed exam attempt inside a test center
type TestResult struct {
	ID           int64     `gorm:"primaryKey" json:"id,omitempty"`
	UID          string    `gorm:"type:uuid;index" json:"uid,omitempty"`
	TestCenterID int64     `gorm:"not null;index" json:"test_center_id"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at,omitzero"`
}

func (TestResult) TableName() string {
	return "test_result"
}
