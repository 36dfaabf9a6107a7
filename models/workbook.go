package models

import (
	"fmt"
	"time"
)

// Workbook is a named problem set
type Workbook struct {
	ID          int64     `gorm:"primaryKey" json:"id,omitempty"`
	UID         string    `gorm:"type:uuid;index" json:"uid"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Shared      bool      `gorm:"default:false" json:"shared"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"created_at,omitzero"`

	// Relationships
	Problems []WorkbookProblem `gorm:"foreignKey:WorkbookID" json:"problems,omitempty"`
}

func (Workbook) TableName() string {
	return "workbook"
}

// WorkbookProblem links a problem into a workbook. The (workbook_id, problem_id) pair is unique.
type WorkbookProblem struct {
	ID         int64     `gorm:"primaryKey" json:"id,omitempty"`
	WorkbookID int64     `gorm:"not null;uniqueIndex:idx_workbook_problem" json:"workbook_id"`
	ProblemID  int64     `gorm:"not null;uniqueIndex:idx_workbook_problem" json:"problem_id"`
	CreatedAt  time.Time `gorm:"not null;default:now()" json:"created_at,omitzero"`
}

func (WorkbookProblem) TableName() string {
	return "workbook_problem"
}

// Key identifies the link independently of its surrogate id
func (wp WorkbookProblem) Key() string {
	return fmt.Sprintf("%d-%d", wp.WorkbookID, wp.ProblemID)
}
