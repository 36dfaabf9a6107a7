package models

import (
	"time"
)

type ProblemType string

const (
	ProblemTypeMultipleChoice ProblemType = "multiple_choice"
	ProblemTypeOX             ProblemType = "ox"
)

// Problem is a single question owned by a user, optionally shared to the board
type Problem struct {
	ID           int64       `gorm:"primaryKey" json:"id,omitempty"`
	UID          string      `gorm:"type:uuid;index" json:"uid"` // Owner
	Title        string      `gorm:"not null" json:"title"`
	Question     string      `gorm:"type:text" json:"question"`
	Answer       string      `json:"answer"`
	Explanation  string      `gorm:"type:text" json:"explanation"`
	OriginSource string      `json:"origin_source"`
	ProblemType  ProblemType `gorm:"type:varchar(32);not null;check:problem_type IN ('multiple_choice', 'ox')" json:"problem_type"`
	CategoryID   *int64      `gorm:"index" json:"category_id"`
	ImageSrc     string      `json:"image_src"`
	OptionOne    string      `json:"option_one"`
	OptionTwo    string      `json:"option_two"`
	OptionThree  string      `json:"option_three"`
	OptionFour   string      `json:"option_four"`
	Shared       bool        `gorm:"default:false" json:"shared"`
	CreatedAt    time.Time   `gorm:"not null;default:now()" json:"created_at,omitzero"`

	// Relationships
	Category *Category        `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	History  []ProblemHistory `gorm:"foreignKey:ProblemID" json:"history,omitempty"`
	Likes    []ProblemLike    `gorm:"foreignKey:ProblemID" json:"likes,omitempty"`
}

func (Problem) TableName() string {
	return "problem"
}

// ForInsert copies the problem's own columns into a new row owned by ownerID. ID, CreatedAt
// and the relationships stay zero so the store assigns them.
func (p *Problem) ForInsert(ownerID string) *Problem {
	return &Problem{
		UID:          ownerID,
		Title:        p.Title,
		Question:     p.Question,
		Answer:       p.Answer,
		Explanation:  p.Explanation,
		OriginSource: p.OriginSource,
		ProblemType:  p.ProblemType,
		CategoryID:   p.CategoryID,
		ImageSrc:     p.ImageSrc,
		OptionOne:    p.OptionOne,
		OptionTwo:    p.OptionTwo,
		OptionThree:  p.OptionThree,
		OptionFour:   p.OptionFour,
		Shared:       p.Shared,
	}
}

// Category groups problems by subject
type Category struct {
	ID   int64  `gorm:"primaryKey" json:"id,omitempty"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

func (Category) TableName() string {
	return "category"
}

// ProblemLike marks a user's like on a shared problem
type ProblemLike struct {
	ID        int64     `gorm:"primaryKey" json:"id,omitempty"`
	UID       string    `gorm:"type:uuid;not null;uniqueIndex:idx_problem_like_user" json:"uid"`
	ProblemID int64     `gorm:"not null;uniqueIndex:idx_problem_like_user" json:"problem_id"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at,omitzero"`
}

func (ProblemLike) TableName() string {
	return "problem_like"
}

// SharedProblem is a per-user bookmark on a problem. It is unrelated to Problem.Shared,
// which publishes the problem to the board.
type SharedProblem struct {
	ID        int64     `gorm:"primaryKey" json:"id,omitempty"`
	UID       string    `gorm:"type:uuid;not null;uniqueIndex:idx_shared_problem_user" json:"uid"`
	ProblemID int64     `gorm:"not null;uniqueIndex:idx_shared_problem_user" json:"problem_id"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at,omitzero"`
}

func (SharedProblem) TableName() string {
	return "shared_problem"
}

// ProblemPatch carries a partial problem update. Nil fields are left untouched.
type ProblemPatch struct {
	Title        *string      `json:"title,omitempty"`
	Question     *string      `json:"question,omitempty"`
	Answer       *string      `json:"answer,omitempty"`
	Explanation  *string      `json:"explanation,omitempty"`
	OriginSource *string      `json:"origin_source,omitempty"`
	ProblemType  *ProblemType `json:"problem_type,omitempty"`
	CategoryID   *int64       `json:"category_id,omitempty"`
	ImageSrc     *string      `json:"image_src,omitempty"`
	OptionOne    *string      `json:"option_one,omitempty"`
	OptionTwo    *string      `json:"option_two,omitempty"`
	OptionThree  *string      `json:"option_three,omitempty"`
	OptionFour   *string      `json:"option_four,omitempty"`
	Shared       *bool        `json:"shared,omitempty"`
}

// Fields returns the set columns keyed by column name
func (p ProblemPatch) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	setString := func(column string, v *string) {
		if v != nil {
			fields[column] = *v
		}
	}

	setString("title", p.Title)
	setString("question", p.Question)
	setString("answer", p.Answer)
	setString("explanation", p.Explanation)
	setString("origin_source", p.OriginSource)
	setString("image_src", p.ImageSrc)
	setString("option_one", p.OptionOne)
	setString("option_two", p.OptionTwo)
	setString("option_three", p.OptionThree)
	setString("option_four", p.OptionFour)
	if p.ProblemType != nil {
		fields["problem_type"] = string(*p.ProblemType)
	}
	if p.CategoryID != nil {
		fields["category_id"] = *p.CategoryID
	}
	if p.Shared != nil {
		fields["shared"] = *p.Shared
	}
	return fields
}
