package models

import (
	"time"
)

// Invite asks a user to join a test center
type Invite struct {
	ID           int64     `gorm:"primaryKey" json:"id,omitempty"`
	TargetUID    string    `gorm:"type:uuid;not null;index" json:"target_uid"`
	TestCenterID int64     `gorm:"not null;index" json:"test_center_id"`
	Participate  bool      `gorm:"default:false" json:"participate"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at,omitzero"`

	// Relationships
	TestCenter *TestCenter `gorm:"foreignKey:TestCenterID" json:"test_center,omitempty"`
}

func (Invite) TableName() string {
	return "invite"
}

// TestCenter is the room an exam runs in. Rows created by accepting an invite
// are memberships: they point at the joined room through TestCenterID and are
// unique per (uid, test_center_id).
type TestCenter struct {
	ID           int64     `gorm:"primaryKey" json:"id,omitempty"`
	UID          string    `gorm:"type:uuid;not null;uniqueIndex:idx_test_center_member" json:"uid"`
	TestCenterID *int64    `gorm:"uniqueIndex:idx_test_center_member" json:"test_center_id,omitempty"`
	TargetUID    *string   `gorm:"type:uuid" json:"target_uid,omitempty"`
	Participate  bool      `gorm:"default:false" json:"participate"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at,omitzero"`
}

func (TestCenter) TableName() string {
	return "test_center"
}

// MembershipFromInvite builds the membership row written when userID accepts invite
func MembershipFromInvite(invite Invite, userID string, now time.Time) TestCenter {
	testCenterID := invite.TestCenterID
	targetUID := invite.TargetUID
	return TestCenter{
		UID:          userID,
		TestCenterID: &testCenterID,
		TargetUID:    &targetUID,
		Participate:  invite.Participate,
		CreatedAt:    now,
	}
}
