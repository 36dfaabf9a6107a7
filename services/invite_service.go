package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/examroom/examroom/backend/models"
	"github.com/examroom/examroom/backend/repository"
	ws "github.com/examroom/examroom/backend/websocket"
)

// Notifier pushes events to the connections of a user
type Notifier interface {
	SendToUser(userID string, event ws.Event) error
}

type InviteService struct {
	store    repository.InviteStore
	notifier Notifier
	now      func() time.Time
}

// NewInviteService creates the invite operations. notifier may be nil.
func NewInviteService(store repository.InviteStore, notifier Notifier) *InviteService {
	return &InviteService{store: store, notifier: notifier, now: time.Now}
}

// GetAll returns the invites addressed to userID with their test center
func (s *InviteService) GetAll(ctx context.Context, userID string) ([]models.Invite, error) {
	if err := validateUserID("user_id", userID); err != nil {
		return nil, err
	}
	return s.store.GetInvitesByTarget(ctx, userID)
}

// Add invites targetUserID into testCenterID and notifies them if they are connected
func (s *InviteService) Add(ctx context.Context, targetUserID string, testCenterID int64) ([]models.Invite, error) {
	if err := validateUserID("target_uid", targetUserID); err != nil {
		return nil, err
	}
	if err := validateID("test_center_id", testCenterID); err != nil {
		return nil, err
	}

	rows, err := s.store.CreateInvite(ctx, &models.Invite{TargetUID: targetUserID, TestCenterID: testCenterID})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		for _, invite := range rows {
			if err := s.notifier.SendToUser(targetUserID, ws.Event{Type: ws.EventTypeInvite, Payload: invite}); err != nil {
				slog.Warn("Failed to notify invite target", "error", err, "target_uid", targetUserID, "invite_id", invite.ID)
			}
		}
	}
	return rows, nil
}

// Accept marks invite id as participating and records userID as a member of its test center.
// Accepting twice updates the existing membership.
func (s *InviteService) Accept(ctx context.Context, userID string, id int64) (*repository.InviteAcceptance, error) {
	if err := validateUserID("user_id", userID); err != nil {
		return nil, err
	}
	if err := validateID("id", id); err != nil {
		return nil, err
	}
	return s.store.AcceptInvite(ctx, id, userID, s.now().UTC())
}

// Deny removes invite id when it is addressed to userID and returns the deleted rows
func (s *InviteService) Deny(ctx context.Context, userID string, id int64) ([]models.Invite, error) {
	if err := validateUserID("user_id", userID); err != nil {
		return nil, err
	}
	if err := validateID("id", id); err != nil {
		return nil, err
	}
	return s.store.DeleteInvite(ctx, id, userID)
}
