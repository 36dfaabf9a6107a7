package services

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type InviteEndpoints struct {
	invites *InviteService
}

type CreateInviteRequest struct {
	TargetUID    string `json:"target_uid"`
	TestCenterID int64  `json:"test_center_id"`
}

func NewInviteEndpoints(invites *InviteService) *InviteEndpoints {
	return &InviteEndpoints{
		invites: invites,
	}
}

func (e *InviteEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/invites", func(r chi.Router) {
		r.Get("/", e.GetInvitesHandler)
		r.Post("/", e.CreateInviteHandler)
		r.Post("/{id}/accept", e.AcceptInviteHandler)
		r.Delete("/{id}", e.DenyInviteHandler)
	})
}

func (e *InviteEndpoints) GetInvitesHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	invites, err := e.invites.GetAll(r.Context(), user.ID)
	if err != nil {
		slog.Error("Failed to get invites", "error", err, "user_id", user.ID)
		writeServiceError(w, err, "Failed to get invites")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"invites": invites,
		"count":   len(invites),
	})
}

func (e *InviteEndpoints) CreateInviteHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateInviteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	invites, err := e.invites.Add(r.Context(), req.TargetUID, req.TestCenterID)
	if err != nil {
		slog.Error("Failed to create invite", "error", err, "user_id", user.ID, "target_uid", req.TargetUID)
		writeServiceError(w, err, "Failed to create invite")
		return
	}

	slog.Info("Invite created", "user_id", user.ID, "target_uid", req.TargetUID, "test_center_id", req.TestCenterID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"invites": invites,
	})
}

func (e *InviteEndpoints) AcceptInviteHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	result, err := e.invites.Accept(r.Context(), user.ID, id)
	if err != nil {
		slog.Error("Failed to accept invite", "error", err, "user_id", user.ID, "invite_id", id)
		writeServiceError(w, err, "Failed to accept invite")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (e *InviteEndpoints) DenyInviteHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	invites, err := e.invites.Deny(r.Context(), user.ID, id)
	if err != nil {
		writeServiceError(w, err, "Failed to deny invite")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"invites": invites,
	})
}
