package services

import (
	"log/slog"
	"net/http"

	"github.com/examroom/examroom/backend/models"
	"github.com/go-chi/chi/v5"
)

type HistoryEndpoints struct {
	history *HistoryService
}

func NewHistoryEndpoints(history *HistoryService) *HistoryEndpoints {
	return &HistoryEndpoints{
		history: history,
	}
}

func (e *HistoryEndpoints) RegisterRoutes(r chi.Router) {
	r.Post("/history", e.AddHistoryHandler)
	r.Get("/test-results/{id}", e.GetTestResultHandler)
	r.Get("/test-centers/{id}/history", e.GetTestCenterHistoryHandler)
}

func (e *HistoryEndpoints) AddHistoryHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var history models.ProblemHistory
	if !decodeBody(w, r, &history) {
		return
	}

	rows, err := e.history.Add(r.Context(), user.ID, &history)
	if err != nil {
		slog.Error("Failed to record attempt", "error", err, "user_id", user.ID, "problem_id", history.ProblemID)
		writeServiceError(w, err, "Failed to record attempt")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"history": rows,
	})
}

func (e *HistoryEndpoints) GetTestResultHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	result, err := e.history.GetTestCenterID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to get test result")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (e *HistoryEndpoints) GetTestCenterHistoryHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	history, err := e.history.GetProblemHistory(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to get test center history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": history,
		"count":   len(history),
	})
}
