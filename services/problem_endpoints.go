package services

import (
	"log/slog"
	"net/http"

	"github.com/examroom/examroom/backend/models"
	"github.com/go-chi/chi/v5"
)

type ProblemEndpoints struct {
	problems *ProblemService
}

type AddMultipleRequest struct {
	ProblemIDs []int64 `json:"problem_ids"`
}

type GetProblemsResponse struct {
	Problems []models.Problem `json:"problems"`
	Count    int              `json:"count"`
}

func NewProblemEndpoints(problems *ProblemService) *ProblemEndpoints {
	return &ProblemEndpoints{
		problems: problems,
	}
}

func (e *ProblemEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/problems", func(r chi.Router) {
		r.Get("/shared", e.GetSharedHandler)
		r.Get("/mine", e.GetMineHandler)
		r.Get("/search", e.SearchHandler)
		r.Get("/{id}", e.GetProblemHandler)
		r.Patch("/{id}", e.UpdateProblemHandler)
		r.Delete("/{id}", e.DeleteProblemHandler)

		r.Get("/{id}/bookmark", e.GetBookmarkHandler)
		r.Put("/{id}/bookmark", e.AddBookmarkHandler)
		r.Delete("/{id}/bookmark", e.RemoveBookmarkHandler)
	})

	r.Get("/users/{userId}/problems", e.GetUserProblemsHandler)

	r.Route("/workbooks/{workbookId}/problems", func(r chi.Router) {
		r.Post("/", e.AddProblemHandler)
		r.Post("/batch", e.AddMultipleHandler)
	})
}

func writeProblems(w http.ResponseWriter, problems []models.Problem) {
	writeJSON(w, http.StatusOK, GetProblemsResponse{
		Problems: problems,
		Count:    len(problems),
	})
}

func (e *ProblemEndpoints) GetSharedHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	problems, err := e.problems.GetAllShared(r.Context(), user.ID)
	if err != nil {
		slog.Error("Failed to get shared problems", "error", err, "user_id", user.ID)
		writeServiceError(w, err, "Failed to get shared problems")
		return
	}
	writeProblems(w, problems)
}

func (e *ProblemEndpoints) GetMineHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	problems, err := e.problems.GetAllByUserID(r.Context(), user.ID)
	if err != nil {
		slog.Error("Failed to get problems", "error", err, "user_id", user.ID)
		writeServiceError(w, err, "Failed to get problems")
		return
	}
	writeProblems(w, problems)
}

// GetUserProblemsHandler lists a user's problems; ?shared=true limits them to the board.
// Another user's problems are always limited to the shared ones.
func (e *ProblemEndpoints) GetUserProblemsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	userID := chi.URLParam(r, "userId")

	var (
		problems []models.Problem
		err      error
	)
	if r.URL.Query().Get("shared") == "true" || userID != user.ID {
		problems, err = e.problems.GetAllSharedByUserID(r.Context(), userID)
	} else {
		problems, err = e.problems.GetAllByUserID(r.Context(), userID)
	}
	if err != nil {
		slog.Error("Failed to get user problems", "error", err, "user_id", userID)
		writeServiceError(w, err, "Failed to get problems")
		return
	}
	writeProblems(w, problems)
}

func (e *ProblemEndpoints) SearchHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	problems, err := e.problems.Search(
		r.Context(),
		user.ID,
		q.Get("keyword"),
		q.Get("start_date"),
		q.Get("end_date"),
		SearchStatus(q.Get("status")),
	)
	if err != nil {
		slog.Error("Failed to search problems", "error", err, "user_id", user.ID)
		writeServiceError(w, err, "Failed to search problems")
		return
	}
	writeProblems(w, problems)
}

func (e *ProblemEndpoints) GetProblemHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	problem, err := e.problems.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to get problem")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"problem": problem,
	})
}

func (e *ProblemEndpoints) AddProblemHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	workbookID, ok := idParam(w, r, "workbookId")
	if !ok {
		return
	}

	var problem models.Problem
	if !decodeBody(w, r, &problem) {
		return
	}

	rows, err := e.problems.Add(r.Context(), user.ID, workbookID, &problem)
	if err != nil {
		if len(rows) > 0 {
			// The problem exists but is not in the workbook
			writeJSON(w, http.StatusMultiStatus, map[string]interface{}{
				"problems": rows,
				"error":    "Problem created but could not be added to the workbook",
			})
			return
		}
		writeServiceError(w, err, "Failed to create problem")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"problems": rows,
		"message":  "Problem created successfully",
	})
}

func (e *ProblemEndpoints) AddMultipleHandler(w http.ResponseWriter, r *http.Request) {
	workbookID, ok := idParam(w, r, "workbookId")
	if !ok {
		return
	}

	var req AddMultipleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := e.problems.AddMultiple(r.Context(), workbookID, req.ProblemIDs)
	if err != nil {
		writeServiceError(w, err, "Failed to add problems to workbook")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (e *ProblemEndpoints) UpdateProblemHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var patch models.ProblemPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	rows, err := e.problems.Update(r.Context(), user.ID, id, patch)
	if err != nil {
		writeServiceError(w, err, "Failed to update problem")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"problems": rows,
		"message":  "Problem updated successfully",
	})
}

func (e *ProblemEndpoints) DeleteProblemHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	rows, err := e.problems.DeleteOne(r.Context(), user.ID, id)
	if err != nil {
		writeServiceError(w, err, "Failed to delete problem")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"problems": rows,
		"message":  "Problem deleted successfully",
	})
}

func (e *ProblemEndpoints) GetBookmarkHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	problemID, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	bookmarked, err := e.problems.CheckIsShared(r.Context(), user.ID, problemID)
	if err != nil {
		writeServiceError(w, err, "Failed to check bookmark")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bookmarked": bookmarked,
	})
}

func (e *ProblemEndpoints) AddBookmarkHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	problemID, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	rows, err := e.problems.AddShare(r.Context(), user.ID, problemID)
	if err != nil {
		writeServiceError(w, err, "Failed to bookmark problem")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"bookmarks": rows,
	})
}

func (e *ProblemEndpoints) RemoveBookmarkHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	problemID, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	rows, err := e.problems.RemoveShare(r.Context(), user.ID, problemID)
	if err != nil {
		writeServiceError(w, err, "Failed to remove bookmark")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bookmarks": rows,
	})
}
