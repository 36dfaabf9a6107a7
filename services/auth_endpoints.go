package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// AuthEndpoints exchanges tokens issued by Supabase Auth for session cookies. Sign in itself
// happens against Supabase; this service never sees credentials.
type AuthEndpoints struct {
	provider *SupabaseSessionProvider
	events   *AuthEvents
}

type SessionRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func NewAuthEndpoints(provider *SupabaseSessionProvider, events *AuthEvents) *AuthEndpoints {
	return &AuthEndpoints{
		provider: provider,
		events:   events,
	}
}

func (e *AuthEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/session", e.SignInHandler)
		r.Delete("/session", e.SignOutHandler)

		r.Group(func(r chi.Router) {
			r.Use(RequireSession(e.provider))
			r.Get("/me", e.MeHandler)
		})
	})
}

func (e *AuthEndpoints) SignInHandler(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccessToken == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := e.provider.VerifyAccessToken(r.Context(), req.AccessToken)
	if err != nil {
		slog.Warn("Sign in rejected", "error", err)
		if errors.Is(err, ErrInvalidSession) {
			http.Error(w, "Invalid access token", http.StatusUnauthorized)
		} else {
			http.Error(w, "Failed to verify session", http.StatusBadGateway)
		}
		return
	}
	session.RefreshToken = req.RefreshToken

	e.provider.SetSessionCookies(w, session)
	e.events.Emit(AuthEventSignedIn, session)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"user":       session.User,
		"expires_at": session.ExpiresAt,
		"message":    "Signed in",
	})

	slog.Info("User signed in", "user_id", session.User.ID, "email", session.User.Email)
}

func (e *AuthEndpoints) SignOutHandler(w http.ResponseWriter, r *http.Request) {
	session, err := e.provider.GetSession(r)
	if err != nil {
		slog.Warn("Signing out an invalid session", "error", err)
	}

	e.provider.ClearSessionCookies(w)
	if session != nil {
		e.events.Emit(AuthEventSignedOut, session)
		slog.Info("User signed out", "user_id", session.User.ID)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Signed out",
	})
}

func (e *AuthEndpoints) MeHandler(w http.ResponseWriter, r *http.Request) {
	user := GetCurrentUser(r.Context())
	if user == nil {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"user": user,
	})
}
