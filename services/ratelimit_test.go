package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/examroom/examroom/backend/models"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	request := func(userID string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/problems/shared", nil)
		if userID != "" {
			req = req.WithContext(WithSession(req.Context(), &models.Session{User: &models.User{ID: userID}}))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, request(testUserID))
	assert.Equal(t, http.StatusOK, request(testUserID))
	assert.Equal(t, http.StatusTooManyRequests, request(testUserID))

	// Other users and anonymous clients have their own buckets
	assert.Equal(t, http.StatusOK, request(otherUserID))
	assert.Equal(t, http.StatusOK, request(""))
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.getLimiter("stale")
	rl.getLimiter("fresh")

	rl.mu.Lock()
	rl.limiters["stale"].lastSeen = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	rl.Cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.limiters, "stale")
	assert.Contains(t, rl.limiters, "fresh")
}
