package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/examroom/examroom/backend/models"
	"github.com/examroom/examroom/backend/postgrest"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signToken(t *testing.T, subject string, expiresIn time.Duration) string {
	t.Helper()
	claims := SupabaseClaims{
		Email: "student@example.com",
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func newLocalProvider(t *testing.T) *SupabaseSessionProvider {
	t.Helper()
	provider, err := NewSupabaseSessionProvider(SupabaseAuthConfig{JWTSecret: testJWTSecret})
	require.NoError(t, err)
	return provider
}

func TestNewSupabaseSessionProviderRequiresCredentials(t *testing.T) {
	_, err := NewSupabaseSessionProvider(SupabaseAuthConfig{})
	assert.Error(t, err)

	_, err = NewSupabaseSessionProvider(SupabaseAuthConfig{URL: "https://project.supabase.co"})
	assert.Error(t, err)

	_, err = NewSupabaseSessionProvider(SupabaseAuthConfig{URL: "https://project.supabase.co", AnonKey: "anon"})
	assert.NoError(t, err)
}

func TestGetSession(t *testing.T) {
	provider := newLocalProvider(t)
	valid := signToken(t, testUserID, time.Hour)

	t.Run("no token", func(t *testing.T) {
		session, err := provider.GetSession(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+valid)
		session, err := provider.GetSession(req)
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, testUserID, session.User.ID)
		assert.Equal(t, "student@example.com", session.User.Email)
		assert.Equal(t, valid, session.AccessToken)
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: valid})
		req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: "refresh"})
		session, err := provider.GetSession(req)
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, "refresh", session.RefreshToken)
	})

	t.Run("header wins over cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+valid)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "garbage"})
		session, err := provider.GetSession(req)
		require.NoError(t, err)
		assert.NotNil(t, session)
	})

	t.Run("expired", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testUserID, -time.Minute))
		session, err := provider.GetSession(req)
		assert.ErrorIs(t, err, ErrInvalidSession)
		assert.Nil(t, session)
	})

	t.Run("unsigned token", func(t *testing.T) {
		claims := jwt.RegisteredClaims{Subject: testUserID, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		_, err = provider.GetSession(req)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   testUserID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString([]byte("another-secret"))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		_, err = provider.GetSession(req)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})
}

func TestVerifyAccessTokenRemote(t *testing.T) {
	token := signToken(t, testUserID, time.Hour)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(models.User{ID: testUserID, Email: "student@example.com"})
	}))
	defer server.Close()

	provider, err := NewSupabaseSessionProvider(SupabaseAuthConfig{URL: server.URL, AnonKey: "anon"})
	require.NoError(t, err)

	session, err := provider.VerifyAccessToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, testUserID, session.User.ID)
	assert.False(t, session.ExpiresAt.IsZero())

	_, err = provider.VerifyAccessToken(context.Background(), "other")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestRequireSession(t *testing.T) {
	provider := newLocalProvider(t)
	token := signToken(t, testUserID, time.Hour)

	handler := RequireSession(provider)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetCurrentUser(r.Context())
		require.NotNil(t, user)
		assert.Equal(t, testUserID, user.ID)
		assert.Equal(t, token, postgrest.AccessToken(r.Context()))
		assert.NotNil(t, GetCurrentSession(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/problems/mine", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/problems/mine", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthEvents(t *testing.T) {
	events := NewAuthEvents()

	var mu sync.Mutex
	var received []string
	unsubscribe := events.OnAuthStateChange(func(event string, session *models.Session) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, event)
	})
	events.OnAuthStateChange(func(string, *models.Session) { panic("subscriber bug") })

	events.Emit(AuthEventSignedIn, &models.Session{})
	unsubscribe()
	unsubscribe()
	events.Emit(AuthEventSignedOut, &models.Session{})

	assert.Equal(t, []string{AuthEventSignedIn}, received)
}

func TestAuthEndpoints_SignInAndOut(t *testing.T) {
	provider := newLocalProvider(t)
	events := NewAuthEvents()
	var received []string
	events.OnAuthStateChange(func(event string, session *models.Session) {
		received = append(received, event+":"+session.User.ID)
	})

	r := newTestRouter()
	NewAuthEndpoints(provider, events).RegisterRoutes(r)

	token := signToken(t, testUserID, time.Hour)
	body := `{"access_token":"` + token + `","refresh_token":"refresh"}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/session", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}
	require.Contains(t, cookies, AccessTokenCookie)
	assert.Equal(t, token, cookies[AccessTokenCookie].Value)
	assert.True(t, cookies[AccessTokenCookie].HttpOnly)
	assert.Equal(t, "refresh", cookies[RefreshTokenCookie].Value)

	req := httptest.NewRequest(http.MethodDelete, "/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, c := range rec.Result().Cookies() {
		assert.Less(t, c.MaxAge, 0, c.Name)
	}

	assert.Equal(t, []string{
		AuthEventSignedIn + ":" + testUserID,
		AuthEventSignedOut + ":" + testUserID,
	}, received)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/session", strings.NewReader(`{"access_token":"bad"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
