package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/examroom/examroom/backend/models"
	"github.com/examroom/examroom/backend/postgrest"
	"github.com/golang-jwt/jwt/v5"
)

const (
	AccessTokenCookie  = "sb-access-token"
	RefreshTokenCookie = "sb-refresh-token"

	refreshCookieMaxAge = 30 * 24 * time.Hour
)

// ErrInvalidSession is returned for tokens that are present but cannot be verified
var ErrInvalidSession = errors.New("invalid session")

// SessionProvider resolves the Supabase session carried by a request
type SessionProvider interface {
	// GetSession returns nil without error when the request carries no token.
	GetSession(r *http.Request) (*models.Session, error)
}

type contextKey string

const (
	userContextKey    contextKey = "user"
	sessionContextKey contextKey = "session"
)

// SupabaseClaims are the access token claims issued by Supabase Auth
type SupabaseClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type SupabaseAuthConfig struct {
	URL        string
	AnonKey    string
	JWTSecret  string
	Secure     bool // mark cookies Secure
	HTTPClient *http.Client
}

// SupabaseSessionProvider verifies Supabase access tokens locally with the project JWT
// secret, or against the Auth API when no secret is configured.
type SupabaseSessionProvider struct {
	authURL    string
	anonKey    string
	jwtSecret  []byte
	secure     bool
	httpClient *http.Client
}

func NewSupabaseSessionProvider(cfg SupabaseAuthConfig) (*SupabaseSessionProvider, error) {
	if cfg.JWTSecret == "" && (cfg.URL == "" || cfg.AnonKey == "") {
		return nil, fmt.Errorf("supabase JWT secret or URL and anon key are required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SupabaseSessionProvider{
		authURL:    strings.TrimRight(cfg.URL, "/") + "/auth/v1",
		anonKey:    cfg.AnonKey,
		jwtSecret:  []byte(cfg.JWTSecret),
		secure:     cfg.Secure,
		httpClient: client,
	}, nil
}

// GetSession reads the access token from the Authorization header or the session cookie
func (p *SupabaseSessionProvider) GetSession(r *http.Request) (*models.Session, error) {
	token := bearerToken(r)
	if token == "" {
		token = cookieValue(r, AccessTokenCookie)
	}
	if token == "" {
		return nil, nil
	}

	session, err := p.VerifyAccessToken(r.Context(), token)
	if err != nil {
		return nil, err
	}
	session.RefreshToken = cookieValue(r, RefreshTokenCookie)
	return session, nil
}

// VerifyAccessToken checks token and returns the session it represents
func (p *SupabaseSessionProvider) VerifyAccessToken(ctx context.Context, token string) (*models.Session, error) {
	if len(p.jwtSecret) > 0 {
		return p.verifyLocal(token)
	}
	return p.verifyRemote(ctx, token)
}

func (p *SupabaseSessionProvider) verifyLocal(token string) (*models.Session, error) {
	claims := &SupabaseClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.jwtSecret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidSession
	}

	return &models.Session{
		AccessToken: token,
		ExpiresAt:   claims.ExpiresAt.Time,
		User: &models.User{
			ID:    claims.Subject,
			Email: claims.Email,
			Role:  claims.Role,
		},
	}, nil
}

func (p *SupabaseSessionProvider) verifyRemote(ctx context.Context, token string) (*models.Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.authURL+"/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", p.anonKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		slog.Warn("Supabase rejected access token", "status", resp.StatusCode, "body", string(body))
		return nil, ErrInvalidSession
	}

	var user models.User
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode supabase user: %w", err)
	}
	if user.ID == "" {
		return nil, ErrInvalidSession
	}

	session := &models.Session{AccessToken: token, User: &user}
	// Already verified by Supabase; the claims are only read for the expiry.
	claims := &SupabaseClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil && claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// SetSessionCookies stores the Supabase tokens in HTTP-only cookies
func (p *SupabaseSessionProvider) SetSessionCookies(w http.ResponseWriter, session *models.Session) {
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, p.cookie(AccessTokenCookie, session.AccessToken, maxAge))
	if session.RefreshToken != "" {
		http.SetCookie(w, p.cookie(RefreshTokenCookie, session.RefreshToken, int(refreshCookieMaxAge.Seconds())))
	}
}

// ClearSessionCookies expires the session cookies
func (p *SupabaseSessionProvider) ClearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, p.cookie(name, "", -1))
	}
}

func (p *SupabaseSessionProvider) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

// RequireSession rejects API requests without a valid session and stores the session in
// the request context. The access token is forwarded to the data client so row level
// security applies to the caller.
func RequireSession(provider SessionProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := provider.GetSession(r)
			if err != nil {
				slog.Warn("Rejected request with invalid session", "error", err, "path", r.URL.Path)
			}
			if session == nil || session.User == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// WithSession returns ctx carrying session, its user and its access token
func WithSession(ctx context.Context, session *models.Session) context.Context {
	ctx = context.WithValue(ctx, sessionContextKey, session)
	ctx = context.WithValue(ctx, userContextKey, session.User)
	return postgrest.WithAccessToken(ctx, session.AccessToken)
}

// GetCurrentUser returns the user stored by RequireSession, or nil
func GetCurrentUser(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

// GetCurrentSession returns the session stored by RequireSession, or nil
func GetCurrentSession(ctx context.Context) *models.Session {
	session, _ := ctx.Value(sessionContextKey).(*models.Session)
	return session
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
