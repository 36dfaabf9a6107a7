package services

import (
	"log/slog"
	"net/http"

	"github.com/examroom/examroom/backend/metrics"
	"github.com/examroom/examroom/backend/models"
	"github.com/go-chi/chi/v5"
)

const (
	RootPath = "/"
	HomePath = "/home"
)

// RouteMeta carries the flags the guard reads
type RouteMeta struct {
	RequiresAuth bool
	Landing      bool
}

type PageRoute struct {
	Pattern string
	Name    string
	Meta    RouteMeta
}

// PageRoutes are the pages of the web app. Anything else falls through to the app's
// not found page without a session check.
var PageRoutes = []PageRoute{
	{Pattern: "/", Name: "LandingPage", Meta: RouteMeta{Landing: true}},
	{Pattern: "/problem-editor", Name: "ProblemEditor"},
	{Pattern: "/exam", Name: "ExamEnvironment"},
	{Pattern: "/exam-result/{examResultId}", Name: "ExamResult"},

	{Pattern: "/home", Name: "Home", Meta: RouteMeta{RequiresAuth: true}},
	{Pattern: "/mypage", Name: "mypage", Meta: RouteMeta{RequiresAuth: true}},
	{Pattern: "/my-problems", Name: "MyProblems", Meta: RouteMeta{RequiresAuth: true}},
	{Pattern: "/my-problems/{myProblemId}", Name: "MyProblemsDetail", Meta: RouteMeta{RequiresAuth: true}},
	{Pattern: "/my-problem-sets", Name: "MyProblemSets", Meta: RouteMeta{RequiresAuth: true}},
	{Pattern: "/my-problem-sets-update/{problemSetId}", Name: "MyProblemSetsUpdate", Meta: RouteMeta{RequiresAuth: true}},
	{Pattern: "/my-problem-sets/{problemSetId}", Name: "MyProblemSetsDetail", Meta: RouteMeta{RequiresAuth: true}},
	{Pattern: "/problem-board", Name: "ProblemBoard", Meta: RouteMeta{RequiresAuth: true}},
	{Pattern: "/problem-set-board", Name: "ProblemSetBoard", Meta: RouteMeta{RequiresAuth: true}},
	{Pattern: "/exam-room", Name: "ExamRoom", Meta: RouteMeta{RequiresAuth: true}},
	{Pattern: "/create-exam-room", Name: "CreateExamRoom", Meta: RouteMeta{RequiresAuth: true}},
	{Pattern: "/exam-history", Name: "ExamHistory", Meta: RouteMeta{RequiresAuth: true}},
	{Pattern: "/exam-make/{problemSetId}", Name: "ExamMake", Meta: RouteMeta{RequiresAuth: true}},
	{Pattern: "/problem-set-board/{problemSetId}", Name: "ProblemSetBoardDetail", Meta: RouteMeta{RequiresAuth: true}},
	{Pattern: "/problem-board/{problemId}", Name: "ProblemBoardDetail", Meta: RouteMeta{RequiresAuth: true}},
	{Pattern: "/problem-board-update/{problemId}", Name: "ProblemBoardDetailUpdate", Meta: RouteMeta{RequiresAuth: true}},
	{Pattern: "/users/{userId}", Name: "UserProfile", Meta: RouteMeta{RequiresAuth: true}},
}

// NextHop decides where a navigation to a route with meta goes. An empty result means proceed.
func NextHop(session *models.Session, meta RouteMeta) string {
	switch {
	case session == nil && meta.RequiresAuth:
		return RootPath
	case session != nil && meta.Landing:
		return HomePath
	default:
		return ""
	}
}

// Guard redirects page navigations based on the current session
type Guard struct {
	provider SessionProvider
}

func NewGuard(provider SessionProvider) *Guard {
	return &Guard{provider: provider}
}

// Middleware looks the session up again on every navigation
func (g *Guard) Middleware(meta RouteMeta) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := g.provider.GetSession(r)
			if err != nil {
				slog.Warn("Treating invalid session as signed out", "error", err, "path", r.URL.Path)
				session = nil
			}

			switch hop := NextHop(session, meta); hop {
			case RootPath:
				metrics.ObserveGuardDecision("redirect_root")
				http.Redirect(w, r, hop, http.StatusFound)
			case HomePath:
				metrics.ObserveGuardDecision("redirect_home")
				http.Redirect(w, r, hop, http.StatusFound)
			default:
				metrics.ObserveGuardDecision("proceed")
				if session != nil {
					r = r.WithContext(WithSession(r.Context(), session))
				}
				next.ServeHTTP(w, r)
			}
		})
	}
}

// RegisterPages mounts pages behind the guard for every route in routes
func (g *Guard) RegisterPages(r chi.Router, routes []PageRoute, pages http.Handler) {
	for _, route := range routes {
		r.With(g.Middleware(route.Meta)).Get(route.Pattern, pages.ServeHTTP)
	}
}
