package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/examroom/examroom/backend/models"
	"github.com/examroom/examroom/backend/repository"
)

const (
	testUserID  = "6f1d1a4e-8f5b-4c8e-9a53-2d7c2b7f1a01"
	otherUserID = "0b8e6c1c-2b1f-4d7a-8a8e-8f3f1e2d4c02"
)

// memoryStore is an in-memory repository.Store. Setting err makes every call fail with it.
type memoryStore struct {
	mu sync.Mutex

	err   error
	calls int

	nextID    int64
	problems  map[int64]models.Problem
	links     map[string]models.WorkbookProblem
	bookmarks map[string]models.SharedProblem
	invites   map[int64]models.Invite
	members   map[string]models.TestCenter
	history   []models.ProblemHistory
	results   map[int64]models.TestResult
}

var _ repository.Store = (*memoryStore)(nil)

func newMemoryStore() *memoryStore {
	return &memoryStore{
		nextID:    100,
		problems:  make(map[int64]models.Problem),
		links:     make(map[string]models.WorkbookProblem),
		bookmarks: make(map[string]models.SharedProblem),
		invites:   make(map[int64]models.Invite),
		members:   make(map[string]models.TestCenter),
		results:   make(map[int64]models.TestResult),
	}
}

func (m *memoryStore) enter() error {
	m.mu.Lock()
	m.calls++
	return m.err
}

func (m *memoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryStore) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *memoryStore) addProblem(p models.Problem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.problems[p.ID] = p
}

func (m *memoryStore) sortedProblems(keep func(models.Problem) bool) []models.Problem {
	out := []models.Problem{}
	for _, p := range m.problems {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memoryStore) Ping(ctx context.Context) error {
	defer m.mu.Unlock()
	return m.enter()
}

func (m *memoryStore) GetInvitesByTarget(ctx context.Context, targetUID string) ([]models.Invite, error) {
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	out := []models.Invite{}
	for _, inv := range m.invites {
		if inv.TargetUID == targetUID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *memoryStore) CreateInvite(ctx context.Context, invite *models.Invite) ([]models.Invite, error) {
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	invite.ID = m.id()
	m.invites[invite.ID] = *invite
	return []models.Invite{*invite}, nil
}

func (m *memoryStore) AcceptInvite(ctx context.Context, id int64, userID string, now time.Time) (*repository.InviteAcceptance, error) {
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	inv, ok := m.invites[id]
	if !ok || inv.TargetUID != userID {
		return nil, repository.ErrNotFound
	}
	inv.Participate = true
	m.invites[id] = inv

	key := fmt.Sprintf("%s-%d", userID, inv.TestCenterID)
	membership := models.MembershipFromInvite(inv, userID, now)
	if existing, ok := m.members[key]; ok {
		membership.ID = existing.ID
	} else {
		membership.ID = m.id()
	}
	m.members[key] = membership
	return &repository.InviteAcceptance{Invite: inv, Membership: membership}, nil
}

func (m *memoryStore) DeleteInvite(ctx context.Context, id int64, userID string) ([]models.Invite, error) {
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	inv, ok := m.invites[id]
	if !ok || inv.TargetUID != userID {
		return []models.Invite{}, nil
	}
	delete(m.invites, id)
	return []models.Invite{inv}, nil
}

func (m *memoryStore) GetSharedProblems(ctx context.Context, userID string) ([]models.Problem, error) {
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	return m.sortedProblems(func(p models.Problem) bool { return p.Shared }), nil
}

func (m *memoryStore) GetProblemsByOwner(ctx context.Context, ownerID string, sharedOnly bool) ([]models.Problem, error) {
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	return m.sortedProblems(func(p models.Problem) bool {
		return p.UID == ownerID && (!sharedOnly || p.Shared)
	}), nil
}

func (m *memoryStore) SearchProblems(ctx context.Context, q repository.ProblemQuery) ([]models.Problem, error) {
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	kw := strings.ToLower(q.Keyword)
	return m.sortedProblems(func(p models.Problem) bool {
		if kw != "" && !strings.Contains(strings.ToLower(p.Title), kw) && !strings.Contains(strings.ToLower(p.Question), kw) {
			return false
		}
		if q.CreatedFrom != nil && p.CreatedAt.Before(*q.CreatedFrom) {
			return false
		}
		if q.CreatedBefore != nil && !p.CreatedAt.Before(*q.CreatedBefore) {
			return false
		}
		return true
	}), nil
}

func (m *memoryStore) GetProblem(ctx context.Context, id int64) (*models.Problem, error) {
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	p, ok := m.problems[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (m *memoryStore) CreateProblem(ctx context.Context, problem *models.Problem) ([]models.Problem, error) {
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	problem.ID = m.id()
	m.problems[problem.ID] = *problem
	return []models.Problem{*problem}, nil
}

func (m *memoryStore) UpdateProblem(ctx context.Context, id int64, ownerID string, fields map[string]interface{}) ([]models.Problem, error) {
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	p, ok := m.problems[id]
	if !ok || p.UID != ownerID {
		return []models.Problem{}, nil
	}
	if title, ok := fields["title"].(string); ok {
		p.Title = title
	}
	if shared, ok := fields["shared"].(bool); ok {
		p.Shared = shared
	}
	m.problems[id] = p
	return []models.Problem{p}, nil
}

func (m *memoryStore) DeleteProblem(ctx context.Context, id int64, ownerID string) ([]models.Problem, error) {
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	p, ok := m.problems[id]
	if !ok || p.UID != ownerID {
		return []models.Problem{}, nil
	}
	delete(m.problems, id)
	return []models.Problem{p}, nil
}

func (m *memoryStore) CreateWorkbookProblem(ctx context.Context, link *models.WorkbookProblem) ([]models.WorkbookProblem, error) {
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	if _, ok := m.links[link.Key()]; ok {
		return nil, repository.ErrConflict
	}
	link.ID = m.id()
	m.links[link.Key()] = *link
	return []models.WorkbookProblem{*link}, nil
}

func (m *memoryStore) GetWorkbookProblems(ctx context.Context, workbookID int64, problemIDs []int64) ([]models.WorkbookProblem, error) {
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	out := []models.WorkbookProblem{}
	for _, pid := range problemIDs {
		if link, ok := m.links[models.WorkbookProblem{WorkbookID: workbookID, ProblemID: pid}.Key()]; ok {
			out = append(out, link)
		}
	}
	return out, nil
}

func (m *memoryStore) UpsertWorkbookProblems(ctx context.Context, links []models.WorkbookProblem) ([]models.WorkbookProblem, error) {
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	out := make([]models.WorkbookProblem, 0, len(links))
	for _, link := range links {
		if existing, ok := m.links[link.Key()]; ok {
			out = append(out, existing)
			continue
		}
		link.ID = m.id()
		m.links[link.Key()] = link
		out = append(out, link)
	}
	return out, nil
}

func bookmarkKey(uid string, problemID int64) string {
	return fmt.Sprintf("%s-%d", uid, problemID)
}

func (m *memoryStore) GetBookmark(ctx context.Context, uid string, problemID int64) (*models.SharedProblem, error) {
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	b, ok := m.bookmarks[bookmarkKey(uid, problemID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (m *memoryStore) CreateBookmark(ctx context.Context, bookmark *models.SharedProblem) ([]models.SharedProblem, error) {
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	key := bookmarkKey(bookmark.UID, bookmark.ProblemID)
	if _, ok := m.bookmarks[key]; ok {
		return nil, repository.ErrConflict
	}
	bookmark.ID = m.id()
	m.bookmarks[key] = *bookmark
	return []models.SharedProblem{*bookmark}, nil
}

func (m *memoryStore) DeleteBookmark(ctx context.Context, uid string, problemID int64) ([]models.SharedProblem, error) {
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	key := bookmarkKey(uid, problemID)
	b, ok := m.bookmarks[key]
	if !ok {
		return []models.SharedProblem{}, nil
	}
	delete(m.bookmarks, key)
	return []models.SharedProblem{b}, nil
}

func (m *memoryStore) CreateHistory(ctx context.Context, history *models.ProblemHistory) ([]models.ProblemHistory, error) {
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	history.ID = m.id()
	m.history = append(m.history, *history)
	return []models.ProblemHistory{*history}, nil
}

func (m *memoryStore) GetHistoryByUser(ctx context.Context, userID string) ([]models.ProblemHistory, error) {
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	out := []models.ProblemHistory{}
	for _, h := range m.history {
		if h.UID == userID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newerAttempt(out[i], out[j]) })
	return out, nil
}

func (m *memoryStore) GetHistoryByTestCenter(ctx context.Context, testCenterID int64) ([]models.ProblemHistory, error) {
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	out := []models.ProblemHistory{}
	for _, h := range m.history {
		if h.TestCenterID != nil && *h.TestCenterID == testCenterID {
			out = append(out, models.ProblemHistory{ProblemID: h.ProblemID, MyOption: h.MyOption, Status: h.Status})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ProblemID < out[j].ProblemID })
	return out, nil
}

func (m *memoryStore) GetTestResult(ctx context.Context, id int64) (*models.TestResult, error) {
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	r, ok := m.results[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}
