package postgrest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{URL: server.URL, APIKey: "anon-key"})
	require.NoError(t, err)
	return client
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing url", Config{APIKey: "k"}},
		{"relative url", Config{URL: "example.supabase.co", APIKey: "k"}},
		{"missing key", Config{URL: "https://example.supabase.co"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestSelectEncodesFiltersAndHeaders(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/problem", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Empty(t, r.Header.Get("Prefer"))

		q := r.URL.Query()
		assert.Equal(t, "*,category(*),history:problem_history(*)", q.Get("select"))
		assert.Equal(t, "eq.true", q.Get("shared"))
		assert.Equal(t, "eq.u1", q.Get("history.uid"))
		assert.Equal(t, "created_at.desc,id.asc", q.Get("order"))
		assert.Equal(t, "5", q.Get("limit"))

		json.NewEncoder(w).Encode([]row{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}})
	})

	var rows []row
	err := client.From("problem").
		Select("*, category(*), history:problem_history(*)").
		Eq("shared", true).
		Filter("history.uid", "eq", "u1").
		Order("created_at", false).
		Order("id", true).
		Limit(5).
		Execute(context.Background(), &rows)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "b", rows[1].Title)
}

func TestRangeAndOrFilters(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "gte.2024-03-01T00:00:00Z", q.Get("created_at"))
		assert.Equal(t, `(title.ilike."%go, rust%",question.ilike."%go, rust%")`, q.Get("or"))
		assert.Equal(t, `in.("1","2")`, q.Get("problem_id"))
		w.Write([]byte("[]"))
	})

	pattern := QuoteValue("%go, rust%")
	var rows []row
	err := client.From("problem").
		Gte("created_at", from).
		Or("title.ilike." + pattern + ",question.ilike." + pattern).
		In("problem_id", 1, 2).
		Execute(context.Background(), &rows)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestUpsertSendsMergePreference(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "workbook_id,problem_id", r.URL.Query().Get("on_conflict"))
		assert.Equal(t, "resolution=merge-duplicates,return=representation", r.Header.Get("Prefer"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `[{"workbook_id":7,"problem_id":1}]`, string(body))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"id":10,"workbook_id":7,"problem_id":1}]`))
	})

	var rows []map[string]interface{}
	err := client.From("workbook_problem").
		Upsert([]map[string]int{{"workbook_id": 7, "problem_id": 1}}, "workbook_id", "problem_id").
		Execute(context.Background(), &rows)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 10, rows[0]["id"])
}

func TestUpdateAndDeleteMethods(t *testing.T) {
	var methods []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		assert.Equal(t, "eq.3", r.URL.Query().Get("id"))
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		w.Write([]byte(`[{"id":3}]`))
	})

	ctx := context.Background()
	require.NoError(t, client.From("problem").Update(map[string]string{"title": "x"}).Eq("id", 3).Execute(ctx, nil))
	require.NoError(t, client.From("problem").Delete().Eq("id", 3).Execute(ctx, nil))
	assert.Equal(t, []string{http.MethodPatch, http.MethodDelete}, methods)
}

func TestSingleNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.pgrst.object+json", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusNotAcceptable)
		w.Write([]byte(`{"code":"PGRST116","message":"JSON object requested, multiple (or no) rows returned","details":"The result contains 0 rows"}`))
	})

	var out row
	err := client.From("problem").Eq("id", 99).Single().Execute(context.Background(), &out)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsConflict(err))

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotAcceptable, apiErr.StatusCode)
	assert.Equal(t, "The result contains 0 rows", apiErr.Details)
}

func TestConflictAndPlainErrors(t *testing.T) {
	status := http.StatusConflict
	body := `{"code":"23505","message":"duplicate key value violates unique constraint"}`
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	})

	err := client.From("shared_problem").Insert(map[string]int{"problem_id": 1}).Execute(context.Background(), nil)
	assert.True(t, IsConflict(err))

	status, body = http.StatusBadGateway, "upstream unavailable"
	err = client.From("shared_problem").Execute(context.Background(), nil)
	require.Error(t, err)
	assert.False(t, IsConflict(err))
	assert.Contains(t, err.Error(), "supabase API error 502: upstream unavailable")
}

func TestAccessTokenOverridesAPIKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		w.Write([]byte("[]"))
	})

	ctx := WithAccessToken(context.Background(), "user-token")
	assert.Equal(t, "user-token", AccessToken(ctx))
	require.NoError(t, client.From("invite").Execute(ctx, nil))
}

func TestQuoteValue(t *testing.T) {
	assert.Equal(t, `"plain"`, QuoteValue("plain"))
	assert.Equal(t, `"say \"hi\""`, QuoteValue(`say "hi"`))
	assert.Equal(t, `"a\\b"`, QuoteValue(`a\b`))
}
