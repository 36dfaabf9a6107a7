package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/examroom/examroom/backend/metrics"
)

// QueryBuilder accumulates one PostgREST request. Builders are not safe for concurrent use
// and should not be reused after Execute.
type QueryBuilder struct {
	client *Client
	table  string
	method string
	params url.Values
	prefer []string
	body   interface{}
	single bool
	op     string
}

// Select sets the returned columns, including embedded relations such as
// "*, category(*), history:problem_history(*)". On mutations it selects the returned rows.
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.params.Set("select", cleanColumns(columns))
	return q
}

// Insert turns the query into an insert of rows (a struct, map or slice of either).
func (q *QueryBuilder) Insert(rows interface{}) *QueryBuilder {
	q.method = http.MethodPost
	q.op = "insert"
	q.body = rows
	return q
}

// Upsert inserts rows, merging into existing rows that collide on onConflict.
func (q *QueryBuilder) Upsert(rows interface{}, onConflict ...string) *QueryBuilder {
	q.method = http.MethodPost
	q.op = "upsert"
	q.body = rows
	q.prefer = append(q.prefer, "resolution=merge-duplicates")
	if len(onConflict) > 0 {
		q.params.Set("on_conflict", strings.Join(onConflict, ","))
	}
	return q
}

// Update turns the query into a partial update of the filtered rows with patch.
func (q *QueryBuilder) Update(patch interface{}) *QueryBuilder {
	q.method = http.MethodPatch
	q.op = "update"
	q.body = patch
	return q
}

// Delete turns the query into a delete of the filtered rows.
func (q *QueryBuilder) Delete() *QueryBuilder {
	q.method = http.MethodDelete
	q.op = "delete"
	return q
}

// Filter adds a raw "column=operator.value" filter.
func (q *QueryBuilder) Filter(column, operator string, value interface{}) *QueryBuilder {
	q.params.Add(column, operator+"."+formatValue(value))
	return q
}

func (q *QueryBuilder) Eq(column string, value interface{}) *QueryBuilder {
	return q.Filter(column, "eq", value)
}

func (q *QueryBuilder) Neq(column string, value interface{}) *QueryBuilder {
	return q.Filter(column, "neq", value)
}

func (q *QueryBuilder) Gt(column string, value interface{}) *QueryBuilder {
	return q.Filter(column, "gt", value)
}

func (q *QueryBuilder) Gte(column string, value interface{}) *QueryBuilder {
	return q.Filter(column, "gte", value)
}

func (q *QueryBuilder) Lt(column string, value interface{}) *QueryBuilder {
	return q.Filter(column, "lt", value)
}

func (q *QueryBuilder) Lte(column string, value interface{}) *QueryBuilder {
	return q.Filter(column, "lte", value)
}

// ILike matches column case-insensitively against pattern ('%' and '_' wildcards).
func (q *QueryBuilder) ILike(column, pattern string) *QueryBuilder {
	return q.Filter(column, "ilike", pattern)
}

// In matches column against any of values.
func (q *QueryBuilder) In(column string, values ...interface{}) *QueryBuilder {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, QuoteValue(formatValue(v)))
	}
	return q.Filter(column, "in", "("+strings.Join(parts, ",")+")")
}

// Is matches column against null, true or false.
func (q *QueryBuilder) Is(column, value string) *QueryBuilder {
	return q.Filter(column, "is", value)
}

// Or adds a disjunction such as "title.ilike.%go%,question.ilike.%go%".
// Values containing reserved characters must be wrapped with QuoteValue.
func (q *QueryBuilder) Or(filters string) *QueryBuilder {
	q.params.Add("or", "("+filters+")")
	return q
}

// Order sorts by column. Repeated calls add tie-breakers.
func (q *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	term := column + "." + dir
	if existing := q.params.Get("order"); existing != "" {
		term = existing + "," + term
	}
	q.params.Set("order", term)
	return q
}

func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.params.Set("limit", strconv.Itoa(n))
	return q
}

// Single requires exactly one row and decodes it as an object rather than an array.
// Zero or several rows yield an *Error for which IsNotFound reports true.
func (q *QueryBuilder) Single() *QueryBuilder {
	q.single = true
	return q
}

// Execute sends the request and decodes the response body into dest (nil discards it).
func (q *QueryBuilder) Execute(ctx context.Context, dest interface{}) (err error) {
	if q.table == "" {
		return fmt.Errorf("table is required")
	}

	op := q.op
	if op == "" {
		op = "select"
	}
	start := time.Now()
	defer func() {
		metrics.ObserveRemoteCall(q.table, op, err, time.Since(start))
	}()

	endpoint := q.client.restURL + "/" + url.PathEscape(q.table)
	if encoded := q.params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var reqBody io.Reader
	if q.body != nil {
		payload, err := json.Marshal(q.body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, q.method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("apikey", q.client.apiKey)
	req.Header.Set("Authorization", "Bearer "+q.client.bearer(ctx))
	req.Header.Set("Content-Type", "application/json")
	if q.single {
		req.Header.Set("Accept", "application/vnd.pgrst.object+json")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	prefer := q.prefer
	if q.method != http.MethodGet {
		prefer = append(prefer, "return=representation")
	}
	if len(prefer) > 0 {
		req.Header.Set("Prefer", strings.Join(prefer, ","))
	}

	resp, err := q.client.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return parseError(resp.StatusCode, body)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(body) > maxResponseBytes {
		return fmt.Errorf("response from %s exceeds %d bytes", q.table, maxResponseBytes)
	}
	if dest == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("unmarshal %s response: %w", q.table, err)
	}
	return nil
}

// QuoteValue wraps v in double quotes so reserved characters (",.:()") survive inside
// Or and In lists.
func QuoteValue(v string) string {
	escaped := strings.ReplaceAll(v, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// cleanColumns strips whitespace outside of quoted identifiers.
func cleanColumns(columns string) string {
	var b strings.Builder
	quoted := false
	for _, r := range columns {
		if r == '"' {
			quoted = !quoted
		}
		if !quoted && unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
