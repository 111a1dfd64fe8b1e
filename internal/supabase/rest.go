package supabase

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Query is a PostgREST request against one table. Filters accumulate and are
// applied to whichever verb executes the query.
type Query struct {
	c       *Client
	table   string
	filters url.Values
	order   []string
}

func (c *Client) From(table string) *Query {
	return &Query{c: c, table: table, filters: url.Values{}}
}

func (q *Query) Eq(column, value string) *Query {
	q.filters.Add(column, "eq."+value)
	return q
}

// ILike adds a case-insensitive pattern match; % matches any run of characters.
func (q *Query) ILike(column, pattern string) *Query {
	q.filters.Add(column, "ilike."+pattern)
	return q
}

func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.order = append(q.order, column+"."+dir)
	return q
}

func (q *Query) query(extra url.Values) url.Values {
	out := url.Values{}
	for k, vs := range q.filters {
		out[k] = append([]string(nil), vs...)
	}
	if len(q.order) > 0 {
		out.Set("order", strings.Join(q.order, ","))
	}
	for k, vs := range extra {
		out[k] = vs
	}
	return out
}

func (q *Query) path() string {
	return "/rest/v1/" + q.table
}

// Select decodes matching rows into out, which must be a pointer to a slice.
func (q *Query) Select(ctx context.Context, columns string, out any) error {
	if columns == "" {
		columns = "*"
	}
	return q.c.do(ctx, request{
		method: http.MethodGet,
		path:   q.path(),
		query:  q.query(url.Values{"select": {columns}}),
	}, out)
}

// Insert creates row and decodes the stored representation into out.
func (q *Query) Insert(ctx context.Context, row any, out any) error {
	return q.c.do(ctx, request{
		method:  http.MethodPost,
		path:    q.path(),
		query:   url.Values{"select": {"*"}},
		body:    []any{row},
		headers: map[string]string{"Prefer": "return=representation"},
	}, out)
}

// Update patches every row matching the filters and decodes the changed rows.
func (q *Query) Update(ctx context.Context, patch any, out any) error {
	return q.c.do(ctx, request{
		method:  http.MethodPatch,
		path:    q.path(),
		query:   q.query(url.Values{"select": {"*"}}),
		body:    patch,
		headers: map[string]string{"Prefer": "return=representation"},
	}, out)
}

// Delete removes every row matching the filters and decodes the removed rows.
func (q *Query) Delete(ctx context.Context, out any) error {
	return q.c.do(ctx, request{
		method:  http.MethodDelete,
		path:    q.path(),
		query:   q.query(url.Values{"select": {"*"}}),
		headers: map[string]string{"Prefer": "return=representation"},
	}, out)
}
