// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Query builds a PostgREST read against one table.
type Query struct {
	client  *Client
	table   string
	columns string
	filters url.Values
	orders  []string
	limit   int
}

// From starts a query on table.
func (c *Client) From(table string) *Query {
	return &Query{client: c, table: table, columns: "*", filters: url.Values{}}
}

// Select sets the column list.
func (q *Query) Select(columns string) *Query {
	q.columns = columns
	return q
}

// Eq filters column = value.
func (q *Query) Eq(column string, value any) *Query {
	return q.filter(column, "eq", value)
}

// Gte filters column >= value.
func (q *Query) Gte(column string, value any) *Query {
	return q.filter(column, "gte", value)
}

// Is filters column IS value (null, true, false).
func (q *Query) Is(column string, value any) *Query {
	return q.filter(column, "is", value)
}

func (q *Query) filter(column, op string, value any) *Query {
	q.filters.Add(column, op+"."+fmt.Sprint(value))
	return q
}

// Order sorts by column. Later calls add tie-breakers.
func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

// Limit caps the number of rows.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Values returns the encoded query parameters.
func (q *Query) Values() url.Values {
	v := url.Values{}
	for k, vals := range q.filters {
		v[k] = append([]string(nil), vals...)
	}
	v.Set("select", q.columns)
	if len(q.orders) > 0 {
		v.Set("order", strings.Join(q.orders, ","))
	}
	if q.limit > 0 {
		v.Set("limit", strconv.Itoa(q.limit))
	}
	return v
}

// Execute runs the query with the given access token and returns the raw
// JSON array.
func (q *Query) Execute(ctx context.Context, token string) ([]byte, error) {
	raw, _, err := q.client.do(ctx, request{
		api:    "rest",
		method: http.MethodGet,
		path:   "/rest/v1/" + url.PathEscape(q.table),
		query:  q.Values(),
		token:  token,
	})
	return raw, err
}

// ExecuteInto runs the query and decodes the rows into dest.
func (q *Query) ExecuteInto(ctx context.Context, token string, dest any) error {
	raw, err := q.Execute(ctx, token)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s rows: %w", q.table, err)
	}
	return nil
}

// RPC calls a Postgres function and returns its raw JSON result.
func (c *Client) RPC(ctx context.Context, fn string, params any, token string) ([]byte, error) {
	if params == nil {
		params = map[string]any{}
	}
	raw, _, err := c.do(ctx, request{
		api:    "rpc",
		method: http.MethodPost,
		path:   "/rest/v1/rpc/" + url.PathEscape(fn),
		body:   params,
		token:  token,
	})
	return raw, err
}
