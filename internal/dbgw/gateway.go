// Package dbgw is the sole path to the relational store. Handlers never
// build SQL strings themselves: caller-supplied values always travel as
// bound parameters and table names are call-site constants.
package dbgw

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"schooladmin.org/internal/obs"
)

// ErrDataAccess is the only error the gateway returns to callers. The
// underlying cause, including query text, is logged server-side and never
// reaches a client.
var ErrDataAccess = errors.New("dbgw: data access failure")

// Row is a generic record keyed by column name. Domain tables are opaque
// to the core beyond this shape.
type Row map[string]any

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Gateway wraps a connection pool with parameterized read/write helpers.
type Gateway struct {
	runner
	db *sql.DB
}

// Tx is a gateway scoped to one transaction.
type Tx struct {
	runner
}

// Open connects to Postgres via the pgx stdlib driver.
func Open(dsn string) (*Gateway, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return New(db), nil
}

// errNoStore marks operations attempted before a store was wired.
var errNoStore = errors.New("no store configured")

// New wraps an existing handle. Tests pass a sqlmock db here. A nil db
// yields a gateway whose every operation fails with ErrDataAccess, so a
// process started without a DSN still serves its store-free endpoints.
func New(db *sql.DB) *Gateway {
	g := &Gateway{db: db}
	if db != nil {
		g.runner = runner{dbtx: db}
	}
	return g
}

func (g *Gateway) Close() error {
	if g.db == nil {
		return nil
	}
	return g.db.Close()
}

func (g *Gateway) DB() *sql.DB { return g.db }

// WithTx runs fn inside a transaction, rolling back on error or panic and
// committing otherwise. Multi-statement operations that need a consistent
// snapshot (backup, export) go through here.
func (g *Gateway) WithTx(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) (err error) {
	if g.db == nil {
		return fail("begin transaction", "", errNoStore)
	}
	sqlTx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fail("begin transaction", "", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
			return
		}
		if cerr := sqlTx.Commit(); cerr != nil {
			err = fail("commit transaction", "", cerr)
		}
	}()
	err = fn(ctx, &Tx{runner: runner{dbtx: sqlTx}})
	return err
}

// runner implements the query helpers for both pool and transaction scope.
type runner struct {
	dbtx DBTX
}

// FetchOne returns the first row of a query, or nil when there is none.
// Queries use ? placeholders; they are rebound to $n for the driver.
func (r runner) FetchOne(ctx context.Context, query string, args ...any) (Row, error) {
	rows, err := r.FetchAll(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// FetchAll runs a parameterized query and scans every row generically.
func (r runner) FetchAll(ctx context.Context, query string, args ...any) ([]Row, error) {
	if r.dbtx == nil {
		return nil, fail("query", query, errNoStore)
	}
	rows, err := r.dbtx.QueryContext(ctx, rebind(query), args...)
	if err != nil {
		return nil, fail("query", query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fail("columns", query, err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fail("scan", query, err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("rows", query, err)
	}
	return out, nil
}

// Insert builds a parameterized statement from the field map and returns
// the generated id. Field names come from call-site literals, never from
// request input.
func (r runner) Insert(ctx context.Context, table string, fields Row) (int64, error) {
	if r.dbtx == nil {
		return 0, fail("insert", table, errNoStore)
	}
	if len(fields) == 0 {
		return 0, fail("insert", table, errors.New("no fields"))
	}
	keys := sortedKeys(fields)
	placeholders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = fields[k]
	}
	query := fmt.Sprintf(
		"insert into %s (%s) values (%s) returning id",
		table, strings.Join(keys, ", "), strings.Join(placeholders, ", "),
	)
	var id int64
	if err := r.dbtx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fail("insert", query, err)
	}
	return id, nil
}

// Update applies the field map to rows matched by the where template.
// The template uses ? placeholders; its parameters bind after the set
// clause's own.
func (r runner) Update(ctx context.Context, table string, fields Row, where string, whereArgs ...any) (int64, error) {
	if r.dbtx == nil {
		return 0, fail("update", table, errNoStore)
	}
	if len(fields) == 0 {
		return 0, fail("update", table, errors.New("no fields"))
	}
	keys := sortedKeys(fields)
	setParts := make([]string, len(keys))
	args := make([]any, 0, len(keys)+len(whereArgs))
	for i, k := range keys {
		setParts[i] = fmt.Sprintf("%s = $%d", k, i+1)
		args = append(args, fields[k])
	}
	query := fmt.Sprintf("update %s set %s where %s",
		table, strings.Join(setParts, ", "), rebindFrom(where, len(keys)+1))
	args = append(args, whereArgs...)

	res, err := r.dbtx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fail("update", query, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fail("update rows affected", query, err)
	}
	return n, nil
}

// Delete removes rows matched by the where template.
func (r runner) Delete(ctx context.Context, table, where string, args ...any) (int64, error) {
	if r.dbtx == nil {
		return 0, fail("delete", table, errNoStore)
	}
	query := fmt.Sprintf("delete from %s where %s", table, rebind(where))
	res, err := r.dbtx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fail("delete", query, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fail("delete rows affected", query, err)
	}
	return n, nil
}

// Count returns the number of rows matching the where template; an empty
// template counts the whole table.
func (r runner) Count(ctx context.Context, table, where string, args ...any) (int64, error) {
	if r.dbtx == nil {
		return 0, fail("count", table, errNoStore)
	}
	if where == "" {
		where = "1=1"
	}
	query := fmt.Sprintf("select count(*) from %s where %s", table, rebind(where))
	var n int64
	if err := r.dbtx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fail("count", query, err)
	}
	return n, nil
}

func sortedKeys(fields Row) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// rebind converts ? placeholders to the driver's $n form.
func rebind(query string) string { return rebindFrom(query, 1) }

func rebindFrom(query string, start int) string {
	var b strings.Builder
	n := start
	for _, ch := range query {
		if ch == '?' {
			fmt.Fprintf(&b, "$%d", n)
			n++
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func fail(op, query string, err error) error {
	fields := map[string]any{"op": op}
	if query != "" {
		fields["query"] = query
	}
	obs.LogError("dbgw", "store operation failed", err, fields)
	return ErrDataAccess
}
