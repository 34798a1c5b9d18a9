// Package store implements the customer store on PostgreSQL using pgx.
//
// Writes are upserts keyed by id inside a caller-scoped transaction, so
// re-importing the same file leaves the table unchanged. Reads stream the
// whole table in ascending id order, one keyset page at a time.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/batchcsv/internal/core"
)

// DefaultPageSize is the number of rows fetched per export query.
const DefaultPageSize = 500

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Options configures a Postgres store.
type Options struct {
	Table    string // Table name, optionally schema-qualified (default "customers")
	PageSize int    // Rows per export page (default DefaultPageSize)
}

// Postgres is a core.Store backed by one PostgreSQL table.
type Postgres struct {
	db       DB
	table    string
	pageSize int

	createSQL    string
	upsertSQL    string
	firstPageSQL string
	nextPageSQL  string
	countSQL     string
}

// New creates a store over db. The table is not touched until first use.
func New(db DB, opts Options) (*Postgres, error) {
	if db == nil {
		return nil, errors.New("store: nil database")
	}
	if opts.Table == "" {
		opts.Table = "customers"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}

	table := quoteTable(opts.Table)
	cols := core.CustomerDBColumns()

	return &Postgres{
		db:           db,
		table:        opts.Table,
		pageSize:     opts.PageSize,
		createSQL:    buildCreateSQL(table, cols),
		upsertSQL:    buildUpsertSQL(table, cols),
		firstPageSQL: buildPageSQL(table, cols, false),
		nextPageSQL:  buildPageSQL(table, cols, true),
		countSQL:     "SELECT count(*) FROM " + table,
	}, nil
}

// Table returns the configured table name.
func (p *Postgres) Table() string { return p.table }

// EnsureTable creates the customer table if it does not exist.
func (p *Postgres) EnsureTable(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, p.createSQL); err != nil {
		return fmt.Errorf("create table %s: %w", p.table, describePgError(err))
	}
	return nil
}

// Count returns the number of rows in the table.
func (p *Postgres) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := p.db.QueryRow(ctx, p.countSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", p.table, describePgError(err))
	}
	return n, nil
}

// Begin starts a transaction for one chunk.
func (p *Postgres) Begin(ctx context.Context) (core.StoreTx, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, describePgError(err)
	}
	return &pgTx{tx: tx, upsertSQL: p.upsertSQL}, nil
}

// StreamAll returns a source yielding every row in ascending id order.
func (p *Postgres) StreamAll() core.Source {
	return &pageSource{store: p}
}

type pgTx struct {
	tx        pgx.Tx
	upsertSQL string
}

// Upsert inserts c or overwrites the row with the same id.
func (t *pgTx) Upsert(ctx context.Context, c core.Customer) error {
	if _, err := t.tx.Exec(ctx, t.upsertSQL, upsertArgs(c)...); err != nil {
		return fmt.Errorf("upsert id=%d: %w", c.ID, describePgError(err))
	}
	return nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	return describePgError(t.tx.Commit(ctx))
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// pageSource walks the table by keyset: after the first page, each query
// resumes strictly after the last id returned, so memory is bounded by one
// page and rows committed concurrently behind the cursor are not revisited.
type pageSource struct {
	store     *Postgres
	page      []core.Customer
	pos       int
	lastID    int64
	started   bool
	exhausted bool
}

func (s *pageSource) Open(ctx context.Context) error { return nil }

func (s *pageSource) Next(ctx context.Context) (core.Customer, error) {
	if s.pos >= len(s.page) {
		if s.exhausted {
			return core.Customer{}, io.EOF
		}
		if err := s.fetch(ctx); err != nil {
			return core.Customer{}, &core.StoreError{Op: "read", Err: err}
		}
		if len(s.page) == 0 {
			return core.Customer{}, io.EOF
		}
	}

	c := s.page[s.pos]
	s.pos++
	s.lastID = c.ID
	return c, nil
}

func (s *pageSource) fetch(ctx context.Context) error {
	var (
		rows pgx.Rows
		err  error
	)
	if !s.started {
		rows, err = s.store.db.Query(ctx, s.store.firstPageSQL, s.store.pageSize)
	} else {
		rows, err = s.store.db.Query(ctx, s.store.nextPageSQL, s.lastID, s.store.pageSize)
	}
	if err != nil {
		return fmt.Errorf("query %s: %w", s.store.table, describePgError(err))
	}
	s.started = true

	page, err := pgx.CollectRows(rows, scanCustomer)
	if err != nil {
		return fmt.Errorf("scan %s: %w", s.store.table, describePgError(err))
	}

	s.page, s.pos = page, 0
	if len(page) < s.store.pageSize {
		s.exhausted = true
	}
	return nil
}

func (s *pageSource) Close() error {
	s.page = nil
	return nil
}

func scanCustomer(row pgx.CollectableRow) (core.Customer, error) {
	var (
		c    core.Customer
		text [7]pgtype.Text
	)
	if err := row.Scan(&c.ID, &text[0], &text[1], &text[2], &text[3], &text[4], &text[5], &text[6]); err != nil {
		return core.Customer{}, err
	}
	c.FirstName = fromPgText(text[0])
	c.LastName = fromPgText(text[1])
	c.Email = fromPgText(text[2])
	c.Gender = fromPgText(text[3])
	c.ContactNo = fromPgText(text[4])
	c.Country = fromPgText(text[5])
	c.DOB = fromPgText(text[6])
	return c, nil
}

func upsertArgs(c core.Customer) []any {
	args := make([]any, 0, len(core.CustomerFields))
	for _, f := range core.CustomerFields {
		if f.Type == core.FieldInteger {
			args = append(args, c.ID)
			continue
		}
		args = append(args, toPgText(f.Get(&c)))
	}
	return args
}

// describePgError appends the server's detail line, which names the
// offending key or value, to a PostgreSQL error.
func describePgError(err error) error {
	var pgErr *pgconn.PgError
	if err == nil || !errors.As(err, &pgErr) || pgErr.Detail == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, pgErr.Detail)
}

// quoteTable quotes a possibly schema-qualified table name.
func quoteTable(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func buildCreateSQL(table string, cols []string) string {
	defs := make([]string, len(cols))
	for i, col := range cols {
		if i == 0 {
			defs[i] = quoteIdent(col) + " BIGINT PRIMARY KEY"
			continue
		}
		defs[i] = quoteIdent(col) + " TEXT"
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
}

func buildUpsertSQL(table string, cols []string) string {
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = quoteIdent(col)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	sets := make([]string, 0, len(cols)-1)
	for _, q := range quoted[1:] {
		sets = append(sets, q+" = EXCLUDED."+q)
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table,
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
		quoted[0],
		strings.Join(sets, ", "),
	)
}

func buildPageSQL(table string, cols []string, after bool) string {
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = quoteIdent(col)
	}
	id := quoted[0]
	if after {
		return fmt.Sprintf("SELECT %s FROM %s WHERE %s > $1 ORDER BY %s LIMIT $2",
			strings.Join(quoted, ", "), table, id, id)
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT $1",
		strings.Join(quoted, ", "), table, id)
}
