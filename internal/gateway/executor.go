// AngelaMos | 2026
// executor.go

package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/bpa-library/library/internal/core"
)

// Named carries named parameters for ':name' markers. Pass it as the
// only argument.
type Named map[string]any

// Querier is the primitive surface shared by the Executor and by an
// open transaction. Queries may use '?' or ':name' markers regardless of
// dialect.
type Querier interface {
	Select(ctx context.Context, query string, args ...any) ([]Row, error)
	SelectInto(ctx context.Context, dest any, query string, args ...any) error
	Get(ctx context.Context, dest any, query string, args ...any) error
	Insert(ctx context.Context, query string, args ...any) (InsertResult, error)
	InsertID(ctx context.Context, query string, args ...any) (int64, error)
	Update(ctx context.Context, query string, args ...any) (int64, error)
	Execute(ctx context.Context, query string, args ...any) error
	Dialect() Dialect
}

type InsertKind int

const (
	// InsertRowCount means only the affected-row count is known.
	InsertRowCount InsertKind = iota
	// InsertIdentity carries the backend auto-increment value.
	InsertIdentity
	// InsertReturned carries the first column of a RETURNING clause.
	InsertReturned
)

type InsertResult struct {
	Kind         InsertKind
	ID           int64
	Returned     any
	RowsAffected int64
}

// Identity reports the generated key when the statement produced one.
func (r InsertResult) Identity() (int64, bool) {
	if r.Kind == InsertRowCount || r.ID <= 0 {
		return 0, false
	}
	return r.ID, true
}

// Executor runs each primitive as acquire -> begin -> execute ->
// commit-or-rollback -> release.
type Executor struct {
	broker *Broker
	logger *slog.Logger
}

func NewExecutor(broker *Broker, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		broker: broker,
		logger: logger,
	}
}

func (e *Executor) Dialect() Dialect {
	return e.broker.dialect
}

func (e *Executor) Select(
	ctx context.Context,
	query string,
	args ...any,
) ([]Row, error) {
	var rows []Row
	err := e.run(ctx, "select", func(ctx context.Context, r runner) error {
		var selErr error
		rows, selErr = r.selectRows(ctx, query, args)
		return selErr
	})
	if err != nil {
		return []Row{}, err
	}
	return rows, nil
}

func (e *Executor) SelectInto(
	ctx context.Context,
	dest any,
	query string,
	args ...any,
) error {
	return e.run(ctx, "select", func(ctx context.Context, r runner) error {
		return r.selectInto(ctx, dest, query, args)
	})
}

// Get scans exactly one row into dest; zero rows is core.ErrNotFound.
func (e *Executor) Get(
	ctx context.Context,
	dest any,
	query string,
	args ...any,
) error {
	return e.run(ctx, "get", func(ctx context.Context, r runner) error {
		return r.get(ctx, dest, query, args)
	})
}

func (e *Executor) Insert(
	ctx context.Context,
	query string,
	args ...any,
) (InsertResult, error) {
	var res InsertResult
	err := e.run(ctx, "insert", func(ctx context.Context, r runner) error {
		var insErr error
		res, insErr = r.insert(ctx, query, args)
		return insErr
	})
	if err != nil {
		return InsertResult{}, err
	}
	return res, nil
}

// InsertID inserts one row into a table keyed by an auto-increment "id"
// column and returns the generated key on either dialect.
func (e *Executor) InsertID(
	ctx context.Context,
	query string,
	args ...any,
) (int64, error) {
	var id int64
	err := e.run(ctx, "insert", func(ctx context.Context, r runner) error {
		var insErr error
		id, insErr = r.insertID(ctx, query, args)
		return insErr
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update returns the affected-row count. Zero means nothing matched.
func (e *Executor) Update(
	ctx context.Context,
	query string,
	args ...any,
) (int64, error) {
	var n int64
	err := e.run(ctx, "update", func(ctx context.Context, r runner) error {
		var updErr error
		n, updErr = r.update(ctx, query, args)
		return updErr
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (e *Executor) Execute(
	ctx context.Context,
	query string,
	args ...any,
) error {
	return e.run(ctx, "execute", func(ctx context.Context, r runner) error {
		return r.execute(ctx, query, args)
	})
}

// InTx runs fn on one connection inside one transaction. It exists for
// read-decide-write sequences that must not interleave; plain CRUD uses
// the single-call primitives.
func (e *Executor) InTx(
	ctx context.Context,
	fn func(ctx context.Context, tx *Tx) error,
) error {
	return e.run(ctx, "tx", func(ctx context.Context, r runner) error {
		return fn(ctx, &Tx{r: r})
	})
}

func (e *Executor) run(
	ctx context.Context,
	op string,
	fn func(ctx context.Context, r runner) error,
) (err error) {
	ctx, span := core.StartSpan(ctx, "gateway."+op,
		core.AttrDBSystem.String(e.broker.dialect.String()),
		core.AttrDBOperation.String(op),
	)
	defer func() { core.EndSpan(span, e.report(ctx, op, err)) }()

	callCtx, conn, release, err := e.broker.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	tx, err := conn.BeginTxx(callCtx, nil)
	if err != nil {
		return classify("begin", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback() //nolint:errcheck // best-effort on error or panic
		}
	}()

	if err := fn(callCtx, runner{tx: tx, dialect: e.broker.dialect}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify("commit", err)
	}
	committed = true

	return nil
}

// report logs classified failures and returns what the span records.
// A missing row is an answer, not a failure.
func (e *Executor) report(ctx context.Context, op string, err error) error {
	if err == nil || errors.Is(err, core.ErrNotFound) {
		return nil
	}

	var gwErr *Error
	if errors.As(err, &gwErr) {
		e.logger.ErrorContext(ctx, "database call failed",
			"op", op,
			"dialect", e.broker.dialect.String(),
			"kind", gwErr.Kind.Error(),
			"error", gwErr.Err,
		)
	}

	return err
}

// Tx exposes the primitives on an open transaction.
type Tx struct {
	r runner
}

func (t *Tx) Dialect() Dialect {
	return t.r.dialect
}

func (t *Tx) Select(
	ctx context.Context,
	query string,
	args ...any,
) ([]Row, error) {
	rows, err := t.r.selectRows(ctx, query, args)
	if err != nil {
		return []Row{}, err
	}
	return rows, nil
}

func (t *Tx) SelectInto(
	ctx context.Context,
	dest any,
	query string,
	args ...any,
) error {
	return t.r.selectInto(ctx, dest, query, args)
}

func (t *Tx) Get(
	ctx context.Context,
	dest any,
	query string,
	args ...any,
) error {
	return t.r.get(ctx, dest, query, args)
}

func (t *Tx) Insert(
	ctx context.Context,
	query string,
	args ...any,
) (InsertResult, error) {
	return t.r.insert(ctx, query, args)
}

func (t *Tx) InsertID(
	ctx context.Context,
	query string,
	args ...any,
) (int64, error) {
	return t.r.insertID(ctx, query, args)
}

func (t *Tx) Update(
	ctx context.Context,
	query string,
	args ...any,
) (int64, error) {
	return t.r.update(ctx, query, args)
}

func (t *Tx) Execute(ctx context.Context, query string, args ...any) error {
	return t.r.execute(ctx, query, args)
}

var (
	_ Querier = (*Executor)(nil)
	_ Querier = (*Tx)(nil)
)

// runner holds the dialect-specific mechanics of every primitive. All
// errors it returns are classified.
type runner struct {
	tx      *sqlx.Tx
	dialect Dialect
}

func (r runner) bind(query string, args []any) (string, []any, error) {
	if len(args) == 1 {
		if named, ok := args[0].(Named); ok {
			q, a, err := sqlx.Named(query, map[string]any(named))
			if err != nil {
				return "", nil, &Error{Op: "bind", Kind: core.ErrQuery, Err: err}
			}
			return r.dialect.Rebind(q), a, nil
		}
	}
	return r.dialect.Rebind(query), args, nil
}

func (r runner) selectRows(
	ctx context.Context,
	query string,
	args []any,
) ([]Row, error) {
	q, a, err := r.bind(query, args)
	if err != nil {
		return nil, err
	}

	rows, err := r.tx.QueryxContext(ctx, q, a...)
	if err != nil {
		return nil, classify("select", err)
	}
	defer rows.Close()

	out, err := normalize(rows)
	if err != nil {
		return nil, classify("select", err)
	}
	return out, nil
}

func (r runner) selectInto(
	ctx context.Context,
	dest any,
	query string,
	args []any,
) error {
	q, a, err := r.bind(query, args)
	if err != nil {
		return err
	}
	return classify("select", r.tx.SelectContext(ctx, dest, q, a...))
}

func (r runner) get(
	ctx context.Context,
	dest any,
	query string,
	args []any,
) error {
	q, a, err := r.bind(query, args)
	if err != nil {
		return err
	}
	return classify("get", r.tx.GetContext(ctx, dest, q, a...))
}

func (r runner) insert(
	ctx context.Context,
	query string,
	args []any,
) (InsertResult, error) {
	q, a, err := r.bind(query, args)
	if err != nil {
		return InsertResult{}, err
	}

	if r.dialect == Postgres && hasReturning(query) {
		var v any
		scanErr := r.tx.QueryRowxContext(ctx, q, a...).Scan(&v)
		if errors.Is(scanErr, sql.ErrNoRows) {
			// ON CONFLICT DO NOTHING RETURNING ... yields no row.
			return InsertResult{Kind: InsertRowCount}, nil
		}
		if scanErr != nil {
			return InsertResult{}, classify("insert", scanErr)
		}
		res := InsertResult{Kind: InsertReturned, Returned: v, RowsAffected: 1}
		if id, ok := asInt64(v); ok {
			res.ID = id
		}
		return res, nil
	}

	result, err := r.tx.ExecContext(ctx, q, a...)
	if err != nil {
		return InsertResult{}, classify("insert", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return InsertResult{}, classify("insert", err)
	}

	if r.dialect.returnsIdentity() && isInsert(query) {
		if id, idErr := result.LastInsertId(); idErr == nil && id > 0 {
			return InsertResult{
				Kind:         InsertIdentity,
				ID:           id,
				RowsAffected: affected,
			}, nil
		}
	}

	return InsertResult{Kind: InsertRowCount, RowsAffected: affected}, nil
}

func (r runner) insertID(
	ctx context.Context,
	query string,
	args []any,
) (int64, error) {
	if r.dialect == Postgres && !hasReturning(query) {
		query = strings.TrimRight(strings.TrimSpace(query), ";") + " RETURNING id"
	}

	res, err := r.insert(ctx, query, args)
	if err != nil {
		return 0, err
	}

	id, ok := res.Identity()
	if !ok {
		return 0, &Error{
			Op:   "insert",
			Kind: core.ErrQuery,
			Err:  fmt.Errorf("statement produced no generated identity"),
		}
	}
	return id, nil
}

func (r runner) update(
	ctx context.Context,
	query string,
	args []any,
) (int64, error) {
	q, a, err := r.bind(query, args)
	if err != nil {
		return 0, err
	}

	result, err := r.tx.ExecContext(ctx, q, a...)
	if err != nil {
		return 0, classify("update", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, classify("update", err)
	}
	return n, nil
}

func (r runner) execute(ctx context.Context, query string, args []any) error {
	q, a, err := r.bind(query, args)
	if err != nil {
		return err
	}

	if _, err := r.tx.ExecContext(ctx, q, a...); err != nil {
		return classify("execute", err)
	}
	return nil
}

var (
	returningPattern = regexp.MustCompile(`(?i)\bRETURNING\b`)
	insertPattern    = regexp.MustCompile(`(?i)^\s*INSERT\b`)
)

func hasReturning(query string) bool {
	return returningPattern.MatchString(query)
}

func isInsert(query string) bool {
	return insertPattern.MatchString(query)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
