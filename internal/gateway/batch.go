// AngelaMos | 2026
// batch.go

package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/bpa-library/library/internal/core"
)

const batchPageRows = 100

// Batcher is a Querier that also submits many parameter rows per call.
type Batcher interface {
	Querier
	InsertBatch(ctx context.Context, query string, rows [][]any) (int64, error)
	UpdateBatch(ctx context.Context, query string, sets [][]any) (int64, error)
}

var (
	_ Batcher = (*Executor)(nil)
	_ Batcher = (*Tx)(nil)
)

// InsertBatch inserts every parameter row in one transaction and returns
// the number of rows submitted. query holds a single-row VALUES group
// with '?' markers. Any failing row rolls back the whole batch.
func (e *Executor) InsertBatch(
	ctx context.Context,
	query string,
	rows [][]any,
) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	var n int64
	err := e.run(ctx, "insert_batch", func(ctx context.Context, r runner) error {
		var batchErr error
		n, batchErr = r.insertBatch(ctx, query, rows)
		return batchErr
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// UpdateBatch applies query once per parameter set in one transaction
// and returns the summed affected-row count.
func (e *Executor) UpdateBatch(
	ctx context.Context,
	query string,
	sets [][]any,
) (int64, error) {
	if len(sets) == 0 {
		return 0, nil
	}

	var n int64
	err := e.run(ctx, "update_batch", func(ctx context.Context, r runner) error {
		var batchErr error
		n, batchErr = r.updateBatch(ctx, query, sets)
		return batchErr
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (t *Tx) InsertBatch(
	ctx context.Context,
	query string,
	rows [][]any,
) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	return t.r.insertBatch(ctx, query, rows)
}

func (t *Tx) UpdateBatch(
	ctx context.Context,
	query string,
	sets [][]any,
) (int64, error) {
	if len(sets) == 0 {
		return 0, nil
	}
	return t.r.updateBatch(ctx, query, sets)
}

func (r runner) insertBatch(
	ctx context.Context,
	query string,
	rows [][]any,
) (int64, error) {
	if r.dialect == Postgres {
		return r.insertMultiRow(ctx, query, rows)
	}
	return r.execPrepared(ctx, "insert_batch", query, rows, false)
}

func (r runner) updateBatch(
	ctx context.Context,
	query string,
	sets [][]any,
) (int64, error) {
	return r.execPrepared(ctx, "update_batch", query, sets, true)
}

// execPrepared runs one prepared statement per parameter set. With
// sumAffected false it reports the number of sets submitted.
func (r runner) execPrepared(
	ctx context.Context,
	op string,
	query string,
	sets [][]any,
	sumAffected bool,
) (int64, error) {
	stmt, err := r.tx.PreparexContext(ctx, r.dialect.Rebind(query))
	if err != nil {
		return 0, classify(op, err)
	}
	defer stmt.Close()

	var total int64
	for _, args := range sets {
		result, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, classify(op, err)
		}
		if !sumAffected {
			continue
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, classify(op, err)
		}
		total += n
	}

	if !sumAffected {
		return int64(len(sets)), nil
	}
	return total, nil
}

// insertMultiRow expands the VALUES group into pages of multi-row
// inserts, bounded by the bind parameter ceiling.
func (r runner) insertMultiRow(
	ctx context.Context,
	query string,
	rows [][]any,
) (int64, error) {
	vq, err := splitValues(query)
	if err != nil {
		return 0, &Error{Op: "insert_batch", Kind: core.ErrQuery, Err: err}
	}

	width := vq.params()
	for i, row := range rows {
		if len(row) != width {
			return 0, &Error{
				Op:   "insert_batch",
				Kind: core.ErrQuery,
				Err: fmt.Errorf(
					"row %d has %d values, statement expects %d",
					i, len(row), width,
				),
			}
		}
	}

	page := pageSize(width)
	for start := 0; start < len(rows); start += page {
		end := min(start+page, len(rows))
		chunk := rows[start:end]

		args := make([]any, 0, len(chunk)*width)
		for _, row := range chunk {
			args = append(args, row...)
		}

		q := r.dialect.Rebind(vq.expand(len(chunk)))
		if _, err := r.tx.ExecContext(ctx, q, args...); err != nil {
			return 0, classify("insert_batch", err)
		}
	}

	return int64(len(rows)), nil
}

func pageSize(width int) int {
	if width <= 0 {
		return batchPageRows
	}
	return max(1, min(batchPageRows, maxBindParams/width))
}

// valuesQuery is an INSERT split around its single-row VALUES group.
type valuesQuery struct {
	head  string
	group string
	tail  string
}

func splitValues(query string) (valuesQuery, error) {
	upper := strings.ToUpper(query)
	idx := strings.Index(upper, "VALUES")
	if idx < 0 {
		return valuesQuery{}, fmt.Errorf("batch insert needs a VALUES clause")
	}

	open := strings.IndexByte(query[idx:], '(')
	if open < 0 {
		return valuesQuery{}, fmt.Errorf("VALUES clause has no group")
	}
	open += idx

	depth := 0
	for i := open; i < len(query); i++ {
		switch query[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return valuesQuery{
					head:  query[:idx+len("VALUES")],
					group: query[open : i+1],
					tail:  query[i+1:],
				}, nil
			}
		}
	}

	return valuesQuery{}, fmt.Errorf("unbalanced VALUES group")
}

func (v valuesQuery) params() int {
	return strings.Count(v.group, "?")
}

func (v valuesQuery) expand(n int) string {
	var b strings.Builder
	b.Grow(len(v.head) + n*(len(v.group)+2) + len(v.tail))
	b.WriteString(v.head)
	b.WriteByte(' ')
	for i := range n {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.group)
	}
	b.WriteString(v.tail)
	return b.String()
}
