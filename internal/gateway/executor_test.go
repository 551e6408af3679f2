// AngelaMos | 2026
// executor_test.go

package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpa-library/library/internal/core"
)

func newMockExecutor(t *testing.T, d Dialect) (*Executor, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db := sqlx.NewDb(mockDB, d.DriverName())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewExecutor(NewBrokerWithDB(db, d, time.Second), logger), mock
}

func exact(q string) string {
	return "^" + regexp.QuoteMeta(q) + "$"
}

func TestSelectNormalizesRows(t *testing.T) {
	exec, mock := newMockExecutor(t, Postgres)

	mock.ExpectBegin()
	mock.ExpectQuery(exact("SELECT id, title FROM books WHERE category_id = $1")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "Title"}).
			AddRow(int64(1), "Dune").
			AddRow(int64(2), "Emma"))
	mock.ExpectCommit()

	rows, err := exec.Select(
		context.Background(),
		"SELECT id, title FROM books WHERE category_id = ?",
		3,
	)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, []string{"id", "title"}, rows[0].Columns())
	id, ok := rows[1].Int64("ID")
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)
	title, ok := rows[0].String("title")
	assert.True(t, ok)
	assert.Equal(t, "Dune", title)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectZeroRowsIsEmptyNotNil(t *testing.T) {
	exec, mock := newMockExecutor(t, MySQL)

	mock.ExpectBegin()
	mock.ExpectQuery(exact("SELECT id FROM books WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	rows, err := exec.Select(context.Background(), "SELECT id FROM books WHERE id = ?", 99)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectQueryErrorRollsBack(t *testing.T) {
	exec, mock := newMockExecutor(t, Postgres)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: "relation missing"})
	mock.ExpectRollback()

	rows, err := exec.Select(context.Background(), "SELECT * FROM nowhere")
	require.Error(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
	assert.ErrorIs(t, err, core.ErrQuery)
	assert.NotContains(t, err.Error(), "relation missing")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNamedParameters(t *testing.T) {
	exec, mock := newMockExecutor(t, Postgres)

	mock.ExpectBegin()
	mock.ExpectQuery(exact("SELECT id FROM chapters WHERE book_id = $1 AND chapter_number = $2")).
		WithArgs(5, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectCommit()

	rows, err := exec.Select(
		context.Background(),
		"SELECT id FROM chapters WHERE book_id = :book AND chapter_number = :num",
		Named{"book": 5, "num": 2},
	)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMySQLReturnsIdentity(t *testing.T) {
	exec, mock := newMockExecutor(t, MySQL)

	mock.ExpectBegin()
	mock.ExpectExec(exact("INSERT INTO categories (name) VALUES (?)")).
		WithArgs("Fiction").
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	res, err := exec.Insert(context.Background(), "INSERT INTO categories (name) VALUES (?)", "Fiction")
	require.NoError(t, err)

	id, ok := res.Identity()
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, InsertIdentity, res.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMySQLNonInsertReturnsRowCount(t *testing.T) {
	exec, mock := newMockExecutor(t, MySQL)

	mock.ExpectBegin()
	mock.ExpectExec("REPLACE INTO").
		WillReturnResult(sqlmock.NewResult(9, 2))
	mock.ExpectCommit()

	res, err := exec.Insert(context.Background(), "REPLACE INTO favorites (user_id, book_id) VALUES (?, ?)", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, InsertRowCount, res.Kind)
	assert.Equal(t, int64(2), res.RowsAffected)
	_, ok := res.Identity()
	assert.False(t, ok)
}

func TestInsertPostgresReturning(t *testing.T) {
	exec, mock := newMockExecutor(t, Postgres)

	mock.ExpectBegin()
	mock.ExpectQuery(exact("INSERT INTO books (title) VALUES ($1) RETURNING id")).
		WithArgs("Dune").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectCommit()

	res, err := exec.Insert(context.Background(), "INSERT INTO books (title) VALUES (?) RETURNING id", "Dune")
	require.NoError(t, err)
	assert.Equal(t, InsertReturned, res.Kind)
	assert.Equal(t, int64(7), res.ID)
	assert.Equal(t, int64(7), res.Returned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPostgresWithoutReturningIsRowCount(t *testing.T) {
	exec, mock := newMockExecutor(t, Postgres)

	mock.ExpectBegin()
	mock.ExpectExec(exact("INSERT INTO downloads (user_id, book_id) VALUES ($1, $2)")).
		WithArgs(1, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := exec.Insert(context.Background(), "INSERT INTO downloads (user_id, book_id) VALUES (?, ?)", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, InsertRowCount, res.Kind)
	assert.Equal(t, int64(1), res.RowsAffected)
}

func TestInsertPostgresConflictWithoutRow(t *testing.T) {
	exec, mock := newMockExecutor(t, Postgres)

	mock.ExpectBegin()
	mock.ExpectQuery("ON CONFLICT DO NOTHING RETURNING id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	res, err := exec.Insert(
		context.Background(),
		"INSERT INTO favorites (user_id, book_id) VALUES (?, ?) ON CONFLICT DO NOTHING RETURNING id",
		1, 2,
	)
	require.NoError(t, err)
	assert.Equal(t, InsertRowCount, res.Kind)
	assert.Zero(t, res.RowsAffected)
}

func TestInsertIDAppendsReturningOnPostgres(t *testing.T) {
	exec, mock := newMockExecutor(t, Postgres)

	mock.ExpectBegin()
	mock.ExpectQuery(exact("INSERT INTO users (email) VALUES ($1) RETURNING id")).
		WithArgs("a@b.c").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectCommit()

	id, err := exec.InsertID(context.Background(), "INSERT INTO users (email) VALUES (?);", "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
}

func TestInsertIDCommitFailureReturnsNoIdentity(t *testing.T) {
	exec, mock := newMockExecutor(t, MySQL)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO books").
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit().WillReturnError(errors.New("commit lost"))

	id, err := exec.InsertID(context.Background(), "INSERT INTO books (title) VALUES (?)", "Dune")
	require.Error(t, err)
	assert.Zero(t, id)
	assert.ErrorIs(t, err, core.ErrDataUnavailable)
	assert.NotContains(t, err.Error(), "commit lost")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCallDeadlineBoundsSlowStatement(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	broker := NewBrokerWithDB(sqlx.NewDb(mockDB, MySQL.DriverName()), MySQL, 50*time.Millisecond)
	exec := NewExecutor(broker, slog.New(slog.NewTextHandler(io.Discard, nil)))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE access_history").
		WillDelayFor(2 * time.Second).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	start := time.Now()
	err = exec.Execute(context.Background(), "UPDATE access_history SET progress = ? WHERE id = ?", 10, 1)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDataUnavailable)
	assert.Less(t, elapsed, time.Second)
}

func TestInsertDuplicateKey(t *testing.T) {
	exec, mock := newMockExecutor(t, MySQL)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	_, err := exec.InsertID(context.Background(), "INSERT INTO users (email) VALUES (?)", "a@b.c")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrQuery)
	assert.ErrorIs(t, err, core.ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateReturnsAffectedRows(t *testing.T) {
	exec, mock := newMockExecutor(t, Postgres)

	mock.ExpectBegin()
	mock.ExpectExec(exact("UPDATE users SET role = $1 WHERE id = $2")).
		WithArgs("admin", 4).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	n, err := exec.Update(context.Background(), "UPDATE users SET role = ? WHERE id = ?", "admin", 4)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteFailureRollsBack(t *testing.T) {
	exec, mock := newMockExecutor(t, MySQL)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM access_history").
		WillReturnError(mysql.ErrInvalidConn)
	mock.ExpectRollback()

	err := exec.Execute(context.Background(), "DELETE FROM access_history WHERE user_id = ?", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConnectionUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	exec, mock := newMockExecutor(t, Postgres)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	var id int64
	err := exec.Get(context.Background(), &id, "SELECT id FROM users WHERE id = ?", 1)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectInto(t *testing.T) {
	exec, mock := newMockExecutor(t, MySQL)

	type category struct {
		ID   int64  `db:"id"`
		Name string `db:"name"`
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, name FROM categories").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "Fiction").
			AddRow(int64(2), "History"))
	mock.ExpectCommit()

	var out []category
	err := exec.SelectInto(context.Background(), &out, "SELECT id, name FROM categories ORDER BY name")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "History", out[1].Name)
}

func TestInTxCommitsOnSuccess(t *testing.T) {
	exec, mock := newMockExecutor(t, Postgres)

	mock.ExpectBegin()
	mock.ExpectQuery(exact("SELECT id FROM users WHERE id = $1 FOR UPDATE")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec(exact("UPDATE users SET role = $1 WHERE id = $2")).
		WithArgs("admin", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := exec.InTx(context.Background(), func(ctx context.Context, tx *Tx) error {
		rows, err := tx.Select(ctx, "SELECT id FROM users WHERE id = ? FOR UPDATE", 1)
		if err != nil {
			return err
		}
		if len(rows) != 1 {
			return core.ErrNotFound
		}
		_, err = tx.Update(ctx, "UPDATE users SET role = ? WHERE id = ?", "admin", 1)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackAndKeepsCallerError(t *testing.T) {
	exec, mock := newMockExecutor(t, MySQL)
	errStop := errors.New("stop")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO access_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()

	err := exec.InTx(context.Background(), func(ctx context.Context, tx *Tx) error {
		if _, err := tx.Insert(ctx, "INSERT INTO access_history (user_id) VALUES (?)", 1); err != nil {
			return err
		}
		return errStop
	})
	assert.ErrorIs(t, err, errStop)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnPanic(t *testing.T) {
	exec, mock := newMockExecutor(t, Postgres)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = exec.InTx(context.Background(), func(context.Context, *Tx) error {
			panic("boom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginFailureIsClassified(t *testing.T) {
	exec, mock := newMockExecutor(t, Postgres)

	mock.ExpectBegin().WillReturnError(&pgconn.PgError{Code: "08006"})

	err := exec.Execute(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, core.ErrConnectionUnavailable)
}
