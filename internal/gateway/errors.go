// AngelaMos | 2026
// errors.go

package gateway

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bpa-library/library/internal/core"
)

// Error is the only error type that leaves the gateway. Kind is one of
// the core persistence sentinels (or core.ErrNotFound for single-row
// reads); Detail refines it, e.g. core.ErrDuplicateKey under
// core.ErrQuery. Err keeps the driver error for errors.As and for logs.
// Error() never includes the driver message.
type Error struct {
	Op     string
	Kind   error
	Detail error
	Err    error
}

func (e *Error) Error() string {
	if e.Detail != nil {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Detail != nil {
		errs = append(errs, e.Detail)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

const (
	pgUniqueViolation = "23505"
	mysqlDuplicate    = 1062
	mysqlAccessDenied = 1045
	mysqlBadDB        = 1049
	mysqlTooManyConns = 1040
	mysqlUserLimit    = 1226
)

// classify wraps err into an *Error. Already classified errors pass
// through with their kind intact.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var gwErr *Error
	if errors.As(err, &gwErr) {
		return err
	}

	kind, detail := kindOf(err)
	return &Error{Op: op, Kind: kind, Detail: detail, Err: err}
}

func kindOf(err error) (kind, detail error) {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound, nil
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return core.ErrDataUnavailable, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUniqueViolation {
			return core.ErrQuery, core.ErrDuplicateKey
		}
		// Class 08 is connection exceptions, 28 is invalid authorization,
		// 53 is insufficient resources (quota, too many connections).
		if len(pgErr.Code) >= 2 {
			switch pgErr.Code[:2] {
			case "08", "28", "53":
				return core.ErrConnectionUnavailable, nil
			}
		}
		return core.ErrQuery, nil
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicate:
			return core.ErrQuery, core.ErrDuplicateKey
		case mysqlAccessDenied, mysqlBadDB, mysqlTooManyConns, mysqlUserLimit:
			return core.ErrConnectionUnavailable, nil
		}
		return core.ErrQuery, nil
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return core.ErrConnectionUnavailable, nil
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.As(err, &netErr) {
		return core.ErrConnectionUnavailable, nil
	}

	return core.ErrDataUnavailable, nil
}
