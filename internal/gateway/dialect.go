// AngelaMos | 2026
// dialect.go

package gateway

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/bpa-library/library/internal/core"
)

// Dialect identifies the relational backend in use. It is resolved once
// at startup and passed by value; nothing reads it from the environment
// at call time.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgresql"
)

// maxBindParams is the bind-parameter ceiling shared by the MySQL
// prepared-statement protocol and the PostgreSQL wire protocol.
const maxBindParams = 65535

func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mysql":
		return MySQL, nil
	case "postgresql", "postgres", "pg":
		return Postgres, nil
	case "":
		return "", fmt.Errorf("dialect is not set: %w", core.ErrConfiguration)
	default:
		return "", fmt.Errorf(
			"unknown dialect %q: %w",
			s,
			core.ErrConfiguration,
		)
	}
}

func (d Dialect) String() string {
	return string(d)
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "mysql"
}

func (d Dialect) BindType() int {
	if d == Postgres {
		return sqlx.DOLLAR
	}
	return sqlx.QUESTION
}

// Rebind rewrites '?' placeholders into the dialect's native syntax.
func (d Dialect) Rebind(query string) string {
	return sqlx.Rebind(d.BindType(), query)
}

// ILike returns the case-insensitive pattern operator. MySQL's default
// collations already compare case-insensitively.
func (d Dialect) ILike() string {
	if d == Postgres {
		return "ILIKE"
	}
	return "LIKE"
}

// GooseDialect is the dialect name understood by the migration tool.
func (d Dialect) GooseDialect() string {
	if d == Postgres {
		return "postgres"
	}
	return "mysql"
}

// returnsIdentity reports whether inserts surface the generated key
// through the driver's LastInsertId.
func (d Dialect) returnsIdentity() bool {
	return d == MySQL
}
