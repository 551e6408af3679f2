// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bpa-library/library/internal/core"
	"github.com/bpa-library/library/internal/gateway"
)

const userColumns = `id, name, email, password_hash, role, membership_number, created_at`

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateProfile(ctx context.Context, user *User) error
	UpdateRole(ctx context.Context, id int64, role string) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, params ListUsersParams) ([]User, int, error)
	Analytics(ctx context.Context, since time.Time) (*Analytics, error)
}

type repository struct {
	db gateway.Querier
}

func NewRepository(db gateway.Querier) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (name, email, password_hash, role, membership_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	id, err := r.db.InsertID(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.MembershipNumber,
		user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	user.ID = id
	return nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	var user User
	if err := r.db.Get(ctx, &user, query, id); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`

	var user User
	if err := r.db.Get(ctx, &user, query, email); err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return &user, nil
}

func (r *repository) UpdateProfile(ctx context.Context, user *User) error {
	query := `UPDATE users SET name = ?, membership_number = ? WHERE id = ?`

	n, err := r.db.Update(ctx, query, user.Name, user.MembershipNumber, user.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) UpdateRole(ctx context.Context, id int64, role string) error {
	n, err := r.db.Update(ctx, `UPDATE users SET role = ? WHERE id = ?`, role, id)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update role: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id int64,
	passwordHash string,
) error {
	n, err := r.db.Update(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ?`,
		passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update password: %w", core.ErrNotFound)
	}

	return nil
}

// Delete removes the user; history, favorites and downloads cascade.
func (r *repository) Delete(ctx context.Context, id int64) error {
	n, err := r.db.Update(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete user: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	conditions := []string{"1 = 1"}
	var args []any

	if params.Search != "" {
		like := r.db.Dialect().ILike()
		conditions = append(conditions,
			fmt.Sprintf("(email %s ? OR name %s ?)", like, like))
		pattern := "%" + escapeLike(params.Search) + "%"
		args = append(args, pattern, pattern)
	}

	if params.Role != "" {
		conditions = append(conditions, "role = ?")
		args = append(args, params.Role)
	}

	whereClause := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM users WHERE " + whereClause
	if err := r.db.Get(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE ` + whereClause + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	args = append(args, params.PageSize, params.Offset())

	users := []User{}
	if err := r.db.SelectInto(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return users, total, nil
}

func (r *repository) Analytics(
	ctx context.Context,
	since time.Time,
) (*Analytics, error) {
	var a Analytics

	if err := r.db.Get(ctx, &a.TotalUsers, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	a.ByRole = []RoleCount{}
	if err := r.db.SelectInto(ctx, &a.ByRole,
		`SELECT role, COUNT(*) AS count FROM users GROUP BY role ORDER BY role`,
	); err != nil {
		return nil, fmt.Errorf("count roles: %w", err)
	}

	if err := r.db.Get(ctx, &a.RecentSignups,
		`SELECT COUNT(*) FROM users WHERE created_at >= ?`, since,
	); err != nil {
		return nil, fmt.Errorf("count signups: %w", err)
	}

	return &a, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
