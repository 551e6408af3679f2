// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bpa-library/library/internal/auth"
	"github.com/bpa-library/library/internal/core"
)

const signupWindow = 30 * 24 * time.Hour

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) GetByID(
	ctx context.Context,
	id int64,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

// Create registers a member. Admins are promoted explicitly afterwards.
func (s *Service) Create(
	ctx context.Context,
	nu auth.NewUser,
) (*auth.UserInfo, error) {
	user := &User{
		Name:             strings.TrimSpace(nu.Name),
		Email:            normalizeEmail(nu.Email),
		PasswordHash:     nu.PasswordHash,
		Role:             RoleMember,
		MembershipNumber: nu.MembershipNumber,
		CreatedAt:        s.now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	userID int64,
	passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetMe(ctx context.Context, userID int64) (*User, error) {
	if userID == 0 {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}

	return s.repo.GetByID(ctx, userID)
}

func (s *Service) UpdateMe(
	ctx context.Context,
	userID int64,
	req UpdateUserRequest,
) (*User, error) {
	if userID == 0 {
		return nil, fmt.Errorf("update me: %w", core.ErrUnauthorized)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.MembershipNumber != nil {
		user.MembershipNumber = req.MembershipNumber
	}

	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) UpdateUserRole(
	ctx context.Context,
	id int64,
	role string,
) (*User, error) {
	if role != RoleMember && role != RoleAdmin {
		return nil, fmt.Errorf(
			"update role: invalid role %q: %w",
			role,
			core.ErrInvalidInput,
		)
	}

	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, id)
}

// DeleteUser removes target on behalf of requester. Admins cannot
// delete their own account through this path.
func (s *Service) DeleteUser(
	ctx context.Context,
	requesterID, targetID int64,
) error {
	if requesterID == targetID {
		return fmt.Errorf(
			"delete user: cannot delete own account: %w",
			core.ErrInvalidInput,
		)
	}

	return s.repo.Delete(ctx, targetID)
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Search = strings.TrimSpace(params.Search)
	return s.repo.List(ctx, params)
}

func (s *Service) Analytics(ctx context.Context) (*Analytics, error) {
	a, err := s.repo.Analytics(ctx, s.now().UTC().Add(-signupWindow))
	if err != nil {
		return nil, err
	}

	a.SignupWindow = "30d"
	return a, nil
}

func (s *Service) CountUsers(ctx context.Context) (int, error) {
	a, err := s.repo.Analytics(ctx, s.now().UTC().Add(-signupWindow))
	if err != nil {
		return 0, err
	}
	return a.TotalUsers, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		PasswordHash:     u.PasswordHash,
		Role:             u.Role,
		MembershipNumber: u.MembershipNumber,
		CreatedAt:        u.CreatedAt,
	}
}

var _ auth.UserProvider = (*Service)(nil)
