// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bpa-library/library/internal/core"
	"github.com/bpa-library/library/internal/middleware"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already exists")
)

const revokedNamespace = "revoked"

type UserInfo struct {
	ID               int64
	Email            string
	Name             string
	PasswordHash     string
	Role             string
	MembershipNumber *string
	CreatedAt        time.Time
}

type NewUser struct {
	Email            string
	PasswordHash     string
	Name             string
	MembershipNumber *string
}

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id int64) (*UserInfo, error)
	Create(ctx context.Context, u NewUser) (*UserInfo, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}

type Service struct {
	jwt          *JWTManager
	userProvider UserProvider
	redis        *core.Redis
}

func NewService(
	jwt *JWTManager,
	userProvider UserProvider,
	redis *core.Redis,
) *Service {
	return &Service{
		jwt:          jwt,
		userProvider: userProvider,
		redis:        redis,
	}
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
) (*AuthResponse, error) {
	user, err := s.userProvider.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // same cost as a real account
			_, _ = core.CheckPassword(req.Password, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	check, err := core.CheckPassword(req.Password, &user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !check.Valid {
		return nil, ErrInvalidCredentials
	}

	if check.Rehash != "" {
		//nolint:errcheck // the old hash stays valid if this write fails
		_ = s.userProvider.UpdatePassword(ctx, user.ID, check.Rehash)
	}

	return s.createAuthResponse(user)
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
) (*AuthResponse, error) {
	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.userProvider.Create(ctx, NewUser{
		Email:            req.Email,
		PasswordHash:     passwordHash,
		Name:             req.Name,
		MembershipNumber: req.MembershipNumber,
	})
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.createAuthResponse(user)
}

// Logout revokes the presented access token until it would have expired.
func (s *Service) Logout(ctx context.Context, claims *middleware.AccessTokenClaims) error {
	if claims == nil || claims.TokenID == "" {
		return nil
	}

	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := s.redis.SetFlag(ctx, s.revokedKey(claims.TokenID), ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	return nil
}

func (s *Service) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return s.redis.HasFlag(ctx, s.revokedKey(jti))
}

func (s *Service) revokedKey(jti string) string {
	return s.redis.Key(revokedNamespace, jti)
}

// VerifyAccessToken implements middleware.TokenVerifier with revocation.
// Revocation lookup failures are treated as not revoked.
func (s *Service) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	claims, err := s.jwt.VerifyAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if claims.TokenID != "" {
		revoked, err := s.IsRevoked(ctx, claims.TokenID)
		if err == nil && revoked {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
		}
	}

	return claims, nil
}

func (s *Service) ChangePassword(
	ctx context.Context,
	userID int64,
	currentPassword, newPassword string,
) error {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	check, err := core.DefaultArgon2.Check(currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}

	if !check.Valid {
		return ErrInvalidCredentials
	}

	newHash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.userProvider.UpdatePassword(ctx, userID, newHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return nil
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID int64,
) (*UserResponse, error) {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := toUserResponse(user)
	return &resp, nil
}

func (s *Service) createAuthResponse(user *UserInfo) (*AuthResponse, error) {
	signed, err := s.jwt.CreateAccessToken(AccessTokenClaims{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	return &AuthResponse{
		User: toUserResponse(user),
		Tokens: TokenResponse{
			AccessToken: signed.Token,
			TokenType:   "Bearer",
			ExpiresIn:   int(time.Until(signed.ExpiresAt) / time.Second),
			ExpiresAt:   signed.ExpiresAt,
		},
	}, nil
}

func toUserResponse(u *UserInfo) UserResponse {
	return UserResponse{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		Role:             u.Role,
		MembershipNumber: u.MembershipNumber,
		CreatedAt:        u.CreatedAt,
	}
}

var _ middleware.TokenVerifier = (*Service)(nil)
