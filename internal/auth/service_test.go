// AngelaMos | 2026
// service_test.go

package auth

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpa-library/library/internal/config"
	"github.com/bpa-library/library/internal/core"
)

type fakeUsers struct {
	mu     sync.Mutex
	byID   map[int64]*UserInfo
	nextID int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[int64]*UserInfo{}}
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, core.ErrNotFound
}

func (f *fakeUsers) Create(_ context.Context, nu NewUser) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == strings.ToLower(nu.Email) {
			return nil, core.ErrDuplicateKey
		}
	}
	f.nextID++
	u := &UserInfo{
		ID:           f.nextID,
		Email:        strings.ToLower(nu.Email),
		Name:         nu.Name,
		PasswordHash: nu.PasswordHash,
		Role:         "member",
		CreatedAt:    time.Now(),
	}
	f.byID[u.ID] = u
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id int64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return core.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func newTestJWT(t *testing.T) *JWTManager {
	t.Helper()

	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")
	require.NoError(t, GenerateKeyPair(priv, pub))

	m, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath:    priv,
		PublicKeyPath:     pub,
		AccessTokenExpire: time.Hour,
		Issuer:            "audio-library",
		Audience:          "audio-library-api",
	})
	require.NoError(t, err)
	return m
}

func newTestService(t *testing.T) (*Service, *fakeUsers, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	users := newFakeUsers()
	return NewService(newTestJWT(t), users, core.NewRedisWithClient(rdb, "test")), users, mr
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newTestJWT(t)

	signed, err := m.CreateAccessToken(AccessTokenClaims{UserID: 42, Role: "admin", Email: "a@b.co"})
	require.NoError(t, err)
	assert.NotEmpty(t, signed.ID)

	claims, err := m.VerifyAccessToken(context.Background(), signed.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, signed.ID, claims.TokenID)
	assert.WithinDuration(t, signed.ExpiresAt, claims.ExpiresAt, time.Second)
}

func TestVerifyRejectsForeignToken(t *testing.T) {
	issuer := newTestJWT(t)
	other := newTestJWT(t)

	signed, err := issuer.CreateAccessToken(AccessTokenClaims{UserID: 1, Role: "member"})
	require.NoError(t, err)

	_, err = other.VerifyAccessToken(context.Background(), signed.Token)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)

	_, err = issuer.VerifyAccessToken(context.Background(), "garbage")
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{
		Email:    "Reader@Example.com",
		Password: "correct horse",
		Name:     "Reader",
	})
	require.NoError(t, err)
	assert.Equal(t, "member", resp.User.Role)
	assert.Equal(t, "Bearer", resp.Tokens.TokenType)

	_, err = svc.Register(ctx, RegisterRequest{
		Email:    "reader@example.com",
		Password: "another one",
		Name:     "Dup",
	})
	assert.ErrorIs(t, err, ErrEmailExists)

	login, err := svc.Login(ctx, LoginRequest{Email: "reader@example.com", Password: "correct horse"})
	require.NoError(t, err)

	claims, err := svc.VerifyAccessToken(ctx, login.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)

	_, err = svc.Login(ctx, LoginRequest{Email: "reader@example.com", Password: "wrong password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "whatever1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _, mr := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{Email: "x@y.io", Password: "password1", Name: "X"})
	require.NoError(t, err)

	claims, err := svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, claims))
	assert.True(t, mr.Exists("test:revoked:"+claims.TokenID))

	_, err = svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{Email: "p@q.io", Password: "password1", Name: "P"})
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, resp.User.ID, "not-it-at-all", "password2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(ctx, resp.User.ID, "password1", "password2"))

	_, err = svc.Login(ctx, LoginRequest{Email: "p@q.io", Password: "password2"})
	assert.NoError(t, err)
}

func TestLoginUpgradesStaleHash(t *testing.T) {
	svc, users, _ := newTestService(t)
	ctx := context.Background()

	weak := core.Argon2Params{Memory: 8 * 1024, Time: 1, Threads: 1, KeyLen: 32, SaltLen: 16}
	stale, err := weak.Hash("old but valid")
	require.NoError(t, err)

	u, err := users.Create(ctx, NewUser{Email: "legacy@example.com", PasswordHash: stale, Name: "Legacy"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Email: "legacy@example.com", Password: "old but valid"})
	require.NoError(t, err)

	stored, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, stale, stored.PasswordHash)
	assert.Contains(t, stored.PasswordHash, "m=65536,t=1,p=4")

	_, err = svc.Login(ctx, LoginRequest{Email: "legacy@example.com", Password: "old but valid"})
	assert.NoError(t, err)
}
