// AngelaMos | 2026
// core_test.go

package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"))

	check, err := DefaultArgon2.Check("correct horse battery", hash)
	require.NoError(t, err)
	assert.True(t, check.Valid)
	assert.Empty(t, check.Rehash)

	check, err = DefaultArgon2.Check("wrong", hash)
	require.NoError(t, err)
	assert.False(t, check.Valid)
}

func TestCheckPasswordOffersRehashForStaleCost(t *testing.T) {
	weak := Argon2Params{Memory: 8 * 1024, Time: 1, Threads: 1, KeyLen: 32, SaltLen: 16}
	stale, err := weak.Hash("pw-under-old-settings")
	require.NoError(t, err)

	check, err := CheckPassword("pw-under-old-settings", &stale)
	require.NoError(t, err)
	assert.True(t, check.Valid)
	require.NotEmpty(t, check.Rehash)

	again, err := DefaultArgon2.Check("pw-under-old-settings", check.Rehash)
	require.NoError(t, err)
	assert.True(t, again.Valid)
	assert.Empty(t, again.Rehash)

	check, err = CheckPassword("not it", &stale)
	require.NoError(t, err)
	assert.False(t, check.Valid)
	assert.Empty(t, check.Rehash)
}

func TestCheckPasswordWithoutStoredHash(t *testing.T) {
	empty := ""
	for _, stored := range []*string{nil, &empty} {
		check, err := CheckPassword("anything", stored)
		require.NoError(t, err)
		assert.False(t, check.Valid)
	}
}

func TestParseHashRejectsMalformed(t *testing.T) {
	valid, err := HashPassword("x")
	require.NoError(t, err)
	parts := strings.Split(valid, "$")

	for _, encoded := range []string{
		"not-a-hash",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=16$" + strings.Join(parts[3:], "$"),
		"$argon2id$v=19$m=65536,t=0,p=4$" + parts[4] + "$" + parts[5],
		"$argon2id$v=19$m=65536,t=1,p=300$" + parts[4] + "$" + parts[5],
		"$argon2id$v=19$m=65536,t=1$" + parts[4] + "$" + parts[5],
		"$argon2id$v=19$m=65536,t=1,p=4$" + parts[4] + "$",
	} {
		_, err := DefaultArgon2.Check("x", encoded)
		assert.ErrorIs(t, err, ErrMalformedHash, encoded)
	}
}

func TestPersistenceErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("get: %w", ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{
			"duplicate beats query kind",
			errors.Join(ErrQuery, ErrDuplicateKey),
			http.StatusConflict,
			"DUPLICATE",
		},
		{"connection", ErrConnectionUnavailable, http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE"},
		{"query", ErrQuery, http.StatusUnprocessableEntity, "QUERY_FAILED"},
		{"unknown", errors.New("boom"), http.StatusServiceUnavailable, "DATA_UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := PersistenceError(tt.err)
			assert.Equal(t, tt.status, appErr.StatusCode)
			assert.Equal(t, tt.code, appErr.Code)
		})
	}
}

func TestStorageErrorHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	StorageError(rec, fmt.Errorf("dial mysql://admin:hunter2@db: %w", ErrConnectionUnavailable))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hunter2")

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, "BACKEND_UNAVAILABLE", body.Error.Code)
}

func TestPaginated(t *testing.T) {
	rec := httptest.NewRecorder()
	Paginated(rec, []int{1, 2}, 2, 20, 41)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Meta)
	assert.Equal(t, 3, body.Meta.TotalPages)
	assert.Equal(t, 41, body.Meta.Total)
}
