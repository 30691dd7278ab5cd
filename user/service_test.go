package user

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/redis_client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*User
	reads  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: map[int64]*User{}}
}

func (m *memoryStore) Insert(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return apperrors.NewConflict("user", u.Email)
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clone := *u
	m.users[u.ID] = &clone
	return nil
}

func (m *memoryStore) ByID(_ context.Context, id int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	u, ok := m.users[id]
	if !ok {
		return nil, apperrors.NewNotFound("user", id)
	}
	clone := *u
	return &clone, nil
}

func (m *memoryStore) ByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, apperrors.NewNotFound("user", email)
}

func (m *memoryStore) SetMonobankToken(_ context.Context, id int64, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apperrors.NewNotFound("user", id)
	}
	u.MonobankToken = token
	return nil
}

func (m *memoryStore) SetTelegramChat(_ context.Context, id int64, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apperrors.NewNotFound("user", id)
	}
	u.TelegramChatID = chatID
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache, err := redis_client.NewRedis(context.Background(), redis_client.Config{Host: mr.Host(), Port: mr.Port()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	store := newMemoryStore()
	return NewService(store, cache, WithBcryptCost(bcrypt.MinCost)), store, mr
}

func TestService_CreateAndAuthenticate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, " Ann@Example.com ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", u.Email)
	assert.Equal(t, RoleUser, u.Role)
	assert.NotEqual(t, "correct horse", u.PasswordHash)

	got, err := svc.Authenticate(ctx, "ann@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate(ctx, "ann@example.com", "wrong password")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))

	_, err = svc.Authenticate(ctx, "nobody@example.com", "correct horse")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
}

func TestService_CreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "not-an-email", "correct horse")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = svc.Create(ctx, "ann@example.com", "short")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = svc.Create(ctx, "ann@example.com", "correct horse")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "ann@example.com", "correct horse")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
}

func TestService_GetIsCached(t *testing.T) {
	svc, store, mr := newTestService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, "ann@example.com", "correct horse")
	require.NoError(t, err)

	first, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	second, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Email, second.Email)
	assert.Equal(t, 1, store.reads)
	assert.True(t, mr.Exists("user:1"))

	cachedValue, err := mr.Get("user:1")
	require.NoError(t, err)
	assert.NotContains(t, cachedValue, "$2a$")
}

func TestService_SetMonobankTokenInvalidatesProfile(t *testing.T) {
	svc, store, mr := newTestService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, "ann@example.com", "correct horse")
	require.NoError(t, err)
	_, err = svc.Get(ctx, u.ID)
	require.NoError(t, err)

	require.NoError(t, svc.SetMonobankToken(ctx, u.ID, "mono-token"))
	assert.False(t, mr.Exists("user:1"))
	assert.Equal(t, "mono-token", store.users[u.ID].MonobankToken)

	err = svc.SetMonobankToken(ctx, 99, "mono-token")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	assert.True(t, apperrors.IsType(svc.SetMonobankToken(ctx, u.ID, ""), apperrors.ErrorTypeValidation))
}

func TestService_GetMissing(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Get(context.Background(), 7)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}
