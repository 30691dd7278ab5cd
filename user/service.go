package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/json"
	"github.com/leeforge/moneykeeper/registry"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Key is the registry entry holding the user service.
var Key = registry.NewKey[*Service]("user")

const (
	DefaultProfileTTL = 10 * time.Minute
	minPasswordLength = 8
)

// Cache stores serialized profiles.
type Cache interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Fetch(ctx context.Context, key string) (string, bool, error)
	Remove(ctx context.Context, key string) error
}

// Service manages accounts. Profiles are read through the cache; writes go to
// the store and drop the cached copy.
type Service struct {
	store  Store
	cache  Cache
	ttl    time.Duration
	cost   int
	logger *zap.Logger
}

type Option func(*Service)

func WithProfileTTL(ttl time.Duration) Option { return func(s *Service) { s.ttl = ttl } }

// WithBcryptCost lowers the hashing cost, e.g. in tests.
func WithBcryptCost(cost int) Option { return func(s *Service) { s.cost = cost } }

func WithLogger(logger *zap.Logger) Option { return func(s *Service) { s.logger = logger } }

func NewService(store Store, cache Cache, opts ...Option) *Service {
	s := &Service{
		store:  store,
		cache:  cache,
		ttl:    DefaultProfileTTL,
		cost:   bcrypt.DefaultCost,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers an account with the user role.
func (s *Service) Create(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidation("invalid email").WithDetail("email", email)
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.NewValidation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, apperrors.NewInternal("failed to hash password").WithInnerError(err)
	}

	u := &User{Email: email, PasswordHash: string(hash), Role: RoleUser}
	if err := s.store.Insert(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user.created", zap.Int64("user_id", u.ID))
	return u, nil
}

// Authenticate checks credentials. Unknown emails and wrong passwords fail the
// same way.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.store.ByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	return u, nil
}

// Get returns the profile of id, from the cache when present.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	key := profileKey(id)
	if raw, ok, err := s.cache.Fetch(ctx, key); err == nil && ok {
		var c cached
		if err := json.Unmarshal([]byte(raw), &c); err == nil {
			return c.toUser(), nil
		}
	} else if err != nil {
		s.logger.Warn("user.cache.read_failed", zap.Int64("user_id", id), zap.Error(err))
	}

	u, err := s.store.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(u.toCached()); err == nil {
		if err := s.cache.Put(ctx, key, string(data), s.ttl); err != nil {
			s.logger.Warn("user.cache.write_failed", zap.Int64("user_id", id), zap.Error(err))
		}
	}
	return u, nil
}

// ByID returns the full record including credentials, bypassing the cache.
func (s *Service) ByID(ctx context.Context, id int64) (*User, error) {
	return s.store.ByID(ctx, id)
}

func (s *Service) SetMonobankToken(ctx context.Context, id int64, token string) error {
	if token == "" {
		return apperrors.NewValidation("monobank token is required")
	}
	if err := s.store.SetMonobankToken(ctx, id, token); err != nil {
		return err
	}
	return s.invalidate(ctx, id)
}

func (s *Service) SetTelegramChat(ctx context.Context, id int64, chatID int64) error {
	if err := s.store.SetTelegramChat(ctx, id, chatID); err != nil {
		return err
	}
	return s.invalidate(ctx, id)
}

func (s *Service) invalidate(ctx context.Context, id int64) error {
	if err := s.cache.Remove(ctx, profileKey(id)); err != nil {
		return errors.Join(apperrors.NewInternal("profile cache is stale"), err)
	}
	return nil
}

func profileKey(id int64) string {
	return fmt.Sprintf("user:%d", id)
}
