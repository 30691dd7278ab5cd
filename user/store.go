package user

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/postgres"
)

// Store persists users.
type Store interface {
	Insert(ctx context.Context, u *User) error
	ByID(ctx context.Context, id int64) (*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)
	SetMonobankToken(ctx context.Context, id int64, token string) error
	SetTelegramChat(ctx context.Context, id int64, chatID int64) error
}

const (
	insertUser = `INSERT INTO "user" (email, password, role) VALUES ($1, $2, $3) RETURNING id, created_at;`
	selectUser = `SELECT id, email, password, role, COALESCE(monobank_token, ''), COALESCE(telegram_chat_id, 0), created_at FROM "user"`

	updateMonobankToken = `UPDATE "user" SET monobank_token = $2 WHERE id = $1;`
	updateTelegramChat  = `UPDATE "user" SET telegram_chat_id = $2 WHERE id = $1;`

	uniqueViolation = "23505"
)

type pgStore struct {
	db postgres.Querier
}

// NewStore returns a Store backed by the "user" table.
func NewStore(db postgres.Querier) Store {
	return &pgStore{db: db}
}

func (s *pgStore) Insert(ctx context.Context, u *User) error {
	err := s.db.QueryRow(ctx, insertUser, u.Email, u.PasswordHash, u.Role).Scan(&u.ID, &u.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperrors.NewConflict("user", u.Email)
	}
	if err != nil {
		return apperrors.NewQuery(insertUser, err)
	}
	return nil
}

func (s *pgStore) ByID(ctx context.Context, id int64) (*User, error) {
	return s.one(ctx, selectUser+` WHERE id = $1;`, id)
}

func (s *pgStore) ByEmail(ctx context.Context, email string) (*User, error) {
	return s.one(ctx, selectUser+` WHERE email = $1;`, email)
}

func (s *pgStore) one(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.MonobankToken, &u.TelegramChatID, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("user", arg)
	}
	if err != nil {
		return nil, apperrors.NewQuery(query, err)
	}
	return &u, nil
}

func (s *pgStore) SetMonobankToken(ctx context.Context, id int64, token string) error {
	return s.update(ctx, updateMonobankToken, id, token)
}

func (s *pgStore) SetTelegramChat(ctx context.Context, id int64, chatID int64) error {
	return s.update(ctx, updateTelegramChat, id, chatID)
}

func (s *pgStore) update(ctx context.Context, query string, id int64, value any) error {
	tag, err := s.db.Exec(ctx, query, id, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFound("user", id)
	}
	return nil
}
