package user

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Role           string    `json:"role"`
	MonobankToken  string    `json:"-"`
	TelegramChatID int64     `json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// cached is the profile stored in the cache. Credentials are never cached.
type cached struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	TelegramChatID int64     `json:"telegram_chat_id"`
	CreatedAt      time.Time `json:"created_at"`
}

func (u *User) toCached() cached {
	return cached{ID: u.ID, Email: u.Email, Role: u.Role, TelegramChatID: u.TelegramChatID, CreatedAt: u.CreatedAt}
}

func (c cached) toUser() *User {
	return &User{ID: c.ID, Email: c.Email, Role: c.Role, TelegramChatID: c.TelegramChatID, CreatedAt: c.CreatedAt}
}
