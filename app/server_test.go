package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/leeforge/moneykeeper/auth"
	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/json"
	"github.com/leeforge/moneykeeper/monobank"
	"github.com/leeforge/moneykeeper/redis_client"
	"github.com/leeforge/moneykeeper/registry"
	"github.com/leeforge/moneykeeper/security"
	"github.com/leeforge/moneykeeper/spreadsheet"
	"github.com/leeforge/moneykeeper/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type userStore struct {
	mu    sync.Mutex
	users []*user.User
}

func (s *userStore) Insert(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return apperrors.NewConflict("user", u.Email)
		}
	}
	u.ID = int64(len(s.users) + 1)
	clone := *u
	s.users = append(s.users, &clone)
	return nil
}

func (s *userStore) find(match func(*user.User) bool) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, apperrors.NewNotFound("user", nil)
}

func (s *userStore) ByID(_ context.Context, id int64) (*user.User, error) {
	return s.find(func(u *user.User) bool { return u.ID == id })
}

func (s *userStore) ByEmail(_ context.Context, email string) (*user.User, error) {
	return s.find(func(u *user.User) bool { return u.Email == email })
}

func (s *userStore) update(id int64, fn func(*user.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			fn(u)
			return nil
		}
	}
	return apperrors.NewNotFound("user", id)
}

func (s *userStore) SetMonobankToken(_ context.Context, id int64, token string) error {
	return s.update(id, func(u *user.User) { u.MonobankToken = token })
}

func (s *userStore) SetTelegramChat(_ context.Context, id int64, chatID int64) error {
	return s.update(id, func(u *user.User) { u.TelegramChatID = chatID })
}

type serverFixture struct {
	handler  http.Handler
	store    *userStore
	issuer   *auth.Issuer
	redis    *miniredis.Miniredis
	webhooks []string
}

func newServerFixture(t *testing.T, configure ...func(*ServerSettings)) *serverFixture {
	t.Helper()
	f := &serverFixture{store: &userStore{}, redis: miniredis.RunT(t)}

	mono := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Token") != "mono-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/personal/client-info":
			_, _ = w.Write([]byte(`{"clientId":"c1","name":"Ann","accounts":[{"id":"acc-1","currencyCode":980}]}`))
		case "/personal/webhook":
			var body struct {
				WebHookURL string `json:"webHookUrl"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.webhooks = append(f.webhooks, body.WebHookURL)
		}
	}))
	t.Cleanup(mono.Close)

	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(google.Close)

	cache, err := redis_client.NewRedis(context.Background(), redis_client.Config{
		Host: f.redis.Host(), Port: f.redis.Port(), DialTimeout: time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	f.issuer, err = auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	enforcer, err := auth.NewEnforcer(serverRules, serverInherits)
	require.NoError(t, err)

	settings := &ServerSettings{WebhookURL: "https://collector.example.com/"}
	settings.Access.SignUpLimit.Limit = 100
	settings.Access.SignInLimit.Limit = 100
	for _, fn := range configure {
		fn(settings)
	}

	reg := registry.New()
	constants := registry.Constants{PublicURL: "https://abc.ngrok.io", SecretKey: "test-secret"}
	require.NoError(t, registry.Provide(reg, registry.ConstantsKey, constants))
	require.NoError(t, registry.Provide(reg, user.Key,
		user.NewService(f.store, cache, user.WithBcryptCost(bcrypt.MinCost))))
	require.NoError(t, registry.Provide(reg, auth.IssuerKey, f.issuer))
	require.NoError(t, registry.Provide(reg, auth.EnforcerKey, enforcer))
	require.NoError(t, registry.Provide(reg, monobank.Key, monobank.New(monobank.Config{BaseURL: mono.URL})))
	require.NoError(t, registry.Provide(reg, spreadsheet.Key,
		spreadsheet.New(spreadsheet.Config{TokenURL: google.URL}, constants.PublicURL)))
	require.NoError(t, registry.Provide(reg, redis_client.Key, cache))
	reg.Seal()

	r := chi.NewRouter()
	require.NoError(t, serverRoutes(settings, nopLogger())(r, reg))
	f.handler = r
	return f
}

func (f *serverFixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *serverFixture) signIn(t *testing.T) string {
	t.Helper()
	creds := `{"email":"ann@example.com","password":"correct-horse"}`
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/user/signup", "", creds).Code)

	rec := f.do(http.MethodPost, "/user/signin", "", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data tokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.Token)
	return resp.Data.Token
}

func (f *serverFixture) open(t *testing.T, sealed string) string {
	t.Helper()
	sealer, err := security.NewSealer("test-secret")
	require.NoError(t, err)
	plain, err := sealer.Open(sealed)
	require.NoError(t, err)
	return plain
}

func TestServer_SignUpSignInMe(t *testing.T) {
	f := newServerFixture(t)
	token := f.signIn(t)

	rec := f.do(http.MethodGet, "/user/me", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"ann@example.com"`)
	assert.NotContains(t, rec.Body.String(), "correct-horse")
}

func TestServer_RequiresAuthentication(t *testing.T) {
	f := newServerFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/user/me", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/user/me", "garbage", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/services/spreadsheet/auth", "", "").Code)
}

func TestServer_SignUpValidation(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodPost, "/user/signup", "", `{"email":"ann","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(http.MethodPost, "/user/signin", "", `{"email":"ann@example.com","password":"wrong-password"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_SignUpAndSignInLimitedSeparately(t *testing.T) {
	f := newServerFixture(t, func(s *ServerSettings) {
		s.Access.SignUpLimit.Limit = 1
	})

	creds := `{"email":"ann@example.com","password":"correct-horse"}`
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/user/signup", "", creds).Code)

	rec := f.do(http.MethodPost, "/user/signup", "", `{"email":"bob@example.com","password":"correct-horse"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/user/signin", "", creds).Code)
	}
}

func TestServer_RoleWithoutPermissionIsForbidden(t *testing.T) {
	f := newServerFixture(t)
	token, err := f.issuer.Issue(auth.Identity{UserID: 1, Role: "guest"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/user/me", token, "").Code)
}

func TestServer_MonobankConnect(t *testing.T) {
	f := newServerFixture(t)
	token := f.signIn(t)

	rec := f.do(http.MethodPost, "/services/monobank/connect", token, `{"token":"mono-token"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Ann"`)
	assert.Equal(t, []string{"https://collector.example.com/monobank/1"}, f.webhooks)

	u, err := f.store.ByID(context.Background(), 1)
	require.NoError(t, err)
	assert.NotEqual(t, "mono-token", u.MonobankToken)
	assert.Equal(t, "mono-token", f.open(t, u.MonobankToken))

	rec = f.do(http.MethodPost, "/services/monobank/connect", token, `{"token":"stolen"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestServer_SpreadsheetRoundTrip(t *testing.T) {
	f := newServerFixture(t)
	token := f.signIn(t)

	rec := f.do(http.MethodGet, "/services/spreadsheet/auth", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	consent, err := url.Parse(resp.Data["url"])
	require.NoError(t, err)
	state := consent.Query().Get("state")
	require.NotEmpty(t, state)
	assert.Equal(t, "https://abc.ngrok.io"+spreadsheet.CallbackPath, consent.Query().Get("redirect_uri"))

	rec = f.do(http.MethodGet, spreadsheet.CallbackPath+"?code=the-code&state="+url.QueryEscape(state), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stored, err := f.redis.Get(SpreadsheetTokenKey(1))
	require.NoError(t, err)
	assert.Contains(t, f.open(t, stored), `"refresh_token":"rt"`)

	// an access token is not a valid state
	rec = f.do(http.MethodGet, spreadsheet.CallbackPath+"?code=the-code&state="+token, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_TelegramConnect(t *testing.T) {
	f := newServerFixture(t)
	token := f.signIn(t)

	rec := f.do(http.MethodPost, "/services/telegram/connect", token, `{"chat_id":42}`)
	require.Equal(t, http.StatusOK, rec.Code)
	u, err := f.store.ByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.TelegramChatID)
}
