package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leeforge/moneykeeper/lifecycle"
	"github.com/leeforge/moneykeeper/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRules = []Rule{
	{Role: "user", Path: "/user/me", Method: "^GET$"},
	{Role: "user", Path: "/services/*", Method: "^(GET|POST)$"},
	{Role: "admin", Path: "/*", Method: ".*"},
}

var testInherits = []Inherit{{Role: "admin", Parent: "user"}}

type countingEnforcer struct {
	calls atomic.Int32
	inner Enforcer
}

func (c *countingEnforcer) Enforce(rvals ...interface{}) (bool, error) {
	c.calls.Add(1)
	return c.inner.Enforce(rvals...)
}

func newTestRouter(t *testing.T) (http.Handler, *Issuer, *countingEnforcer) {
	t.Helper()
	issuer, err := NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	enforcer, err := NewEnforcer(testRules, testInherits)
	require.NoError(t, err)
	counting := &countingEnforcer{inner: enforcer}

	authn := NewAuthenticator(issuer, nil, "/user/signin", "/healthz")
	authz := NewAuthorizer(counting, authn.IsPublic, nil)
	chain := NewChain().Use("authentication", authn.Middleware).Use("authorization", authz.Middleware)

	r := chi.NewRouter()
	r.Use(chain.Middlewares()...)
	ok := func(w http.ResponseWriter, r *http.Request) {
		id, _ := IdentityFrom(r.Context())
		w.Header().Set("X-User", formatID(id.UserID))
		w.WriteHeader(http.StatusOK)
	}
	r.Post("/user/signin", ok)
	r.Get("/healthz", ok)
	r.Get("/user/me", ok)
	r.Post("/services/monobank/connect", ok)
	r.Delete("/admin/users/{id}", ok)
	return r, issuer, counting
}

func do(h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChain_UnauthenticatedNeverReachesAuthorizer(t *testing.T) {
	h, _, enforcer := newTestRouter(t)

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/user/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/user/me", "garbage").Code)
	assert.Equal(t, int32(0), enforcer.calls.Load())
}

func TestChain_PublicRoutes(t *testing.T) {
	h, _, enforcer := newTestRouter(t)

	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/user/signin", "").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, int32(0), enforcer.calls.Load())
}

func TestChain_AuthorizedAndForbidden(t *testing.T) {
	h, issuer, _ := newTestRouter(t)

	userToken, err := issuer.Issue(Identity{UserID: 7, Role: "user"})
	require.NoError(t, err)
	adminToken, err := issuer.Issue(Identity{UserID: 1, Role: "admin"})
	require.NoError(t, err)

	rec := do(h, http.MethodGet, "/user/me", userToken)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7", rec.Header().Get("X-User"))

	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/services/monobank/connect", userToken).Code)
	assert.Equal(t, http.StatusForbidden, do(h, http.MethodDelete, "/admin/users/3", userToken).Code)

	assert.Equal(t, http.StatusOK, do(h, http.MethodDelete, "/admin/users/3", adminToken).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/user/me", adminToken).Code)
}

func TestChain_Names(t *testing.T) {
	chain := NewChain().Use("authentication", nil).Use("authorization", nil)
	assert.Equal(t, []string{"authentication", "authorization"}, chain.Names())
}

func TestChain_MiddlewaresOrder(t *testing.T) {
	var order []string
	mark := func(name string) Interceptor {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	r := chi.NewRouter()
	r.Use(NewChain().Use("a", mark("a")).Use("b", mark("b")).Middlewares()...)
	r.Get("/", func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestIssuer_Verify(t *testing.T) {
	issuer, err := NewIssuer("secret", time.Minute)
	require.NoError(t, err)

	token, err := issuer.Issue(Identity{UserID: 42, Role: "user"})
	require.NoError(t, err)
	id, err := issuer.Verify(token, PurposeAccess)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: 42, Role: "user"}, id)

	_, err = issuer.Verify(token, PurposeState)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewIssuer("other-secret", time.Minute)
	require.NoError(t, err)
	_, err = other.Verify(token, PurposeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	expired, err := issuer.Issue(Identity{UserID: 42, Role: "user"})
	require.NoError(t, err)
	issuer.now = time.Now
	_, err = issuer.Verify(expired, PurposeAccess)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = NewIssuer("", time.Minute)
	assert.Error(t, err)
}

func TestAccessHook(t *testing.T) {
	reg := registry.New()
	exec := lifecycle.NewExecutor(reg, lifecycle.Options{})
	require.NoError(t, exec.OnStartup("constants", func(_ context.Context, reg *registry.Registry) error {
		return registry.Provide(reg, registry.ConstantsKey, registry.Constants{PublicURL: "https://x", SecretKey: "s"})
	}, registry.ConstantsKey.Name()))
	require.NoError(t, exec.Register(&AccessHook{Rules: testRules, Inherits: testInherits}))
	require.NoError(t, exec.Run(context.Background()))

	issuer := registry.MustResolve(reg, IssuerKey)
	enforcer := registry.MustResolve(reg, EnforcerKey)

	token, err := issuer.Issue(Identity{UserID: 1, Role: "user"})
	require.NoError(t, err)
	_, err = issuer.Verify(token, PurposeAccess)
	require.NoError(t, err)

	allowed, err := enforcer.Enforce("user", "/user/me", "GET")
	require.NoError(t, err)
	assert.True(t, allowed)

	require.NoError(t, exec.Dispose(context.Background()))
}
