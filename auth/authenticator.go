package auth

import (
	"net/http"
	"strings"

	"github.com/leeforge/moneykeeper/http/responder"
	"github.com/leeforge/moneykeeper/logging"
	"go.uber.org/zap"
)

// Verifier checks access tokens.
type Verifier interface {
	Verify(token, purpose string) (Identity, error)
}

// Authenticator requires a valid bearer token on every non-public route.
type Authenticator struct {
	verifier Verifier
	public   []string
	logger   logging.Logger
}

// NewAuthenticator skips authentication for the listed paths. A pattern ending
// in "/*" matches the prefix before it.
func NewAuthenticator(verifier Verifier, logger logging.Logger, public ...string) *Authenticator {
	if logger == nil {
		logger = logging.Global()
	}
	return &Authenticator{verifier: verifier, public: public, logger: logger}
}

// IsPublic reports whether path skips authentication.
func (a *Authenticator) IsPublic(path string) bool {
	for _, p := range a.public {
		if prefix, ok := strings.CutSuffix(p, "/*"); ok {
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return true
			}
			continue
		}
		if path == p {
			return true
		}
	}
	return false
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.IsPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			responder.Unauthorized(w, r, "missing bearer token")
			return
		}
		id, err := a.verifier.Verify(token, PurposeAccess)
		if err != nil {
			logging.WithContext(a.logger, r.Context()).Debug("auth.rejected",
				zap.String("path", r.URL.Path), zap.Error(err))
			responder.Unauthorized(w, r, err.Error())
			return
		}

		ctx := WithIdentity(r.Context(), id)
		ctx = logging.SetUserID(ctx, formatID(id.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}
