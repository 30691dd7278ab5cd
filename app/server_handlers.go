package app

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/leeforge/moneykeeper/auth"
	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/http/binding"
	"github.com/leeforge/moneykeeper/http/responder"
	"github.com/leeforge/moneykeeper/json"
	"github.com/leeforge/moneykeeper/logging"
	"github.com/leeforge/moneykeeper/monobank"
	"github.com/leeforge/moneykeeper/redis_client"
	"github.com/leeforge/moneykeeper/registry"
	"github.com/leeforge/moneykeeper/security"
	"github.com/leeforge/moneykeeper/spreadsheet"
	"github.com/leeforge/moneykeeper/user"
	"go.uber.org/zap"
)

// SpreadsheetTokenKey is the cache key holding a user's sealed Google token.
func SpreadsheetTokenKey(userID int64) string {
	return "spreadsheet_token:" + strconv.FormatInt(userID, 10)
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type callbackQuery struct {
	Code  string `query:"code" validate:"required"`
	State string `query:"state" validate:"required"`
}

type monobankConnectRequest struct {
	Token string `json:"token" validate:"required"`
}

type monobankConnectResponse struct {
	Name       string             `json:"name"`
	WebHookURL string             `json:"webhook_url"`
	Accounts   []monobank.Account `json:"accounts"`
}

type telegramConnectRequest struct {
	ChatID int64 `json:"chat_id" validate:"required"`
}

// serverHandlers serve the user facing routes. Every dependency is resolved
// once from the sealed registry.
type serverHandlers struct {
	users    *user.Service
	issuer   *auth.Issuer
	mono     *monobank.Client
	sheets   *spreadsheet.Auth
	cache    *redis_client.Pool
	sealer   *security.Sealer
	webhook  string
	tokenTTL time.Duration
	stateTTL time.Duration
	logger   logging.Logger
}

func newServerHandlers(s *ServerSettings, reg *registry.Registry, logger logging.Logger) (*serverHandlers, error) {
	h := &serverHandlers{tokenTTL: s.Access.TokenTTL, stateTTL: s.Access.StateTTL, logger: logger}
	var errs [6]error
	h.users, errs[0] = registry.Resolve(reg, user.Key)
	h.issuer, errs[1] = registry.Resolve(reg, auth.IssuerKey)
	h.mono, errs[2] = registry.Resolve(reg, monobank.Key)
	h.sheets, errs[3] = registry.Resolve(reg, spreadsheet.Key)
	h.cache, errs[4] = registry.Resolve(reg, redis_client.Key)
	var constants registry.Constants
	constants, errs[5] = registry.Resolve(reg, registry.ConstantsKey)
	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	sealer, err := security.NewSealer(constants.SecretKey)
	if err != nil {
		return nil, err
	}
	h.sealer = sealer

	h.webhook = s.WebhookURL
	if h.webhook == "" {
		h.webhook = constants.PublicURL
	}
	h.webhook = strings.TrimRight(h.webhook, "/")
	if h.stateTTL <= 0 {
		h.stateTTL = 10 * time.Minute
	}
	if h.tokenTTL <= 0 {
		h.tokenTTL = auth.DefaultTokenTTL
	}
	return h, nil
}

func (h *serverHandlers) signUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := binding.JSON(r, &req); err != nil {
		bindFailed(w, r, err)
		return
	}
	u, err := h.users.Create(r.Context(), req.Email, req.Password)
	if err != nil {
		responder.Fail(w, r, err)
		return
	}
	responder.Created(w, r, u)
}

func (h *serverHandlers) signIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := binding.JSON(r, &req); err != nil {
		bindFailed(w, r, err)
		return
	}
	u, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		responder.Fail(w, r, err)
		return
	}
	token, err := h.issuer.Issue(auth.Identity{UserID: u.ID, Role: u.Role})
	if err != nil {
		responder.Fail(w, r, err)
		return
	}
	responder.OK(w, r, tokenResponse{Token: token, ExpiresAt: time.Now().Add(h.tokenTTL).UTC()})
}

func (h *serverHandlers) me(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())
	u, err := h.users.Get(r.Context(), id.UserID)
	if err != nil {
		responder.Fail(w, r, err)
		return
	}
	responder.OK(w, r, u)
}

// spreadsheetAuth returns the Google consent URL. The state parameter is a
// short-lived signed token naming the user.
func (h *serverHandlers) spreadsheetAuth(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())
	state, err := h.issuer.IssueState(id, h.stateTTL)
	if err != nil {
		responder.Fail(w, r, err)
		return
	}
	responder.OK(w, r, map[string]string{"url": h.sheets.AuthCodeURL(state)})
}

func (h *serverHandlers) spreadsheetCallback(w http.ResponseWriter, r *http.Request) {
	var q callbackQuery
	if err := binding.Query(r, &q); err != nil {
		bindFailed(w, r, err)
		return
	}
	id, err := h.issuer.Verify(q.State, auth.PurposeState)
	if err != nil {
		responder.Unauthorized(w, r, "invalid state")
		return
	}

	token, err := h.sheets.Exchange(r.Context(), q.Code)
	if err != nil {
		responder.Fail(w, r, err)
		return
	}
	raw, err := json.Marshal(token)
	if err != nil {
		responder.Fail(w, r, apperrors.NewInternal("failed to encode token").WithInnerError(err))
		return
	}
	sealed, err := h.sealer.Seal(string(raw))
	if err != nil {
		responder.Fail(w, r, err)
		return
	}
	if err := h.cache.Put(r.Context(), SpreadsheetTokenKey(id.UserID), sealed, 0); err != nil {
		responder.Fail(w, r, err)
		return
	}
	logging.WithContext(h.logger, r.Context()).Info("spreadsheet.connected", zap.Int64("user_id", id.UserID))
	responder.OK(w, r, map[string]bool{"connected": true})
}

// monobankConnect checks the personal token, points the account webhook at the
// collector and stores the sealed token.
func (h *serverHandlers) monobankConnect(w http.ResponseWriter, r *http.Request) {
	var req monobankConnectRequest
	if err := binding.JSON(r, &req); err != nil {
		bindFailed(w, r, err)
		return
	}
	id, _ := auth.IdentityFrom(r.Context())

	info, err := h.mono.ClientInfo(r.Context(), req.Token)
	if err != nil {
		responder.Fail(w, r, err)
		return
	}
	webhook := h.webhook + "/monobank/" + strconv.FormatInt(id.UserID, 10)
	if err := h.mono.SetWebHook(r.Context(), req.Token, webhook); err != nil {
		responder.Fail(w, r, err)
		return
	}
	sealed, err := h.sealer.Seal(req.Token)
	if err != nil {
		responder.Fail(w, r, err)
		return
	}
	if err := h.users.SetMonobankToken(r.Context(), id.UserID, sealed); err != nil {
		responder.Fail(w, r, err)
		return
	}
	logging.WithContext(h.logger, r.Context()).Info("monobank.connected",
		zap.String("client_id", info.ClientID), zap.String("token", security.Mask(req.Token)))
	responder.OK(w, r, monobankConnectResponse{Name: info.Name, WebHookURL: webhook, Accounts: info.Accounts})
}

func (h *serverHandlers) telegramConnect(w http.ResponseWriter, r *http.Request) {
	var req telegramConnectRequest
	if err := binding.JSON(r, &req); err != nil {
		bindFailed(w, r, err)
		return
	}
	id, _ := auth.IdentityFrom(r.Context())
	if err := h.users.SetTelegramChat(r.Context(), id.UserID, req.ChatID); err != nil {
		responder.Fail(w, r, err)
		return
	}
	responder.OK(w, r, map[string]int64{"chat_id": req.ChatID})
}

func bindFailed(w http.ResponseWriter, r *http.Request, err error) {
	var verrs binding.ValidationErrors
	if errors.As(err, &verrs) {
		responder.ValidationError(w, r, verrs)
		return
	}
	responder.BindError(w, r, err)
}
