package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/Yulian302/lfusys-services-handshake/apperror"
	"github.com/Yulian302/lfusys-services-handshake/auth/state"
	"github.com/Yulian302/lfusys-services-handshake/auth/types"
	"github.com/Yulian302/lfusys-services-handshake/handshake/callback"
	"github.com/Yulian302/lfusys-services-handshake/handshake/channel"
	"github.com/Yulian302/lfusys-services-handshake/logging"
	"github.com/Yulian302/lfusys-services-handshake/responses"
	"github.com/Yulian302/lfusys-services-handshake/services"
	"github.com/Yulian302/lfusys-services-handshake/store"
)

type OAuthConfig struct {
	AppOrigin        string
	FrontendURL      string
	LoginURL         string
	Providers        []string
	FallbackProvider string
	Cookies          CookieConfig
}

type OAuthHandler struct {
	cfg         OAuthConfig
	authService services.AuthService
	bus         channel.Publisher
	reports     store.ReportStore
}

func NewOAuthHandler(cfg OAuthConfig, authSvc services.AuthService, bus channel.Publisher, reports store.ReportStore) *OAuthHandler {
	return &OAuthHandler{
		cfg:         cfg,
		authService: authSvc,
		bus:         bus,
		reports:     reports,
	}
}

type AuthURLResponse struct {
	URL string `json:"url"`
	// Nonce is the key the popup's outcome is published under.
	Nonce string `json:"nonce"`
}

// AuthURL answers GET /auth/oauth/:provider/url[?popup=1].
func (h *OAuthHandler) AuthURL(c *gin.Context) {
	provider := c.Param("provider")
	popup := c.Query("popup") == "1" || c.Query("popup") == "true"

	req, err := h.authService.AuthURL(c.Request.Context(), provider, popup)
	if err != nil {
		if errors.Is(err, apperror.ErrUnknownProvider) {
			apperror.NotFoundResponse(c, fmt.Sprintf("unknown provider %q", provider))
			return
		}
		logging.FromContext(c.Request.Context()).Error("could not issue auth url", slog.Any("err", err))
		apperror.InternalServerErrorResponse(c, fmt.Sprintf("failed to connect to %s", provider))
		return
	}

	responses.JSONData(c, http.StatusOK, AuthURLResponse{URL: req.URL, Nonce: req.Nonce})
}

type ExchangeRequest struct {
	Provider string `json:"provider" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

// Exchange answers POST /auth/oauth/exchange for popups that run their own
// callback page.
func (h *OAuthHandler) Exchange(c *gin.Context) {
	var req ExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.BadRequestResponse(c, "invalid input")
		return
	}

	resp, err := h.authService.ExchangeCode(c.Request.Context(), req.Provider, req.Code)
	if err != nil {
		status, msg := exchangeStatus(req.Provider, err)
		if status >= http.StatusInternalServerError {
			logging.FromContext(c.Request.Context()).Error("code exchange failed", slog.Any("err", err))
		}
		apperror.Respond(c, status, msg)
		return
	}

	pair := types.TokenPair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	setSessionCookies(c, h.cfg.Cookies, pair)
	responses.JSONData(c, http.StatusOK, pair)
}

func exchangeStatus(provider string, err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrDuplicateCode):
		return http.StatusConflict, apperror.ErrDuplicateCode.Error()
	case errors.Is(err, apperror.ErrUnknownProvider):
		return http.StatusBadRequest, fmt.Sprintf("unknown provider %q", provider)
	case errors.Is(err, apperror.ErrEmailUnverified):
		return http.StatusForbidden, fmt.Sprintf("your %s account has no verified email address", provider)
	case errors.Is(err, apperror.ErrProviderExchange), errors.Is(err, apperror.ErrProviderUser):
		return http.StatusBadGateway, fmt.Sprintf("failed to sign in with %s", provider)
	default:
		return http.StatusInternalServerError, "could not complete sign-in"
	}
}

// Callback answers GET /auth/oauth/callback, the page the identity provider
// redirects to. Navigated to directly it redirects. Loaded in a popup it sets
// the session cookies and renders a self-closing page; the outcome is held
// back until that page claims it through Report, so the opener never hears
// of a session the popup does not have yet.
func (h *OAuthHandler) Callback(c *gin.Context) {
	ctx := c.Request.Context()
	q := c.Request.URL.Query()

	st, _ := state.Decode(q.Get("state"))
	verifier := &attemptVerifier{svc: h.authService}
	receiver := callback.NewReceiver(
		&sessionExchanger{svc: h.authService},
		h.receiverOptions(ctx, verifier)...,
	)

	page := &closingPage{}
	env := callback.Env{
		Query:   q,
		Window:  page,
		Session: &cookieSession{c: c, cfg: h.cfg.Cookies},
	}
	held := &heldPoster{}
	if st.Popup {
		env.Opener = held
	} else {
		env.Local = &redirectCompletion{c: c, h: h}
	}

	res, fired := receiver.Run(ctx, env)
	if !fired {
		responses.Redirect(c, h.cfg.LoginURL)
		return
	}
	if env.Opener == nil {
		return
	}

	status := http.StatusOK
	if !res.OK() {
		status = http.StatusUnauthorized
	}
	renderCallbackPage(c, status, res, page, h.holdReport(ctx, verifier.key(ctx, st), held.msg))
}

// heldReport is what Report publishes once the callback page claims it.
type heldReport struct {
	Key  string `json:"key"`
	Data []byte `json:"data"`
}

// holdReport parks msg for the page and returns the URL the page claims it
// from. Outcomes without a verified attempt key have no opener to reach.
func (h *OAuthHandler) holdReport(ctx context.Context, key string, msg channel.Message) string {
	if key == "" || msg == nil {
		return ""
	}
	log := logging.FromContext(ctx)

	data, err := channel.Encode(msg)
	if err != nil {
		log.Error("encoding oauth outcome", slog.Any("err", err))
		return ""
	}
	payload, err := json.Marshal(heldReport{Key: key, Data: data})
	if err != nil {
		log.Error("encoding held report", slog.Any("err", err))
		return ""
	}
	token, err := state.NewNonce()
	if err != nil {
		log.Error("generating report token", slog.Any("err", err))
		return ""
	}
	if err := h.reports.SaveReport(ctx, token, payload); err != nil {
		log.Error("saving held report", slog.Any("err", err))
		return ""
	}
	return "/auth/oauth/report/" + token
}

// Report answers POST /auth/oauth/report/:token. The callback page sends it
// once loaded and the held outcome is published to the waiting opener.
func (h *OAuthHandler) Report(c *gin.Context) {
	ctx := c.Request.Context()

	payload, ok, err := h.reports.ConsumeReport(ctx, c.Param("token"))
	if err != nil {
		logging.FromContext(ctx).Error("claiming held report", slog.Any("err", err))
		apperror.InternalServerErrorResponse(c, "could not deliver sign-in result")
		return
	}
	if !ok {
		apperror.NotFoundResponse(c, "unknown or expired report")
		return
	}

	var held heldReport
	if err := json.Unmarshal(payload, &held); err != nil {
		logging.FromContext(ctx).Error("decoding held report", slog.Any("err", err))
		apperror.InternalServerErrorResponse(c, "could not deliver sign-in result")
		return
	}
	env := channel.Envelope{Origin: h.cfg.AppOrigin, Data: held.Data}
	if err := h.bus.Publish(ctx, held.Key, env); err != nil {
		logging.FromContext(ctx).Error("publishing oauth outcome", slog.Any("err", err))
		apperror.Respond(c, http.StatusServiceUnavailable, "could not deliver sign-in result")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *OAuthHandler) receiverOptions(ctx context.Context, verifier callback.StateVerifier) []callback.Option {
	opts := []callback.Option{
		callback.WithProviders(h.cfg.Providers...),
		callback.WithStateVerifier(verifier),
		callback.WithLogger(logging.FromContext(ctx)),
	}
	if h.cfg.FallbackProvider != "" {
		opts = append(opts, callback.WithFallbackProvider(h.cfg.FallbackProvider))
	}
	return opts
}

// attemptVerifier consumes the state nonce and remembers it once it checked
// out, so only a verified nonce can address an opener.
type attemptVerifier struct {
	svc      services.AuthService
	checked  bool
	verified string
}

func (v *attemptVerifier) Verify(ctx context.Context, st state.State) error {
	v.checked = true
	if err := v.svc.VerifyState(ctx, st); err != nil {
		return err
	}
	v.verified = st.Nonce
	return nil
}

// key returns the verified nonce. Failures the receiver settles before
// looking at the state are verified here, which also retires the nonce.
func (v *attemptVerifier) key(ctx context.Context, st state.State) string {
	if !v.checked {
		if err := v.Verify(ctx, st); err != nil {
			logging.FromContext(ctx).Warn("oauth state rejected", slog.Any("err", err))
		}
	}
	return v.verified
}

// heldPoster keeps the popup's message instead of publishing it.
type heldPoster struct {
	msg channel.Message
}

func (p *heldPoster) Post(ctx context.Context, m channel.Message) error {
	p.msg = m
	return nil
}

// cookieSession stores a fresh session as cookies on the callback response.
type cookieSession struct {
	c   *gin.Context
	cfg CookieConfig
}

func (s *cookieSession) Establish(ctx context.Context, sess *callback.Session) error {
	setSessionCookies(s.c, s.cfg, types.TokenPair{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
	})
	return nil
}

// redirectCompletion finishes a callback that has no opener.
type redirectCompletion struct {
	c *gin.Context
	h *OAuthHandler
}

func (r *redirectCompletion) Complete(ctx context.Context, res callback.Result) {
	if !res.OK() {
		detail := res.Detail
		if detail == "" {
			detail = string(res.Kind)
		}
		responses.Redirect(r.c, r.h.cfg.LoginURL+"?"+url.Values{"error": {detail}}.Encode())
		return
	}
	// cookies were set by cookieSession
	responses.Redirect(r.c, r.h.cfg.FrontendURL)
}

type sessionExchanger struct {
	svc services.AuthService
}

func (e *sessionExchanger) Exchange(ctx context.Context, provider, code string) (*callback.Session, error) {
	resp, err := e.svc.ExchangeCode(ctx, provider, code)
	if err != nil {
		if errors.Is(err, apperror.ErrDuplicateCode) {
			return nil, fmt.Errorf("%w: %w", callback.ErrDuplicateCode, err)
		}
		_, msg := exchangeStatus(provider, err)
		return nil, &detailError{err: err, detail: msg}
	}
	return &callback.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}, nil
}

// detailError carries a message that is safe to show to the user.
type detailError struct {
	err    error
	detail string
}

func (e *detailError) Error() string  { return e.err.Error() }
func (e *detailError) Unwrap() error  { return e.err }
func (e *detailError) Detail() string { return e.detail }
