package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Yulian302/lfusys-services-handshake/apperror"
	"github.com/Yulian302/lfusys-services-handshake/auth/types"
	"github.com/Yulian302/lfusys-services-handshake/logging"
	"github.com/Yulian302/lfusys-services-handshake/responses"
	"github.com/Yulian302/lfusys-services-handshake/services"
)

type SessionHandler struct {
	authService services.AuthService
	cookies     CookieConfig
}

func NewSessionHandler(authSvc services.AuthService, cookies CookieConfig) *SessionHandler {
	return &SessionHandler{
		authService: authSvc,
		cookies:     cookies,
	}
}

// Me returns the user behind the access cookie.
func (h *SessionHandler) Me(c *gin.Context) {
	token, _ := c.Cookie(types.AccessCookie)

	user, err := h.authService.GetCurrentUser(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			apperror.NotFoundResponse(c, "user not found")
			return
		}
		apperror.UnauthorizedResponse(c, "invalid_token")
		return
	}

	responses.JSONData(c, http.StatusOK, user)
}

// Refresh rotates the session pair from the refresh cookie.
func (h *SessionHandler) Refresh(c *gin.Context) {
	refresh, err := c.Cookie(types.RefreshCookie)
	if err != nil || refresh == "" {
		apperror.UnauthorizedResponse(c, "missing refresh token")
		return
	}

	pair, err := h.authService.RefreshToken(c.Request.Context(), refresh)
	if err != nil {
		logging.FromContext(c.Request.Context()).Warn("refresh rejected", slog.Any("err", err))
		clearSessionCookies(c, h.cookies)
		apperror.UnauthorizedResponse(c, "invalid refresh token")
		return
	}

	setSessionCookies(c, h.cookies, *pair)
	responses.JSONSuccess(c, "refreshed")
}

func (h *SessionHandler) Logout(c *gin.Context) {
	clearSessionCookies(c, h.cookies)
	responses.JSONSuccess(c, "logged out")
}
