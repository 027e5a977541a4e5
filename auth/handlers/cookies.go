package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Yulian302/lfusys-services-handshake/auth/types"
)

type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func setSessionCookies(c *gin.Context, cfg CookieConfig, pair types.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		types.RefreshCookie,
		pair.RefreshToken,
		int(cfg.RefreshTTL.Seconds()),
		types.CookiePath,
		"",
		cfg.Secure,
		true,
	)
	c.SetCookie(
		types.AccessCookie,
		pair.AccessToken,
		int(cfg.AccessTTL.Seconds()),
		types.CookiePath,
		"",
		cfg.Secure,
		true,
	)
}

func clearSessionCookies(c *gin.Context, cfg CookieConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(types.RefreshCookie, "", -1, types.CookiePath, "", cfg.Secure, true)
	c.SetCookie(types.AccessCookie, "", -1, types.CookiePath, "", cfg.Secure, true)
}
