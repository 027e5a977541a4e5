package routers

import (
	"github.com/gin-gonic/gin"

	"github.com/Yulian302/lfusys-services-handshake/auth"
	"github.com/Yulian302/lfusys-services-handshake/auth/handlers"
)

func RegisterAuthRoutes(oauthHandler *handlers.OAuthHandler, sessionHandler *handlers.SessionHandler, jwtSecret string, route *gin.Engine) {
	group := route.Group("/auth")

	oauth := group.Group("/oauth")
	oauth.GET("/:provider/url", oauthHandler.AuthURL)
	oauth.POST("/exchange", oauthHandler.Exchange)
	oauth.GET("/callback", oauthHandler.Callback)
	oauth.POST("/report/:token", oauthHandler.Report)

	group.GET("/me", auth.JWTMiddleware(jwtSecret), sessionHandler.Me)
	group.POST("/refresh", sessionHandler.Refresh)
	group.POST("/logout", sessionHandler.Logout)
}
