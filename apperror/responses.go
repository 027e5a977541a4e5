package apperror

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type ErrorBody struct {
	Error string `json:"error"`
}

// Respond aborts c with a JSON error body.
func Respond(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, ErrorBody{Error: msg})
}

func BadRequestResponse(c *gin.Context, msg string) {
	Respond(c, http.StatusBadRequest, msg)
}

func UnauthorizedResponse(c *gin.Context, msg string) {
	Respond(c, http.StatusUnauthorized, msg)
}

func NotFoundResponse(c *gin.Context, msg string) {
	Respond(c, http.StatusNotFound, msg)
}

func ConflictResponse(c *gin.Context, msg string) {
	Respond(c, http.StatusConflict, msg)
}

func BadGatewayResponse(c *gin.Context, msg string) {
	Respond(c, http.StatusBadGateway, msg)
}

func ServiceUnavailableResponse(c *gin.Context, msg string) {
	Respond(c, http.StatusServiceUnavailable, msg)
}

func InternalServerErrorResponse(c *gin.Context, msg string) {
	Respond(c, http.StatusInternalServerError, msg)
}
