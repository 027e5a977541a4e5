package responses

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func JSONData(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

func JSONSuccess(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func Redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusFound, location)
}
