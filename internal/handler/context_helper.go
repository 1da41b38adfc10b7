package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitution-api/internal/middleware"
	"github.com/noah-isme/sma-substitution-api/internal/models"
)

func sessionFromContext(c *gin.Context) models.Session {
	return middleware.SessionFrom(c)
}

// queryBool reads a boolean query flag; anything unparsable is false.
func queryBool(c *gin.Context, name string) bool {
	value, err := strconv.ParseBool(c.Query(name))
	return err == nil && value
}
