package api

import (
	"github.com/fsdevblog/groph-balance/internal/transport/api/middlewares"
	"github.com/gin-gonic/gin"
)

// getUserIDFromContext достает id текущего пользователя, записанный auth middleware.
// На роутах без AuthRequiredMiddleware вернется 0.
func getUserIDFromContext(c *gin.Context) int64 {
	return c.GetInt64(middlewares.CurrentUserIDKey)
}
