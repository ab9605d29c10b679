package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cas-inventory/backend/internal/infrastructure/lock"
	"github.com/cas-inventory/backend/internal/infrastructure/logger"
	"github.com/cas-inventory/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DefaultLockWait bounds how long a request queues behind another change to the same entity
const DefaultLockWait = 5 * time.Second

// EntityLock serializes requests that mutate the same entity.
// The key is scope plus the value of the route parameter; requests without
// the parameter pass through. Waiting longer than wait answers 409.
func EntityLock(locker lock.Locker, scope, param string, wait time.Duration) gin.HandlerFunc {
	if wait <= 0 {
		wait = DefaultLockWait
	}
	if locker == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		id := c.Param(param)
		if id == "" {
			c.Next()
			return
		}

		acquireCtx, cancel := context.WithTimeout(c.Request.Context(), wait)
		release, err := locker.Acquire(acquireCtx, scope+":"+id)
		cancel()
		if err != nil {
			code, status, message := dto.ErrCodeInternal, http.StatusInternalServerError, "Failed to acquire entity lock"
			if errors.Is(err, lock.ErrLockTimeout) {
				code, status, message = dto.ErrCodeLockTimeout, http.StatusConflict, "Another change to this record is in progress"
			}
			logger.GetGinLogger(c).Warn("Entity lock not acquired",
				zap.String("scope", scope),
				zap.String("id", id),
				zap.Error(err),
			)
			SetErrorCode(c, code)
			c.AbortWithStatusJSON(status, dto.NewErrorResponse(code, message, GetRequestID(c)))
			return
		}
		defer release()

		c.Next()
	}
}
