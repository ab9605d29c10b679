package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cas-inventory/backend/internal/infrastructure/cache"
	"github.com/cas-inventory/backend/internal/infrastructure/logger"
	"github.com/cas-inventory/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// IdempotencyKeyHeader carries the client's key for a retryable write
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotentReplayedHeader marks a response served from the idempotency store
	IdempotentReplayedHeader = "Idempotent-Replayed"

	maxIdempotencyKeyLength = 255
)

// Idempotency replays the stored response when a write is retried with the same
// Idempotency-Key. Requests without the header pass through. A key sent with a
// different body answers 422, a key whose first request is still running answers 409.
// Server errors are not stored so the client can retry them.
func Idempotency(store cache.IdempotencyStore, ttl time.Duration) gin.HandlerFunc {
	if store == nil {
		return func(c *gin.Context) { c.Next() }
	}
	if ttl <= 0 {
		ttl = cache.DefaultIdempotencyTTL
	}
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			abortIdempotency(c, dto.ErrCodeBadRequest, "Idempotency-Key must be at most 255 characters")
			return
		}

		body, err := readBody(c)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				abortIdempotency(c, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
				return
			}
			abortIdempotency(c, dto.ErrCodeBadRequest, "Failed to read request body")
			return
		}

		log := logger.GetGinLogger(c)
		storeKey := c.Request.Method + ":" + c.Request.URL.Path + ":" + key
		fingerprint := requestFingerprint(c.Request.Method, c.Request.URL.Path, body)

		existing, reserved, err := store.Reserve(c.Request.Context(), storeKey, fingerprint)
		if err != nil {
			// The write still goes through without replay protection
			log.Warn("Idempotency store unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if !reserved {
			switch {
			case existing.Fingerprint != fingerprint:
				abortIdempotency(c, dto.ErrCodeIdempotencyKeyReused, "Idempotency-Key was already used for a different request")
			case existing.Pending:
				abortIdempotency(c, dto.ErrCodeRequestInProgress, "A request with this Idempotency-Key is still in progress")
			default:
				log.Debug("Replaying idempotent response", zap.String("key", key), zap.Int("status", existing.Status))
				c.Header(IdempotentReplayedHeader, "true")
				c.Data(existing.Status, existing.ContentType, existing.Body)
				c.Abort()
			}
			return
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder
		c.Next()

		// The response is already written; storing it must outlive the request
		ctx := context.WithoutCancel(c.Request.Context())
		status := recorder.Status()
		if status >= http.StatusInternalServerError {
			if err := store.Release(ctx, storeKey); err != nil {
				log.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(err))
			}
			return
		}
		resp := cache.Response{
			Status:      status,
			ContentType: recorder.Header().Get("Content-Type"),
			Body:        recorder.body.Bytes(),
			Fingerprint: fingerprint,
		}
		if err := store.Complete(ctx, storeKey, resp, ttl); err != nil {
			log.Warn("Failed to store idempotent response", zap.String("key", key), zap.Error(err))
		}
	}
}

// bodyRecorder copies everything the handler writes
type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// readBody drains the request body and puts it back for the handler
func readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func requestFingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func abortIdempotency(c *gin.Context, code, message string) {
	SetErrorCode(c, code)
	c.AbortWithStatusJSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, message, GetRequestID(c)))
}
