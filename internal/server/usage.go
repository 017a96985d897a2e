package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lumenwell/aimeter/internal/observability/logger"
	recorderdomain "github.com/lumenwell/aimeter/internal/recorder/domain"
)

func (s *Server) RecordUsage(c *gin.Context) {
	var req recorderdomain.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}
	if model := strings.TrimSpace(req.Model); model != "" {
		c.Set("model", model)
	}

	event, err := s.recorderSvc.Record(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

type recordRateLimitKey struct {
	UserID int64 `json:"user_id"`
}

// RecordRateLimit throttles usage writes per user. The user id is peeked from
// the request body, which is restored for the handler's own bind.
func (s *Server) RecordRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.recordLimiter == nil {
			c.Next()
			return
		}

		userID, err := readRecordRateLimitKey(c)
		if err != nil {
			logger.FromContext(c.Request.Context()).Warn("rate limit body read failed", zap.Error(err))
			AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
			return
		}
		if userID <= 0 {
			// Let the handler produce the validation error.
			c.Next()
			return
		}

		decision := s.recordLimiter.AllowRecord(c.Request.Context(), userID)
		if !decision.Allowed {
			if decision.RetryAfter > 0 {
				seconds := int(decision.RetryAfter.Seconds())
				if seconds < 1 {
					seconds = 1
				}
				c.Header("Retry-After", strconv.Itoa(seconds))
			}
			AbortWithError(c, ErrTooManyRequests)
			return
		}

		c.Next()
	}
}

func readRecordRateLimitKey(c *gin.Context) (int64, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return 0, err
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 {
		return 0, nil
	}

	var payload recordRateLimitKey
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, nil
	}

	return payload.UserID, nil
}
