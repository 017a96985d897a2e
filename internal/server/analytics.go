package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	analyticsdomain "github.com/lumenwell/aimeter/internal/analytics/domain"
)

func (s *Server) GetUserTokenStats(c *gin.Context) {
	userID, err := parseOptionalUserID(c.Query("user_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	stats := s.analyticsSvc.UserTokenStats(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (s *Server) GetTokenUsageByPeriod(c *gin.Context) {
	period, err := analyticsdomain.ParsePeriod(c.DefaultQuery("period", string(analyticsdomain.PeriodDay)))
	if err != nil {
		AbortWithError(c, newValidationError("period", "invalid_period", "period must be day, week or month"))
		return
	}

	userID, err := parseOptionalUserID(c.Query("user_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	points := s.analyticsSvc.TokenUsageByPeriod(c.Request.Context(), userID, period)
	c.JSON(http.StatusOK, gin.H{
		"period": period,
		"series": points,
	})
}

func (s *Server) GetAggregatedTokenStats(c *gin.Context) {
	stats := s.analyticsSvc.AggregatedTokenStats(c.Request.Context())
	c.JSON(http.StatusOK, stats)
}

func parseOptionalUserID(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := parseUserID(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
