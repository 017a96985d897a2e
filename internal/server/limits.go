package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) CheckDailyLimit(c *gin.Context) {
	userID, err := parseUserID(c.Param("user_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	decision := s.dailyLimitSvc.Check(c.Request.Context(), userID)
	c.JSON(http.StatusOK, decision)
}

func (s *Server) CheckQuota(c *gin.Context) {
	userID, err := parseUserID(c.Param("user_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status, err := s.quotaSvc.Check(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

type updateQuotaRequest struct {
	MonthlyQuota int64 `json:"monthly_quota"`
}

func (s *Server) UpdateQuota(c *gin.Context) {
	userID, err := parseUserID(c.Param("user_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	quota, err := s.quotaSvc.Override(c.Request.Context(), userID, req.MonthlyQuota)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, quota)
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, newValidationError("user_id", "invalid_user", "user_id must be a positive integer")
	}
	return id, nil
}
