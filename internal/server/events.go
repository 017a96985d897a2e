package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	ledgerdomain "github.com/lumenwell/aimeter/internal/ledger/domain"
	"github.com/lumenwell/aimeter/pkg/db/option"
	"github.com/lumenwell/aimeter/pkg/db/pagination"
)

type listEventsQuery struct {
	pagination.Pagination
	UserID    int64  `form:"user_id"`
	CoachType string `form:"coach_type"`
}

type listEventsResponse struct {
	Events   []*ledgerdomain.UsageEvent `json:"events"`
	PageInfo *pagination.PageInfo       `json:"page_info"`
}

// ListUsageEvents pages through raw ledger rows for audit and support work.
func (s *Server) ListUsageEvents(c *gin.Context) {
	var q listEventsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid query parameters"))
		return
	}
	if q.PageSize <= 0 || q.PageSize > 250 {
		q.PageSize = 50
	}

	filter := ledgerdomain.UsageEvent{}
	if q.UserID > 0 {
		filter.UserID = q.UserID
	}
	if q.CoachType != "" {
		filter.CoachType = ledgerdomain.NormalizeCoachType(q.CoachType)
	}

	events, err := s.eventStore.Find(c.Request.Context(), &filter,
		option.ApplyPagination(q.Pagination),
		option.WithSortBy(option.QuerySortBy{
			Field:    "created_at",
			Allow:    map[string]bool{"created_at": true},
			TieBreak: "id",
		}),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	pageInfo := pagination.BuildCursorPageInfo(events, q.PageSize, func(e *ledgerdomain.UsageEvent) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        e.ID.String(),
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(events) > q.PageSize {
		events = events[:q.PageSize]
	}

	c.JSON(http.StatusOK, listEventsResponse{
		Events:   events,
		PageInfo: pageInfo,
	})
}
