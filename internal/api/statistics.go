package api

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/echoforum/internal/middleware"
	"github.com/lalith-99/echoforum/internal/models"
	"github.com/lalith-99/echoforum/internal/repository"
	"go.uber.org/zap"
)

const (
	recentPerKind = 5
	recentTotal   = 10
)

type StatisticsHandler struct {
	repo   repository.StatisticsRepository
	logger *zap.Logger
}

func NewStatisticsHandler(repo repository.StatisticsRepository, logger *zap.Logger) *StatisticsHandler {
	return &StatisticsHandler{repo: repo, logger: logger}
}

// Get handles GET /api/statistics for the caller's tenant.
func (h *StatisticsHandler) Get(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	ctx := c.Request.Context()

	totals, err := h.repo.Totals(ctx, tenantID)
	if err != nil {
		serverError(c, h.logger, "failed to count totals", err)
		return
	}
	byCategory, err := h.repo.PostsByCategory(ctx, tenantID)
	if err != nil {
		serverError(c, h.logger, "failed to count posts by category", err)
		return
	}
	posts, err := h.repo.RecentPosts(ctx, tenantID, recentPerKind)
	if err != nil {
		serverError(c, h.logger, "failed to load recent posts", err)
		return
	}
	replies, err := h.repo.RecentReplies(ctx, tenantID, recentPerKind)
	if err != nil {
		serverError(c, h.logger, "failed to load recent replies", err)
		return
	}

	c.JSON(http.StatusOK, models.Statistics{
		TotalPosts:      totals.Posts,
		TotalReplies:    totals.Replies,
		TotalUsers:      totals.Users,
		PostsByCategory: byCategory,
		RecentActivity:  mergeActivity(posts, replies, recentTotal),
	})
}

// mergeActivity interleaves both feeds newest first and keeps at most
// limit entries. Ties keep posts ahead of replies.
func mergeActivity(posts, replies []models.Activity, limit int) []models.Activity {
	merged := make([]models.Activity, 0, len(posts)+len(replies))
	merged = append(merged, posts...)
	merged = append(merged, replies...)
	slices.SortStableFunc(merged, func(a, b models.Activity) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
