package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/echoforum/internal/middleware"
	"github.com/lalith-99/echoforum/internal/models"
	"github.com/lalith-99/echoforum/internal/repository"
	"go.uber.org/zap"
)

// searchLimit caps each result kind separately.
const searchLimit = 100

type SearchHandler struct {
	repo   repository.SearchRepository
	logger *zap.Logger
}

func NewSearchHandler(repo repository.SearchRepository, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{repo: repo, logger: logger}
}

// Search handles GET /api/search?q=&type=all|posts|replies. The answer is
// one array, posts before replies, each row tagged with its type.
func (h *SearchHandler) Search(c *gin.Context) {
	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		respondMessage(c, http.StatusBadRequest, "Search term is required")
		return
	}
	kind := c.DefaultQuery("type", "all")
	if kind != "all" && kind != "posts" && kind != "replies" {
		respondMessage(c, http.StatusBadRequest, "type must be one of: all, posts, replies")
		return
	}

	tenantID := middleware.GetTenantID(c)
	ctx := c.Request.Context()
	results := make([]models.SearchResult, 0)

	if kind != "replies" {
		posts, err := h.repo.SearchPosts(ctx, tenantID, term, searchLimit)
		if err != nil {
			serverError(c, h.logger, "failed to search posts", err)
			return
		}
		results = append(results, posts...)
	}
	if kind != "posts" {
		replies, err := h.repo.SearchReplies(ctx, tenantID, term, searchLimit)
		if err != nil {
			serverError(c, h.logger, "failed to search replies", err)
			return
		}
		results = append(results, replies...)
	}

	c.JSON(http.StatusOK, results)
}
