package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/echoforum/internal/middleware"
	"github.com/lalith-99/echoforum/internal/repository"
	"go.uber.org/zap"
)

type CategoryHandler struct {
	repo   repository.CategoryRepository
	logger *zap.Logger
}

func NewCategoryHandler(repo repository.CategoryRepository, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{repo: repo, logger: logger}
}

type createCategoryRequest struct {
	Name        string `json:"name" binding:"required,notblank,max=100"`
	Description string `json:"description" binding:"max=1000"`
}

// List handles GET /api/categories.
func (h *CategoryHandler) List(c *gin.Context) {
	categories, err := h.repo.ListByTenant(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		serverError(c, h.logger, "failed to list categories", err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// Create handles POST /api/categories. Admin only; the route applies the gate.
func (h *CategoryHandler) Create(c *gin.Context) {
	var req createCategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	category, err := h.repo.Create(c.Request.Context(), middleware.GetTenantID(c),
		strings.TrimSpace(req.Name), strings.TrimSpace(req.Description))
	if errors.Is(err, repository.ErrConflict) {
		respondMessage(c, http.StatusConflict, "Category already exists")
		return
	}
	if err != nil {
		serverError(c, h.logger, "failed to create category", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Category created successfully", "category": category})
}
