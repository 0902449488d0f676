package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/echoforum/internal/middleware"
	"github.com/lalith-99/echoforum/internal/repository"
	"go.uber.org/zap"
)

type ReplyHandler struct {
	replies repository.ReplyRepository
	posts   repository.PostRepository
	logger  *zap.Logger
}

func NewReplyHandler(replies repository.ReplyRepository, posts repository.PostRepository, logger *zap.Logger) *ReplyHandler {
	return &ReplyHandler{replies: replies, posts: posts, logger: logger}
}

type createReplyRequest struct {
	PostID  uuid.UUID `json:"post_id" binding:"required"`
	Content string    `json:"content" binding:"required,notblank"`
}

// List handles GET /api/replies?post_id=. Replies come oldest first.
func (h *ReplyHandler) List(c *gin.Context) {
	postID, ok := queryID(c, "post_id")
	if !ok {
		respondMessage(c, http.StatusBadRequest, "Post ID is required")
		return
	}
	tenantID := middleware.GetTenantID(c)
	ctx := c.Request.Context()

	// An empty list would not tell a foreign post from one without replies.
	post, err := h.posts.GetByID(ctx, tenantID, postID)
	if err != nil {
		serverError(c, h.logger, "failed to get post", err)
		return
	}
	if post == nil {
		respondMessage(c, http.StatusNotFound, "Post not found")
		return
	}

	replies, err := h.replies.ListByPost(ctx, tenantID, postID)
	if err != nil {
		serverError(c, h.logger, "failed to list replies", err)
		return
	}
	c.JSON(http.StatusOK, replies)
}

// Create handles POST /api/replies.
func (h *ReplyHandler) Create(c *gin.Context) {
	var req createReplyRequest
	if !bindJSON(c, &req) {
		return
	}
	id := middleware.GetIdentity(c)

	reply, err := h.replies.Create(c.Request.Context(), repository.NewReply{
		TenantID:  id.TenantID,
		PostID:    req.PostID,
		UserID:    id.UserID,
		Content:   req.Content,
		ActorName: id.Name,
	})
	if errors.Is(err, repository.ErrInvalidReference) {
		accountGone(c)
		return
	}
	if err != nil {
		serverError(c, h.logger, "failed to create reply", err)
		return
	}
	if reply == nil {
		respondMessage(c, http.StatusNotFound, "Post not found")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Reply created successfully", "reply": reply})
}
