package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/echoforum/internal/middleware"
	"github.com/lalith-99/echoforum/internal/models"
	"github.com/lalith-99/echoforum/internal/repository"
	"github.com/lalith-99/echoforum/internal/storage"
	"github.com/lalith-99/echoforum/internal/sweeper"
	"go.uber.org/zap"
)

type PostHandler struct {
	posts      repository.PostRepository
	categories repository.CategoryRepository
	logger     *zap.Logger
}

func NewPostHandler(posts repository.PostRepository, categories repository.CategoryRepository, logger *zap.Logger) *PostHandler {
	return &PostHandler{posts: posts, categories: categories, logger: logger}
}

type createPostRequest struct {
	Title      string     `json:"title" binding:"max=255"`
	Content    string     `json:"content" binding:"required,notblank"`
	CategoryID *uuid.UUID `json:"category_id"`
	FileURLs   []string   `json:"file_urls" binding:"max=20"`
}

// updatePostRequest leaves fields the client omits unchanged. FileURLs is
// a pointer so an absent list keeps the attachments and an empty one
// clears them; category_id: null removes the category.
type updatePostRequest struct {
	Title      *string    `json:"title" binding:"omitempty,max=255"`
	Content    string     `json:"content" binding:"required,notblank"`
	CategoryID optionalID `json:"category_id"`
	FileURLs   *[]string  `json:"file_urls" binding:"omitempty,max=20"`
}

// optionalID tells an absent JSON field from an explicit null.
type optionalID struct {
	Set   bool
	Value *uuid.UUID
}

func (o *optionalID) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	o.Value = &id
	return nil
}

// fileRefs turns client-supplied URLs into attachment references, naming
// each after its last path segment and typing it by extension.
func fileRefs(urls []string) ([]repository.FileRef, []string) {
	refs := make([]repository.FileRef, 0, len(urls))
	kept := make([]string, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		name := sweeper.KeyFromURL(u)
		if name == "" {
			name = u
		}
		refs = append(refs, repository.FileRef{URL: u, FileName: name, FileType: storage.TypeByExtension(u)})
		kept = append(kept, u)
	}
	return refs, kept
}

// checkCategory answers 400 when id is set but not a category of the
// tenant. Foreign and unknown ids get the same answer.
func (h *PostHandler) checkCategory(c *gin.Context, tenantID uuid.UUID, id *uuid.UUID) bool {
	if id == nil {
		return true
	}
	ok, err := h.categories.Exists(c.Request.Context(), tenantID, *id)
	if err != nil {
		serverError(c, h.logger, "failed to check category", err)
		return false
	}
	if !ok {
		respondMessage(c, http.StatusBadRequest, "invalid category")
		return false
	}
	return true
}

// List handles GET /api/posts?action=getPosts[&category_id=].
func (h *PostHandler) List(c *gin.Context) {
	var filter repository.PostFilter
	if id, ok := queryID(c, "category_id"); ok {
		filter.CategoryID = &id
	}

	posts, err := h.posts.ListByTenant(c.Request.Context(), middleware.GetTenantID(c), filter)
	if err != nil {
		serverError(c, h.logger, "failed to list posts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// Get handles GET /api/posts?action=getPostById&id=.
func (h *PostHandler) Get(c *gin.Context) {
	post, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

// lookup loads the post named by ?id= (or ?post_id=) in the caller's
// tenant, answering 400 or 404 itself.
func (h *PostHandler) lookup(c *gin.Context) (*models.Post, bool) {
	id, ok := queryID(c, "id", "post_id")
	if !ok {
		respondMessage(c, http.StatusBadRequest, "Missing post_id")
		return nil, false
	}
	post, err := h.posts.GetByID(c.Request.Context(), middleware.GetTenantID(c), id)
	if err != nil {
		serverError(c, h.logger, "failed to get post", err)
		return nil, false
	}
	if post == nil {
		respondMessage(c, http.StatusNotFound, "Post not found")
		return nil, false
	}
	return post, true
}

// Create handles POST /api/posts?action=createPost.
func (h *PostHandler) Create(c *gin.Context) {
	var req createPostRequest
	if !bindJSON(c, &req) {
		return
	}
	id := middleware.GetIdentity(c)
	if !h.checkCategory(c, id.TenantID, req.CategoryID) {
		return
	}

	refs, urls := fileRefs(req.FileURLs)
	post, err := h.posts.Create(c.Request.Context(), repository.NewPost{
		TenantID:   id.TenantID,
		UserID:     id.UserID,
		CategoryID: req.CategoryID,
		Title:      strings.TrimSpace(req.Title),
		Content:    req.Content,
		Files:      refs,
	})
	if errors.Is(err, repository.ErrInvalidReference) {
		accountGone(c)
		return
	}
	if err != nil {
		serverError(c, h.logger, "failed to create post", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":   "Post created successfully",
		"post_id":   post.ID,
		"file_urls": urls,
	})
}

// Update handles PUT /api/posts?action=updatePost&id=. Only the author may
// edit; the post is looked up in the tenant first so a foreign id is 404.
func (h *PostHandler) Update(c *gin.Context) {
	existing, ok := h.lookup(c)
	if !ok {
		return
	}
	id := middleware.GetIdentity(c)
	if existing.UserID != id.UserID {
		respondMessage(c, http.StatusForbidden, "You can only edit your own posts")
		return
	}

	var req updatePostRequest
	if !bindJSON(c, &req) {
		return
	}

	upd := repository.PostUpdate{
		TenantID:   id.TenantID,
		PostID:     existing.ID,
		CategoryID: existing.CategoryID,
		Title:      existing.Title,
		Content:    req.Content,
	}
	if req.Title != nil {
		upd.Title = strings.TrimSpace(*req.Title)
	}
	if req.CategoryID.Set {
		if !h.checkCategory(c, id.TenantID, req.CategoryID.Value) {
			return
		}
		upd.CategoryID = req.CategoryID.Value
	}
	if req.FileURLs != nil {
		upd.ReplaceFiles = true
		upd.Files, _ = fileRefs(*req.FileURLs)
	}

	updated, err := h.posts.Update(c.Request.Context(), upd)
	if err != nil {
		serverError(c, h.logger, "failed to update post", err)
		return
	}
	if !updated {
		respondMessage(c, http.StatusNotFound, "Post not found")
		return
	}
	respondMessage(c, http.StatusOK, "Post updated successfully")
}

// Delete handles DELETE /api/posts?action=deletePost&id=. Authors delete
// their own posts; admins delete any post in their tenant.
func (h *PostHandler) Delete(c *gin.Context) {
	existing, ok := h.lookup(c)
	if !ok {
		return
	}
	id := middleware.GetIdentity(c)
	if existing.UserID != id.UserID && id.Role != models.RoleAdmin {
		respondMessage(c, http.StatusForbidden, "You can only delete your own posts")
		return
	}

	deleted, err := h.posts.Delete(c.Request.Context(), id.TenantID, existing.ID)
	if err != nil {
		serverError(c, h.logger, "failed to delete post", err)
		return
	}
	if !deleted {
		respondMessage(c, http.StatusNotFound, "Post not found")
		return
	}
	h.logger.Info("post deleted",
		zap.String("post_id", existing.ID.String()),
		zap.String("by", id.UserID.String()),
	)
	respondMessage(c, http.StatusOK, "Post deleted successfully")
}
