package api

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/echoforum/internal/middleware"
	"github.com/lalith-99/echoforum/internal/repository"
	"github.com/lalith-99/echoforum/internal/storage"
	"go.uber.org/zap"
)

// UploadRecorder counts upload outcomes.
type UploadRecorder interface {
	UploadAccepted()
	UploadRejected()
}

type nopUploadRecorder struct{}

func (nopUploadRecorder) UploadAccepted() {}
func (nopUploadRecorder) UploadRejected() {}

type FileHandler struct {
	files         repository.FileRepository
	posts         repository.PostRepository
	ingestor      *storage.Ingestor
	recorder      UploadRecorder
	publicBaseURL string
	logger        *zap.Logger
}

func NewFileHandler(
	files repository.FileRepository,
	posts repository.PostRepository,
	ingestor *storage.Ingestor,
	recorder UploadRecorder,
	publicBaseURL string,
	logger *zap.Logger,
) *FileHandler {
	if recorder == nil {
		recorder = nopUploadRecorder{}
	}
	return &FileHandler{
		files:         files,
		posts:         posts,
		ingestor:      ingestor,
		recorder:      recorder,
		publicBaseURL: publicBaseURL,
		logger:        logger,
	}
}

type uploadedFile struct {
	ID   uuid.UUID `json:"id"`
	Path string    `json:"path"`
	Name string    `json:"name"`
	Type string    `json:"type"`
	Size int64     `json:"size"`
}

// formFiles flattens every file part regardless of field name, ordered by
// field name and then by position within the field.
func formFiles(form *multipart.Form) []*multipart.FileHeader {
	fields := make([]string, 0, len(form.File))
	for name := range form.File {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	var out []*multipart.FileHeader
	for _, name := range fields {
		out = append(out, form.File[name]...)
	}
	return out
}

// Upload handles POST /api/files?action=upload. Each file is validated and
// stored on its own; the request succeeds if at least one file does.
func (h *FileHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "No files uploaded")
		return
	}
	headers := formFiles(form)
	if len(headers) == 0 {
		respondMessage(c, http.StatusBadRequest, "No files uploaded")
		return
	}

	id := middleware.GetIdentity(c)
	ctx := c.Request.Context()

	postID, ok := h.ownPost(c, form)
	if !ok {
		return
	}

	base := requestBaseURL(c, h.publicBaseURL)
	backend := h.ingestor.Backend()
	uploaded := make([]uploadedFile, 0, len(headers))
	var lastReason string

	for _, fh := range headers {
		stored, err := h.ingestor.Store(ctx, fh, storage.Attachment)
		if err != nil {
			h.recorder.UploadRejected()
			if storage.IsRejected(err) {
				lastReason = err.Error()
				h.logger.Info("upload rejected", zap.String("file", fh.Filename), zap.String("reason", lastReason))
			} else {
				h.logger.Error("failed to store upload", zap.Error(err), zap.String("file", fh.Filename))
			}
			continue
		}

		rec, err := h.files.Create(ctx, repository.NewFile{
			TenantID: id.TenantID,
			UserID:   id.UserID,
			PostID:   postID,
			FileName: stored.OriginalName,
			URL:      backend.URL(base, stored.Key),
			FileType: stored.ContentType,
			FileSize: stored.Size,
		})
		if err != nil {
			h.recorder.UploadRejected()
			if rmErr := backend.Remove(context.WithoutCancel(ctx), stored.Key); rmErr != nil {
				h.logger.Warn("failed to remove unrecorded upload", zap.Error(rmErr), zap.String("key", stored.Key))
			}
			if errors.Is(err, repository.ErrInvalidReference) {
				accountGone(c)
				return
			}
			h.logger.Error("failed to record upload", zap.Error(err), zap.String("key", stored.Key))
			continue
		}

		h.recorder.UploadAccepted()
		uploaded = append(uploaded, uploadedFile{
			ID:   rec.ID,
			Path: rec.URL,
			Name: rec.FileName,
			Type: rec.FileType,
			Size: rec.FileSize,
		})
	}

	if len(uploaded) == 0 {
		msg := "No valid files were uploaded"
		if lastReason != "" && len(headers) == 1 {
			msg = lastReason
		}
		respondMessage(c, http.StatusBadRequest, msg)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Files uploaded successfully", "files": uploaded})
}

// ownPost resolves the optional post_id form value. Uploads may only be
// attached to the caller's own post; anything else is 404.
func (h *FileHandler) ownPost(c *gin.Context, form *multipart.Form) (*uuid.UUID, bool) {
	values := form.Value["post_id"]
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return nil, true
	}

	id := middleware.GetIdentity(c)
	postID, err := uuid.Parse(strings.TrimSpace(values[0]))
	if err != nil {
		respondMessage(c, http.StatusNotFound, "Post not found")
		return nil, false
	}
	post, err := h.posts.GetByID(c.Request.Context(), id.TenantID, postID)
	if err != nil {
		serverError(c, h.logger, "failed to get post", err)
		return nil, false
	}
	if post == nil || post.UserID != id.UserID {
		respondMessage(c, http.StatusNotFound, "Post not found")
		return nil, false
	}
	return &postID, true
}
