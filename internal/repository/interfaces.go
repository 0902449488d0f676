package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lalith-99/echoforum/internal/models"
)

// Every method takes ctx first and, for tenant-owned rows, the caller's
// tenantID. Stores filter on it unconditionally, so an id from another
// tenant looks exactly like a missing one.
//
// Single-row lookups return (nil, nil) when nothing matches. Lists return
// an empty slice, never nil, so JSON renders [] instead of null.

var (
	// ErrConflict reports a unique-constraint violation (email, domain, category name).
	ErrConflict = errors.New("conflict")
	// ErrInvalidReference reports a foreign key that points nowhere.
	ErrInvalidReference = errors.New("invalid reference")
)

type NewTenant struct {
	Name    string
	Domain  string
	LogoURL *string
}

type NewUser struct {
	TenantID     uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Role         string
}

type TenantRepository interface {
	Create(ctx context.Context, t NewTenant) (*models.Tenant, error)

	// CreateWithAdmin inserts the tenant and its first admin atomically.
	// admin.TenantID is ignored.
	CreateWithAdmin(ctx context.Context, t NewTenant, admin NewUser) (*models.Tenant, *models.User, error)

	GetByID(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error)
}

type UserRepository interface {
	Create(ctx context.Context, u NewUser) (*models.User, error)

	// CreateFirstAdmin inserts an admin only if the tenant has none yet.
	// Returns nil, nil when an admin already exists.
	CreateFirstAdmin(ctx context.Context, u NewUser) (*models.User, error)

	GetByID(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID) (*models.User, error)

	// GetByEmail is global: login happens before the tenant is known.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	TouchLastLogin(ctx context.Context, userID uuid.UUID) error

	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.User, error)

	// UpdateRoleStatus returns false when no row in the tenant matched.
	UpdateRoleStatus(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID, role, status string) (bool, error)

	UpdateProfile(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID, name string, avatarURL *string) (*models.User, error)

	// Delete removes the user and, through cascades, everything they own.
	Delete(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID) (bool, error)
}

type CategoryRepository interface {
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Category, error)
	Create(ctx context.Context, tenantID uuid.UUID, name, description string) (*models.Category, error)
	Exists(ctx context.Context, tenantID uuid.UUID, categoryID uuid.UUID) (bool, error)
}

// FileRef is a file URL a post should reference. Name and Type are used
// only when no matching upload record exists.
type FileRef struct {
	URL      string
	FileName string
	FileType string
}

type NewPost struct {
	TenantID   uuid.UUID
	UserID     uuid.UUID
	CategoryID *uuid.UUID
	Title      string
	Content    string
	Files      []FileRef
}

type PostUpdate struct {
	TenantID   uuid.UUID
	PostID     uuid.UUID
	CategoryID *uuid.UUID
	Title      string
	Content    string
	// ReplaceFiles swaps the attachment set for Files; false leaves it alone.
	ReplaceFiles bool
	Files        []FileRef
}

type PostFilter struct {
	CategoryID *uuid.UUID
}

type PostRepository interface {
	// ListByTenant returns posts newest first with author fields and files.
	ListByTenant(ctx context.Context, tenantID uuid.UUID, filter PostFilter) ([]models.Post, error)

	GetByID(ctx context.Context, tenantID uuid.UUID, postID uuid.UUID) (*models.Post, error)

	// Create inserts the post and its file associations in one transaction.
	Create(ctx context.Context, p NewPost) (*models.Post, error)

	// Update rewrites the post and optionally its files in one transaction.
	// Returns false when the post is not in the tenant.
	Update(ctx context.Context, u PostUpdate) (bool, error)

	Delete(ctx context.Context, tenantID uuid.UUID, postID uuid.UUID) (bool, error)
}

type NewReply struct {
	TenantID  uuid.UUID
	PostID    uuid.UUID
	UserID    uuid.UUID
	Content   string
	ActorName string
}

type ReplyRepository interface {
	// ListByPost returns replies oldest first, scoped through the post's tenant.
	ListByPost(ctx context.Context, tenantID uuid.UUID, postID uuid.UUID) ([]models.Reply, error)

	// Create inserts the reply and, when the post author is someone else,
	// their notification. Returns nil, nil when the post is not visible.
	Create(ctx context.Context, r NewReply) (*models.Reply, error)
}

type NotificationRepository interface {
	ListByUser(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID, limit int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID, notificationID int64) (bool, error)
	MarkAllRead(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID) (int64, error)
}

type NewFile struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	PostID   *uuid.UUID
	FileName string
	URL      string
	FileType string
	FileSize int64
}

type FileRepository interface {
	Create(ctx context.Context, f NewFile) (*models.File, error)
}

// ReferenceLister reports every stored URL still pointed at by a row.
type ReferenceLister interface {
	ReferencedURLs(ctx context.Context) ([]string, error)
}

type SearchRepository interface {
	SearchPosts(ctx context.Context, tenantID uuid.UUID, term string, limit int) ([]models.SearchResult, error)
	SearchReplies(ctx context.Context, tenantID uuid.UUID, term string, limit int) ([]models.SearchResult, error)
}

type Totals struct {
	Posts   int
	Replies int
	Users   int
}

type StatisticsRepository interface {
	Totals(ctx context.Context, tenantID uuid.UUID) (Totals, error)
	PostsByCategory(ctx context.Context, tenantID uuid.UUID) ([]models.CategoryCount, error)
	RecentPosts(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.Activity, error)
	RecentReplies(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.Activity, error)
}
