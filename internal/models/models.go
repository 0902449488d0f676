package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"

	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// Tenant is the isolation boundary. Every other row belongs to exactly one.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	LogoURL   *string   `json:"logo_url"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a person within a tenant. Email is unique across all tenants
// because login is by email alone.
type User struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     uuid.UUID  `json:"tenant_id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	Status       string     `json:"status"`
	AvatarURL    *string    `json:"avatar_url"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

type Category struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Post carries its author's display fields and attached files as read
// through the joined list/get queries.
type Post struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     uuid.UUID  `json:"tenant_id"`
	UserID       uuid.UUID  `json:"user_id"`
	CategoryID   *uuid.UUID `json:"category_id"`
	CategoryName *string    `json:"category_name"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	AuthorName   string     `json:"author_name"`
	AuthorAvatar *string    `json:"author_avatar"`
	Files        []File     `json:"files"`
	ReplyCount   int        `json:"reply_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Reply has no tenant column; its tenant is its parent post's.
type Reply struct {
	ID           uuid.UUID `json:"id"`
	PostID       uuid.UUID `json:"post_id"`
	UserID       uuid.UUID `json:"user_id"`
	Content      string    `json:"content"`
	AuthorName   string    `json:"author_name"`
	AuthorAvatar *string   `json:"author_avatar"`
	CreatedAt    time.Time `json:"created_at"`
}

// File is an uploaded blob's metadata. PostID is nil until attached.
type File struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  uuid.UUID  `json:"-"`
	UserID    uuid.UUID  `json:"user_id"`
	PostID    *uuid.UUID `json:"post_id"`
	FileName  string     `json:"file_name"`
	URL       string     `json:"url"`
	FileType  string     `json:"type"`
	FileSize  int64      `json:"file_size"`
	CreatedAt time.Time  `json:"created_at"`
}

// Notification uses a bigserial id like other high-volume append-only rows.
type Notification struct {
	ID        int64      `json:"id"`
	TenantID  uuid.UUID  `json:"-"`
	UserID    uuid.UUID  `json:"user_id"`
	ActorID   *uuid.UUID `json:"actor_id"`
	ActorName *string    `json:"actor_name"`
	PostID    *uuid.UUID `json:"post_id"`
	Type      string     `json:"type"`
	Message   string     `json:"message"`
	IsRead    bool       `json:"is_read"`
	CreatedAt time.Time  `json:"created_at"`
}

const (
	ResultPost  = "post"
	ResultReply = "reply"
)

// SearchResult is a tagged union row; Type says which fields apply.
type SearchResult struct {
	Type       string    `json:"type"`
	ID         uuid.UUID `json:"id"`
	PostID     uuid.UUID `json:"post_id"`
	Title      string    `json:"title,omitempty"`
	Content    string    `json:"content"`
	AuthorName string    `json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// Activity is one entry of the statistics recent-activity feed.
type Activity struct {
	Type       string    `json:"type"`
	ID         uuid.UUID `json:"id"`
	PostID     uuid.UUID `json:"post_id"`
	Title      string    `json:"title,omitempty"`
	Content    string    `json:"content"`
	AuthorName string    `json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
}

type CategoryCount struct {
	ID    *uuid.UUID `json:"id"`
	Name  string     `json:"name"`
	Count int        `json:"count"`
}

type Statistics struct {
	TotalPosts      int             `json:"total_posts"`
	TotalReplies    int             `json:"total_replies"`
	TotalUsers      int             `json:"total_users"`
	PostsByCategory []CategoryCount `json:"posts_by_category"`
	RecentActivity  []Activity      `json:"recent_activity"`
}
