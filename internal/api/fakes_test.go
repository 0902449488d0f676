package api

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/echoforum/internal/models"
	"github.com/lalith-99/echoforum/internal/repository"
)

// memDB is an in-memory stand-in for Postgres that keeps the same tenant
// scoping and cascade rules as the real stores.
type memDB struct {
	mu            sync.Mutex
	clock         time.Time
	tenants       map[uuid.UUID]*models.Tenant
	users         map[uuid.UUID]*models.User
	categories    map[uuid.UUID]*models.Category
	posts         map[uuid.UUID]*models.Post
	replies       []*models.Reply
	files         []*models.File
	notifications []*models.Notification
	lastNotifID   int64
}

func newMemDB() *memDB {
	return &memDB{
		clock:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		tenants:    make(map[uuid.UUID]*models.Tenant),
		users:      make(map[uuid.UUID]*models.User),
		categories: make(map[uuid.UUID]*models.Category),
		posts:      make(map[uuid.UUID]*models.Post),
	}
}

func (m *memDB) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memDB) insertTenant(in repository.NewTenant) (*models.Tenant, error) {
	for _, t := range m.tenants {
		if t.Domain == in.Domain {
			return nil, repository.ErrConflict
		}
	}
	t := &models.Tenant{ID: uuid.New(), Name: in.Name, Domain: in.Domain, LogoURL: in.LogoURL, CreatedAt: m.tick()}
	m.tenants[t.ID] = t
	cp := *t
	return &cp, nil
}

func (m *memDB) insertUser(in repository.NewUser) (*models.User, error) {
	if _, ok := m.tenants[in.TenantID]; !ok {
		return nil, repository.ErrInvalidReference
	}
	for _, u := range m.users {
		if u.Email == in.Email {
			return nil, repository.ErrConflict
		}
	}
	u := &models.User{
		ID:           uuid.New(),
		TenantID:     in.TenantID,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		Status:       models.StatusActive,
		CreatedAt:    m.tick(),
	}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memDB) postView(p *models.Post) *models.Post {
	cp := *p
	if u, ok := m.users[p.UserID]; ok {
		cp.AuthorName = u.Name
		cp.AuthorAvatar = u.AvatarURL
	}
	if p.CategoryID != nil {
		if c, ok := m.categories[*p.CategoryID]; ok {
			cp.CategoryName = &c.Name
		}
	}
	cp.Files = make([]models.File, 0)
	for _, f := range m.files {
		if f.PostID != nil && *f.PostID == p.ID {
			cp.Files = append(cp.Files, *f)
		}
	}
	cp.ReplyCount = 0
	for _, r := range m.replies {
		if r.PostID == p.ID {
			cp.ReplyCount++
		}
	}
	return &cp
}

func (m *memDB) visiblePost(tenantID, postID uuid.UUID) *models.Post {
	p, ok := m.posts[postID]
	if !ok || p.TenantID != tenantID {
		return nil
	}
	return p
}

func (m *memDB) attachFiles(p *models.Post, refs []repository.FileRef) {
	for _, ref := range refs {
		attached := false
		for _, f := range m.files {
			if f.PostID != nil && *f.PostID == p.ID && f.URL == ref.URL {
				attached = true
				break
			}
		}
		if attached {
			continue
		}
		claimed := false
		for _, f := range m.files {
			if f.PostID == nil && f.UserID == p.UserID && f.TenantID == p.TenantID && f.URL == ref.URL {
				id := p.ID
				f.PostID = &id
				claimed = true
				break
			}
		}
		if claimed {
			continue
		}
		id := p.ID
		m.files = append(m.files, &models.File{
			ID:        uuid.New(),
			TenantID:  p.TenantID,
			UserID:    p.UserID,
			PostID:    &id,
			FileName:  ref.FileName,
			URL:       ref.URL,
			FileType:  ref.FileType,
			CreatedAt: m.tick(),
		})
	}
}

func (m *memDB) deletePost(postID uuid.UUID) {
	delete(m.posts, postID)
	m.replies = slices.DeleteFunc(m.replies, func(r *models.Reply) bool { return r.PostID == postID })
	m.files = slices.DeleteFunc(m.files, func(f *models.File) bool { return f.PostID != nil && *f.PostID == postID })
	m.notifications = slices.DeleteFunc(m.notifications, func(n *models.Notification) bool {
		return n.PostID != nil && *n.PostID == postID
	})
}

type memTenants struct{ *memDB }

func (m memTenants) Create(_ context.Context, in repository.NewTenant) (*models.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertTenant(in)
}

func (m memTenants) CreateWithAdmin(_ context.Context, in repository.NewTenant, admin repository.NewUser) (*models.Tenant, *models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == admin.Email {
			return nil, nil, repository.ErrConflict
		}
	}
	t, err := m.insertTenant(in)
	if err != nil {
		return nil, nil, err
	}
	admin.TenantID = t.ID
	admin.Role = models.RoleAdmin
	u, err := m.insertUser(admin)
	if err != nil {
		delete(m.tenants, t.ID)
		return nil, nil, err
	}
	return t, u, nil
}

func (m memTenants) GetByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

type memUsers struct{ *memDB }

func (m memUsers) Create(_ context.Context, in repository.NewUser) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertUser(in)
}

func (m memUsers) CreateFirstAdmin(_ context.Context, in repository.NewUser) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[in.TenantID]; !ok {
		return nil, repository.ErrInvalidReference
	}
	for _, u := range m.users {
		if u.TenantID == in.TenantID && u.Role == models.RoleAdmin {
			return nil, nil
		}
	}
	in.Role = models.RoleAdmin
	return m.insertUser(in)
}

func (m memUsers) GetByID(_ context.Context, tenantID, userID uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.TenantID != tenantID {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m memUsers) TouchLastLogin(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		now := m.tick()
		u.LastLogin = &now
	}
	return nil
}

func (m memUsers) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, 0)
	for _, u := range m.users {
		if u.TenantID == tenantID {
			out = append(out, *u)
		}
	}
	slices.SortFunc(out, func(a, b models.User) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (m memUsers) UpdateRoleStatus(_ context.Context, tenantID, userID uuid.UUID, role, status string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.TenantID != tenantID {
		return false, nil
	}
	u.Role, u.Status = role, status
	return true, nil
}

func (m memUsers) UpdateProfile(_ context.Context, tenantID, userID uuid.UUID, name string, avatarURL *string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.TenantID != tenantID {
		return nil, nil
	}
	u.Name, u.AvatarURL = name, avatarURL
	cp := *u
	return &cp, nil
}

func (m memUsers) Delete(_ context.Context, tenantID, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.TenantID != tenantID {
		return false, nil
	}
	delete(m.users, userID)
	for id, p := range m.posts {
		if p.UserID == userID {
			m.deletePost(id)
		}
	}
	m.replies = slices.DeleteFunc(m.replies, func(r *models.Reply) bool { return r.UserID == userID })
	m.files = slices.DeleteFunc(m.files, func(f *models.File) bool { return f.UserID == userID })
	m.notifications = slices.DeleteFunc(m.notifications, func(n *models.Notification) bool { return n.UserID == userID })
	return true, nil
}

type memCategories struct{ *memDB }

func (m memCategories) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Category, 0)
	for _, c := range m.categories {
		if c.TenantID == tenantID {
			out = append(out, *c)
		}
	}
	slices.SortFunc(out, func(a, b models.Category) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (m memCategories) Create(_ context.Context, tenantID uuid.UUID, name, description string) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if c.TenantID == tenantID && c.Name == name {
			return nil, repository.ErrConflict
		}
	}
	c := &models.Category{ID: uuid.New(), TenantID: tenantID, Name: name, Description: description, CreatedAt: m.tick()}
	m.categories[c.ID] = c
	cp := *c
	return &cp, nil
}

func (m memCategories) Exists(_ context.Context, tenantID, categoryID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[categoryID]
	return ok && c.TenantID == tenantID, nil
}

type memPosts struct{ *memDB }

func (m memPosts) ListByTenant(_ context.Context, tenantID uuid.UUID, filter repository.PostFilter) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Post, 0)
	for _, p := range m.posts {
		if p.TenantID != tenantID {
			continue
		}
		if filter.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *filter.CategoryID) {
			continue
		}
		out = append(out, *m.postView(p))
	}
	slices.SortFunc(out, func(a, b models.Post) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (m memPosts) GetByID(_ context.Context, tenantID, postID uuid.UUID) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.visiblePost(tenantID, postID)
	if p == nil {
		return nil, nil
	}
	return m.postView(p), nil
}

func (m memPosts) Create(_ context.Context, in repository.NewPost) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[in.UserID]; !ok {
		return nil, repository.ErrInvalidReference
	}
	now := m.tick()
	p := &models.Post{
		ID:         uuid.New(),
		TenantID:   in.TenantID,
		UserID:     in.UserID,
		CategoryID: in.CategoryID,
		Title:      in.Title,
		Content:    in.Content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.posts[p.ID] = p
	m.attachFiles(p, in.Files)
	return m.postView(p), nil
}

func (m memPosts) Update(_ context.Context, in repository.PostUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.visiblePost(in.TenantID, in.PostID)
	if p == nil {
		return false, nil
	}
	p.Title, p.Content, p.CategoryID, p.UpdatedAt = in.Title, in.Content, in.CategoryID, m.tick()
	if in.ReplaceFiles {
		keep := make(map[string]bool, len(in.Files))
		for _, f := range in.Files {
			keep[f.URL] = true
		}
		m.files = slices.DeleteFunc(m.files, func(f *models.File) bool {
			return f.PostID != nil && *f.PostID == p.ID && !keep[f.URL]
		})
		m.attachFiles(p, in.Files)
	}
	return true, nil
}

func (m memPosts) Delete(_ context.Context, tenantID, postID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.visiblePost(tenantID, postID) == nil {
		return false, nil
	}
	m.deletePost(postID)
	return true, nil
}

type memReplies struct{ *memDB }

func (m memReplies) ListByPost(_ context.Context, tenantID, postID uuid.UUID) ([]models.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Reply, 0)
	if m.visiblePost(tenantID, postID) == nil {
		return out, nil
	}
	for _, r := range m.replies {
		if r.PostID == postID {
			cp := *r
			if u, ok := m.users[r.UserID]; ok {
				cp.AuthorName = u.Name
			}
			out = append(out, cp)
		}
	}
	return out, nil
}

func (m memReplies) Create(_ context.Context, in repository.NewReply) (*models.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.visiblePost(in.TenantID, in.PostID)
	if p == nil {
		return nil, nil
	}
	if _, ok := m.users[in.UserID]; !ok {
		return nil, repository.ErrInvalidReference
	}
	r := &models.Reply{ID: uuid.New(), PostID: in.PostID, UserID: in.UserID, Content: in.Content, CreatedAt: m.tick()}
	m.replies = append(m.replies, r)
	if p.UserID != in.UserID {
		m.lastNotifID++
		actor, post := in.UserID, p.ID
		m.notifications = append(m.notifications, &models.Notification{
			ID:        m.lastNotifID,
			TenantID:  in.TenantID,
			UserID:    p.UserID,
			ActorID:   &actor,
			ActorName: &in.ActorName,
			PostID:    &post,
			Type:      "reply",
			Message:   in.ActorName + " replied to your post",
			CreatedAt: r.CreatedAt,
		})
	}
	cp := *r
	return &cp, nil
}

type memNotifications struct{ *memDB }

func (m memNotifications) ListByUser(_ context.Context, tenantID, userID uuid.UUID, limit int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Notification, 0)
	for i := len(m.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		n := m.notifications[i]
		if n.TenantID == tenantID && n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (m memNotifications) UnreadCount(_ context.Context, tenantID, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.notifications {
		if n.TenantID == tenantID && n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m memNotifications) MarkRead(_ context.Context, tenantID, userID uuid.UUID, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ID == id && n.TenantID == tenantID && n.UserID == userID {
			n.IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (m memNotifications) MarkAllRead(_ context.Context, tenantID, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, item := range m.notifications {
		if item.TenantID == tenantID && item.UserID == userID && !item.IsRead {
			item.IsRead = true
			n++
		}
	}
	return n, nil
}

type memFiles struct{ *memDB }

func (m memFiles) Create(_ context.Context, in repository.NewFile) (*models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[in.UserID]; !ok {
		return nil, repository.ErrInvalidReference
	}
	f := &models.File{
		ID:        uuid.New(),
		TenantID:  in.TenantID,
		UserID:    in.UserID,
		PostID:    in.PostID,
		FileName:  in.FileName,
		URL:       in.URL,
		FileType:  in.FileType,
		FileSize:  in.FileSize,
		CreatedAt: m.tick(),
	}
	m.files = append(m.files, f)
	cp := *f
	return &cp, nil
}

type memSearch struct{ *memDB }

func containsFold(s, term string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(term))
}

func (m memSearch) SearchPosts(_ context.Context, tenantID uuid.UUID, term string, limit int) ([]models.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.SearchResult, 0)
	for _, p := range m.posts {
		if p.TenantID == tenantID && (containsFold(p.Title, term) || containsFold(p.Content, term)) && len(out) < limit {
			out = append(out, models.SearchResult{
				Type: models.ResultPost, ID: p.ID, PostID: p.ID, Title: p.Title, Content: p.Content, CreatedAt: p.CreatedAt,
			})
		}
	}
	return out, nil
}

func (m memSearch) SearchReplies(_ context.Context, tenantID uuid.UUID, term string, limit int) ([]models.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.SearchResult, 0)
	for _, r := range m.replies {
		if m.visiblePost(tenantID, r.PostID) != nil && containsFold(r.Content, term) && len(out) < limit {
			out = append(out, models.SearchResult{
				Type: models.ResultReply, ID: r.ID, PostID: r.PostID, Content: r.Content, CreatedAt: r.CreatedAt,
			})
		}
	}
	return out, nil
}

type memStatistics struct{ *memDB }

func (m memStatistics) Totals(_ context.Context, tenantID uuid.UUID) (repository.Totals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var t repository.Totals
	for _, p := range m.posts {
		if p.TenantID == tenantID {
			t.Posts++
		}
	}
	for _, r := range m.replies {
		if m.visiblePost(tenantID, r.PostID) != nil {
			t.Replies++
		}
	}
	for _, u := range m.users {
		if u.TenantID == tenantID {
			t.Users++
		}
	}
	return t, nil
}

func (m memStatistics) PostsByCategory(_ context.Context, tenantID uuid.UUID) ([]models.CategoryCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.CategoryCount, 0)
	uncategorized := 0
	for _, c := range m.categories {
		if c.TenantID != tenantID {
			continue
		}
		id := c.ID
		cc := models.CategoryCount{ID: &id, Name: c.Name}
		for _, p := range m.posts {
			if p.CategoryID != nil && *p.CategoryID == c.ID {
				cc.Count++
			}
		}
		out = append(out, cc)
	}
	for _, p := range m.posts {
		if p.TenantID == tenantID && p.CategoryID == nil {
			uncategorized++
		}
	}
	if uncategorized > 0 {
		out = append(out, models.CategoryCount{Name: "Uncategorized", Count: uncategorized})
	}
	return out, nil
}

func (m memStatistics) RecentPosts(_ context.Context, tenantID uuid.UUID, limit int) ([]models.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Activity, 0)
	for _, p := range m.posts {
		if p.TenantID == tenantID {
			out = append(out, models.Activity{Type: models.ResultPost, ID: p.ID, PostID: p.ID, Title: p.Title, Content: p.Content, CreatedAt: p.CreatedAt})
		}
	}
	slices.SortFunc(out, func(a, b models.Activity) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m memStatistics) RecentReplies(_ context.Context, tenantID uuid.UUID, limit int) ([]models.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Activity, 0)
	for _, r := range m.replies {
		if m.visiblePost(tenantID, r.PostID) != nil {
			out = append(out, models.Activity{Type: models.ResultReply, ID: r.ID, PostID: r.PostID, Content: r.Content, CreatedAt: r.CreatedAt})
		}
	}
	slices.SortFunc(out, func(a, b models.Activity) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// plainHasher keeps tests fast; bcrypt has its own tests.
type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "plain:" + pw, nil }

func (plainHasher) Verify(hash, pw string) (bool, error) { return hash == "plain:"+pw, nil }

type memRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func (r *memRevoker) Revoke(_ context.Context, jti string, exp time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[jti] = exp
	return nil
}

func (r *memRevoker) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.revoked[jti]
	return ok, nil
}
