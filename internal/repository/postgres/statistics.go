package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/echoforum/internal/models"
	"github.com/lalith-99/echoforum/internal/repository"
)

type StatisticsStore struct {
	pool *pgxpool.Pool
}

func NewStatisticsStore(pool *pgxpool.Pool) *StatisticsStore {
	return &StatisticsStore{pool: pool}
}

func (s *StatisticsStore) Totals(ctx context.Context, tenantID uuid.UUID) (repository.Totals, error) {
	query := `
		SELECT
			(SELECT count(*) FROM posts WHERE tenant_id = $1),
			(SELECT count(*) FROM replies r JOIN posts p ON p.id = r.post_id WHERE p.tenant_id = $1),
			(SELECT count(*) FROM users WHERE tenant_id = $1)`

	var t repository.Totals
	if err := s.pool.QueryRow(ctx, query, tenantID).Scan(&t.Posts, &t.Replies, &t.Users); err != nil {
		return repository.Totals{}, fmt.Errorf("count totals: %w", err)
	}
	return t, nil
}

// PostsByCategory lists every category with its post count, plus an
// "Uncategorized" bucket when any post has no category.
func (s *StatisticsStore) PostsByCategory(ctx context.Context, tenantID uuid.UUID) ([]models.CategoryCount, error) {
	query := `
		SELECT c.id, c.name, count(p.id)
		FROM categories c
		LEFT JOIN posts p ON p.category_id = c.id
		WHERE c.tenant_id = $1
		GROUP BY c.id, c.name
		UNION ALL
		SELECT NULL, 'Uncategorized', count(*)
		FROM posts
		WHERE tenant_id = $1 AND category_id IS NULL
		HAVING count(*) > 0
		ORDER BY 3 DESC, 2`

	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("count posts by category: %w", err)
	}
	defer rows.Close()

	counts := make([]models.CategoryCount, 0)
	for rows.Next() {
		var c models.CategoryCount
		if err := rows.Scan(&c.ID, &c.Name, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category counts: %w", err)
	}
	return counts, nil
}

func (s *StatisticsStore) RecentPosts(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.Activity, error) {
	query := `
		SELECT 'post', p.id, p.id, p.title, p.content, u.name, p.created_at
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.tenant_id = $1
		ORDER BY p.created_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent posts: %w", err)
	}
	return scanActivity(rows)
}

func (s *StatisticsStore) RecentReplies(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.Activity, error) {
	query := `
		SELECT 'reply', r.id, r.post_id, p.title, r.content, u.name, r.created_at
		FROM replies r
		JOIN posts p ON p.id = r.post_id
		JOIN users u ON u.id = r.user_id
		WHERE p.tenant_id = $1
		ORDER BY r.created_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent replies: %w", err)
	}
	return scanActivity(rows)
}

func scanActivity(rows pgx.Rows) ([]models.Activity, error) {
	defer rows.Close()

	items := make([]models.Activity, 0)
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.Type, &a.ID, &a.PostID, &a.Title, &a.Content, &a.AuthorName, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return items, nil
}
