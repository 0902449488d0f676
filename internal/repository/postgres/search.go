package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/echoforum/internal/models"
)

type SearchStore struct {
	pool *pgxpool.Pool
}

func NewSearchStore(pool *pgxpool.Pool) *SearchStore {
	return &SearchStore{pool: pool}
}

func (s *SearchStore) SearchPosts(ctx context.Context, tenantID uuid.UUID, term string, limit int) ([]models.SearchResult, error) {
	query := `
		SELECT 'post', p.id, p.id, p.title, p.content, u.name, p.created_at
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.tenant_id = $1 AND (p.title ILIKE $2 OR p.content ILIKE $2)
		ORDER BY p.created_at DESC
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, tenantID, likePattern(term), limit)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	return scanSearchResults(rows)
}

func (s *SearchStore) SearchReplies(ctx context.Context, tenantID uuid.UUID, term string, limit int) ([]models.SearchResult, error) {
	query := `
		SELECT 'reply', r.id, r.post_id, p.title, r.content, u.name, r.created_at
		FROM replies r
		JOIN posts p ON p.id = r.post_id
		JOIN users u ON u.id = r.user_id
		WHERE p.tenant_id = $1 AND r.content ILIKE $2
		ORDER BY r.created_at DESC
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, tenantID, likePattern(term), limit)
	if err != nil {
		return nil, fmt.Errorf("search replies: %w", err)
	}
	return scanSearchResults(rows)
}

func scanSearchResults(rows pgx.Rows) ([]models.SearchResult, error) {
	defer rows.Close()

	results := make([]models.SearchResult, 0)
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(
			&r.Type,
			&r.ID,
			&r.PostID,
			&r.Title,
			&r.Content,
			&r.AuthorName,
			&r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search results: %w", err)
	}
	return results, nil
}
