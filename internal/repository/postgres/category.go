package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/echoforum/internal/models"
)

type CategoryStore struct {
	pool *pgxpool.Pool
}

func NewCategoryStore(pool *pgxpool.Pool) *CategoryStore {
	return &CategoryStore{pool: pool}
}

func (s *CategoryStore) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Category, error) {
	query := `
		SELECT id, tenant_id, name, description, created_at
		FROM categories
		WHERE tenant_id = $1
		ORDER BY name`

	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]models.Category, 0)
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

func (s *CategoryStore) Create(ctx context.Context, tenantID uuid.UUID, name, description string) (*models.Category, error) {
	query := `
		INSERT INTO categories (tenant_id, name, description, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, tenant_id, name, description, created_at`

	var c models.Category
	err := s.pool.QueryRow(ctx, query, tenantID, name, description).Scan(
		&c.ID,
		&c.TenantID,
		&c.Name,
		&c.Description,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, mapError("insert category", err)
	}
	return &c, nil
}

func (s *CategoryStore) Exists(ctx context.Context, tenantID uuid.UUID, categoryID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1 AND tenant_id = $2)`,
		categoryID, tenantID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check category: %w", err)
	}
	return exists, nil
}
