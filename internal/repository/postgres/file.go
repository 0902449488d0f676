package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/echoforum/internal/models"
	"github.com/lalith-99/echoforum/internal/repository"
)

type FileStore struct {
	pool *pgxpool.Pool
}

func NewFileStore(pool *pgxpool.Pool) *FileStore {
	return &FileStore{pool: pool}
}

const fileColumns = `id, tenant_id, user_id, post_id, file_name, file_path, file_type, file_size, created_at`

func scanFile(row pgx.Row) (*models.File, error) {
	var f models.File
	err := row.Scan(
		&f.ID,
		&f.TenantID,
		&f.UserID,
		&f.PostID,
		&f.FileName,
		&f.URL,
		&f.FileType,
		&f.FileSize,
		&f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func insertFile(ctx context.Context, q querier, in repository.NewFile) (*models.File, error) {
	query := `
		INSERT INTO files (tenant_id, user_id, post_id, file_name, file_path, file_type, file_size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING ` + fileColumns

	f, err := scanFile(q.QueryRow(ctx, query,
		in.TenantID, in.UserID, in.PostID, in.FileName, in.URL, in.FileType, in.FileSize,
	))
	if err != nil {
		return nil, mapError("insert file", err)
	}
	return f, nil
}

func (s *FileStore) Create(ctx context.Context, in repository.NewFile) (*models.File, error) {
	return insertFile(ctx, s.pool, in)
}

// ReferencedURLs lists every URL a row still points at: attachments,
// tenant logos and avatars.
func (s *FileStore) ReferencedURLs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT file_path FROM files
		UNION
		SELECT logo_url FROM tenants WHERE logo_url IS NOT NULL
		UNION
		SELECT avatar_url FROM users WHERE avatar_url IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("list referenced urls: %w", err)
	}
	defer rows.Close()

	urls := make([]string, 0)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan referenced url: %w", err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referenced urls: %w", err)
	}
	return urls, nil
}
