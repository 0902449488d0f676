package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/echoforum/internal/models"
	"github.com/lalith-99/echoforum/internal/repository"
)

type PostStore struct {
	pool *pgxpool.Pool
}

func NewPostStore(pool *pgxpool.Pool) *PostStore {
	return &PostStore{pool: pool}
}

const postSelect = `
	SELECT p.id, p.tenant_id, p.user_id, p.category_id, c.name, p.title, p.content,
	       u.name, u.avatar_url,
	       (SELECT count(*) FROM replies r WHERE r.post_id = p.id),
	       p.created_at, p.updated_at
	FROM posts p
	JOIN users u ON u.id = p.user_id
	LEFT JOIN categories c ON c.id = p.category_id`

func scanPost(row pgx.Row) (*models.Post, error) {
	var p models.Post
	err := row.Scan(
		&p.ID,
		&p.TenantID,
		&p.UserID,
		&p.CategoryID,
		&p.CategoryName,
		&p.Title,
		&p.Content,
		&p.AuthorName,
		&p.AuthorAvatar,
		&p.ReplyCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Files = make([]models.File, 0)
	return &p, nil
}

func (s *PostStore) ListByTenant(ctx context.Context, tenantID uuid.UUID, filter repository.PostFilter) ([]models.Post, error) {
	query := postSelect + ` WHERE p.tenant_id = $1`
	args := []any{tenantID}
	if filter.CategoryID != nil {
		query += ` AND p.category_id = $2`
		args = append(args, *filter.CategoryID)
	}
	query += ` ORDER BY p.created_at DESC, p.id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]models.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	if len(posts) == 0 {
		return posts, nil
	}

	ids := make([]uuid.UUID, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	byPost, err := filesForPosts(ctx, s.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		if files, ok := byPost[posts[i].ID]; ok {
			posts[i].Files = files
		}
	}
	return posts, nil
}

func (s *PostStore) GetByID(ctx context.Context, tenantID uuid.UUID, postID uuid.UUID) (*models.Post, error) {
	query := postSelect + ` WHERE p.id = $1 AND p.tenant_id = $2`

	p, err := scanPost(s.pool.QueryRow(ctx, query, postID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get post: %w", err)
	}

	byPost, err := filesForPosts(ctx, s.pool, []uuid.UUID{p.ID})
	if err != nil {
		return nil, err
	}
	if files, ok := byPost[p.ID]; ok {
		p.Files = files
	}
	return p, nil
}

func (s *PostStore) Create(ctx context.Context, in repository.NewPost) (*models.Post, error) {
	var post *models.Post
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		var p models.Post
		err := tx.QueryRow(ctx, `
			INSERT INTO posts (tenant_id, user_id, category_id, title, content, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
			RETURNING id, tenant_id, user_id, category_id, title, content, created_at, updated_at`,
			in.TenantID, in.UserID, in.CategoryID, in.Title, in.Content,
		).Scan(&p.ID, &p.TenantID, &p.UserID, &p.CategoryID, &p.Title, &p.Content, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return mapError("insert post", err)
		}

		files, err := attachFiles(ctx, tx, p.TenantID, p.UserID, p.ID, in.Files)
		if err != nil {
			return err
		}
		p.Files = files
		post = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostStore) Update(ctx context.Context, in repository.PostUpdate) (bool, error) {
	found := false
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		var authorID uuid.UUID
		err := tx.QueryRow(ctx, `
			UPDATE posts SET title = $1, content = $2, category_id = $3, updated_at = now()
			WHERE id = $4 AND tenant_id = $5
			RETURNING user_id`,
			in.Title, in.Content, in.CategoryID, in.PostID, in.TenantID,
		).Scan(&authorID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return mapError("update post", err)
		}
		found = true

		if !in.ReplaceFiles {
			return nil
		}
		keep := make([]string, 0, len(in.Files))
		for _, f := range in.Files {
			keep = append(keep, f.URL)
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM files WHERE post_id = $1 AND NOT (file_path = ANY($2))`,
			in.PostID, keep,
		); err != nil {
			return fmt.Errorf("delete post files: %w", err)
		}
		_, err = attachFiles(ctx, tx, in.TenantID, authorID, in.PostID, in.Files)
		return err
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func (s *PostStore) Delete(ctx context.Context, tenantID uuid.UUID, postID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1 AND tenant_id = $2`, postID, tenantID)
	if err != nil {
		return false, fmt.Errorf("delete post: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// attachFiles makes refs the post's attachments. A ref already attached is
// left alone, a standalone upload by the author is claimed, and anything
// else gets a fresh record.
func attachFiles(ctx context.Context, q querier, tenantID, userID, postID uuid.UUID, refs []repository.FileRef) ([]models.File, error) {
	files := make([]models.File, 0, len(refs))
	for _, ref := range refs {
		f, err := scanFile(q.QueryRow(ctx, `
			SELECT `+fileColumns+` FROM files
			WHERE post_id = $1 AND file_path = $2
			LIMIT 1`,
			postID, ref.URL,
		))
		if err == nil {
			files = append(files, *f)
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("find attached file: %w", err)
		}

		f, err = scanFile(q.QueryRow(ctx, `
			UPDATE files SET post_id = $1
			WHERE id = (
				SELECT id FROM files
				WHERE tenant_id = $2 AND user_id = $3 AND file_path = $4 AND post_id IS NULL
				ORDER BY created_at
				LIMIT 1
			)
			RETURNING `+fileColumns,
			postID, tenantID, userID, ref.URL,
		))
		if err == nil {
			files = append(files, *f)
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("claim upload: %w", err)
		}

		pid := postID
		f, err = insertFile(ctx, q, repository.NewFile{
			TenantID: tenantID,
			UserID:   userID,
			PostID:   &pid,
			FileName: ref.FileName,
			URL:      ref.URL,
			FileType: ref.FileType,
		})
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}
	return files, nil
}

func filesForPosts(ctx context.Context, q querier, postIDs []uuid.UUID) (map[uuid.UUID][]models.File, error) {
	rows, err := q.Query(ctx, `
		SELECT `+fileColumns+` FROM files
		WHERE post_id = ANY($1)
		ORDER BY created_at, id`,
		postIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("list post files: %w", err)
	}
	defer rows.Close()

	byPost := make(map[uuid.UUID][]models.File)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		byPost[*f.PostID] = append(byPost[*f.PostID], *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return byPost, nil
}
