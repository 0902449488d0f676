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

type ReplyStore struct {
	pool *pgxpool.Pool
}

func NewReplyStore(pool *pgxpool.Pool) *ReplyStore {
	return &ReplyStore{pool: pool}
}

func (s *ReplyStore) ListByPost(ctx context.Context, tenantID uuid.UUID, postID uuid.UUID) ([]models.Reply, error) {
	// Replies carry no tenant column; the join through posts scopes them.
	query := `
		SELECT r.id, r.post_id, r.user_id, r.content, u.name, u.avatar_url, r.created_at
		FROM replies r
		JOIN posts p ON p.id = r.post_id
		JOIN users u ON u.id = r.user_id
		WHERE r.post_id = $1 AND p.tenant_id = $2
		ORDER BY r.created_at ASC, r.id`

	rows, err := s.pool.Query(ctx, query, postID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	defer rows.Close()

	replies := make([]models.Reply, 0)
	for rows.Next() {
		var r models.Reply
		if err := rows.Scan(
			&r.ID,
			&r.PostID,
			&r.UserID,
			&r.Content,
			&r.AuthorName,
			&r.AuthorAvatar,
			&r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		replies = append(replies, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate replies: %w", err)
	}
	return replies, nil
}

func (s *ReplyStore) Create(ctx context.Context, in repository.NewReply) (*models.Reply, error) {
	var reply *models.Reply
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		var (
			authorID uuid.UUID
			title    string
		)
		err := tx.QueryRow(ctx,
			`SELECT user_id, title FROM posts WHERE id = $1 AND tenant_id = $2 FOR SHARE`,
			in.PostID, in.TenantID,
		).Scan(&authorID, &title)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("find reply post: %w", err)
		}

		var r models.Reply
		err = tx.QueryRow(ctx, `
			INSERT INTO replies (post_id, user_id, content, created_at)
			VALUES ($1, $2, $3, now())
			RETURNING id, post_id, user_id, content, created_at`,
			in.PostID, in.UserID, in.Content,
		).Scan(&r.ID, &r.PostID, &r.UserID, &r.Content, &r.CreatedAt)
		if err != nil {
			return mapError("insert reply", err)
		}
		r.AuthorName = in.ActorName

		if authorID != in.UserID {
			if err := insertNotification(ctx, tx, in.TenantID, authorID, in.UserID, in.PostID,
				"reply", replyMessage(in.ActorName, title)); err != nil {
				return err
			}
		}
		reply = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

func replyMessage(actor, title string) string {
	if title == "" {
		return fmt.Sprintf("%s replied to your post", actor)
	}
	return fmt.Sprintf("%s replied to your post %q", actor, title)
}
