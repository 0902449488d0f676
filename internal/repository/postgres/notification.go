package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/echoforum/internal/models"
)

type NotificationStore struct {
	pool *pgxpool.Pool
}

func NewNotificationStore(pool *pgxpool.Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

func insertNotification(ctx context.Context, q querier, tenantID, userID, actorID, postID uuid.UUID, kind, message string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO notifications (tenant_id, user_id, actor_id, post_id, type, message, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, now())`,
		tenantID, userID, actorID, postID, kind, message,
	)
	if err != nil {
		return mapError("insert notification", err)
	}
	return nil
}

func (s *NotificationStore) ListByUser(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID, limit int) ([]models.Notification, error) {
	query := `
		SELECT n.id, n.tenant_id, n.user_id, n.actor_id, a.name, n.post_id,
		       n.type, n.message, n.is_read, n.created_at
		FROM notifications n
		LEFT JOIN users a ON a.id = n.actor_id
		WHERE n.user_id = $1 AND n.tenant_id = $2
		ORDER BY n.created_at DESC, n.id DESC
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, userID, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0)
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(
			&n.ID,
			&n.TenantID,
			&n.UserID,
			&n.ActorID,
			&n.ActorName,
			&n.PostID,
			&n.Type,
			&n.Message,
			&n.IsRead,
			&n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return notifications, nil
}

func (s *NotificationStore) UnreadCount(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE user_id = $1 AND tenant_id = $2 AND NOT is_read`,
		userID, tenantID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID, notificationID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE id = $1 AND user_id = $2 AND tenant_id = $3`,
		notificationID, userID, tenantID,
	)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE user_id = $1 AND tenant_id = $2 AND NOT is_read`,
		userID, tenantID,
	)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}
