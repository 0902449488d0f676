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

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, tenant_id, name, email, password_hash, role, status, avatar_url, created_at, last_login`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.TenantID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Status,
		&u.AvatarURL,
		&u.CreatedAt,
		&u.LastLogin,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func insertUser(ctx context.Context, q querier, in repository.NewUser) (*models.User, error) {
	query := `
		INSERT INTO users (tenant_id, name, email, password_hash, role, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'active', now())
		RETURNING ` + userColumns

	u, err := scanUser(q.QueryRow(ctx, query, in.TenantID, in.Name, in.Email, in.PasswordHash, in.Role))
	if err != nil {
		return nil, mapError("insert user", err)
	}
	return u, nil
}

func (s *UserStore) Create(ctx context.Context, in repository.NewUser) (*models.User, error) {
	return insertUser(ctx, s.pool, in)
}

func (s *UserStore) CreateFirstAdmin(ctx context.Context, in repository.NewUser) (*models.User, error) {
	var user *models.User
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		// Lock the tenant row so two bootstrap requests cannot both pass the check.
		var locked uuid.UUID
		if err := tx.QueryRow(ctx, `SELECT id FROM tenants WHERE id = $1 FOR UPDATE`, in.TenantID).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("lock tenant: %w", repository.ErrInvalidReference)
			}
			return fmt.Errorf("lock tenant: %w", err)
		}

		var hasAdmin bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE tenant_id = $1 AND role = 'admin')`,
			in.TenantID,
		).Scan(&hasAdmin)
		if err != nil {
			return fmt.Errorf("check tenant admin: %w", err)
		}
		if hasAdmin {
			return nil
		}

		in.Role = models.RoleAdmin
		user, err = insertUser(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserStore) GetByID(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND tenant_id = $2`

	u, err := scanUser(s.pool.QueryRow(ctx, query, userID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) TouchLastLogin(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `UPDATE users SET last_login = now() WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

func (s *UserStore) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func (s *UserStore) UpdateRoleStatus(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID, role, status string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET role = $1, status = $2 WHERE id = $3 AND tenant_id = $4`,
		role, status, userID, tenantID,
	)
	if err != nil {
		return false, fmt.Errorf("update user role: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *UserStore) UpdateProfile(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID, name string, avatarURL *string) (*models.User, error) {
	query := `
		UPDATE users SET name = $1, avatar_url = $2
		WHERE id = $3 AND tenant_id = $4
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, query, name, avatarURL, userID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

func (s *UserStore) Delete(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1 AND tenant_id = $2`, userID, tenantID)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
