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

type TenantStore struct {
	pool *pgxpool.Pool
}

func NewTenantStore(pool *pgxpool.Pool) *TenantStore {
	return &TenantStore{pool: pool}
}

const tenantColumns = `id, name, domain, logo_url, created_at`

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Domain, &t.LogoURL, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func insertTenant(ctx context.Context, q querier, in repository.NewTenant) (*models.Tenant, error) {
	query := `
		INSERT INTO tenants (name, domain, logo_url, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING ` + tenantColumns

	t, err := scanTenant(q.QueryRow(ctx, query, in.Name, in.Domain, in.LogoURL))
	if err != nil {
		return nil, mapError("insert tenant", err)
	}
	return t, nil
}

func (s *TenantStore) Create(ctx context.Context, in repository.NewTenant) (*models.Tenant, error) {
	return insertTenant(ctx, s.pool, in)
}

func (s *TenantStore) CreateWithAdmin(ctx context.Context, in repository.NewTenant, admin repository.NewUser) (*models.Tenant, *models.User, error) {
	var (
		tenant *models.Tenant
		user   *models.User
	)
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		tenant, err = insertTenant(ctx, tx, in)
		if err != nil {
			return err
		}
		admin.TenantID = tenant.ID
		admin.Role = models.RoleAdmin
		user, err = insertUser(ctx, tx, admin)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return tenant, user, nil
}

func (s *TenantStore) GetByID(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`

	t, err := scanTenant(s.pool.QueryRow(ctx, query, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}
