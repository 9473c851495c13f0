package settings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when neither a tenant-specific nor a global default
// document exists for a key.
var ErrNotFound = errors.New("setting not found")

// Repository reads versioned JSON rule documents from the settings table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a settings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetRaw returns the JSON document for a key. Tenant-specific rows shadow the
// seeded global defaults (tenant_id IS NULL).
func (r *Repository) GetRaw(ctx context.Context, tenantID uuid.UUID, key string) ([]byte, error) {
	var value []byte
	err := r.pool.QueryRow(ctx, `
		SELECT value
		FROM settings
		WHERE key = $2 AND (tenant_id = $1 OR tenant_id IS NULL)
		ORDER BY tenant_id NULLS LAST
		LIMIT 1
	`, tenantID, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Upsert stores a tenant-specific rule document, bumping its version.
func (r *Repository) Upsert(ctx context.Context, tenantID uuid.UUID, key string, value []byte) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO settings (tenant_id, key, value, version)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (tenant_id, key)
		DO UPDATE SET value = EXCLUDED.value, version = settings.version + 1, updated_at = now()
	`, tenantID, key, value)
	return err
}
