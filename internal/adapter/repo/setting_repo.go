package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"server/internal/domain"
)

// SettingRepositoryPG implements SettingRepository using PostgreSQL.
type SettingRepositoryPG struct {
	db SQLExecutor
}

// NewSettingRepository creates a new setting repo.
func NewSettingRepository(db SQLExecutor) *SettingRepositoryPG {
	return &SettingRepositoryPG{db: db}
}

const settingColumns = `key, value, type, label, description, category, public, created_at, updated_at`

// Get returns one setting by key.
func (r *SettingRepositoryPG) Get(ctx context.Context, key string) (*domain.Setting, error) {
	row := r.db.QueryRow(ctx, `
SELECT `+settingColumns+`
FROM settings
WHERE key = $1;
`, key)
	return scanSetting(row)
}

// List returns settings, optionally only publicly visible ones, grouped by
// category then key for stable display.
func (r *SettingRepositoryPG) List(ctx context.Context, publicOnly bool) ([]domain.Setting, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+settingColumns+`
FROM settings
WHERE NOT $1 OR public
ORDER BY category, key;
`, publicOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Setting
	for rows.Next() {
		s, err := scanSetting(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Upsert inserts or updates a setting by key.
func (r *SettingRepositoryPG) Upsert(ctx context.Context, s *domain.Setting) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO settings (key, value, type, label, description, category, public, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
ON CONFLICT (key) DO UPDATE
SET value = excluded.value,
    type = excluded.type,
    label = excluded.label,
    description = excluded.description,
    category = excluded.category,
    public = excluded.public,
    updated_at = now();
`, s.Key, s.Value, s.Type, s.Label, s.Description, s.Category, s.Public)
	return err
}

func scanSetting(row pgx.Row) (*domain.Setting, error) {
	var s domain.Setting
	err := row.Scan(&s.Key, &s.Value, &s.Type, &s.Label, &s.Description, &s.Category,
		&s.Public, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

var _ domain.SettingRepository = (*SettingRepositoryPG)(nil)
