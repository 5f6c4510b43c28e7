package repo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"server/internal/domain"
)

// ContentRepositoryPG serves the public marketing listings from PostgreSQL.
// Only published rows are returned, ordered by their display position.
type ContentRepositoryPG struct {
	db SQLExecutor
}

// NewContentRepository creates a new content repo.
func NewContentRepository(db SQLExecutor) *ContentRepositoryPG {
	return &ContentRepositoryPG{db: db}
}

// ListProjects returns published project showcases.
func (r *ContentRepositoryPG) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, title, summary, body, image_url, position, published, created_at, updated_at
FROM projects
WHERE published
ORDER BY position, created_at;
`)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Rows) (domain.Project, error) {
		var p domain.Project
		err := row.Scan(&p.ID, &p.Title, &p.Summary, &p.Body, &p.ImageURL, &p.Position,
			&p.Published, &p.CreatedAt, &p.UpdatedAt)
		return p, err
	})
}

// ListTeamMembers returns published team members.
func (r *ContentRepositoryPG) ListTeamMembers(ctx context.Context) ([]domain.TeamMember, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, name, role, bio, photo_url, position, published, created_at
FROM team_members
WHERE published
ORDER BY position, created_at;
`)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Rows) (domain.TeamMember, error) {
		var m domain.TeamMember
		err := row.Scan(&m.ID, &m.Name, &m.Role, &m.Bio, &m.PhotoURL, &m.Position,
			&m.Published, &m.CreatedAt)
		return m, err
	})
}

// ListPartners returns published partners.
func (r *ContentRepositoryPG) ListPartners(ctx context.Context) ([]domain.Partner, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, name, logo_url, site_url, position, published, created_at
FROM partners
WHERE published
ORDER BY position, created_at;
`)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Rows) (domain.Partner, error) {
		var p domain.Partner
		err := row.Scan(&p.ID, &p.Name, &p.LogoURL, &p.SiteURL, &p.Position,
			&p.Published, &p.CreatedAt)
		return p, err
	})
}

// ListMilestones returns published timeline entries in chronological order.
func (r *ContentRepositoryPG) ListMilestones(ctx context.Context) ([]domain.Milestone, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, title, description, occurs_on, position, published, created_at
FROM milestones
WHERE published
ORDER BY occurs_on, position;
`)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Rows) (domain.Milestone, error) {
		var m domain.Milestone
		err := row.Scan(&m.ID, &m.Title, &m.Description, &m.OccursOn, &m.Position,
			&m.Published, &m.CreatedAt)
		return m, err
	})
}

// ListResources returns published tools and resources.
func (r *ContentRepositoryPG) ListResources(ctx context.Context) ([]domain.Resource, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, title, description, url, kind, position, published, created_at
FROM resources
WHERE published
ORDER BY position, created_at;
`)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Rows) (domain.Resource, error) {
		var res domain.Resource
		err := row.Scan(&res.ID, &res.Title, &res.Description, &res.URL, &res.Kind,
			&res.Position, &res.Published, &res.CreatedAt)
		return res, err
	})
}

func collect[T any](rows pgx.Rows, scan func(pgx.Rows) (T, error)) ([]T, error) {
	defer rows.Close()
	var items []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

var _ domain.ContentRepository = (*ContentRepositoryPG)(nil)
