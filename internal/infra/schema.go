package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied on boot. Statements are idempotent so restarts are safe.
//
// The unique index on donations (provider, provider_ref) is load-bearing: it
// is what keeps repeated webhook delivery from ever recording the same
// provider transaction twice.
const schema = `
CREATE TABLE IF NOT EXISTS donations (
    id                uuid PRIMARY KEY,
    amount            numeric(12,2) NOT NULL CHECK (amount > 0),
    currency          text NOT NULL,
    donor_name        text NOT NULL,
    donor_email       text,
    message           text,
    anonymous         boolean NOT NULL DEFAULT false,
    tier              text NOT NULL,
    status            text NOT NULL DEFAULT 'pending',
    provider          text NOT NULL,
    provider_ref      text NOT NULL,
    confirmation_code text,
    created_at        timestamptz NOT NULL DEFAULT now(),
    paid_at           timestamptz
);

CREATE UNIQUE INDEX IF NOT EXISTS donations_provider_ref_key
    ON donations (provider, provider_ref);

CREATE INDEX IF NOT EXISTS donations_status_created_idx
    ON donations (status, created_at DESC);

CREATE TABLE IF NOT EXISTS settings (
    key         text PRIMARY KEY,
    value       text NOT NULL,
    type        text NOT NULL DEFAULT 'string',
    label       text NOT NULL DEFAULT '',
    description text NOT NULL DEFAULT '',
    category    text NOT NULL DEFAULT 'general',
    public      boolean NOT NULL DEFAULT true,
    created_at  timestamptz NOT NULL DEFAULT now(),
    updated_at  timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS projects (
    id         uuid PRIMARY KEY,
    title      text NOT NULL,
    summary    text NOT NULL DEFAULT '',
    body       text NOT NULL DEFAULT '',
    image_url  text NOT NULL DEFAULT '',
    position   int NOT NULL DEFAULT 0,
    published  boolean NOT NULL DEFAULT false,
    created_at timestamptz NOT NULL DEFAULT now(),
    updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS team_members (
    id         uuid PRIMARY KEY,
    name       text NOT NULL,
    role       text NOT NULL DEFAULT '',
    bio        text NOT NULL DEFAULT '',
    photo_url  text NOT NULL DEFAULT '',
    position   int NOT NULL DEFAULT 0,
    published  boolean NOT NULL DEFAULT false,
    created_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS partners (
    id         uuid PRIMARY KEY,
    name       text NOT NULL,
    logo_url   text NOT NULL DEFAULT '',
    site_url   text NOT NULL DEFAULT '',
    position   int NOT NULL DEFAULT 0,
    published  boolean NOT NULL DEFAULT false,
    created_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS milestones (
    id          uuid PRIMARY KEY,
    title       text NOT NULL,
    description text NOT NULL DEFAULT '',
    occurs_on   date NOT NULL,
    position    int NOT NULL DEFAULT 0,
    published   boolean NOT NULL DEFAULT false,
    created_at  timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS resources (
    id          uuid PRIMARY KEY,
    title       text NOT NULL,
    description text NOT NULL DEFAULT '',
    url         text NOT NULL DEFAULT '',
    kind        text NOT NULL DEFAULT 'resource',
    position    int NOT NULL DEFAULT 0,
    published   boolean NOT NULL DEFAULT false,
    created_at  timestamptz NOT NULL DEFAULT now()
);
`

// EnsureSchema applies the bootstrap DDL.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
