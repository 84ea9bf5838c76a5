// Package postgres provides the PostgreSQL implementation of the settings repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/finance-admin/internal/domain"
	"github.com/bissquit/finance-admin/internal/settings"
	"github.com/bissquit/finance-admin/migrations"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements settings.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Get loads the settings row.
func (r *Repository) Get(ctx context.Context) (*domain.Settings, error) {
	query := `
		SELECT site_name, support_email, maintenance_mode, allow_registration, max_login_attempts, updated_at
		FROM console_settings
		WHERE id = 1
	`
	var s domain.Settings
	err := r.db.QueryRow(ctx, query).Scan(
		&s.SiteName,
		&s.SupportEmail,
		&s.MaintenanceMode,
		&s.AllowRegistration,
		&s.MaxLoginAttempts,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, settings.ErrNotFound
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &s, nil
}

// Save inserts or replaces the settings row.
func (r *Repository) Save(ctx context.Context, s *domain.Settings) error {
	query := `
		INSERT INTO console_settings (id, site_name, support_email, maintenance_mode, allow_registration, max_login_attempts, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			site_name = EXCLUDED.site_name,
			support_email = EXCLUDED.support_email,
			maintenance_mode = EXCLUDED.maintenance_mode,
			allow_registration = EXCLUDED.allow_registration,
			max_login_attempts = EXCLUDED.max_login_attempts,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query,
		s.SiteName,
		s.SupportEmail,
		s.MaintenanceMode,
		s.AllowRegistration,
		s.MaxLoginAttempts,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Migrate applies the embedded migrations to the database at url.
func Migrate(url string) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
