// Package settings stores console preferences edited on the settings page.
//
// Settings belong to the console, not to the finance API, and are never
// sent upstream.
package settings

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/bissquit/finance-admin/internal/domain"
	"github.com/go-playground/validator/v10"
)

// ErrNotFound is returned by a Repository that has nothing saved yet.
var ErrNotFound = errors.New("settings not found")

// Repository persists the single settings record.
type Repository interface {
	Get(ctx context.Context) (*domain.Settings, error)
	Save(ctx context.Context, s *domain.Settings) error
}

// Service reads and validates settings.
type Service struct {
	repo      Repository
	validator *validator.Validate
	now       func() time.Time
}

// NewService creates a new settings service.
func NewService(repo Repository) *Service {
	v := validator.New()
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Service{
		repo:      repo,
		validator: v,
		now:       time.Now,
	}
}

// Get returns the saved settings, or the defaults when nothing was saved.
func (s *Service) Get(ctx context.Context) (*domain.Settings, error) {
	settings, err := s.repo.Get(ctx)
	if errors.Is(err, ErrNotFound) {
		defaults := domain.DefaultSettings()
		return &defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return settings, nil
}

// Update validates and saves in. Validation failures are returned as
// validator.ValidationErrors.
func (s *Service) Update(ctx context.Context, in domain.Settings) (*domain.Settings, error) {
	in.SiteName = strings.TrimSpace(in.SiteName)
	in.SupportEmail = strings.TrimSpace(in.SupportEmail)

	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	in.UpdatedAt = s.now().UTC()
	if err := s.repo.Save(ctx, &in); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	return &in, nil
}

// MemoryRepository keeps settings in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	settings *domain.Settings
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Get returns a copy of the saved settings.
func (r *MemoryRepository) Get(_ context.Context) (*domain.Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.settings == nil {
		return nil, ErrNotFound
	}
	out := *r.settings
	return &out, nil
}

// Save replaces the saved settings.
func (r *MemoryRepository) Save(_ context.Context, s *domain.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := *s
	r.settings = &saved
	return nil
}
