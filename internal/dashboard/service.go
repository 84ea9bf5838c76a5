// Package dashboard serves the landing view with headline figures.
package dashboard

import (
	"context"
	"fmt"
	"net/url"

	"github.com/bissquit/finance-admin/internal/domain"
)

// API is the subset of the API client used by Service.
type API interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
}

// Service reads the dashboard summary from the upstream API.
type Service struct {
	api API
}

// NewService creates a new dashboard service.
func NewService(api API) *Service {
	return &Service{api: api}
}

// Stats returns the dashboard summary.
func (s *Service) Stats(ctx context.Context) (*domain.DashboardStats, error) {
	var stats domain.DashboardStats
	if err := s.api.Get(ctx, "/dashboard", nil, &stats); err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return &stats, nil
}
