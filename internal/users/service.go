// Package users lists and shows accounts of the finance application.
package users

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/bissquit/finance-admin/internal/domain"
)

// API is the subset of the API client used by Service.
type API interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
}

// ListParams filters the users list. Zero values are not sent.
type ListParams struct {
	Page   int
	Limit  int
	Search string
	Role   domain.Role
	Status domain.Status
}

// Query encodes p as URL query parameters.
func (p ListParams) Query() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.Role != "" {
		q.Set("role", string(p.Role))
	}
	if p.Status != "" {
		q.Set("status", string(p.Status))
	}
	return q
}

// Service reads users from the upstream API.
type Service struct {
	api API
}

// NewService creates a new users service.
func NewService(api API) *Service {
	return &Service{api: api}
}

// List returns one page of users.
func (s *Service) List(ctx context.Context, params ListParams) ([]domain.User, error) {
	var users []domain.User
	if err := s.api.Get(ctx, "/users", params.Query(), &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// Get returns the user with id.
func (s *Service) Get(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := s.api.Get(ctx, "/users/"+url.PathEscape(id), nil, &user); err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &user, nil
}

// Profile returns the account of the signed-in operator.
func (s *Service) Profile(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := s.api.Get(ctx, "/users/profile", nil, &user); err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &user, nil
}
