// Package transactions lists transactions and their aggregate statistics.
package transactions

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

// ListParams filters the transactions list. Zero values are not sent.
type ListParams struct {
	Page      int
	Limit     int
	Search    string
	Type      domain.TransactionType
	Category  string
	StartDate string
	EndDate   string
	MinAmount float64
	MaxAmount float64
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
	if p.Type != "" {
		q.Set("type", string(p.Type))
	}
	if p.Category != "" {
		q.Set("category", p.Category)
	}
	if p.StartDate != "" {
		q.Set("startDate", p.StartDate)
	}
	if p.EndDate != "" {
		q.Set("endDate", p.EndDate)
	}
	if p.MinAmount != 0 {
		q.Set("minAmount", strconv.FormatFloat(p.MinAmount, 'f', -1, 64))
	}
	if p.MaxAmount != 0 {
		q.Set("maxAmount", strconv.FormatFloat(p.MaxAmount, 'f', -1, 64))
	}
	return q
}

// StatsParams narrows the statistics to a period or category.
type StatsParams struct {
	StartDate string
	EndDate   string
	Category  string
}

// Query encodes p as URL query parameters.
func (p StatsParams) Query() url.Values {
	q := url.Values{}
	if p.StartDate != "" {
		q.Set("startDate", p.StartDate)
	}
	if p.EndDate != "" {
		q.Set("endDate", p.EndDate)
	}
	if p.Category != "" {
		q.Set("category", p.Category)
	}
	return q
}

// Service reads transactions from the upstream API.
type Service struct {
	api API
}

// NewService creates a new transactions service.
func NewService(api API) *Service {
	return &Service{api: api}
}

// List returns one page of transactions.
func (s *Service) List(ctx context.Context, params ListParams) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	if err := s.api.Get(ctx, "/transactions", params.Query(), &txs); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return txs, nil
}

// Get returns the transaction with id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	var tx domain.Transaction
	if err := s.api.Get(ctx, "/transactions/"+url.PathEscape(id), nil, &tx); err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return &tx, nil
}

// Statistics returns totals and the per-category breakdown.
func (s *Service) Statistics(ctx context.Context, params StatsParams) (*domain.TransactionStats, error) {
	var stats domain.TransactionStats
	if err := s.api.Get(ctx, "/transactions/statistics", params.Query(), &stats); err != nil {
		return nil, fmt.Errorf("transaction statistics: %w", err)
	}
	return &stats, nil
}
