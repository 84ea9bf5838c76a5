package dashboard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bissquit/finance-admin/internal/domain"
	"github.com/bissquit/finance-admin/internal/guard"
	"github.com/bissquit/finance-admin/internal/pkg/format"
	"github.com/bissquit/finance-admin/internal/pkg/httputil"
	"github.com/bissquit/finance-admin/internal/transactions"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

// StatisticsReader loads transaction statistics for the breakdown panel.
type StatisticsReader interface {
	Statistics(ctx context.Context, params transactions.StatsParams) (*domain.TransactionStats, error)
}

// Handler serves the dashboard view.
type Handler struct {
	service *Service
	stats   StatisticsReader
	refresh time.Duration
}

// NewHandler creates a dashboard handler.
func NewHandler(service *Service, stats StatisticsReader, refresh time.Duration) *Handler {
	return &Handler{service: service, stats: stats, refresh: refresh}
}

// RegisterRoutes registers the dashboard view.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/dashboard", h.Show)
}

// Card is one headline figure.
type Card struct {
	Title string  `json:"title"`
	Value string  `json:"value"`
	Raw   float64 `json:"raw"`
}

// Summary is the main dashboard panel.
type Summary struct {
	Cards              []Card                `json:"cards"`
	MonthlyTrend       []domain.MonthlyTrend `json:"monthlyTrend"`
	RecentTransactions []transactions.Row    `json:"recentTransactions"`
	TransactionCount   int                   `json:"transactionCount"`
}

// Breakdown is the spending by category panel.
type Breakdown struct {
	TransactionCount string                     `json:"transactionCount"`
	Categories       []transactions.CategoryRow `json:"categories"`
}

// View is the body of GET /dashboard.
type View struct {
	Summary   httputil.Panel[Summary]   `json:"summary"`
	Breakdown httputil.Panel[Breakdown] `json:"breakdown"`
}

// Show handles GET /dashboard.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		summary          *domain.DashboardStats
		stats            *domain.TransactionStats
		sumErr, statsErr error
		g                errgroup.Group
	)
	g.Go(func() error {
		summary, sumErr = h.service.Stats(ctx)
		return nil
	})
	g.Go(func() error {
		stats, statsErr = h.stats.Statistics(ctx, transactions.StatsParams{})
		return nil
	})
	_ = g.Wait()

	if loc, ok := guard.RedirectFor(errors.Join(sumErr, statsErr)); ok {
		httputil.Redirect(w, r, loc)
		return
	}

	var view View
	if sumErr != nil {
		view.Summary = httputil.Failed[Summary](httputil.PanelError(ctx, sumErr, guard.UpstreamErrors))
	} else {
		view.Summary = httputil.Loaded(toSummary(summary))
	}
	if statsErr != nil {
		view.Breakdown = httputil.Failed[Breakdown](httputil.PanelError(ctx, statsErr, guard.UpstreamErrors))
	} else {
		view.Breakdown = httputil.Loaded(toBreakdown(stats))
	}

	httputil.SetRefresh(w, h.refresh)
	httputil.Success(w, http.StatusOK, view)
}

func toSummary(s *domain.DashboardStats) Summary {
	recent := make([]transactions.Row, 0, len(s.RecentTransactions))
	for _, tx := range s.RecentTransactions {
		recent = append(recent, transactions.ToRow(tx))
	}
	trend := s.MonthlyTrend
	if trend == nil {
		trend = []domain.MonthlyTrend{}
	}

	return Summary{
		Cards: []Card{
			{Title: "Total Income", Value: format.Money(s.TotalIncome), Raw: s.TotalIncome},
			{Title: "Total Expenses", Value: format.Money(s.TotalExpenses), Raw: s.TotalExpenses},
			{Title: "Net Income", Value: format.Money(s.NetIncome), Raw: s.NetIncome},
			{Title: "Account Balance", Value: format.Money(s.AccountsBalance), Raw: s.AccountsBalance},
		},
		MonthlyTrend:       trend,
		RecentTransactions: recent,
		TransactionCount:   len(recent),
	}
}

func toBreakdown(s *domain.TransactionStats) Breakdown {
	return Breakdown{
		TransactionCount: format.Count(s.TransactionCount),
		Categories:       transactions.CategoryRows(s.CategoryBreakdown),
	}
}
