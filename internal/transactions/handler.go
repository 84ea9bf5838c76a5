package transactions

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bissquit/finance-admin/internal/domain"
	"github.com/bissquit/finance-admin/internal/guard"
	"github.com/bissquit/finance-admin/internal/pkg/format"
	"github.com/bissquit/finance-admin/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

// Handler serves the transactions views.
type Handler struct {
	service *Service
	refresh time.Duration
}

// NewHandler creates a transactions handler that advertises refresh as its polling interval.
func NewHandler(service *Service, refresh time.Duration) *Handler {
	return &Handler{service: service, refresh: refresh}
}

// RegisterRoutes registers the transactions views.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/transactions", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/statistics", h.Statistics)
		r.Get("/{id}", h.Get)
	})
}

// Row is a transaction as shown in the table.
type Row struct {
	domain.Transaction
	AmountLabel string `json:"amountLabel"`
	TypeLabel   string `json:"typeLabel"`
	StatusLabel string `json:"statusLabel"`
	Date        string `json:"date"`
}

// CategoryRow is one line of the category breakdown.
type CategoryRow struct {
	domain.CategoryTotal
	AmountLabel string `json:"amountLabel"`
}

// StatsView holds the summary cards above the table.
type StatsView struct {
	TotalIncome      string        `json:"totalIncome"`
	TotalExpenses    string        `json:"totalExpenses"`
	NetIncome        string        `json:"netIncome"`
	TransactionCount string        `json:"transactionCount"`
	Categories       []CategoryRow `json:"categories"`
}

// ListView is the body of GET /transactions.
type ListView struct {
	Pagination   httputil.Page             `json:"pagination"`
	Search       string                    `json:"search,omitempty"`
	Stats        httputil.Panel[StatsView] `json:"stats"`
	Transactions httputil.Panel[[]Row]     `json:"transactions"`
}

// DetailView is the body of GET /transactions/{id}.
type DetailView struct {
	Transaction Row `json:"transaction"`
}

// List handles GET /transactions. The list and the statistics are fetched
// concurrently and fail independently.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	params, err := parseListParams(r, page)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	stats := StatsParams{StartDate: params.StartDate, EndDate: params.EndDate, Category: params.Category}

	ctx := r.Context()
	var (
		txs              []domain.Transaction
		summary          *domain.TransactionStats
		listErr, statErr error
		g                errgroup.Group
	)
	g.Go(func() error {
		txs, listErr = h.service.List(ctx, params)
		return nil
	})
	g.Go(func() error {
		summary, statErr = h.service.Statistics(ctx, stats)
		return nil
	})
	_ = g.Wait()

	if loc, ok := guard.RedirectFor(errors.Join(listErr, statErr)); ok {
		httputil.Redirect(w, r, loc)
		return
	}

	view := ListView{
		Pagination: page,
		Search:     strings.TrimSpace(r.URL.Query().Get("search")),
	}
	if listErr != nil {
		view.Transactions = httputil.Failed[[]Row](httputil.PanelError(ctx, listErr, guard.UpstreamErrors))
	} else {
		view.Transactions = httputil.Loaded(toRows(Filter(txs, view.Search)))
	}
	if statErr != nil {
		view.Stats = httputil.Failed[StatsView](httputil.PanelError(ctx, statErr, guard.UpstreamErrors))
	} else {
		view.Stats = httputil.Loaded(toStatsView(summary))
	}

	httputil.SetRefresh(w, h.refresh)
	httputil.Success(w, http.StatusOK, view)
}

// Get handles GET /transactions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tx, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(w, r, err, guard.UpstreamErrors)
		return
	}

	httputil.SetRefresh(w, h.refresh)
	httputil.Success(w, http.StatusOK, DetailView{Transaction: ToRow(*tx)})
}

// Statistics handles GET /transactions/statistics, the summary cards alone.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := StatsParams{
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
		Category:  q.Get("category"),
	}
	if err := validateDates(params.StartDate, params.EndDate); err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.service.Statistics(r.Context(), params)
	if err != nil {
		httputil.HandleError(w, r, err, guard.UpstreamErrors)
		return
	}

	httputil.SetRefresh(w, h.refresh)
	httputil.Success(w, http.StatusOK, toStatsView(summary))
}

func validateDates(dates ...string) error {
	for _, d := range dates {
		if d == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return errors.New("dates must use YYYY-MM-DD")
		}
	}
	return nil
}

func parseListParams(r *http.Request, page httputil.Page) (ListParams, error) {
	q := r.URL.Query()
	p := ListParams{
		Page:      page.Page,
		Limit:     page.Limit,
		Type:      domain.TransactionType(q.Get("type")),
		Category:  q.Get("category"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
	}

	if p.Type != "" && !p.Type.IsValid() {
		return p, errors.New("invalid transaction type")
	}
	if err := validateDates(p.StartDate, p.EndDate); err != nil {
		return p, err
	}

	var err error
	if p.MinAmount, err = parseAmount(q.Get("minAmount")); err != nil {
		return p, errors.New("minAmount must be a number")
	}
	if p.MaxAmount, err = parseAmount(q.Get("maxAmount")); err != nil {
		return p, errors.New("maxAmount must be a number")
	}
	if p.MinAmount != 0 && p.MaxAmount != 0 && p.MinAmount > p.MaxAmount {
		return p, errors.New("minAmount must not exceed maxAmount")
	}
	return p, nil
}

func parseAmount(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// Filter keeps transactions whose description or category contains query, ignoring case.
func Filter(txs []domain.Transaction, query string) []domain.Transaction {
	if query == "" {
		return txs
	}
	query = strings.ToLower(query)

	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if strings.Contains(strings.ToLower(tx.Description), query) ||
			strings.Contains(strings.ToLower(tx.Category), query) {
			out = append(out, tx)
		}
	}
	return out
}

func toRows(txs []domain.Transaction) []Row {
	rows := make([]Row, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, ToRow(tx))
	}
	return rows
}

// ToRow decorates tx with display labels.
func ToRow(tx domain.Transaction) Row {
	return Row{
		Transaction: tx,
		AmountLabel: format.Money(tx.Amount),
		TypeLabel:   format.Label(string(tx.Type)),
		StatusLabel: format.Label(string(tx.Status)),
		Date:        tx.CreatedAt.UTC().Format("Jan 2, 2006 15:04"),
	}
}

// CategoryRows decorates a category breakdown with formatted amounts.
func CategoryRows(breakdown []domain.CategoryTotal) []CategoryRow {
	rows := make([]CategoryRow, 0, len(breakdown))
	for _, c := range breakdown {
		rows = append(rows, CategoryRow{CategoryTotal: c, AmountLabel: format.Money(c.Amount)})
	}
	return rows
}

func toStatsView(s *domain.TransactionStats) StatsView {
	return StatsView{
		TotalIncome:      format.Money(s.TotalIncome),
		TotalExpenses:    format.Money(s.TotalExpenses),
		NetIncome:        format.Money(s.NetIncome),
		TransactionCount: format.Count(s.TransactionCount),
		Categories:       CategoryRows(s.CategoryBreakdown),
	}
}
