package transactions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bissquit/finance-admin/internal/apiclient"
	"github.com/bissquit/finance-admin/internal/domain"
	"github.com/bissquit/finance-admin/internal/guard"
	"github.com/bissquit/finance-admin/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin = domain.User{ID: "u-1", Email: "admin@example.com", Role: domain.RoleAdmin, Status: domain.StatusActive}

	salary = domain.Transaction{
		ID: "t-1", UserID: "u-2", Amount: 4200, Type: domain.TransactionTypeIncome,
		Status: domain.TransactionStatusCompleted, Description: "March salary", Category: "Salary",
		CreatedAt: time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC),
	}
	groceries = domain.Transaction{
		ID: "t-2", UserID: "u-2", Amount: 87.35, Type: domain.TransactionTypeExpense,
		Status: domain.TransactionStatusPending, Description: "Weekly shop", Category: "Groceries",
		CreatedAt: time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC),
	}
)

type fixture struct {
	api     *testutil.FakeAPI
	service *Service
	router  http.Handler
	ctx     context.Context
}

func setup(t *testing.T) *fixture {
	t.Helper()

	api := testutil.NewFakeAPI(t)
	api.SetTransactions([]domain.Transaction{salary, groceries})
	api.SetTransactionStats(domain.TransactionStats{
		TotalIncome:      4200,
		TotalExpenses:    87.35,
		NetIncome:        4112.65,
		TransactionCount: 2,
		CategoryBreakdown: []domain.CategoryTotal{
			{Category: "Salary", Amount: 4200, Count: 1},
			{Category: "Groceries", Amount: 87.35, Count: 1},
		},
	})

	svc := NewService(api.NewClient(t))
	r := chi.NewRouter()
	NewHandler(svc, time.Minute).RegisterRoutes(r)

	return &fixture{
		api:     api,
		service: svc,
		router:  r,
		ctx:     testutil.SessionContext(context.Background(), admin, api.IssueToken(admin)),
	}
}

func (f *fixture) do(target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil).WithContext(f.ctx)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

type listResponse struct {
	Data struct {
		Stats struct {
			Data  *StatsView         `json:"data"`
			Error *map[string]string `json:"error"`
		} `json:"stats"`
		Transactions struct {
			Data  []Row              `json:"data"`
			Error *map[string]string `json:"error"`
		} `json:"transactions"`
	} `json:"data"`
}

func TestListParams_Query(t *testing.T) {
	assert.Empty(t, ListParams{}.Query().Encode())

	q := ListParams{
		Page: 2, Limit: 50, Type: domain.TransactionTypeExpense, Category: "Food",
		StartDate: "2026-01-01", EndDate: "2026-01-31", MinAmount: 10, MaxAmount: 99.5,
	}.Query()

	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "50", q.Get("limit"))
	assert.Equal(t, "EXPENSE", q.Get("type"))
	assert.Equal(t, "Food", q.Get("category"))
	assert.Equal(t, "2026-01-01", q.Get("startDate"))
	assert.Equal(t, "2026-01-31", q.Get("endDate"))
	assert.Equal(t, "10", q.Get("minAmount"))
	assert.Equal(t, "99.5", q.Get("maxAmount"))
	assert.False(t, q.Has("search"))

	assert.Equal(t, "category=Food", StatsParams{Category: "Food"}.Query().Encode())
}

func TestService(t *testing.T) {
	f := setup(t)

	txs, err := f.service.List(f.ctx, ListParams{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Len(t, txs, 2)

	tx, err := f.service.Get(f.ctx, "t-2")
	require.NoError(t, err)
	assert.Equal(t, "Weekly shop", tx.Description)

	stats, err := f.service.Statistics(f.ctx, StatsParams{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TransactionCount)

	_, err = f.service.Get(f.ctx, "t-404")
	assert.ErrorIs(t, err, apiclient.ErrUpstreamRejected)
}

func TestHandler_List(t *testing.T) {
	f := setup(t)

	rec := f.do("/transactions")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Refresh"))

	var body listResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	require.Len(t, body.Data.Transactions.Data, 2)
	assert.Equal(t, "$4,200.00", body.Data.Transactions.Data[0].AmountLabel)
	assert.Equal(t, "Income", body.Data.Transactions.Data[0].TypeLabel)
	assert.Equal(t, "Mar 1, 2026 08:30", body.Data.Transactions.Data[0].Date)

	require.NotNil(t, body.Data.Stats.Data)
	assert.Equal(t, "$4,112.65", body.Data.Stats.Data.NetIncome)
	assert.Equal(t, "2", body.Data.Stats.Data.TransactionCount)
	require.Len(t, body.Data.Stats.Data.Categories, 2)
	assert.Equal(t, "$87.35", body.Data.Stats.Data.Categories[1].AmountLabel)

	// both panels were requested with the session token
	for _, path := range []string{"/transactions", "/transactions/statistics"} {
		reqs := f.api.RequestsTo(path)
		require.Len(t, reqs, 1, path)
		assert.Contains(t, reqs[0].Authorization, "Bearer ")
	}
}

func TestHandler_ListForwardsFilters(t *testing.T) {
	f := setup(t)

	rec := f.do("/transactions?type=EXPENSE&category=Groceries&startDate=2026-03-01&minAmount=5")
	require.Equal(t, http.StatusOK, rec.Code)

	list := f.api.RequestsTo("/transactions")[0]
	assert.Contains(t, list.Query, "type=EXPENSE")
	assert.Contains(t, list.Query, "minAmount=5")

	stats := f.api.RequestsTo("/transactions/statistics")[0]
	assert.Equal(t, "category=Groceries&startDate=2026-03-01", stats.Query)
}

func TestHandler_ListSearch(t *testing.T) {
	f := setup(t)

	var body listResponse
	require.NoError(t, json.NewDecoder(f.do("/transactions?search=groc").Body).Decode(&body))

	require.Len(t, body.Data.Transactions.Data, 1)
	assert.Equal(t, "t-2", body.Data.Transactions.Data[0].ID)
}

func TestHandler_ListBadParams(t *testing.T) {
	f := setup(t)

	for _, target := range []string{
		"/transactions?type=REFUND",
		"/transactions?startDate=03/01/2026",
		"/transactions?minAmount=lots",
		"/transactions?minAmount=10&maxAmount=5",
		"/transactions?limit=0",
	} {
		assert.Equal(t, http.StatusBadRequest, f.do(target).Code, target)
	}
}

func TestHandler_ListPanelsFailIndependently(t *testing.T) {
	f := setup(t)
	f.api.Fail("/transactions/statistics", http.StatusBadGateway)

	rec := f.do("/transactions")
	require.Equal(t, http.StatusOK, rec.Code)

	var body listResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Len(t, body.Data.Transactions.Data, 2)
	assert.Nil(t, body.Data.Stats.Data)
	require.NotNil(t, body.Data.Stats.Error)
	assert.Equal(t, "Bad Gateway", (*body.Data.Stats.Error)["message"])
}

func TestHandler_ListSessionExpired(t *testing.T) {
	f := setup(t)
	f.api.RevokeAll()

	rec := f.do("/transactions")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, guard.LoginPath, rec.Header().Get("Location"))
}

func TestHandler_Get(t *testing.T) {
	f := setup(t)

	rec := f.do("/transactions/t-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data DetailView `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "March salary", body.Data.Transaction.Description)
	assert.Equal(t, "Completed", body.Data.Transaction.StatusLabel)

	assert.Equal(t, http.StatusNotFound, f.do("/transactions/t-404").Code)
}

func TestHandler_Statistics(t *testing.T) {
	f := setup(t)

	rec := f.do("/transactions/statistics?category=Salary")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Refresh"))

	var body struct {
		Data StatsView `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "2", body.Data.TransactionCount)
	assert.Len(t, body.Data.Categories, 2)

	calls := f.api.RequestsTo("/transactions/statistics")
	require.Len(t, calls, 1)
	assert.Equal(t, "category=Salary", calls[0].Query)

	assert.Equal(t, http.StatusBadRequest, f.do("/transactions/statistics?startDate=yesterday").Code)
}
