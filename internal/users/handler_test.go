package users

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bissquit/finance-admin/internal/domain"
	"github.com/bissquit/finance-admin/internal/guard"
	"github.com/bissquit/finance-admin/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listResponse struct {
	Data struct {
		Pagination struct {
			Page  int `json:"page"`
			Limit int `json:"limit"`
		} `json:"pagination"`
		Users struct {
			Data  []Row `json:"data"`
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		} `json:"users"`
	} `json:"data"`
}

func setupHandler(t *testing.T) (http.Handler, *testutil.FakeAPI, func(*http.Request) *http.Request) {
	t.Helper()

	svc, api, _ := setupService(t)
	token := api.IssueToken(admin)

	r := chi.NewRouter()
	NewHandler(svc, time.Minute).RegisterRoutes(r)

	withSession := func(req *http.Request) *http.Request {
		return req.WithContext(testutil.SessionContext(req.Context(), admin, token))
	}
	return r, api, withSession
}

func TestHandler_List(t *testing.T) {
	router, api, withSession := setupHandler(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/users", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Refresh"))

	var body listResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 1, body.Data.Pagination.Page)
	assert.Equal(t, 20, body.Data.Pagination.Limit)
	assert.Nil(t, body.Data.Users.Error)
	require.Len(t, body.Data.Users.Data, 3)
	assert.Equal(t, "Ada Admin", body.Data.Users.Data[0].Name)
	assert.Equal(t, "AA", body.Data.Users.Data[0].Initials)
	assert.Equal(t, "Jan 10, 2025", body.Data.Users.Data[0].Joined)
	assert.Equal(t, "Never", body.Data.Users.Data[0].LastLogin)

	reqs := api.RequestsTo("/users")
	require.Len(t, reqs, 1)
	assert.Equal(t, "limit=20&page=1", reqs[0].Query)
}

func TestHandler_ListSearchIsLocal(t *testing.T) {
	router, api, withSession := setupHandler(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/users?search=SMITH", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	var body listResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data.Users.Data, 1)
	assert.Equal(t, "u-2", body.Data.Users.Data[0].ID)

	assert.NotContains(t, api.RequestsTo("/users")[0].Query, "search")
}

func TestHandler_ListBadParams(t *testing.T) {
	router, _, withSession := setupHandler(t)

	for _, target := range []string{"/users?page=0", "/users?role=OWNER", "/users?status=gone"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, target, nil)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestHandler_ListUpstreamFailureIsInline(t *testing.T) {
	router, api, withSession := setupHandler(t)
	api.Fail("/users", http.StatusInternalServerError)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/users", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	var body listResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Nil(t, body.Data.Users.Data)
	require.NotNil(t, body.Data.Users.Error)
	assert.Equal(t, "Internal Server Error", body.Data.Users.Error.Message)
}

func TestHandler_ListRedirects(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusUnauthorized, guard.LoginPath},
		{http.StatusForbidden, guard.UnauthorizedPath},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			router, api, withSession := setupHandler(t)
			api.Fail("/users", tt.status)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/users", nil)))

			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Location"))
		})
	}
}

func TestHandler_Get(t *testing.T) {
	router, _, withSession := setupHandler(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/users/u-3", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data DetailView `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "bob@example.com", body.Data.User.Email)
	assert.Equal(t, "Suspended", body.Data.User.StatusLabel)
}

func TestHandler_GetNotFound(t *testing.T) {
	router, _, withSession := setupHandler(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/users/nope", nil)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "User not found")
}

func TestHandler_Profile(t *testing.T) {
	router, api, withSession := setupHandler(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/users/profile", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	// the operator's own account is not a polled view
	assert.Empty(t, rec.Header().Get("Refresh"))

	var body struct {
		Data DetailView `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, admin.Email, body.Data.User.Email)

	calls := api.RequestsTo("/users/profile")
	require.Len(t, calls, 1)
	assert.True(t, strings.HasPrefix(calls[0].Authorization, "Bearer "))
}

func TestFilter(t *testing.T) {
	all := []domain.User{admin, alice, bob}

	assert.Len(t, Filter(all, ""), 3)
	assert.Equal(t, []domain.User{bob}, Filter(all, "bob@"))
	assert.Equal(t, []domain.User{alice}, Filter(all, "alice"))
	assert.Empty(t, Filter(all, "zzz"))
}
