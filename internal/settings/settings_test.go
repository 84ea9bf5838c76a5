package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bissquit/finance-admin/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingRepository struct{}

func (failingRepository) Get(context.Context) (*domain.Settings, error) {
	return nil, errors.New("disk on fire")
}

func (failingRepository) Save(context.Context, *domain.Settings) error {
	return errors.New("disk on fire")
}

func validSettings() domain.Settings {
	return domain.Settings{
		SiteName:          "Finance Admin",
		SupportEmail:      "help@example.com",
		MaintenanceMode:   true,
		AllowRegistration: false,
		MaxLoginAttempts:  3,
	}
}

func TestService_GetDefaults(t *testing.T) {
	svc := NewService(NewMemoryRepository())

	s, err := svc.Get(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), *s)
	assert.Equal(t, "Finance App", s.SiteName)
	assert.Equal(t, 5, s.MaxLoginAttempts)
}

func TestService_UpdateThenGet(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	in := validSettings()
	in.SiteName = "  Finance Admin  "

	saved, err := svc.Update(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "Finance Admin", saved.SiteName)
	assert.Equal(t, fixed, saved.UpdatedAt)

	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, saved, got)
}

func TestService_UpdateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Settings)
		field  string
	}{
		{"empty site name", func(s *domain.Settings) { s.SiteName = "   " }, "siteName"},
		{"bad email", func(s *domain.Settings) { s.SupportEmail = "nope" }, "supportEmail"},
		{"zero attempts", func(s *domain.Settings) { s.MaxLoginAttempts = 0 }, "maxLoginAttempts"},
		{"too many attempts", func(s *domain.Settings) { s.MaxLoginAttempts = 101 }, "maxLoginAttempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMemoryRepository()
			svc := NewService(repo)
			in := validSettings()
			tt.mutate(&in)

			_, err := svc.Update(context.Background(), in)

			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tt.field, verrs[0].Field())

			_, err = repo.Get(context.Background())
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestService_RepositoryError(t *testing.T) {
	svc := NewService(failingRepository{})

	_, err := svc.Get(context.Background())
	assert.ErrorContains(t, err, "disk on fire")

	_, err = svc.Update(context.Background(), validSettings())
	assert.ErrorContains(t, err, "disk on fire")
}

func newRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r)
	return r
}

func TestHandler_GetAndPut(t *testing.T) {
	router := newRouter(NewService(NewMemoryRepository()))

	payload, err := json.Marshal(validSettings())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/settings", bytes.NewReader(payload)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settings", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data domain.Settings `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "help@example.com", body.Data.SupportEmail)
	assert.True(t, body.Data.MaintenanceMode)
	assert.False(t, body.Data.AllowRegistration)
}

func TestHandler_PutInvalid(t *testing.T) {
	router := newRouter(NewService(NewMemoryRepository()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/settings", bytes.NewBufferString(`{"siteName":"x","supportEmail":"bad","maxLoginAttempts":5}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"supportEmail"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/settings", bytes.NewBufferString(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid json")
}

func TestHandler_RepositoryFailure(t *testing.T) {
	router := newRouter(NewService(failingRepository{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settings", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire")
}
