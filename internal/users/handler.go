package users

import (
	"net/http"
	"strings"
	"time"

	"github.com/bissquit/finance-admin/internal/domain"
	"github.com/bissquit/finance-admin/internal/guard"
	"github.com/bissquit/finance-admin/internal/pkg/format"
	"github.com/bissquit/finance-admin/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// Handler serves the users views.
type Handler struct {
	service *Service
	refresh time.Duration
}

// NewHandler creates a users handler that advertises refresh as its polling interval.
func NewHandler(service *Service, refresh time.Duration) *Handler {
	return &Handler{service: service, refresh: refresh}
}

// RegisterRoutes registers the users views.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/profile", h.Profile)
		r.Get("/{id}", h.Get)
	})
}

// Row is a user as shown in the table.
type Row struct {
	domain.User
	Name        string `json:"name"`
	Initials    string `json:"initials"`
	RoleLabel   string `json:"roleLabel"`
	StatusLabel string `json:"statusLabel"`
	Joined      string `json:"joined"`
	LastLogin   string `json:"lastLogin"`
}

// ListView is the body of GET /users.
type ListView struct {
	Pagination httputil.Page         `json:"pagination"`
	Search     string                `json:"search,omitempty"`
	Users      httputil.Panel[[]Row] `json:"users"`
}

// DetailView is the body of GET /users/{id}.
type DetailView struct {
	User Row `json:"user"`
}

// List handles GET /users.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	params := ListParams{
		Page:   page.Page,
		Limit:  page.Limit,
		Role:   domain.Role(q.Get("role")),
		Status: domain.Status(q.Get("status")),
	}
	if params.Role != "" && !params.Role.IsValid() {
		httputil.Error(w, http.StatusBadRequest, "invalid role")
		return
	}
	if params.Status != "" && !params.Status.IsValid() {
		httputil.Error(w, http.StatusBadRequest, "invalid status")
		return
	}

	view := ListView{
		Pagination: page,
		Search:     strings.TrimSpace(q.Get("search")),
	}

	users, err := h.service.List(r.Context(), params)
	if err != nil {
		if loc, ok := guard.RedirectFor(err); ok {
			httputil.Redirect(w, r, loc)
			return
		}
		view.Users = httputil.Failed[[]Row](httputil.PanelError(r.Context(), err, guard.UpstreamErrors))
	} else {
		view.Users = httputil.Loaded(toRows(Filter(users, view.Search)))
	}

	httputil.SetRefresh(w, h.refresh)
	httputil.Success(w, http.StatusOK, view)
}

// Get handles GET /users/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(w, r, err, guard.UpstreamErrors)
		return
	}

	httputil.SetRefresh(w, h.refresh)
	httputil.Success(w, http.StatusOK, DetailView{User: toRow(*user)})
}

// Profile handles GET /users/profile, the signed-in operator's own account.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Profile(r.Context())
	if err != nil {
		httputil.HandleError(w, r, err, guard.UpstreamErrors)
		return
	}

	httputil.Success(w, http.StatusOK, DetailView{User: toRow(*user)})
}

// Filter keeps users whose name or email contains query, ignoring case.
func Filter(users []domain.User, query string) []domain.User {
	if query == "" {
		return users
	}
	query = strings.ToLower(query)

	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.FirstName), query) ||
			strings.Contains(strings.ToLower(u.LastName), query) ||
			strings.Contains(strings.ToLower(u.Email), query) {
			out = append(out, u)
		}
	}
	return out
}

func toRows(users []domain.User) []Row {
	rows := make([]Row, 0, len(users))
	for _, u := range users {
		rows = append(rows, toRow(u))
	}
	return rows
}

func toRow(u domain.User) Row {
	return Row{
		User:        u,
		Name:        strings.TrimSpace(u.FirstName + " " + u.LastName),
		Initials:    initials(u.FirstName, u.LastName),
		RoleLabel:   format.Label(string(u.Role)),
		StatusLabel: format.Label(string(u.Status)),
		Joined:      format.Date(u.CreatedAt),
		LastLogin:   format.Time(u.LastLoginAt),
	}
}

func initials(first, last string) string {
	var b strings.Builder
	for _, s := range []string{first, last} {
		for _, r := range s {
			b.WriteRune(r)
			break
		}
	}
	return strings.ToUpper(b.String())
}
