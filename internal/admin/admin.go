// Package admin implements the moderation endpoints available to admins.
package admin

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/RaviShinde19/StackIt/internal/apperr"
	"github.com/RaviShinde19/StackIt/internal/httpx"
	"github.com/RaviShinde19/StackIt/internal/middleware"
	"github.com/RaviShinde19/StackIt/internal/models"
	"github.com/RaviShinde19/StackIt/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type UserStore interface {
	ListUsers(ctx context.Context, limit, offset int) ([]models.User, error)
	CountUsers(ctx context.Context) (total, banned int64, err error)
	SetBanned(ctx context.Context, id string, banned bool) error
	SetRole(ctx context.Context, id, role string) error
	SetRefreshToken(ctx context.Context, id, token string) error
}

type ContentStore interface {
	CountQuestions(ctx context.Context) (int64, error)
	CountAnswers(ctx context.Context) (int64, error)
	DeleteQuestion(ctx context.Context, id string) error
	DeleteAnswer(ctx context.Context, id string) error
}

// Sessions revokes refresh sessions of banned users.
type Sessions interface {
	RevokeUser(ctx context.Context, userID string) error
}

type Service struct {
	users    UserStore
	content  ContentStore
	sessions Sessions
	log      *zap.Logger
}

func NewService(users UserStore, content ContentStore, sessions Sessions, log *zap.Logger) *Service {
	return &Service{users: users, content: content, sessions: sessions, log: log}
}

// Stats counts users, questions and answers concurrently.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	var st models.Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.TotalUsers, st.BannedUsers, err = s.users.CountUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		st.TotalQuestions, err = s.content.CountQuestions(gctx)
		return err
	})
	g.Go(func() (err error) {
		st.TotalAnswers, err = s.content.CountAnswers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal(err)
	}
	return &st, nil
}

// UserPage is one page of GET /admin/users.
type UserPage struct {
	Users []models.User `json:"users"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

func (s *Service) ListUsers(ctx context.Context, page, limit int) (*UserPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	users, err := s.users.ListUsers(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if users == nil {
		users = []models.User{}
	}
	return &UserPage{Users: users, Page: page, Limit: limit}, nil
}

// SetBanned bans or unbans a user. Banning also revokes the user's refresh
// token so no new access tokens can be minted.
func (s *Service) SetBanned(ctx context.Context, actorID, userID string, banned bool) error {
	if banned && actorID == userID {
		return apperr.Validation("admins cannot ban themselves")
	}
	if err := s.users.SetBanned(ctx, userID, banned); err != nil {
		return userErr(err)
	}
	if banned {
		if err := s.users.SetRefreshToken(ctx, userID, ""); err != nil {
			return userErr(err)
		}
		if err := s.sessions.RevokeUser(ctx, userID); err != nil {
			return apperr.Internal(err)
		}
	}
	s.log.Info("user ban changed",
		zap.String("admin_id", actorID), zap.String("user_id", userID), zap.Bool("banned", banned))
	return nil
}

func (s *Service) SetRole(ctx context.Context, actorID, userID, role string) error {
	if !models.ValidRole(role) {
		return apperr.Validation("role must be guest, user or admin")
	}
	if actorID == userID && role != models.RoleAdmin {
		return apperr.Validation("admins cannot demote themselves")
	}
	if err := s.users.SetRole(ctx, userID, role); err != nil {
		return userErr(err)
	}
	s.log.Info("user role changed",
		zap.String("admin_id", actorID), zap.String("user_id", userID), zap.String("role", role))
	return nil
}

func (s *Service) DeleteQuestion(ctx context.Context, id string) error {
	err := s.content.DeleteQuestion(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("question not found")
	}
	if err != nil {
		return apperr.Internal(err)
	}
	s.log.Info("question deleted", zap.String("question_id", id))
	return nil
}

func (s *Service) DeleteAnswer(ctx context.Context, id string) error {
	err := s.content.DeleteAnswer(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("answer not found")
	}
	if err != nil {
		return apperr.Internal(err)
	}
	s.log.Info("answer deleted", zap.String("answer_id", id))
	return nil
}

func userErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("user not found")
	}
	return apperr.Internal(err)
}

// ── HTTP ─────────────────────────────────────────────────

type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes mounts under /admin behind RequireAuth and RequireRole(admin).
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/stats", h.Stats)
	r.Get("/users", h.ListUsers)
	r.Post("/users/{id}/ban", h.ban(true))
	r.Post("/users/{id}/unban", h.ban(false))
	r.Put("/users/{id}/role", h.SetRole)
	r.Delete("/questions/{id}", h.DeleteQuestion)
	r.Delete("/answers/{id}", h.DeleteAnswer)
	return r
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st, "Stats fetched")
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.ListUsers(r.Context(),
		httpx.IntQuery(r, "page", 1), httpx.IntQuery(r, "limit", defaultPageSize))
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page, "Users fetched")
}

func (h *Handler) ban(banned bool) http.HandlerFunc {
	msg := "User unbanned"
	if banned {
		msg = "User banned"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := middleware.IdentityFrom(r.Context())
		if err := h.svc.SetBanned(r.Context(), actor.ID, chi.URLParam(r, "id"), banned); err != nil {
			httpx.Error(w, r, h.log, err)
			return
		}
		httpx.JSON(w, http.StatusOK, struct{}{}, msg)
	}
}

func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.IdentityFrom(r.Context())
	var req struct {
		Role string `json:"role"`
	}
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	if err := h.svc.SetRole(r.Context(), actor.ID, chi.URLParam(r, "id"), req.Role); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, struct{}{}, "User role updated")
}

func (h *Handler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteQuestion(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, struct{}{}, "Question deleted")
}

func (h *Handler) DeleteAnswer(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAnswer(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, struct{}{}, "Answer deleted")
}
