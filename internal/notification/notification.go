// Package notification stores and serves per-user notifications.
package notification

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/RaviShinde19/StackIt/internal/apperr"
	"github.com/RaviShinde19/StackIt/internal/httpx"
	"github.com/RaviShinde19/StackIt/internal/middleware"
	"github.com/RaviShinde19/StackIt/internal/models"
	"github.com/RaviShinde19/StackIt/internal/store"
)

type Store interface {
	InsertNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, recipient string, unreadOnly bool) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, recipient string) error
	MarkAllNotificationsRead(ctx context.Context, recipient string) (int64, error)
}

type Service struct {
	store Store
	log   *zap.Logger
}

func NewService(st Store, log *zap.Logger) *Service {
	return &Service{store: st, log: log}
}

// Notify stores n as unread.
func (s *Service) Notify(ctx context.Context, n *models.Notification) error {
	if n.Recipient == "" {
		return errors.New("notification has no recipient")
	}
	n.IsRead = false
	if err := s.store.InsertNotification(ctx, n); err != nil {
		return err
	}
	s.log.Debug("notification stored", zap.String("recipient", n.Recipient), zap.String("type", n.Type))
	return nil
}

func (s *Service) List(ctx context.Context, recipient string, unreadOnly bool) ([]models.Notification, error) {
	ns, err := s.store.ListNotifications(ctx, recipient, unreadOnly)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if ns == nil {
		ns = []models.Notification{}
	}
	return ns, nil
}

// MarkRead marks one notification read. Notifications of other users are
// reported as not found.
func (s *Service) MarkRead(ctx context.Context, id, recipient string) error {
	err := s.store.MarkNotificationRead(ctx, id, recipient)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("notification not found")
	}
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, recipient string) (int64, error) {
	n, err := s.store.MarkAllNotificationsRead(ctx, recipient)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

// ── HTTP ─────────────────────────────────────────────────

type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes mounts under /notifications; every route needs an identity.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/read-all", h.MarkAllRead)
	r.Post("/{id}/read", h.MarkRead)
	return r
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	ns, err := h.svc.List(r.Context(), id.ID, r.URL.Query().Get("unread") == "true")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ns, "Notifications fetched")
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	if err := h.svc.MarkRead(r.Context(), chi.URLParam(r, "id"), id.ID); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, struct{}{}, "Notification marked as read")
}

func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	n, err := h.svc.MarkAllRead(r.Context(), id.ID)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"updated": n}, "All notifications marked as read")
}
