package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RaviShinde19/StackIt/internal/apperr"
	"github.com/RaviShinde19/StackIt/internal/middleware"
	"github.com/RaviShinde19/StackIt/internal/models"
	"github.com/RaviShinde19/StackIt/internal/store/memory"
	"github.com/RaviShinde19/StackIt/internal/token"
)

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewDocuments(), zap.NewNop())

	require.Error(t, svc.Notify(ctx, &models.Notification{Type: models.NotificationAnswer}))

	first := &models.Notification{Recipient: "alice", Type: models.NotificationAnswer, Message: "one", IsRead: true}
	require.NoError(t, svc.Notify(ctx, first))
	assert.False(t, first.IsRead)
	require.NoError(t, svc.Notify(ctx, &models.Notification{Recipient: "alice", Type: models.NotificationMention, Message: "two"}))
	require.NoError(t, svc.Notify(ctx, &models.Notification{Recipient: "bob", Type: models.NotificationAnswer, Message: "other"}))

	ns, err := svc.List(ctx, "alice", false)
	require.NoError(t, err)
	require.Len(t, ns, 2)
	assert.Equal(t, "two", ns[0].Message)

	err = svc.MarkRead(ctx, first.ID.Hex(), "bob")
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "other users cannot mark it")
	require.NoError(t, svc.MarkRead(ctx, first.ID.Hex(), "alice"))

	ns, err = svc.List(ctx, "alice", true)
	require.NoError(t, err)
	require.Len(t, ns, 1)

	n, err := svc.MarkAllRead(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	ns, err = svc.List(ctx, "alice", true)
	require.NoError(t, err)
	assert.Empty(t, ns)
}

func TestHandler(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewDocuments(), zap.NewNop())
	n := &models.Notification{Recipient: "alice", Type: models.NotificationAnswer, Message: "hi"}
	require.NoError(t, svc.Notify(ctx, n))

	r := chi.NewRouter()
	r.Mount("/notifications", NewHandler(svc, zap.NewNop()).Routes())

	do := func(method, path, user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req = req.WithContext(middleware.WithIdentity(req.Context(), token.Identity{ID: user}))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	rr := do(http.MethodGet, "/notifications?unread=true", "alice")
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Data []models.Notification `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Len(t, body.Data, 1)

	assert.Equal(t, http.StatusNotFound, do(http.MethodPost, "/notifications/"+n.ID.Hex()+"/read", "bob").Code)
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/notifications/"+n.ID.Hex()+"/read", "alice").Code)
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/notifications/read-all", "alice").Code)
}
