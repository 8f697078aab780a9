package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RaviShinde19/StackIt/internal/apperr"
)

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func TestJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	JSON(rr, http.StatusCreated, map[string]string{"id": "1"}, "created")

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	env := decodeEnvelope(t, rr)
	assert.Equal(t, 201, env.StatusCode)
	assert.True(t, env.Success)
	assert.Equal(t, "created", env.Message)
	assert.Equal(t, map[string]any{"id": "1"}, env.Data)
}

func TestErrorKinds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	rr := httptest.NewRecorder()
	Error(rr, req, zap.NewNop(), apperr.Forbidden("not yours"))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	env := decodeEnvelope(t, rr)
	assert.False(t, env.Success)
	assert.Equal(t, "not yours", env.Message)

	rr = httptest.NewRecorder()
	Error(rr, req, zap.NewNop(), errors.New("connection reset"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	env = decodeEnvelope(t, rr)
	assert.Equal(t, "internal server error", env.Message)
}

func TestDecode(t *testing.T) {
	var v struct{ Name string }
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"Name":"ok"}`))
	require.NoError(t, Decode(httptest.NewRecorder(), req, &v))
	assert.Equal(t, "ok", v.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	err := Decode(httptest.NewRecorder(), req, &v)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestDecodeCapsBodySize(t *testing.T) {
	var v struct{ Name string }
	body := `{"Name":"` + strings.Repeat("x", MaxBodySize) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	err := Decode(httptest.NewRecorder(), req, &v)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "request body is too large", ae.Message)
	assert.Empty(t, v.Name)
}

func TestIntQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=abc&neg=-2", nil)
	assert.Equal(t, 3, IntQuery(req, "page", 1))
	assert.Equal(t, 20, IntQuery(req, "limit", 20))
	assert.Equal(t, 7, IntQuery(req, "neg", 7))
	assert.Equal(t, 1, IntQuery(req, "missing", 1))
}
