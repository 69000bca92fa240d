package proxysession

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"
	"github.com/lk2023060901/startpage-backend/internal/visitor"
)

type envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(visitor.Middleware(visitor.Options{CookieName: "sp_vid"}))
	NewService(newUseCase(t)).RegisterRoutes(r)
	return r
}

func call(t *testing.T, r *gin.Engine, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "sp_vid", Value: vid})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestSessionEndpoints(t *testing.T) {
	r := setupRouter(t)

	status, env := call(t, r, http.MethodGet, "/uv/load-session?host=example.com", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, apperrors.ErrProxySessionNotFound, env.Code)

	status, _ = call(t, r, http.MethodPost, "/uv/save-session",
		`{"host":"example.com","session":{"cookies":"sid=1","notes":"","lastUsed":1700000000000}}`)
	assert.Equal(t, http.StatusOK, status)

	status, env = call(t, r, http.MethodGet, "/uv/load-session?host=example.com", "")
	assert.Equal(t, http.StatusOK, status)
	var sess Session
	require.NoError(t, json.Unmarshal(env.Data, &sess))
	assert.Equal(t, "example.com", sess.Host)
	assert.JSONEq(t, `{"cookies":"sid=1","notes":"","lastUsed":1700000000000}`, string(sess.Data))

	status, env = call(t, r, http.MethodPost, "/uv/apply-session", `{"host":"example.com"}`)
	assert.Equal(t, http.StatusOK, status)
	var applied ApplyResponse
	require.NoError(t, json.Unmarshal(env.Data, &applied))
	assert.True(t, applied.Applied)

	status, env = call(t, r, http.MethodGet, "/uv/sessions", "")
	assert.Equal(t, http.StatusOK, status)
	var list []Entry
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.True(t, list[0].Active)

	status, _ = call(t, r, http.MethodDelete, "/uv/session?host=example.com", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestSessionEndpointErrors(t *testing.T) {
	r := setupRouter(t)

	status, env := call(t, r, http.MethodPost, "/uv/save-session", `{"host":"bad host!","session":{}}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperrors.ErrProxySessionInvalidHost, env.Code)

	status, env = call(t, r, http.MethodPost, "/uv/save-session", `{"host":"example.com"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperrors.ErrInvalidParams, env.Code)

	status, env = call(t, r, http.MethodPost, "/uv/apply-session", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperrors.ErrInvalidParams, env.Code)
}
