package service

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
	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
	"github.com/lk2023060901/startpage-backend/internal/pkg/redis/redistest"
	"github.com/lk2023060901/startpage-backend/internal/settings/biz"
	"github.com/lk2023060901/startpage-backend/internal/settings/data"
	"github.com/lk2023060901/startpage-backend/internal/visitor"
)

const testVisitor = "4f9c2a56-8a8e-4c1b-9a0e-1f2d3c4b5a69"

type envelope struct {
	Code    int              `json:"code"`
	Message string           `json:"message"`
	Data    SettingsResponse `json:"data"`
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	client, _ := redistest.New(t)
	uc := biz.NewSettingsUseCase(data.NewSettingsRepo(client), "", logger.NewNop())
	svc := NewSettingsService(uc, logger.NewNop())

	r := gin.New()
	r.Use(visitor.Middleware(visitor.Options{CookieName: "sp_vid"}))
	svc.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func do(t *testing.T, r *gin.Engine, method, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, "/api/v1/settings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "sp_vid", Value: testVisitor})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestSettingsEndpoints(t *testing.T) {
	r := setupRouter(t)

	w, env := do(t, r, http.MethodGet, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, env.Data.DefaultEngine)
	assert.Equal(t, "https://duckduckgo.com", env.Data.EffectiveEngine)
	assert.Equal(t, "https://duckduckgo.com/?q=%s", env.Data.SearchTemplate)
	assert.Nil(t, env.Data.UpdatedAt)

	w, env = do(t, r, http.MethodPut, `{"default_engine":"https://www.bing.com/","panic_key":"~"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://www.bing.com/", env.Data.DefaultEngine)
	assert.Equal(t, "https://www.bing.com", env.Data.EffectiveEngine)
	assert.Equal(t, "https://www.bing.com/?q=%s", env.Data.SearchTemplate)
	assert.NotNil(t, env.Data.UpdatedAt)

	_, env = do(t, r, http.MethodGet, "")
	assert.Equal(t, "~", env.Data.PanicKey)

	w, env = do(t, r, http.MethodPut, `{"default_engine":"bing"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.ErrSettingsInvalidEngine, env.Code)

	w, _ = do(t, r, http.MethodPut, `{"default_engine":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodDelete, "")
	assert.Equal(t, http.StatusOK, w.Code)

	_, env = do(t, r, http.MethodGet, "")
	assert.Empty(t, env.Data.DefaultEngine)
	assert.Empty(t, env.Data.PanicKey)
}
