package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/startpage-backend/internal/conf"
	"github.com/lk2023060901/startpage-backend/internal/data"
	"github.com/lk2023060901/startpage-backend/internal/navigation/codec"
	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
	"github.com/lk2023060901/startpage-backend/internal/pkg/metrics"
	"github.com/lk2023060901/startpage-backend/internal/pkg/redis/redistest"
	"github.com/lk2023060901/startpage-backend/internal/pkg/workerpool"
)

const desktopUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<h1>start</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "phone.html"), []byte("<h1>phone</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "assets", "app.js"), []byte("console.log(1)"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "index.html"), []byte("<h1>docs</h1>"), 0o644))

	config, err := conf.LoadConfig("")
	require.NoError(t, err)
	config.Server.WebRoot = root

	client, _ := redistest.New(t)
	pool, err := workerpool.New(&workerpool.Config{Size: 2}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { pool.Release(time.Second) })

	m := metrics.New()
	svc := NewServices(config, logger.NewNop(), &data.Data{Redis: client, Pool: pool}, m)
	r, err := NewRouter(config, logger.NewNop(), client, m, svc)
	require.NoError(t, err)
	return r
}

func get(r *gin.Engine, path, ua string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("User-Agent", ua)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	r := setupRouter(t)

	w := get(r, "/health", desktopUA)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = get(r, "/metrics", desktopUA)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "startpage_http_requests_total")
}

func TestStaticFallback(t *testing.T) {
	r := setupRouter(t)

	w := get(r, "/", desktopUA)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "start")
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))

	w = get(r, "/assets/app.js", desktopUA)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "console.log(1)", w.Body.String())

	w = get(r, "/settings", desktopUA)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "start")

	w = get(r, "/docs/", desktopUA)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "docs")

	w = get(r, "/assets/", desktopUA)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "start")

	w = get(r, "/assets/missing.css", desktopUA)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(r, "/api/v1/nothing-here", desktopUA)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":1002`)
}

func TestMobileVisitorsGetPhonePage(t *testing.T) {
	r := setupRouter(t)
	iphone := "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) Mobile/15E148"

	w := get(r, "/", iphone)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/phone.html", w.Header().Get("Location"))

	w = get(r, "/phone.html", iphone)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "phone")

	w = get(r, "/gogames.html", iphone)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/phone.html", w.Header().Get("Location"))

	w = get(r, "/go?url="+url.QueryEscape("github.com"), iphone)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/active/go/"))
}

func TestGoRedirectAndLastDestination(t *testing.T) {
	r := setupRouter(t)

	w := get(r, "/go?url="+url.QueryEscape("github.com"), desktopUA)
	require.Equal(t, http.StatusFound, w.Code)
	c, err := codec.Lookup("xor")
	require.NoError(t, err)
	enc, err := c.Encode("https://github.com")
	require.NoError(t, err)
	assert.Equal(t, "/active/go/"+enc, w.Header().Get("Location"))

	var cookie *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "sp_vid" {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/navigate/last", nil)
	req.Header.Set("User-Agent", desktopUA)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var env struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "https://github.com", env.Data.URL)
}

func TestAPIGuards(t *testing.T) {
	r := setupRouter(t)

	w := get(r, "/api/v1/settings", "curl/8.5.0")
	assert.Equal(t, http.StatusForbidden, w.Code)

	// no admin password configured
	w = get(r, "/api/analytics/summary", desktopUA)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"code":8002`)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/navigate", nil)
	req.Header.Set("Origin", "https://start.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	body := strings.NewReader(`{"input":"weather today"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/navigate", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", desktopUA)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))
}
