package turnstile

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	analyticsbiz "github.com/lk2023060901/startpage-backend/internal/analytics/biz"
	analyticsdata "github.com/lk2023060901/startpage-backend/internal/analytics/data"
	apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"
	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
	"github.com/lk2023060901/startpage-backend/internal/pkg/metrics"
	"github.com/lk2023060901/startpage-backend/internal/pkg/redis/redistest"
)

const secret = "1x0000000000000000000000000000000AA"

// fakeSiteverify accepts the token "good" and rejects everything else.
func fakeSiteverify(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		raw, _ := io.ReadAll(r.Body)
		body := gjson.ParseBytes(raw)
		assert.Equal(t, secret, body.Get("secret").String())

		w.Header().Set("Content-Type", "application/json")
		switch body.Get("response").String() {
		case "good":
			_, _ = io.WriteString(w, `{"success":true,"challenge_ts":"2026-05-04T12:00:00Z","hostname":"start.example","action":"search","cdata":"c1","error-codes":[]}`)
		case "explode":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = io.WriteString(w, `{"success":false,"error-codes":["timeout-or-duplicate","weird-code"]}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newVerifier(t *testing.T, url string, rec Recorder) *Verifier {
	return NewVerifier(Config{SecretKey: secret, VerifyURL: url, Timeout: 2 * time.Second, MaxRetries: 1}, rec, metrics.New(), logger.NewNop())
}

func TestVerify(t *testing.T) {
	var hits atomic.Int32
	srv := fakeSiteverify(t, &hits)
	v := newVerifier(t, srv.URL, nil)
	ctx := context.Background()

	res, err := v.Verify(ctx, "good", "203.0.113.1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "start.example", res.Hostname)
	assert.Equal(t, "search", res.Action)
	assert.Equal(t, "c1", res.CData)
	assert.Equal(t, "2026-05-04T12:00:00Z", res.ChallengeTS)
	assert.Empty(t, res.ErrorCodes)
	assert.Empty(t, res.Message())

	res, err = v.Verify(ctx, "stale", "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, []string{"timeout-or-duplicate", "weird-code"}, res.ErrorCodes)
	assert.Equal(t,
		"The response is no longer valid: either is too old or has been used previously, Unknown error: weird-code",
		res.Message())
}

func TestVerifyErrors(t *testing.T) {
	var hits atomic.Int32
	srv := fakeSiteverify(t, &hits)
	ctx := context.Background()

	_, err := newVerifier(t, srv.URL, nil).Verify(ctx, "  ", "")
	assert.ErrorIs(t, err, ErrMissingToken)

	unconfigured := NewVerifier(Config{VerifyURL: srv.URL}, nil, nil, logger.NewNop())
	_, err = unconfigured.Verify(ctx, "good", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Zero(t, hits.Load())

	_, err = newVerifier(t, srv.URL, nil).Verify(ctx, "explode", "")
	assert.True(t, apperrors.Is(err, apperrors.ErrTurnstileUnavailable))
	assert.Equal(t, int32(2), hits.Load(), "one retry on 5xx")
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "Unknown error", ErrorMessage(nil))
	assert.Equal(t, "The secret parameter is missing", ErrorMessage([]string{"missing-input-secret"}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short"))
	assert.Equal(t, "0123456789abcdefghij...", truncate("0123456789abcdefghijKLMNOP"))
}

func TestVerifyEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var hits atomic.Int32
	srv := fakeSiteverify(t, &hits)

	client, _ := redistest.New(t)
	analytics := analyticsbiz.NewAnalyticsUseCase(
		analyticsdata.NewAnalyticsRepo(client, analyticsdata.Options{}),
		analyticsbiz.Options{Enabled: true}, logger.NewNop())

	r := gin.New()
	NewService(newVerifier(t, srv.URL, analytics)).RegisterRoutes(r.Group("/api"))

	call := func(body string) (int, map[string]any, int) {
		req := httptest.NewRequest(http.MethodPost, "/api/verify-turnstile", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("CF-Connecting-IP", "203.0.113.9")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		var env struct {
			Code int            `json:"code"`
			Data map[string]any `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
		return w.Code, env.Data, env.Code
	}

	status, data, _ := call(`{"token":"good","ipData":{"ip":"203.0.113.9"}}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, data["success"])
	assert.Equal(t, "203.0.113.9", data["clientIP"])
	assert.Nil(t, data["errorDetails"])

	status, data, code := call(`{"token":"0123456789abcdefghijKLMNOP"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperrors.ErrTurnstileFailed, code)
	assert.Equal(t, false, data["success"])
	details := data["errorDetails"].(map[string]any)
	assert.Equal(t, []any{"timeout-or-duplicate", "weird-code"}, details["codes"])

	status, _, code = call(`{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperrors.ErrTurnstileMissingToken, code)

	sum, err := analytics.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.CloudflareSpecific.TurnstileVerifications)
	assert.Equal(t, int64(1), sum.EventCounters[analyticsbiz.CounterTurnstileSuccess])
	assert.Equal(t, int64(1), sum.EventCounters[analyticsbiz.CounterTurnstileFailure])

	d, err := analytics.Detailed(context.Background(), analyticsbiz.DetailQuery{Type: analyticsbiz.DetailEvents})
	require.NoError(t, err)
	require.Len(t, d.Events, 2)
	for _, e := range d.Events {
		assert.Equal(t, "turnstile", e.Type)
		assert.NotContains(t, string(e.Data), "KLMNOP", "tokens are stored truncated")
	}
}
