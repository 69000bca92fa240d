package data

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/startpage-backend/internal/analytics/biz"
	"github.com/lk2023060901/startpage-backend/internal/pkg/clientinfo"
	apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"
	"github.com/lk2023060901/startpage-backend/internal/pkg/redis/redistest"
)

var day = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func visit(sid, page string, at time.Time) *biz.Visit {
	return &biz.Visit{
		SessionID:   sid,
		Page:        page,
		Request:     clientinfo.Request{IP: "203.0.113.1", Cloudflare: clientinfo.Cloudflare{IPCountry: "DE"}},
		BrowserData: json.RawMessage(`{"browser":"Firefox"}`),
		Timestamp:   at,
	}
}

func TestVisitsAndTotals(t *testing.T) {
	ctx := context.Background()
	client, _ := redistest.New(t)
	repo := NewAnalyticsRepo(client, Options{})

	empty, err := repo.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, &biz.Totals{}, empty)

	require.NoError(t, repo.SaveVisit(ctx, visit("s1", "/", day)))
	require.NoError(t, repo.SaveVisit(ctx, visit("s1", "/movies", day.Add(time.Minute))))
	require.NoError(t, repo.SaveVisit(ctx, visit("s2", "/", day.Add(2*time.Minute))))
	require.NoError(t, repo.SaveVisit(ctx, visit("s3", "/", day.AddDate(0, 0, 1))))

	totals, err := repo.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), totals.PageViews)
	assert.Equal(t, int64(3), totals.UniqueVisitors)
	assert.True(t, totals.FirstVisit.Equal(day))

	daily, err := repo.Daily(ctx, "2026-05-04")
	require.NoError(t, err)
	assert.Equal(t, int64(3), daily.PageViews)
	assert.Equal(t, int64(2), daily.UniqueVisitors)
	assert.Equal(t, map[string]int64{"/": 2, "/movies": 1}, daily.Pages)

	none, err := repo.Daily(ctx, "2020-01-01")
	require.NoError(t, err)
	assert.Zero(t, none.PageViews)
	assert.Empty(t, none.Pages)

	n, err := repo.SessionCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	got, err := repo.RecentVisits(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s3", got[0].SessionID)
	assert.Equal(t, "s2", got[1].SessionID)
	assert.Equal(t, "DE", got[0].Country())
	assert.JSONEq(t, `{"browser":"Firefox"}`, string(got[0].BrowserData))

	got, err = repo.RecentVisits(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "/movies", got[0].Page)
}

func TestCounters(t *testing.T) {
	ctx := context.Background()
	client, mr := redistest.New(t)
	repo := NewAnalyticsRepo(client, Options{})

	require.NoError(t, repo.IncrCounter(ctx, "security", "2026-05-04"))
	require.NoError(t, repo.IncrCounter(ctx, "security", "2026-05-04"))
	require.NoError(t, repo.IncrCounter(ctx, "turnstile_success", "2026-05-04"))
	require.NoError(t, repo.IncrCounter(ctx, "security", "2026-05-03"))

	got, err := repo.Counters(ctx, "2026-05-04")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"security": 2, "turnstile_success": 1}, got)
	assert.Equal(t, DailyRetention, mr.TTL("counter:security:2026-05-04"))

	got, err = repo.Counters(ctx, "2019-01-01")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEventsExpireFromIndex(t *testing.T) {
	ctx := context.Background()
	client, mr := redistest.New(t)
	repo := NewAnalyticsRepo(client, Options{EventTTL: time.Hour})

	e := &biz.Event{Type: "click", SessionID: "s1", Data: json.RawMessage(`{"x":1}`), Timestamp: day}
	require.NoError(t, repo.SaveEvent(ctx, e))

	got, err := repo.RecentEvents(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "click", got[0].Type)
	assert.JSONEq(t, `{"x":1}`, string(got[0].Data))

	mr.FastForward(2 * time.Hour)

	got, err = repo.RecentEvents(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	members, err := mr.ZMembers(eventsIndex)
	if err == nil {
		assert.Empty(t, members)
	}
}

func TestDDoSRecords(t *testing.T) {
	ctx := context.Background()
	client, _ := redistest.New(t)
	repo := NewAnalyticsRepo(client, Options{})

	require.NoError(t, repo.SaveDDoS(ctx, &biz.DDoSRecord{SessionID: "s1", DDoSProtected: true, Timestamp: day, Country: "NL"}))

	got, err := repo.RecentDDoS(ctx, 0, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].DDoSProtected)
	assert.Equal(t, "NL", got[0].Country)

	none, err := repo.RecentDDoS(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStorageErrors(t *testing.T) {
	ctx := context.Background()
	client, mr := redistest.New(t)
	repo := NewAnalyticsRepo(client, Options{})
	mr.SetError("ERR storage down")

	assert.True(t, apperrors.Is(repo.SaveVisit(ctx, visit("s1", "/", day)), apperrors.ErrStorage))
	assert.True(t, apperrors.Is(repo.IncrCounter(ctx, "x", "2026-05-04"), apperrors.ErrStorage))

	_, err := repo.Totals(ctx)
	assert.True(t, apperrors.Is(err, apperrors.ErrStorage))
	_, err = repo.Counters(ctx, "2026-05-04")
	assert.True(t, apperrors.Is(err, apperrors.ErrStorage))
	_, err = repo.RecentVisits(ctx, 0, 10)
	assert.True(t, apperrors.Is(err, apperrors.ErrStorage))
}
