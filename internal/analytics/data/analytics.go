package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/lk2023060901/startpage-backend/internal/analytics/biz"
	apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"
	"github.com/lk2023060901/startpage-backend/internal/pkg/redis"
)

const (
	sessionsIndex = "sessions:index"
	eventsIndex   = "events:index"
	ddosIndex     = "ddos:index"

	totalViews      = "total:views"
	totalVisitors   = "total:visitors"
	totalFirstVisit = "total:first_visit"

	// DailyRetention bounds how long per-day counters are kept.
	DailyRetention = 90 * 24 * time.Hour
)

func dailyViews(date string) string    { return "daily:" + date + ":views" }
func dailyVisitors(date string) string { return "daily:" + date + ":visitors" }
func dailyPages(date string) string    { return "daily:" + date + ":pages" }
func counterKey(name, date string) string {
	return "counter:" + name + ":" + date
}

// Options sets record lifetimes.
type Options struct {
	SessionTTL time.Duration
	EventTTL   time.Duration
}

type analyticsRepo struct {
	rdb  *redis.Client
	opts Options
}

// NewAnalyticsRepo 创建基于 redis 的统计仓储
func NewAnalyticsRepo(rdb *redis.Client, opts Options) biz.AnalyticsRepo {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * 24 * time.Hour
	}
	if opts.EventTTL <= 0 {
		opts.EventTTL = 7 * 24 * time.Hour
	}
	return &analyticsRepo{rdb: rdb, opts: opts}
}

func storageErr(err error, op string) error {
	return apperrors.Wrap(err, apperrors.ErrStorage, op)
}

// saveIndexed writes a JSON record with ttl, adds it to index scored by its
// timestamp and drops index entries older than ttl.
func saveIndexed(ctx context.Context, pipe goredis.Pipeliner, index, key string, record any, at time.Time, ttl time.Duration) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	ms := at.UnixMilli()
	pipe.Set(ctx, key, raw, ttl)
	pipe.ZAdd(ctx, index, goredis.Z{Score: float64(ms), Member: key})
	pipe.ZRemRangeByScore(ctx, index, "-inf", "("+strconv.FormatInt(ms-ttl.Milliseconds(), 10))
	return nil
}

func (r *analyticsRepo) SaveVisit(ctx context.Context, v *biz.Visit) error {
	date := biz.DateKey(v.Timestamp)
	key := fmt.Sprintf("session:%s:%d", v.SessionID, v.Timestamp.UnixMilli())

	pipe := r.rdb.TxPipeline()
	if err := saveIndexed(ctx, pipe, sessionsIndex, key, v, v.Timestamp, r.opts.SessionTTL); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternalServer, "encode visit")
	}

	pipe.Incr(ctx, dailyViews(date))
	pipe.SAdd(ctx, dailyVisitors(date), v.SessionID)
	pipe.HIncrBy(ctx, dailyPages(date), v.Page, 1)
	for _, k := range []string{dailyViews(date), dailyVisitors(date), dailyPages(date)} {
		pipe.Expire(ctx, k, DailyRetention)
	}

	pipe.Incr(ctx, totalViews)
	pipe.SAdd(ctx, totalVisitors, v.SessionID)
	pipe.SetNX(ctx, totalFirstVisit, v.Timestamp.UTC().Format(time.RFC3339Nano), 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return storageErr(err, "save visit")
	}
	return nil
}

func (r *analyticsRepo) SaveEvent(ctx context.Context, e *biz.Event) error {
	// events may share type, session and millisecond, so each key gets a
	// random suffix
	key := fmt.Sprintf("event:%s:%s:%d:%s", e.Type, e.SessionID, e.Timestamp.UnixMilli(), uuid.NewString()[:8])

	pipe := r.rdb.TxPipeline()
	if err := saveIndexed(ctx, pipe, eventsIndex, key, e, e.Timestamp, r.opts.EventTTL); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternalServer, "encode event")
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return storageErr(err, "save event")
	}
	return nil
}

func (r *analyticsRepo) SaveDDoS(ctx context.Context, rec *biz.DDoSRecord) error {
	key := fmt.Sprintf("ddos:%s:%d", rec.SessionID, rec.Timestamp.UnixMilli())

	pipe := r.rdb.TxPipeline()
	if err := saveIndexed(ctx, pipe, ddosIndex, key, rec, rec.Timestamp, r.opts.SessionTTL); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternalServer, "encode ddos record")
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return storageErr(err, "save ddos record")
	}
	return nil
}

func (r *analyticsRepo) IncrCounter(ctx context.Context, name, date string) error {
	key := counterKey(name, date)
	pipe := r.rdb.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, DailyRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return storageErr(err, "increment counter")
	}
	return nil
}

func (r *analyticsRepo) Totals(ctx context.Context) (*biz.Totals, error) {
	pipe := r.rdb.Pipeline()
	views := pipe.Get(ctx, totalViews)
	visitors := pipe.SCard(ctx, totalVisitors)
	first := pipe.Get(ctx, totalFirstVisit)
	if _, err := pipe.Exec(ctx); err != nil && !redis.IsNil(err) {
		return nil, storageErr(err, "load totals")
	}

	t := &biz.Totals{UniqueVisitors: visitors.Val()}
	t.PageViews, _ = views.Int64()
	if s := first.Val(); s != "" {
		t.FirstVisit, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

func (r *analyticsRepo) Daily(ctx context.Context, date string) (*biz.Daily, error) {
	pipe := r.rdb.Pipeline()
	views := pipe.Get(ctx, dailyViews(date))
	visitors := pipe.SCard(ctx, dailyVisitors(date))
	pages := pipe.HGetAll(ctx, dailyPages(date))
	if _, err := pipe.Exec(ctx); err != nil && !redis.IsNil(err) {
		return nil, storageErr(err, "load daily stats")
	}

	d := &biz.Daily{UniqueVisitors: visitors.Val(), Pages: make(map[string]int64)}
	d.PageViews, _ = views.Int64()
	for page, n := range pages.Val() {
		d.Pages[page], _ = strconv.ParseInt(n, 10, 64)
	}
	return d, nil
}

func (r *analyticsRepo) Counters(ctx context.Context, date string) (map[string]int64, error) {
	keys, err := r.rdb.ScanAll(ctx, "counter:*:"+date, 100)
	if err != nil {
		return nil, storageErr(err, "scan counters")
	}
	out := make(map[string]int64, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	vals, err := r.rdb.MGet(ctx, keys...)
	if err != nil {
		return nil, storageErr(err, "load counters")
	}
	for i, k := range keys {
		s, ok := vals[i].(string)
		if !ok {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(k, "counter:"), ":"+date)
		out[name], _ = strconv.ParseInt(s, 10, 64)
	}
	return out, nil
}

func (r *analyticsRepo) SessionCount(ctx context.Context) (int64, error) {
	n, err := r.rdb.ZCard(ctx, sessionsIndex)
	if err != nil {
		return 0, storageErr(err, "count sessions")
	}
	return n, nil
}

// recent loads a page of index entries newest first. Entries whose record
// has expired are removed from the index.
func recent[T any](ctx context.Context, rdb *redis.Client, index string, offset, limit int) ([]*T, error) {
	out := []*T{}
	if limit <= 0 {
		return out, nil
	}
	keys, err := rdb.ZRevRange(ctx, index, int64(offset), int64(offset+limit-1))
	if err != nil {
		return nil, storageErr(err, "read "+index)
	}
	if len(keys) == 0 {
		return out, nil
	}

	vals, err := rdb.MGet(ctx, keys...)
	if err != nil {
		return nil, storageErr(err, "load records")
	}
	var stale []any
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			stale = append(stale, keys[i])
			continue
		}
		rec := new(T)
		if err := json.Unmarshal([]byte(s), rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	if len(stale) > 0 {
		// best effort; a failure only leaves the entries for next time
		_, _ = rdb.ZRem(ctx, index, stale...)
	}
	return out, nil
}

func (r *analyticsRepo) RecentVisits(ctx context.Context, offset, limit int) ([]*biz.Visit, error) {
	return recent[biz.Visit](ctx, r.rdb, sessionsIndex, offset, limit)
}

func (r *analyticsRepo) RecentEvents(ctx context.Context, offset, limit int) ([]*biz.Event, error) {
	return recent[biz.Event](ctx, r.rdb, eventsIndex, offset, limit)
}

func (r *analyticsRepo) RecentDDoS(ctx context.Context, offset, limit int) ([]*biz.DDoSRecord, error) {
	return recent[biz.DDoSRecord](ctx, r.rdb, ddosIndex, offset, limit)
}
