package biz

import (
	"cmp"
	"context"
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/lk2023060901/startpage-backend/internal/pkg/clientinfo"
	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
)

const (
	// DateLayout keys daily counters by UTC day.
	DateLayout = "2006-01-02"

	DefaultDetailLimit = 100
	MaxDetailLimit     = 1000

	// countrySample is how many of the newest sessions feed RecentCountries.
	countrySample = 50
	historyDays   = 30
	maxPageLen    = 256
)

// Counter names written by the service itself.
const (
	CounterDDoS                  = "ddos_protection"
	CounterSecurity              = "security"
	CounterTurnstileVerification = "turnstile_verification"
	CounterTurnstileSuccess      = "turnstile_success"
	CounterTurnstileFailure      = "turnstile_failure"
)

var eventTypePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,64}$`)

// DateKey formats t as a daily counter key.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// AnalyticsRepo stores visits, events and their counters.
type AnalyticsRepo interface {
	SaveVisit(ctx context.Context, v *Visit) error
	SaveEvent(ctx context.Context, e *Event) error
	SaveDDoS(ctx context.Context, r *DDoSRecord) error
	IncrCounter(ctx context.Context, name, date string) error

	Totals(ctx context.Context) (*Totals, error)
	Daily(ctx context.Context, date string) (*Daily, error)
	Counters(ctx context.Context, date string) (map[string]int64, error)
	SessionCount(ctx context.Context) (int64, error)
	// Recent* return newest first.
	RecentVisits(ctx context.Context, offset, limit int) ([]*Visit, error)
	RecentEvents(ctx context.Context, offset, limit int) ([]*Event, error)
	RecentDDoS(ctx context.Context, offset, limit int) ([]*DDoSRecord, error)
}

// Options configures AnalyticsUseCase.
type Options struct {
	Enabled bool
	// RecentWindow is how many of the newest sessions feed BrowserStats.
	RecentWindow int
	// Clock overrides time.Now.
	Clock func() time.Time
}

type AnalyticsUseCase struct {
	repo   AnalyticsRepo
	opts   Options
	logger *logger.Logger
	now    func() time.Time
}

// NewAnalyticsUseCase 创建统计用例
func NewAnalyticsUseCase(repo AnalyticsRepo, opts Options, log *logger.Logger) *AnalyticsUseCase {
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = 100
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &AnalyticsUseCase{
		repo:   repo,
		opts:   opts,
		logger: log.Named("analytics"),
		now:    opts.Clock,
	}
}

// Enabled reports whether tracking is switched on.
func (uc *AnalyticsUseCase) Enabled() bool {
	return uc.opts.Enabled
}

// TrackVisit records a page view. Storage failures are logged, never
// returned: a tracker must not break the page that calls it.
func (uc *AnalyticsUseCase) TrackVisit(ctx context.Context, req *TrackRequest, meta clientinfo.Request) (*Visit, error) {
	sid := strings.TrimSpace(req.SessionID)
	if sid == "" || len(sid) > 128 {
		return nil, ErrInvalidPayload
	}

	v := &Visit{
		SessionID:     sid,
		Page:          pageOf(req.PageData),
		Request:       meta,
		BrowserData:   req.BrowserData,
		PageData:      req.PageData,
		ClientIPData:  req.IPData,
		DDoSProtected: req.DDoSProtected,
		Timestamp:     uc.now().UTC(),
	}
	if !uc.opts.Enabled {
		return v, nil
	}
	if err := uc.repo.SaveVisit(ctx, v); err != nil {
		uc.logger.Error("store visit failed", zap.String("session_id", sid), zap.Error(err))
	}
	return v, nil
}

// RecordEvent stores a custom event and bumps its daily counter. A
// ddosProtected flag on the event is also kept as a DDoS record.
func (uc *AnalyticsUseCase) RecordEvent(ctx context.Context, req *EventRequest, meta clientinfo.Request) (*Event, error) {
	typ := strings.TrimSpace(req.Type)
	if !eventTypePattern.MatchString(typ) {
		return nil, ErrInvalidPayload
	}

	e := &Event{
		Type:          typ,
		SessionID:     strings.TrimSpace(req.SessionID),
		Page:          req.Page,
		Request:       meta,
		Data:          req.Data,
		BrowserData:   req.BrowserData,
		DDoSProtected: req.DDoSProtected,
		Timestamp:     uc.now().UTC(),
	}
	if !uc.opts.Enabled {
		return e, nil
	}

	log := uc.logger.With(zap.String("event_type", typ), zap.String("session_id", e.SessionID))
	if err := uc.repo.SaveEvent(ctx, e); err != nil {
		log.Error("store event failed", zap.Error(err))
	}
	if err := uc.repo.IncrCounter(ctx, typ, DateKey(e.Timestamp)); err != nil {
		log.Error("bump event counter failed", zap.Error(err))
	}
	if e.DDoSProtected != nil {
		rec := &DDoSRecord{
			SessionID:     e.SessionID,
			DDoSProtected: *e.DDoSProtected,
			Timestamp:     e.Timestamp,
			CFRay:         meta.Cloudflare.Ray,
			Country:       meta.Cloudflare.Country(),
		}
		if err := uc.repo.SaveDDoS(ctx, rec); err != nil {
			log.Error("store ddos record failed", zap.Error(err))
		}
	}
	return e, nil
}

// Count bumps a named counter for today, for callers such as the
// Turnstile verifier. Failures are logged.
func (uc *AnalyticsUseCase) Count(ctx context.Context, names ...string) {
	if !uc.opts.Enabled {
		return
	}
	date := DateKey(uc.now())
	for _, name := range names {
		if err := uc.repo.IncrCounter(ctx, name, date); err != nil {
			uc.logger.Error("bump counter failed", zap.String("counter", name), zap.Error(err))
		}
	}
}

// Summary builds the dashboard overview for the day containing now.
func (uc *AnalyticsUseCase) Summary(ctx context.Context) (*Summary, error) {
	if !uc.opts.Enabled {
		return nil, ErrDisabled
	}
	now := uc.now().UTC()
	date := DateKey(now)

	totals, err := uc.repo.Totals(ctx)
	if err != nil {
		return nil, err
	}
	today, err := uc.repo.Daily(ctx, date)
	if err != nil {
		return nil, err
	}
	sessions, err := uc.repo.SessionCount(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := uc.repo.RecentVisits(ctx, 0, uc.opts.RecentWindow)
	if err != nil {
		return nil, err
	}
	counters, err := uc.repo.Counters(ctx, date)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		TotalPageViews:      totals.PageViews,
		TotalUniqueVisitors: totals.UniqueVisitors,
		TodayPageViews:      today.PageViews,
		TodayUniqueVisitors: today.UniqueVisitors,
		TotalSessions:       sessions,
		LastUpdate:          now,
		RecentCountries:     topCountries(recent[:min(len(recent), countrySample)], 10),
		TopPages:            topPages(today.Pages, 10),
		BrowserStats:        topBrowsers(recent, 5),
		EventCounters:       counters,
		CloudflareSpecific: CloudflareSpecific{
			DDoSEvents:             counters[CounterDDoS],
			TurnstileVerifications: counters[CounterTurnstileVerification],
			SecurityEvents:         counters[CounterSecurity],
		},
	}
	if !totals.FirstVisit.IsZero() {
		fv := totals.FirstVisit
		s.FirstVisit = &fv
	}
	return s, nil
}

// Detailed pages through raw sessions, events and DDoS records and adds
// the last 30 days of daily counters.
func (uc *AnalyticsUseCase) Detailed(ctx context.Context, q DetailQuery) (*Detailed, error) {
	if !uc.opts.Enabled {
		return nil, ErrDisabled
	}
	switch q.Type {
	case "", DetailSessions, DetailEvents, DetailDDoS:
	default:
		return nil, ErrInvalidPayload
	}
	if q.Limit <= 0 {
		q.Limit = DefaultDetailLimit
	}
	q.Limit = min(q.Limit, MaxDetailLimit)
	q.Offset = max(q.Offset, 0)

	now := uc.now().UTC()
	totals, err := uc.repo.Totals(ctx)
	if err != nil {
		return nil, err
	}

	d := &Detailed{
		TotalStats: *totals,
		DailyStats: make(map[string]*Daily),
		Sessions:   []*Visit{},
		Events:     []*Event{},
		DDoSEvents: []*DDoSRecord{},
		Metadata:   DetailMetadata{Timestamp: now, Limit: q.Limit, Offset: q.Offset, Type: q.Type},
	}

	for i := range historyDays {
		date := DateKey(now.AddDate(0, 0, -i))
		day, err := uc.repo.Daily(ctx, date)
		if err != nil {
			return nil, err
		}
		if !day.empty() {
			d.DailyStats[date] = day
		}
	}

	if q.Type == "" || q.Type == DetailSessions {
		if d.Sessions, err = uc.repo.RecentVisits(ctx, q.Offset, q.Limit); err != nil {
			return nil, err
		}
	}
	if q.Type == "" || q.Type == DetailEvents {
		if d.Events, err = uc.repo.RecentEvents(ctx, q.Offset, q.Limit); err != nil {
			return nil, err
		}
	}
	if q.Type == "" || q.Type == DetailDDoS {
		if d.DDoSEvents, err = uc.repo.RecentDDoS(ctx, q.Offset, q.Limit); err != nil {
			return nil, err
		}
	}

	d.Summary = summarize(d)
	return d, nil
}

func summarize(d *Detailed) DetailSummary {
	s := DetailSummary{
		TotalSessions:   len(d.Sessions),
		TotalEvents:     len(d.Events),
		TotalDDoSEvents: len(d.DDoSEvents),
	}
	countries := make(map[string]struct{})
	ips := make(map[string]struct{})
	for _, v := range d.Sessions {
		countries[v.Country()] = struct{}{}
		ips[v.IP] = struct{}{}

		ms := v.Timestamp.UnixMilli()
		if s.DateRange.Oldest == nil || ms < *s.DateRange.Oldest {
			s.DateRange.Oldest = &ms
		}
		if s.DateRange.Newest == nil || ms > *s.DateRange.Newest {
			s.DateRange.Newest = &ms
		}
	}
	s.UniqueCountries = len(countries)
	s.UniqueIPs = len(ips)
	return s
}

// pageOf reads pageData.pathname, defaulting to "/".
func pageOf(pageData []byte) string {
	if p := gjson.GetBytes(pageData, "pathname").String(); p != "" {
		if len(p) > maxPageLen {
			p = p[:maxPageLen]
		}
		return p
	}
	return "/"
}

func browserOf(v *Visit) string {
	if b := gjson.GetBytes(v.BrowserData, "browser").String(); b != "" {
		return b
	}
	return "Unknown"
}

// ranked sorts counts descending, ties by name, and keeps the first n.
func ranked[V cmp.Ordered](counts map[string]V, n int) []string {
	keys := slices.Collect(maps.Keys(counts))
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return keys[:min(len(keys), n)]
}

func topCountries(visits []*Visit, n int) []CountryCount {
	counts := make(map[string]int)
	for _, v := range visits {
		counts[v.Country()]++
	}
	out := make([]CountryCount, 0, n)
	for _, c := range ranked(counts, n) {
		out = append(out, CountryCount{Country: c, Count: counts[c]})
	}
	return out
}

func topBrowsers(visits []*Visit, n int) []BrowserCount {
	counts := make(map[string]int)
	for _, v := range visits {
		counts[browserOf(v)]++
	}
	out := make([]BrowserCount, 0, n)
	for _, b := range ranked(counts, n) {
		out = append(out, BrowserCount{Browser: b, Count: counts[b]})
	}
	return out
}

func topPages(pages map[string]int64, n int) []PageViews {
	out := make([]PageViews, 0, n)
	for _, p := range ranked(pages, n) {
		out = append(out, PageViews{Page: p, Views: pages[p]})
	}
	return out
}
