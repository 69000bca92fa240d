package biz

import (
	"encoding/json"
	"time"

	"github.com/lk2023060901/startpage-backend/internal/pkg/clientinfo"
)

// Field names follow the browser tracker's camelCase payloads.

// Visit is one page view reported by /api/track.
type Visit struct {
	SessionID string `json:"sessionId"`
	Page      string `json:"page"`
	clientinfo.Request
	BrowserData   json.RawMessage `json:"browserData,omitempty"`
	PageData      json.RawMessage `json:"pageData,omitempty"`
	ClientIPData  json.RawMessage `json:"clientIPData,omitempty"`
	DDoSProtected bool            `json:"ddosProtected"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Country prefers Cloudflare's country header.
func (v *Visit) Country() string {
	return v.Cloudflare.Country()
}

// Event is one custom or Cloudflare event from /api/analytics or /api/cf-track.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Page      string `json:"page,omitempty"`
	clientinfo.Request
	Data          json.RawMessage `json:"eventData,omitempty"`
	BrowserData   json.RawMessage `json:"browserData,omitempty"`
	DDoSProtected *bool           `json:"ddosProtected,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// DDoSRecord is kept whenever an event reports the visitor's DDoS
// protection state.
type DDoSRecord struct {
	SessionID     string    `json:"sessionId"`
	DDoSProtected bool      `json:"ddosProtected"`
	Timestamp     time.Time `json:"timestamp"`
	CFRay         string    `json:"cfRay,omitempty"`
	Country       string    `json:"country"`
}

// TrackRequest is the /api/track body.
type TrackRequest struct {
	SessionID     string          `json:"sessionId"`
	BrowserData   json.RawMessage `json:"browserData"`
	PageData      json.RawMessage `json:"pageData"`
	DDoSProtected bool            `json:"ddosProtected"`
	IPData        json.RawMessage `json:"ipData"`
}

// EventRequest is the /api/cf-track body. /api/analytics bodies are mapped
// onto it by the handler.
type EventRequest struct {
	Type          string          `json:"type"`
	SessionID     string          `json:"sessionId"`
	Page          string          `json:"page"`
	Data          json.RawMessage `json:"data"`
	BrowserData   json.RawMessage `json:"browserData"`
	DDoSProtected *bool           `json:"ddosProtected"`
}

// Totals are the all-time counters.
type Totals struct {
	PageViews      int64     `json:"pageViews"`
	UniqueVisitors int64     `json:"uniqueVisitors"`
	FirstVisit     time.Time `json:"firstVisit,omitzero"`
}

// Daily are one UTC day's counters.
type Daily struct {
	PageViews      int64            `json:"pageViews"`
	UniqueVisitors int64            `json:"uniqueVisitors"`
	Pages          map[string]int64 `json:"pages"`
}

func (d *Daily) empty() bool {
	return d.PageViews == 0 && d.UniqueVisitors == 0 && len(d.Pages) == 0
}

type CountryCount struct {
	Country string `json:"country"`
	Count   int    `json:"count"`
}

type PageViews struct {
	Page  string `json:"page"`
	Views int64  `json:"views"`
}

type BrowserCount struct {
	Browser string `json:"browser"`
	Count   int    `json:"count"`
}

// CloudflareSpecific picks the security counters out of EventCounters.
type CloudflareSpecific struct {
	DDoSEvents             int64 `json:"ddosEvents"`
	TurnstileVerifications int64 `json:"turnstileVerifications"`
	SecurityEvents         int64 `json:"securityEvents"`
}

// Summary is the dashboard overview.
type Summary struct {
	TotalPageViews      int64              `json:"totalPageViews"`
	TotalUniqueVisitors int64              `json:"totalUniqueVisitors"`
	TodayPageViews      int64              `json:"todayPageViews"`
	TodayUniqueVisitors int64              `json:"todayUniqueVisitors"`
	TotalSessions       int64              `json:"totalSessions"`
	FirstVisit          *time.Time         `json:"firstVisit,omitempty"`
	LastUpdate          time.Time          `json:"lastUpdate"`
	RecentCountries     []CountryCount     `json:"recentCountries"`
	TopPages            []PageViews        `json:"topPages"`
	BrowserStats        []BrowserCount     `json:"browserStats"`
	EventCounters       map[string]int64   `json:"eventCounters"`
	CloudflareSpecific  CloudflareSpecific `json:"cloudflareSpecific"`
}

// Detail types accepted by Detailed.
const (
	DetailSessions = "sessions"
	DetailEvents   = "events"
	DetailDDoS     = "ddos"
)

// DetailQuery pages through the raw records.
type DetailQuery struct {
	Limit  int
	Offset int
	Type   string
}

type DateRange struct {
	Oldest *int64 `json:"oldest"`
	Newest *int64 `json:"newest"`
}

type DetailSummary struct {
	TotalSessions   int       `json:"totalSessions"`
	TotalEvents     int       `json:"totalEvents"`
	TotalDDoSEvents int       `json:"totalDDoSEvents"`
	UniqueCountries int       `json:"uniqueCountries"`
	UniqueIPs       int       `json:"uniqueIPs"`
	DateRange       DateRange `json:"dateRange"`
}

type DetailMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	Limit     int       `json:"limit"`
	Offset    int       `json:"offset"`
	Type      string    `json:"type,omitempty"`
}

// Detailed is the raw data view for the admin dashboard.
type Detailed struct {
	TotalStats Totals            `json:"totalStats"`
	DailyStats map[string]*Daily `json:"dailyStats"`
	Sessions   []*Visit          `json:"sessions"`
	Events     []*Event          `json:"events"`
	DDoSEvents []*DDoSRecord     `json:"ddosEvents"`
	Metadata   DetailMetadata    `json:"metadata"`
	Summary    DetailSummary     `json:"summary"`
}
