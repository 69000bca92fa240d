// Package movies proxies The Movie Database so the API key stays on the
// server, and caches list pages in Redis.
package movies

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"
	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
	"github.com/lk2023060901/startpage-backend/internal/pkg/metrics"
)

const (
	DefaultAPIURL       = "https://api.themoviedb.org/3"
	DefaultImageBaseURL = "https://image.tmdb.org/t/p/w500"
	// TMDB refuses pages past 500.
	MaxPage = 500
)

var (
	ErrUpstream      = apperrors.New(apperrors.ErrMoviesUpstream)
	ErrNotFound      = apperrors.New(apperrors.ErrMoviesNotFound)
	ErrNotConfigured = apperrors.New(apperrors.ErrMoviesNotConfigured)
)

type Config struct {
	APIURL        string
	APIKey        string
	ImageBaseURL  string
	FallbackImage string
	Language      string
	Timeout       time.Duration
	CacheTTL      time.Duration
}

// Movie is the card shown on the movies page.
type Movie struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	PosterURL   string  `json:"poster_url"`
	Rating      float64 `json:"rating"`
	ReleaseDate string  `json:"release_date,omitempty"`
}

// Details adds the fields only the single-movie endpoint returns.
type Details struct {
	Movie
	Tagline string   `json:"tagline,omitempty"`
	Runtime int      `json:"runtime,omitempty"`
	Genres  []string `json:"genres"`
}

type Page struct {
	Page         int     `json:"page"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
	Results      []Movie `json:"results"`
}

// Client talks to the TMDB v3 API.
type Client struct {
	cfg     Config
	http    *resty.Client
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewClient 创建 TMDB 客户端
func NewClient(cfg Config, m *metrics.Metrics, log *logger.Logger) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.ImageBaseURL == "" {
		cfg.ImageBaseURL = DefaultImageBaseURL
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(1).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})

	return &Client{cfg: cfg, http: client, metrics: m, logger: log.Named("tmdb")}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool { return c.cfg.APIKey != "" }

func (c *Client) get(ctx context.Context, path string, params map[string]string) (gjson.Result, error) {
	if !c.Configured() {
		return gjson.Result{}, ErrNotConfigured
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("api_key", c.cfg.APIKey).
		SetQueryParam("language", c.cfg.Language).
		SetQueryParams(params).
		Get(path)
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		c.metrics.RecordUpstream("tmdb", nil, time.Since(start))
		return gjson.Result{}, ErrNotFound
	}
	if err == nil && resp.IsError() {
		err = fmt.Errorf("tmdb returned %s: %s", resp.Status(), gjson.GetBytes(resp.Body(), "status_message").String())
	}
	if err == nil && !gjson.ValidBytes(resp.Body()) {
		err = fmt.Errorf("tmdb returned invalid JSON")
	}
	c.metrics.RecordUpstream("tmdb", err, time.Since(start))
	if err != nil {
		c.logger.Error("tmdb request failed", zap.String("path", path), zap.Error(err))
		return gjson.Result{}, apperrors.Wrap(err, apperrors.ErrMoviesUpstream)
	}
	return gjson.ParseBytes(resp.Body()), nil
}

func (c *Client) list(ctx context.Context, path string, page int, params map[string]string) (*Page, error) {
	if params == nil {
		params = map[string]string{}
	}
	params["page"] = strconv.Itoa(page)

	doc, err := c.get(ctx, path, params)
	if err != nil {
		return nil, err
	}

	p := &Page{
		Page:         int(doc.Get("page").Int()),
		TotalPages:   int(doc.Get("total_pages").Int()),
		TotalResults: int(doc.Get("total_results").Int()),
		Results:      []Movie{},
	}
	for _, r := range doc.Get("results").Array() {
		p.Results = append(p.Results, c.movie(r))
	}
	return p, nil
}

func (c *Client) movie(r gjson.Result) Movie {
	poster := c.cfg.FallbackImage
	if path := r.Get("poster_path").String(); path != "" {
		poster = c.cfg.ImageBaseURL + path
	}
	return Movie{
		ID:          r.Get("id").Int(),
		Title:       r.Get("title").String(),
		Overview:    r.Get("overview").String(),
		PosterURL:   poster,
		Rating:      r.Get("vote_average").Float(),
		ReleaseDate: r.Get("release_date").String(),
	}
}

func (c *Client) Popular(ctx context.Context, page int) (*Page, error) {
	return c.list(ctx, "/movie/popular", page, nil)
}

func (c *Client) TopRated(ctx context.Context, page int) (*Page, error) {
	return c.list(ctx, "/movie/top_rated", page, nil)
}

func (c *Client) Upcoming(ctx context.Context, page int) (*Page, error) {
	return c.list(ctx, "/movie/upcoming", page, nil)
}

func (c *Client) Search(ctx context.Context, query string, page int) (*Page, error) {
	return c.list(ctx, "/search/movie", page, map[string]string{"query": query})
}

func (c *Client) Recommendations(ctx context.Context, id int64) (*Page, error) {
	return c.list(ctx, fmt.Sprintf("/movie/%d/recommendations", id), 1, nil)
}

func (c *Client) Details(ctx context.Context, id int64) (*Details, error) {
	doc, err := c.get(ctx, fmt.Sprintf("/movie/%d", id), nil)
	if err != nil {
		return nil, err
	}
	d := &Details{
		Movie:   c.movie(doc),
		Tagline: doc.Get("tagline").String(),
		Runtime: int(doc.Get("runtime").Int()),
		Genres:  []string{},
	}
	for _, g := range doc.Get("genres.#.name").Array() {
		d.Genres = append(d.Genres, g.String())
	}
	return d, nil
}
