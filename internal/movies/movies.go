package movies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"
	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
	"github.com/lk2023060901/startpage-backend/internal/pkg/metrics"
	"github.com/lk2023060901/startpage-backend/internal/pkg/redis"
	"github.com/lk2023060901/startpage-backend/internal/pkg/workerpool"
)

// Kind names a cached TMDB list.
type Kind string

const (
	KindPopular  Kind = "popular"
	KindTopRated Kind = "top_rated"
	KindUpcoming Kind = "upcoming"
)

func (k Kind) Valid() bool {
	switch k {
	case KindPopular, KindTopRated, KindUpcoming:
		return true
	}
	return false
}

const maxQueryLen = 100

// Home is the first page of every list, fetched together for the landing
// view.
type Home struct {
	Popular  []Movie `json:"popular"`
	TopRated []Movie `json:"top_rated"`
	Upcoming []Movie `json:"upcoming"`
}

type Service struct {
	client  *Client
	rdb     *redis.Client
	pool    *workerpool.Pool
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewService wires the client to the cache. rdb may be nil to disable
// caching.
func NewService(client *Client, rdb *redis.Client, pool *workerpool.Pool, m *metrics.Metrics, log *logger.Logger) *Service {
	ttl := client.cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{client: client, rdb: rdb, pool: pool, ttl: ttl, metrics: m, logger: log.Named("movies")}
}

func validPage(page int) error {
	if page < 1 || page > MaxPage {
		return apperrors.New(apperrors.ErrInvalidParams, fmt.Sprintf("page must be between 1 and %d", MaxPage))
	}
	return nil
}

func cacheKey(kind Kind, page int) string {
	return fmt.Sprintf("movies:%s:%d", kind, page)
}

// List returns one page of kind, from the cache when possible.
func (s *Service) List(ctx context.Context, kind Kind, page int) (*Page, error) {
	if !kind.Valid() {
		return nil, apperrors.New(apperrors.ErrInvalidParams, "unknown list "+string(kind))
	}
	if err := validPage(page); err != nil {
		return nil, err
	}

	key := cacheKey(kind, page)
	if p, ok := s.cached(ctx, key); ok {
		return p, nil
	}

	var (
		p   *Page
		err error
	)
	switch kind {
	case KindPopular:
		p, err = s.client.Popular(ctx, page)
	case KindTopRated:
		p, err = s.client.TopRated(ctx, page)
	case KindUpcoming:
		p, err = s.client.Upcoming(ctx, page)
	}
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, p)
	return p, nil
}

func (s *Service) cached(ctx context.Context, key string) (*Page, bool) {
	if s.rdb == nil {
		return nil, false
	}
	raw, err := s.rdb.Get(ctx, key)
	if err != nil {
		if !redis.IsNil(err) {
			s.logger.Warn("movie cache read failed", zap.String("key", key), zap.Error(err))
		}
		s.metrics.RecordCache("movies", false)
		return nil, false
	}
	var p Page
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.metrics.RecordCache("movies", false)
		return nil, false
	}
	s.metrics.RecordCache("movies", true)
	return &p, true
}

func (s *Service) store(ctx context.Context, key string, p *Page) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.Warn("movie cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Search is never cached.
func (s *Service) Search(ctx context.Context, query string, page int) (*Page, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.New(apperrors.ErrInvalidParams, "query is required")
	}
	if len(query) > maxQueryLen {
		return nil, apperrors.New(apperrors.ErrInvalidParams, "query is too long")
	}
	if err := validPage(page); err != nil {
		return nil, err
	}
	return s.client.Search(ctx, query, page)
}

func (s *Service) Details(ctx context.Context, id int64) (*Details, error) {
	if id <= 0 {
		return nil, apperrors.New(apperrors.ErrInvalidParams, "invalid movie id")
	}
	return s.client.Details(ctx, id)
}

func (s *Service) Recommendations(ctx context.Context, id int64) (*Page, error) {
	if id <= 0 {
		return nil, apperrors.New(apperrors.ErrInvalidParams, "invalid movie id")
	}
	return s.client.Recommendations(ctx, id)
}

// Home loads the three lists concurrently. A list that fails comes back
// empty; Home only fails when all of them do.
func (s *Service) Home(ctx context.Context) (*Home, error) {
	if !s.client.Configured() {
		return nil, ErrNotConfigured
	}

	h := &Home{Popular: []Movie{}, TopRated: []Movie{}, Upcoming: []Movie{}}
	targets := map[Kind]*[]Movie{
		KindPopular:  &h.Popular,
		KindTopRated: &h.TopRated,
		KindUpcoming: &h.Upcoming,
	}

	g := s.pool.NewGroup(ctx)
	for kind, dst := range targets {
		g.Go(func(ctx context.Context) error {
			p, err := s.List(ctx, kind, 1)
			if err != nil {
				return fmt.Errorf("%s: %w", kind, err)
			}
			*dst = p.Results
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		return h, nil
	}

	s.logger.Warn("movie home partially failed", zap.Error(err))
	if len(h.Popular)+len(h.TopRated)+len(h.Upcoming) == 0 {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperrors.Wrap(err, apperrors.ErrMoviesUpstream)
	}
	return h, nil
}
