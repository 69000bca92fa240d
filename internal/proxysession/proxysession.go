// Package proxysession keeps per-visitor login state for sites opened
// through the in-page proxy, so a visitor can restore a session on another
// visit.
package proxysession

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"
	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
	"github.com/lk2023060901/startpage-backend/internal/pkg/validator"
)

const (
	MaxSessionBytes = 16 << 10
	MaxHosts        = 50
	// Retention is refreshed on every save.
	Retention = 30 * 24 * time.Hour
)

var (
	ErrInvalidHost = apperrors.New(apperrors.ErrProxySessionInvalidHost)
	ErrNotFound    = apperrors.New(apperrors.ErrProxySessionNotFound)
	ErrTooLarge    = apperrors.New(apperrors.ErrProxySessionTooLarge)
	ErrInvalidData = apperrors.New(apperrors.ErrInvalidParams, "session must be a JSON object")
)

// Session is one saved host session. Data is opaque to the server.
type Session struct {
	Host    string          `json:"host"`
	Data    json.RawMessage `json:"session"`
	SavedAt time.Time       `json:"saved_at"`
}

// Entry is a List row; it omits the session body.
type Entry struct {
	Host    string    `json:"host"`
	SavedAt time.Time `json:"saved_at"`
	Active  bool      `json:"active"`
}

// Store persists sessions per visitor.
type Store interface {
	Put(ctx context.Context, visitorID string, s *Session) error
	Get(ctx context.Context, visitorID, host string) (*Session, error)
	All(ctx context.Context, visitorID string) ([]*Session, error)
	Count(ctx context.Context, visitorID string) (int64, error)
	Remove(ctx context.Context, visitorID, host string) (bool, error)
	SetActive(ctx context.Context, visitorID, host string) error
	Active(ctx context.Context, visitorID string) (string, error)
}

type UseCase struct {
	store  Store
	logger *logger.Logger
	now    func() time.Time
}

// NewUseCase 创建代理会话用例
func NewUseCase(store Store, log *logger.Logger) *UseCase {
	return &UseCase{store: store, logger: log.Named("proxysession"), now: time.Now}
}

// host normalizes raw to a lowercase hostname without port.
func host(raw string) (string, error) {
	h := validator.NormalizeHost(raw)
	if h == "" {
		return "", ErrInvalidHost
	}
	return h, nil
}

// Save stores data for host, replacing any earlier session.
func (uc *UseCase) Save(ctx context.Context, visitorID, rawHost string, data json.RawMessage) (*Session, error) {
	h, err := host(rawHost)
	if err != nil {
		return nil, err
	}
	if len(data) > MaxSessionBytes {
		return nil, ErrTooLarge
	}
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return nil, ErrInvalidData
	}

	if _, err := uc.store.Get(ctx, visitorID, h); apperrors.Is(err, apperrors.ErrProxySessionNotFound) {
		n, err := uc.store.Count(ctx, visitorID)
		if err != nil {
			return nil, err
		}
		if n >= MaxHosts {
			return nil, apperrors.New(apperrors.ErrProxySessionTooLarge, "too many saved hosts")
		}
	} else if err != nil {
		return nil, err
	}

	s := &Session{Host: h, Data: data, SavedAt: uc.now().UTC()}
	if err := uc.store.Put(ctx, visitorID, s); err != nil {
		return nil, err
	}
	uc.logger.Debug("proxy session saved", zap.String("visitor_id", visitorID), zap.String("host", h))
	return s, nil
}

// Load returns the saved session for host or ErrNotFound.
func (uc *UseCase) Load(ctx context.Context, visitorID, rawHost string) (*Session, error) {
	h, err := host(rawHost)
	if err != nil {
		return nil, err
	}
	return uc.store.Get(ctx, visitorID, h)
}

// Apply marks host as the session the proxy should replay. It reports
// false when nothing is saved for host.
func (uc *UseCase) Apply(ctx context.Context, visitorID, rawHost string) (bool, error) {
	h, err := host(rawHost)
	if err != nil {
		return false, err
	}
	if _, err := uc.store.Get(ctx, visitorID, h); err != nil {
		if apperrors.Is(err, apperrors.ErrProxySessionNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := uc.store.SetActive(ctx, visitorID, h); err != nil {
		return false, err
	}
	return true, nil
}

// List returns the visitor's saved hosts sorted by name.
func (uc *UseCase) List(ctx context.Context, visitorID string) ([]Entry, error) {
	all, err := uc.store.All(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	active, err := uc.store.Active(ctx, visitorID)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(all))
	for _, s := range all {
		out = append(out, Entry{Host: s.Host, SavedAt: s.SavedAt, Active: s.Host == active})
	}
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.Host, b.Host) })
	return out, nil
}

// Delete forgets host. Deleting an unknown host is ErrNotFound.
func (uc *UseCase) Delete(ctx context.Context, visitorID, rawHost string) error {
	h, err := host(rawHost)
	if err != nil {
		return err
	}
	ok, err := uc.store.Remove(ctx, visitorID, h)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
