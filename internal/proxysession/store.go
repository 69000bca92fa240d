package proxysession

import (
	"context"
	"encoding/json"

	apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"
	"github.com/lk2023060901/startpage-backend/internal/pkg/redis"
)

type redisStore struct {
	rdb *redis.Client
}

// NewRedisStore keeps sessions in the hash proxysession:{visitor} (field =
// host) and the active host in proxysession:{visitor}:active.
func NewRedisStore(rdb *redis.Client) Store {
	return &redisStore{rdb: rdb}
}

func hashKey(visitorID string) string   { return "proxysession:" + visitorID }
func activeKey(visitorID string) string { return "proxysession:" + visitorID + ":active" }

func (s *redisStore) Put(ctx context.Context, visitorID string, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternalServer, "encode session")
	}
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, hashKey(visitorID), sess.Host, raw)
	pipe.Expire(ctx, hashKey(visitorID), Retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.ErrStorage, "save proxy session")
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, visitorID, host string) (*Session, error) {
	raw, err := s.rdb.HGet(ctx, hashKey(visitorID), host)
	if redis.IsNil(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStorage, "load proxy session")
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, ErrNotFound
	}
	return &sess, nil
}

func (s *redisStore) All(ctx context.Context, visitorID string) ([]*Session, error) {
	h, err := s.rdb.HGetAll(ctx, hashKey(visitorID))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStorage, "list proxy sessions")
	}
	out := make([]*Session, 0, len(h))
	for _, raw := range h {
		var sess Session
		if err := json.Unmarshal([]byte(raw), &sess); err != nil {
			continue
		}
		out = append(out, &sess)
	}
	return out, nil
}

func (s *redisStore) Count(ctx context.Context, visitorID string) (int64, error) {
	n, err := s.rdb.HLen(ctx, hashKey(visitorID))
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrStorage, "count proxy sessions")
	}
	return n, nil
}

// Remove also clears the active marker when it pointed at host.
func (s *redisStore) Remove(ctx context.Context, visitorID, host string) (bool, error) {
	n, err := s.rdb.HDel(ctx, hashKey(visitorID), host)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrStorage, "delete proxy session")
	}
	if active, err := s.Active(ctx, visitorID); err == nil && active == host {
		_, _ = s.rdb.Del(ctx, activeKey(visitorID))
	}
	return n > 0, nil
}

func (s *redisStore) SetActive(ctx context.Context, visitorID, host string) error {
	if err := s.rdb.Set(ctx, activeKey(visitorID), host, Retention); err != nil {
		return apperrors.Wrap(err, apperrors.ErrStorage, "activate proxy session")
	}
	return nil
}

func (s *redisStore) Active(ctx context.Context, visitorID string) (string, error) {
	h, err := s.rdb.Get(ctx, activeKey(visitorID))
	if redis.IsNil(err) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrStorage, "load active proxy session")
	}
	return h, nil
}
