package data

import (
	"context"
	"encoding/json"

	"github.com/lk2023060901/startpage-backend/internal/navigation/biz"
	apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"
	"github.com/lk2023060901/startpage-backend/internal/pkg/redis"
)

type lastURLRepo struct {
	rdb *redis.Client
}

// NewLastURLRepo keeps the last destination as JSON under nav:last:{visitor}.
func NewLastURLRepo(rdb *redis.Client) biz.LastURLRepo {
	return &lastURLRepo{rdb: rdb}
}

func lastKey(visitorID string) string {
	return "nav:last:" + visitorID
}

func (r *lastURLRepo) SaveLast(ctx context.Context, visitorID string, d *biz.Destination) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternalServer, "encode destination")
	}
	if err := r.rdb.Set(ctx, lastKey(visitorID), raw, biz.LastURLTTL); err != nil {
		return apperrors.Wrap(err, apperrors.ErrStorage, "save last url")
	}
	return nil
}

func (r *lastURLRepo) GetLast(ctx context.Context, visitorID string) (*biz.Destination, error) {
	raw, err := r.rdb.Get(ctx, lastKey(visitorID))
	if redis.IsNil(err) {
		return nil, biz.ErrNoLastURL
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStorage, "load last url")
	}

	var d biz.Destination
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		// unreadable entries are treated as absent
		return nil, biz.ErrNoLastURL
	}
	return &d, nil
}
