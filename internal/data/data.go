// Package data owns the shared backing resources: the redis client every
// repository writes through and the worker pool used for upstream fan-out.
package data

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/startpage-backend/internal/conf"
	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
	"github.com/lk2023060901/startpage-backend/internal/pkg/redis"
	"github.com/lk2023060901/startpage-backend/internal/pkg/workerpool"
)

type Data struct {
	Redis *redis.Client
	Pool  *workerpool.Pool
}

// NewData 初始化数据层. The returned cleanup closes everything NewData
// opened and must be called once.
func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	rdb, err := redis.New(&config.Redis, log.Named("redis"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	pool, err := workerpool.New(&config.WorkerPool, log.Named("workerpool"))
	if err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("failed to init worker pool: %w", err)
	}

	cleanup := func() {
		log.Info("cleaning up data resources")
		pool.Release(5 * time.Second)
		if err := rdb.Close(); err != nil {
			log.Warn("failed to close redis", zap.Error(err))
		}
	}

	return &Data{Redis: rdb, Pool: pool}, cleanup, nil
}
