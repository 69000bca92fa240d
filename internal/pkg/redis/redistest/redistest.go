// Package redistest starts an in-memory redis for repository tests.
package redistest

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
	"github.com/lk2023060901/startpage-backend/internal/pkg/redis"
)

// New returns a Client backed by a fresh miniredis that is torn down with t.
func New(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	client := redis.NewFromUniversal(raw, logger.NewNop())
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}
