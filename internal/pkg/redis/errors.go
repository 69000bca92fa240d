package redis

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

// ErrNil is returned by reads of a missing key or field.
var ErrNil = redis.Nil

// IsNil reports whether err means "key does not exist".
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

// IsClosed reports whether the client has been closed.
func IsClosed(err error) bool {
	return errors.Is(err, redis.ErrClosed)
}
