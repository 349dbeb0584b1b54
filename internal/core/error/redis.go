package errx

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

// WrapRedis maps Redis errors to the unified AppError type.
func WrapRedis(err error) *AppError {
	if err == nil {
		return nil
	}

	if errors.Is(err, redis.Nil) {
		return New(err, KindConversation, RedisNotFoundMessage)
	}

	return New(err, KindConversation, RedisErrorMessage)
}
