package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// RedisEmitter broadcasts engine events on Redis streams. Streams are capped
// with MaxLen so an absent consumer cannot grow them without bound.
type RedisEmitter struct {
	client *redis.Client
	maxLen int64
}

// NewRedisEmitter creates a new RedisEmitter.
func NewRedisEmitter(client *redis.Client, maxLen int64) *RedisEmitter {
	return &RedisEmitter{client: client, maxLen: maxLen}
}

// Emit appends the payload to the given stream as a JSON document.
func (e *RedisEmitter) Emit(ctx context.Context, stream string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return e.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: e.maxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": raw},
	}).Err()
}
