package data

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	snapshotPrefix = "snapshot:"
	streamTxs      = "chainfund.txs"
	snapshotTTL    = 5 * time.Minute
)

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

// SaveSnapshot mirrors a refreshed view-model set so API reads do not hit
// the chain. Snapshots are disposable; TTL bounds staleness.
func SaveSnapshot(ctx context.Context, rdb *redis.Client, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, snapshotPrefix+key, raw, snapshotTTL).Err()
}

func LoadSnapshot(ctx context.Context, rdb *redis.Client, key string, dest interface{}) error {
	raw, err := rdb.Get(ctx, snapshotPrefix+key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// AnnounceTx publishes a confirmed transaction to the event stream.
func AnnounceTx(ctx context.Context, rdb *redis.Client, payload map[string]interface{}) error {
	_, err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamTxs,
		Values: payload,
	}).Result()
	return err
}
