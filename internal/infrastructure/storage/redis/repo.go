package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tickfolio/internal/application/port"

	"github.com/redis/go-redis/v9"
)

// Repo fans every measurement out three ways: a stream entry for history,
// a field in the latest hash for point lookups, and a pubsub message for
// live consumers.
type Repo struct {
	rdb       *redis.Client
	prefix    string
	ttl       time.Duration
	maxLen    int64
	keyLatest string // prefix + ":latest"
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, maxLen int64) *Repo {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "tickfolio"
	}
	return &Repo{
		rdb:       rdb,
		prefix:    prefix,
		ttl:       ttl,
		maxLen:    maxLen,
		keyLatest: prefix + ":latest",
	}
}

func (r *Repo) StreamKey(name string) string  { return r.prefix + ":" + name }
func (r *Repo) ChannelKey(name string) string { return r.prefix + ":" + name + ":pub" }
func (r *Repo) LatestKey() string             { return r.keyLatest }

func (r *Repo) Append(ctx context.Context, m port.Measurement) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}

	values := make(map[string]any, len(m.Fields)+2)
	values["ts_ms"] = m.Time.UnixMilli()
	for k, v := range m.Tags {
		values["tag:"+k] = v
	}
	for k, v := range m.Fields {
		values[k] = v
	}

	pipe := r.rdb.Pipeline()
	args := &redis.XAddArgs{Stream: r.StreamKey(m.Name), Values: values}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	pipe.XAdd(ctx, args)
	pipe.HSet(ctx, r.keyLatest, m.Name, string(b))
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyLatest, r.ttl)
	}
	pipe.Publish(ctx, r.ChannelKey(m.Name), string(b))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append %s: %w", m.Name, err)
	}
	return nil
}

// Latest returns the newest measurement stored under name.
func (r *Repo) Latest(ctx context.Context, name string) (port.Measurement, bool, error) {
	s, err := r.rdb.HGet(ctx, r.keyLatest, name).Result()
	if err == redis.Nil {
		return port.Measurement{}, false, nil
	}
	if err != nil {
		return port.Measurement{}, false, err
	}
	var m port.Measurement
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return port.Measurement{}, false, err
	}
	return m, true, nil
}

// Close is a no-op: the client is owned by the container.
func (r *Repo) Close() error { return nil }

var _ port.MeasurementStore = (*Repo)(nil)
