package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"daq-svr/internal/observability"
	"daq-svr/internal/pipeline"
)

// LatestKey holds the ID of the most recently published run.
const LatestKey = "daq:run:latest"

// metaPrefix marks hash fields that are not channel values.
const metaPrefix = "_"

func CurrentKey(runID string) string { return "daq:run:" + runID + ":current" }

// Publisher mirrors a run's current values into a Redis hash so external
// tools can read them without touching the acquisition process.
type Publisher struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewPublisher(ctx context.Context, addr string, db int, ttl time.Duration, lg *slog.Logger) (*Publisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	p := newPublisher(rdb, ttl, lg)
	p.logger.Info("cache: redis connected", "addr", addr, "db", db)
	return p, nil
}

func newPublisher(rdb *redis.Client, ttl time.Duration, lg *slog.Logger) *Publisher {
	if lg == nil {
		lg = slog.Default()
	}
	return &Publisher{rdb: rdb, ttl: ttl, logger: lg.With("component", "cache")}
}

// Publish writes snap to daq:run:<id>:current and points LatestKey at it.
func (p *Publisher) Publish(ctx context.Context, snap *pipeline.Snapshot) error {
	if snap == nil || snap.RunID == "" {
		return nil
	}
	key := CurrentKey(snap.RunID)
	pipe := p.rdb.TxPipeline()
	pipe.HSet(ctx, key, hashFields(snap))
	pipe.Expire(ctx, key, p.ttl)
	pipe.Set(ctx, LatestKey, snap.RunID, p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		observability.RedisSetErrors.Inc()
		return fmt.Errorf("redis publish %s: %w", key, err)
	}
	return nil
}

// Latest reads back the channel values published for runID.
func (p *Publisher) Latest(ctx context.Context, runID string) (map[string]float64, error) {
	raw, err := p.rdb.HGetAll(ctx, CurrentKey(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read %s: %w", CurrentKey(runID), err)
	}
	return parseValues(raw), nil
}

// LatestRun returns the most recently published run ID.
func (p *Publisher) LatestRun(ctx context.Context) (string, bool) {
	id, err := p.rdb.Get(ctx, LatestKey).Result()
	if err != nil {
		return "", false
	}
	return id, true
}

// Run publishes build's snapshot every interval until ctx is done.
func (p *Publisher) Run(ctx context.Context, interval time.Duration, build func() *pipeline.Snapshot) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := p.Publish(ctx, build()); err != nil {
				p.logger.Error("cache: publish failed", "err", err)
			}
		}
	}
}

func (p *Publisher) Close() error { return p.rdb.Close() }

func hashFields(snap *pipeline.Snapshot) map[string]any {
	out := make(map[string]any, len(snap.Values)+3)
	out[metaPrefix+"dt"] = snap.Datetime
	out[metaPrefix+"elapsed_s"] = strconv.FormatFloat(snap.ElapsedSec, 'f', 3, 64)
	out[metaPrefix+"fix"] = snap.Fix
	for name, v := range snap.Values {
		out[name] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}

func parseValues(raw map[string]string) map[string]float64 {
	out := make(map[string]float64, len(raw))
	for k, s := range raw {
		if strings.HasPrefix(k, metaPrefix) {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			continue
		}
		out[k] = v
	}
	return out
}
