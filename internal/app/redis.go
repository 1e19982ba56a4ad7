package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"goride/internal/config"
)

// keyspaces maps the key prefixes the server writes to the collection reported for them.
var keyspaces = []struct {
	prefix     string
	collection string
}{
	{"idempotency:", "idempotency"},
	{"ride:location:", "ride_locations"},
}

// NewRedisClient connects to Redis for idempotency records, driver locations and the
// cross-instance event bus. Commands are traced as New Relic datastore segments when
// nrApp is set.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, nrApp *newrelic.Application) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if nrApp != nil {
		client.AddHook(&nrRedisHook{})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}

	return client, nil
}

// nrRedisHook reports Redis commands on the request's New Relic transaction.
type nrRedisHook struct{}

func (h *nrRedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *nrRedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if txn := newrelic.FromContext(ctx); txn != nil {
			defer datastoreSegment(txn, cmd.Name(), collectionFor(cmd)).End()
		}
		return next(ctx, cmd)
	}
}

func (h *nrRedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if txn := newrelic.FromContext(ctx); txn != nil && len(cmds) > 0 {
			defer datastoreSegment(txn, "pipeline", collectionFor(cmds[0])).End()
		}
		return next(ctx, cmds)
	}
}

func datastoreSegment(txn *newrelic.Transaction, op, collection string) *newrelic.DatastoreSegment {
	return &newrelic.DatastoreSegment{
		StartTime:  txn.StartSegmentNow(),
		Product:    newrelic.DatastoreRedis,
		Operation:  op,
		Collection: collection,
	}
}

// collectionFor names the keyspace a command touches. Pub/sub traffic is reported as "events".
func collectionFor(cmd redis.Cmder) string {
	switch cmd.Name() {
	case "publish", "subscribe", "unsubscribe", "psubscribe", "punsubscribe":
		return "events"
	}
	args := cmd.Args()
	if len(args) < 2 {
		return "redis"
	}
	key, ok := args[1].(string)
	if !ok {
		return "redis"
	}
	for _, ks := range keyspaces {
		if strings.HasPrefix(key, ks.prefix) {
			return ks.collection
		}
	}
	return "redis"
}
