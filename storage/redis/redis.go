package redisstore

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/myschool/backend/core"
	"github.com/myschool/backend/core/classroom"
)

const keyPrefix = "rollseq:"

// Open connects to conf.Redis and pings the server.
func Open(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

// sequencer keeps the bucket counters in redis; INCR is atomic across every API instance.
type sequencer struct {
	rdb    redis.Cmdable
	finder classroom.LatestFinder
}

// NewSequencer returns a classroom.Sequencer whose missing counters are seeded through `finder`,
// i.e. from the students already in the record store.
func NewSequencer(rdb redis.Cmdable, finder classroom.LatestFinder) classroom.Sequencer {
	return &sequencer{rdb: rdb, finder: finder}
}

func (s *sequencer) NextSequence(ctx context.Context, b classroom.Bucket) (int, error) {
	key := keyPrefix + b.Key()

	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrap(err, "checking roll sequence")
	}
	if n == 0 {
		seed, err := classroom.SeedFrom(ctx, s.finder, b)
		if err != nil {
			return 0, err
		}
		// only the first writer seeds the counter
		if err = s.rdb.SetNX(ctx, key, seed, 0).Err(); err != nil {
			return 0, errors.Wrap(err, "seeding roll sequence")
		}
	}

	seq, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrap(err, "incrementing roll sequence")
	}
	return int(seq), nil
}
