package infra

import (
	"context"
	"strconv"
	"strings"
	"time"

	"marketplace-gateway/middleware/security/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimitStore guarda os registros em um sorted set por identificador
// (score = timestamp em ms) e mantém um set com os identificadores conhecidos
// para a limpeza global.
//
// Layout:
//
//	<prefix>:id:<identifier>  ZSET  member "<ts>:<uuid>"
//	<prefix>:ids              SET   identificadores com registros
type RedisRateLimitStore struct {
	rdb *redis.Client

	prefix string
	// recordTTL expira o sorted set inteiro de um identificador inativo.
	recordTTL time.Duration
	scanCount int64
}

type RedisStoreOption func(*RedisRateLimitStore)

func WithRateLimitPrefix(prefix string) RedisStoreOption {
	return func(s *RedisRateLimitStore) { s.prefix = strings.Trim(prefix, ":") }
}

// WithRecordTTL deve ser >= à maior janela configurada.
func WithRecordTTL(d time.Duration) RedisStoreOption {
	return func(s *RedisRateLimitStore) { s.recordTTL = d }
}

func NewRedisRateLimitStore(rdb *redis.Client, opts ...RedisStoreOption) *RedisRateLimitStore {
	s := &RedisRateLimitStore{
		rdb:       rdb,
		prefix:    "gateway:ratelimit",
		recordTTL: 24 * time.Hour,
		scanCount: 100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisRateLimitStore) key(identifier string) string {
	return s.prefix + ":id:" + identifier
}

func (s *RedisRateLimitStore) indexKey() string { return s.prefix + ":ids" }

func (s *RedisRateLimitStore) DeleteBefore(ctx context.Context, cutoff int64) error {
	maxScore := "(" + strconv.FormatInt(cutoff, 10)

	var cursor uint64
	for {
		ids, next, err := s.rdb.SScan(ctx, s.indexKey(), cursor, "", s.scanCount).Result()
		if err != nil {
			return err
		}

		if len(ids) > 0 {
			pipe := s.rdb.Pipeline()
			cards := make([]*redis.IntCmd, len(ids))
			for i, id := range ids {
				pipe.ZRemRangeByScore(ctx, s.key(id), "-inf", maxScore)
				cards[i] = pipe.ZCard(ctx, s.key(id))
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return err
			}

			var empty []any
			for i, c := range cards {
				if c.Val() == 0 {
					empty = append(empty, ids[i])
				}
			}
			if len(empty) > 0 {
				if err := s.rdb.SRem(ctx, s.indexKey(), empty...).Err(); err != nil {
					return err
				}
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *RedisRateLimitStore) Window(ctx context.Context, identifier string, since int64) (domain.WindowStats, error) {
	minScore := strconv.FormatInt(since, 10)
	key := s.key(identifier)

	pipe := s.rdb.Pipeline()
	count := pipe.ZCount(ctx, key, minScore, "+inf")
	oldest := pipe.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{Min: minScore, Max: "+inf", Offset: 0, Count: 1})
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.WindowStats{}, err
	}

	st := domain.WindowStats{Count: int(count.Val())}
	if zs := oldest.Val(); len(zs) > 0 {
		st.Oldest = int64(zs[0].Score)
	}
	return st, nil
}

func (s *RedisRateLimitStore) Insert(ctx context.Context, rec domain.RateLimitRecord) error {
	key := s.key(rec.Identifier)
	member := strconv.FormatInt(rec.Timestamp, 10) + ":" + uuid.NewString()

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(rec.Timestamp), Member: member})
	if s.recordTTL > 0 {
		pipe.PExpire(ctx, key, s.recordTTL)
	}
	pipe.SAdd(ctx, s.indexKey(), rec.Identifier)
	_, err := pipe.Exec(ctx)
	return err
}
