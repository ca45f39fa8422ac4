package infra

import (
	"context"
	"strconv"
	"strings"
	"time"

	"marketplace-gateway/middleware/security/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore agrega os desfechos do gateway no Redis, com as mesmas
// visões do MemoryStatsStore:
//
//	<prefix>:outcomes          hash desfecho -> contagem
//	<prefix>:routes:allowed    hash "METHOD path" -> liberadas
//	<prefix>:routes:denied     hash "METHOD path" -> bloqueadas
//	<prefix>:window:<instante> hash allowed/denied por minuto ou hora
//	<prefix>:denied_keys       zset identificador -> bloqueios
//
// Só as chaves de janela e o zset expiram. O zset guarda apenas quem foi
// bloqueado; liberações por identificador não são contadas aqui.
type RedisStatsStore struct {
	rdb *redis.Client

	prefix    string
	ttl       time.Duration
	stamp     string // layout do instante da janela; vazio desliga
	trackKeys bool
	topKeys   int64
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

// WithStatsBucket escolhe a granularidade da série: "minute", "hour" ou
// "none".
func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		switch strings.ToLower(strings.TrimSpace(bucket)) {
		case "hour":
			s.stamp = "2006010215"
		case "none":
			s.stamp = ""
		default:
			s.stamp = "200601021504"
		}
	}
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

// WithStatsTopKeys limita quantos identificadores o Snapshot devolve.
func WithStatsTopKeys(n int) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if n > 0 {
			s.topKeys = int64(n)
		}
	}
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:     rdb,
		prefix:  "gateway:stats",
		ttl:     24 * time.Hour,
		stamp:   "200601021504",
		topKeys: 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

func verdict(o domain.Outcome) string {
	if passed(o) {
		return "allowed"
	}
	return "denied"
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.OutcomeEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	outcome := ev.Outcome
	if outcome == "" {
		outcome = "unknown"
	}
	v := verdict(outcome)
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.key("outcomes"), string(outcome), 1)
	pipe.HIncrBy(ctx, s.key("routes", v), ev.Method+" "+ev.Path, 1)

	if s.stamp != "" {
		w := s.key("window", at.UTC().Format(s.stamp))
		pipe.HIncrBy(ctx, w, v, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, w, s.ttl)
		}
	}

	if s.trackKeys && v == "denied" && ev.Identifier != "" {
		z := s.key("denied_keys")
		pipe.ZIncrBy(ctx, z, 1, ev.Identifier)
		if s.ttl > 0 {
			pipe.Expire(ctx, z, s.ttl)
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Window devolve liberadas e bloqueadas na janela que contém at.
func (s *RedisStatsStore) Window(ctx context.Context, at time.Time) (Counters, error) {
	if s.stamp == "" {
		return Counters{}, nil
	}
	m, err := s.rdb.HGetAll(ctx, s.key("window", at.UTC().Format(s.stamp))).Result()
	if err != nil {
		return Counters{}, err
	}
	return Counters{Allowed: parseCount(m["allowed"]), Denied: parseCount(m["denied"])}, nil
}

// Snapshot lê as visões agregadas num único round trip.
func (s *RedisStatsStore) Snapshot(ctx context.Context) (StatsSnapshot, error) {
	pipe := s.rdb.Pipeline()
	outcomes := pipe.HGetAll(ctx, s.key("outcomes"))
	allowed := pipe.HGetAll(ctx, s.key("routes", "allowed"))
	denied := pipe.HGetAll(ctx, s.key("routes", "denied"))
	var top *redis.ZSliceCmd
	if s.trackKeys {
		top = pipe.ZRevRangeWithScores(ctx, s.key("denied_keys"), 0, s.topKeys-1)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return StatsSnapshot{}, err
	}

	snap := newStatsSnapshot()
	for o, n := range outcomes.Val() {
		c := parseCount(n)
		snap.ByOutcome[domain.Outcome(o)] = c
		if passed(domain.Outcome(o)) {
			snap.Total.Allowed += c
		} else {
			snap.Total.Denied += c
		}
	}
	for route, n := range allowed.Val() {
		c := snap.ByRoute[route]
		c.Allowed = parseCount(n)
		snap.ByRoute[route] = c
	}
	for route, n := range denied.Val() {
		c := snap.ByRoute[route]
		c.Denied = parseCount(n)
		snap.ByRoute[route] = c
	}
	if top != nil {
		for _, z := range top.Val() {
			id, _ := z.Member.(string)
			snap.ByKey[id] = Counters{Denied: int64(z.Score)}
		}
	}
	return snap, nil
}

func parseCount(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
