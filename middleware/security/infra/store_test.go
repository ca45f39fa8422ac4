package infra

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-gateway/middleware/security/domain"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func newSQLite(t *testing.T) *GormRateLimitStore {
	t.Helper()
	db, err := OpenDatabase("sqlite", filepath.Join(t.TempDir(), "gateway.db"), false)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return NewGormRateLimitStore(db)
}

// cada implementação precisa passar pelo mesmo contrato
func storeContract(t *testing.T, s domain.RateLimitStore) {
	ctx := context.Background()

	for _, rec := range []domain.RateLimitRecord{
		{Identifier: "a", Timestamp: 1000, Endpoint: "e"},
		{Identifier: "a", Timestamp: 2000, Endpoint: "e"},
		{Identifier: "a", Timestamp: 3000, Endpoint: "e"},
		{Identifier: "b", Timestamp: 1500, Endpoint: "e"},
	} {
		require.NoError(t, s.Insert(ctx, rec))
	}

	st, err := s.Window(ctx, "a", 2000)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Count)
	assert.EqualValues(t, 2000, st.Oldest)

	st, err = s.Window(ctx, "missing", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Count)

	// limpeza global: apaga de todos os identificadores
	require.NoError(t, s.DeleteBefore(ctx, 2000))

	st, err = s.Window(ctx, "a", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Count)
	assert.EqualValues(t, 2000, st.Oldest)

	st, err = s.Window(ctx, "b", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Count)
}

func TestMemoryRateLimitStore_Contract(t *testing.T) {
	s := NewMemoryRateLimitStore()
	storeContract(t, s)
	assert.Equal(t, 2, s.Len())
}

func TestRedisRateLimitStore_Contract(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewRedisRateLimitStore(rdb, WithRateLimitPrefix("test:rl:"))
	storeContract(t, s)

	// "b" ficou vazio e saiu do índice
	members, err := mr.SMembers("test:rl:ids")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, members)
}

func TestRedisRateLimitStore_SetsTTL(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewRedisRateLimitStore(rdb, WithRecordTTL(time.Minute))

	require.NoError(t, s.Insert(context.Background(), domain.RateLimitRecord{Identifier: "x", Timestamp: 1}))
	assert.Equal(t, time.Minute, mr.TTL("gateway:ratelimit:id:x"))
}

func TestRedisRateLimitStore_ErrorWhenDown(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewRedisRateLimitStore(rdb)
	mr.Close()

	_, err := s.Window(context.Background(), "x", 0)
	assert.Error(t, err)
}

func TestGormRateLimitStore_Contract(t *testing.T) {
	storeContract(t, newSQLite(t))
}

func TestGormAuditStore_Append(t *testing.T) {
	db, err := OpenDatabase("sqlite", filepath.Join(t.TempDir(), "audit.db"), false)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	s := NewGormAuditStore(db)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, domain.SecurityLogEvent{
		EventType: "project_created",
		Severity:  domain.SeverityInfo,
		Message:   "User created new project",
		Metadata:  []byte(`{"project_id":"p1"}`),
		UserID:    "u1",
		CreatedAt: time.Now(),
	}))
	require.NoError(t, s.Append(ctx, domain.SecurityLogEvent{EventType: "function_error", Severity: domain.SeverityError}))

	rows, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "function_error", rows[0].EventType)
	assert.Nil(t, rows[0].UserID)
	assert.JSONEq(t, `{}`, string(rows[0].Metadata))
	require.NotNil(t, rows[1].UserID)
	assert.Equal(t, "u1", *rows[1].UserID)
	assert.JSONEq(t, `{"project_id":"p1"}`, string(rows[1].Metadata))
}

func TestOpenDatabase_RejectsUnknownDriver(t *testing.T) {
	_, err := OpenDatabase("oracle", "x", false)
	assert.Error(t, err)
}

func TestMemoryAuditStore_AppendOnly(t *testing.T) {
	s := NewMemoryAuditStore()
	require.NoError(t, s.Append(context.Background(), domain.SecurityLogEvent{EventType: "a"}))
	evs := s.Events()
	evs[0].EventType = "changed"
	assert.Equal(t, "a", s.Events()[0].EventType)
}

func TestJanitor_SweepDeletesExpired(t *testing.T) {
	s := NewMemoryRateLimitStore()
	now := time.UnixMilli(10_000)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, domain.RateLimitRecord{Identifier: "a", Timestamp: 1_000}))
	require.NoError(t, s.Insert(ctx, domain.RateLimitRecord{Identifier: "a", Timestamp: 9_500}))

	j := Janitor{Store: s, Window: time.Second, Now: func() time.Time { return now }}
	require.NoError(t, j.Sweep(ctx))
	assert.Equal(t, 1, s.Len())
}
