package broker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewClientFromRedisClient(rdb)
}

func TestSetAndMGet(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	require.NoError(t, c.Set(ctx, "2023-04-24", []byte(`{"high":1}`)))

	vals, err := c.MGet(ctx, []string{"2023-04-24", "missing"})
	require.NoError(t, err)
	require.Len(t, vals, 2)
	require.Equal(t, []byte(`{"high":1}`), vals[0])
	require.Nil(t, vals[1])
}

func TestLPushAndBRPop(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	require.NoError(t, c.LPush(ctx, "worker_main", [][]byte{[]byte("a"), []byte("b")}))

	got, err := c.BRPop(ctx, "worker_main", time.Second)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), got)
}

func TestScanKeysAndDelete(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	require.NoError(t, c.Set(ctx, "runtime-task-meta-1", []byte(`{}`)))
	require.NoError(t, c.Set(ctx, "runtime-task-meta-2", []byte(`{}`)))
	require.NoError(t, c.Set(ctx, "unrelated-key", []byte(`{}`)))

	keys, err := c.ScanKeys(ctx, "runtime-task-meta-*")
	require.NoError(t, err)
	require.Len(t, keys, 2)

	require.NoError(t, c.Delete(ctx, keys))

	remaining, err := c.ScanKeys(ctx, "runtime-task-meta-*")
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestPipeline(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	payloads := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	require.NoError(t, c.Pipeline(ctx, "worker_main", payloads))

	for range payloads {
		got, err := c.BRPop(ctx, "worker_main", time.Second)
		require.NoError(t, err)
		require.NotNil(t, got)
	}
}
