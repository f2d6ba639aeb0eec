package stats

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRecorder(t *testing.T) (*Recorder, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRecorderWithClient(client), mr
}

func TestRecordAndSnapshot(t *testing.T) {
	r, mr := setupTestRecorder(t)
	ctx := context.Background()

	r.Record(ctx, "nft", 1, OutcomeResolved)
	r.Record(ctx, "nft", 1, OutcomeResolved)
	r.Record(ctx, "nft", 5, OutcomeError)
	r.Record(ctx, "data", 0, OutcomeEmpty)

	assert.Equal(t, "2", mr.HGet(keyPrefix+"nft", "1:resolved"))

	snap, err := r.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, Snapshot{
		"nft":  {"1:resolved": 2, "5:error": 1},
		"data": {"empty": 1},
	}, snap)
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	ctx := context.Background()

	r.Record(ctx, "nft", 1, OutcomeResolved)
	snap, err := r.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap)
	assert.NoError(t, r.Close())
}

func TestNewRecorder(t *testing.T) {
	mr := miniredis.RunT(t)

	r, err := NewRecorder("redis://" + mr.Addr())
	require.NoError(t, err)
	defer r.Close()

	r.Record(context.Background(), "nft", 100, OutcomeResolved)
	assert.Equal(t, "1", mr.HGet(keyPrefix+"nft", "100:resolved"))

	_, err = NewRecorder("not a url")
	assert.Error(t, err)
}

func TestRecordIsBoundedWhenRedisHangs(t *testing.T) {
	// accepts connections and never answers
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, conn := range conns {
			conn.Close()
		}
	})
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	client := redis.NewClient(&redis.Options{
		Addr:                  ln.Addr().String(),
		ContextTimeoutEnabled: true,
		MaxRetries:            -1,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		Protocol:              2,
	})
	t.Cleanup(func() { client.Close() })
	r := NewRecorderWithClient(client)
	r.SetTimeout(100 * time.Millisecond)

	start := time.Now()
	r.Record(context.Background(), "nft", 1, OutcomeResolved)
	assert.Less(t, time.Since(start), 2*time.Second)
}
