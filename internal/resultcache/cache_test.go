package resultcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStoreGetSet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStoreFromClient(client)
	ctx := context.Background()

	mock.ExpectSet("result:abc", []byte("payload"), time.Hour).SetVal("OK")
	require.NoError(t, store.Set(ctx, "result:abc", []byte("payload"), time.Hour))

	mock.ExpectGet("result:abc").SetVal("payload")
	got, err := store.Get(ctx, "result:abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreMiss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStoreFromClient(client)

	mock.ExpectGet("absent").RedisNil()
	_, err := store.Get(context.Background(), "absent")
	assert.Equal(t, ErrMiss, err, "an absent key is the miss sentinel, not a transport error")
}

func TestCacheFallsBackWhenPrimaryDown(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStoreFromClient(client)
	c := New(store)
	ctx := context.Background()

	mock.ExpectSet("k", []byte("v"), time.Minute).SetErr(errors.New("connection refused"))
	c.Set(ctx, "k", []byte("v"), time.Minute)

	mock.ExpectGet("k").SetErr(errors.New("connection refused"))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err, "the in-process fallback serves the value")
	assert.Equal(t, []byte("v"), got)
}

func TestCachePrimaryMissIsAuthoritative(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(NewRedisStoreFromClient(client))

	mock.ExpectGet("k").RedisNil()
	_, err := c.Get(context.Background(), "k")
	assert.Equal(t, ErrMiss, err, "a reachable primary's miss is final, the fallback is not consulted")
}

func TestCacheFallbackOnly(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	_, err := c.Get(ctx, "k")
	assert.Equal(t, ErrMiss, err)

	c.Set(ctx, "k", []byte("v"), time.Minute)
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestCacheMsgpackRoundTrip(t *testing.T) {
	type payload struct {
		Hash   string
		Months int
	}
	c := New(nil)
	ctx := context.Background()

	c.SetFrom(ctx, "k", payload{Hash: "abc", Months: 120}, time.Minute)

	var got payload
	require.NoError(t, c.GetInto(ctx, "k", &got))
	assert.Equal(t, payload{Hash: "abc", Months: 120}, got)
}

func TestCacheUndecodableValueIsAMiss(t *testing.T) {
	c := New(nil)
	ctx := context.Background()
	c.Set(ctx, "k", []byte{0xc1}, time.Minute) // reserved msgpack byte

	var got struct{ Hash string }
	assert.Equal(t, ErrMiss, c.GetInto(ctx, "k", &got))
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	s := NewMemoryStore(4)
	s.Set("k", []byte("v"), time.Nanosecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := s.Get("k")
	assert.False(t, ok, "expired entries read as absent")
	assert.Equal(t, 0, s.Len(), "expiry removes the entry")
}

func TestMemoryStoreLRUBound(t *testing.T) {
	s := NewMemoryStore(2)
	s.Set("a", []byte("1"), time.Minute)
	s.Set("b", []byte("2"), time.Minute)

	// Touch "a" so "b" is the least recently used.
	_, ok := s.Get("a")
	require.True(t, ok)

	s.Set("c", []byte("3"), time.Minute)
	assert.Equal(t, 2, s.Len(), "the store never exceeds its bound")

	_, ok = s.Get("b")
	assert.False(t, ok, "the least recently used entry was evicted")
	_, ok = s.Get("a")
	assert.True(t, ok)
}
