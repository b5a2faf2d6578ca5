package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type game struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// downStore simula un Redis caído.
type downStore struct{}

func (downStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("dial tcp: connection refused")
}
func (downStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("dial tcp: connection refused")
}
func (downStore) DeletePrefix(context.Context, string) (int, error) {
	return 0, errors.New("dial tcp: connection refused")
}

func newTiers() (*LocalStore, *LocalStore, *TwoTier) {
	local := NewLocalStore(time.Minute, 0)
	shared := NewLocalStore(time.Hour, 0)
	return local, shared, NewTwoTier(local, shared, time.Minute, time.Hour, zap.NewNop())
}

func TestTwoTier_SetAndGet(t *testing.T) {
	ctx := context.Background()
	_, _, c := newTiers()

	require.NoError(t, c.Set(ctx, "app:games:id:1", game{ID: 1, Name: "Hades"}))

	var got game
	ok, err := c.Get(ctx, "app:games:id:1", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Hades", got.Name)
}

func TestTwoTier_SharedHitBackfillsLocal(t *testing.T) {
	ctx := context.Background()
	local, shared, c := newTiers()

	require.NoError(t, shared.Set(ctx, "app:games:id:2", []byte(`{"id":2,"name":"Celeste"}`), 0))

	var got game
	ok, err := c.Get(ctx, "app:games:id:2", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Celeste", got.Name)

	_, inLocal, _ := local.Get(ctx, "app:games:id:2")
	assert.True(t, inLocal)
}

func TestTwoTier_RemoveByPrefix(t *testing.T) {
	ctx := context.Background()
	local, shared, c := newTiers()

	for _, key := range []string{"app:games:all", "app:games:all:page:2", "app:games:id:1", "app:promotions:all"} {
		require.NoError(t, c.Set(ctx, key, "v"))
	}

	require.NoError(t, c.Remove(ctx, "app:games:all"))

	var v string
	for _, key := range []string{"app:games:all", "app:games:all:page:2"} {
		ok, _ := c.Get(ctx, key, &v)
		assert.False(t, ok, key)
	}
	for _, key := range []string{"app:games:id:1", "app:promotions:all"} {
		ok, _ := c.Get(ctx, key, &v)
		assert.True(t, ok, key)
	}

	require.NoError(t, c.RemoveAll(ctx, "app:games", "app:promotions"))
	assert.Zero(t, local.Len())
	assert.Zero(t, shared.Len())
}

func TestTwoTier_SharedOutageDegrades(t *testing.T) {
	ctx := context.Background()
	c := NewTwoTier(NewLocalStore(time.Minute, 0), downStore{}, time.Minute, time.Hour, zap.NewNop())

	var v string
	ok, err := c.Get(ctx, "app:games:all", &v)
	assert.NoError(t, err)
	assert.False(t, ok)

	// Set y Remove siguen funcionando sobre el nivel local
	assert.NoError(t, c.Set(ctx, "app:games:all", "cached"))
	ok, err = c.Get(ctx, "app:games:all", &v)
	assert.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, c.Remove(ctx, "app:games"))
	ok, _ = c.Get(ctx, "app:games:all", &v)
	assert.False(t, ok)
}

func TestGetOrSet_FallbackOncePerMiss(t *testing.T) {
	ctx := context.Background()
	_, _, c := newTiers()

	var calls int32
	fallback := func(context.Context) ([]game, error) {
		atomic.AddInt32(&calls, 1)
		return []game{{ID: 1, Name: "Hades"}, {ID: 2, Name: "Celeste"}}, nil
	}

	first, err := GetOrSet(ctx, c, zap.NewNop(), "app:games:all", fallback)
	require.NoError(t, err)
	second, err := GetOrSet(ctx, c, zap.NewNop(), "app:games:all", fallback)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	require.NoError(t, c.Remove(ctx, "app:games"))
	_, err = GetOrSet(ctx, c, zap.NewNop(), "app:games:all", fallback)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetOrSet_FallbackErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	_, _, c := newTiers()

	boom := errors.New("projection store down")
	_, err := GetOrSet(ctx, c, zap.NewNop(), "app:games:id:9", func(context.Context) (game, error) { return game{}, boom })
	assert.ErrorIs(t, err, boom)

	var g game
	ok, _ := c.Get(ctx, "app:games:id:9", &g)
	assert.False(t, ok)
}

func TestGetOrSet_NilCache(t *testing.T) {
	v, err := GetOrSet[int](context.Background(), nil, nil, "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

// unwritableCache sirve 'miss' y rechaza toda escritura.
type unwritableCache struct{}

func (unwritableCache) Get(context.Context, string, any) (bool, error) { return false, nil }
func (unwritableCache) Set(context.Context, string, any) error {
	return errors.New("cache full")
}
func (unwritableCache) Remove(context.Context, string) error       { return nil }
func (unwritableCache) RemoveAll(context.Context, ...string) error { return nil }

func TestGetOrSet_SetFailureIsLoggedAndValueReturned(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	v, err := GetOrSet(context.Background(), unwritableCache{}, zap.New(core), "app:games:id:3",
		func(context.Context) (game, error) { return game{ID: 3, Name: "Hades"}, nil })

	require.NoError(t, err)
	assert.Equal(t, game{ID: 3, Name: "Hades"}, v)

	entries := logs.FilterField(zap.String("key", "app:games:id:3")).All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
}

func TestLocalStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(time.Minute, 0)
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return current }

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Second))
	_, ok, _ := s.Get(ctx, "k")
	assert.True(t, ok)

	current = current.Add(2 * time.Second)
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `app:games`, escapeGlob("app:games"))
	assert.Equal(t, `app:\*:\[x\]\?`, escapeGlob("app:*:[x]?"))
}
