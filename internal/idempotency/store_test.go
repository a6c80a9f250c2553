package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, time.Hour), mr
}

func TestReserveClaimsOnce(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	existing, claimed, err := s.Reserve(ctx, "bookings", "k1", "fp")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Nil(t, existing)

	existing, claimed, err = s.Reserve(ctx, "bookings", "k1", "fp")
	require.NoError(t, err)
	assert.False(t, claimed)
	require.NotNil(t, existing)
	assert.Equal(t, StateInFlight, existing.State)
}

func TestCompleteStoresResponseWithTTL(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.Reserve(ctx, "bookings", "k1", "fp")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL("idem:bookings:k1"))

	require.NoError(t, s.Complete(ctx, "bookings", "k1", Record{Fingerprint: "fp", Status: 200, Body: []byte(`{"id":1}`)}))
	assert.Equal(t, time.Hour, mr.TTL("idem:bookings:k1"))

	rec, err := s.Get(ctx, "bookings", "k1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, StateCompleted, rec.State)
	assert.Equal(t, 200, rec.Status)
	assert.JSONEq(t, `{"id":1}`, string(rec.Body))
}

func TestReservationExpires(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.Reserve(ctx, "bookings", "k1", "fp")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	_, claimed, err := s.Reserve(ctx, "bookings", "k1", "fp")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestReleaseAllowsRetry(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.Reserve(ctx, "bookings", "k1", "fp")
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, "bookings", "k1"))

	rec, err := s.Get(ctx, "bookings", "k1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestReserveSurfacesRedisErrors(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()

	_, _, err := s.Reserve(context.Background(), "bookings", "k1", "fp")
	require.Error(t, err)
}
