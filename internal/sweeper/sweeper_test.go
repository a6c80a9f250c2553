package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/doctor-booking/internal/bookings"
	"github.com/wolfman30/doctor-booking/pkg/logging"
)

type fakeExpirer struct {
	calls     int32
	threshold time.Duration
	out       []bookings.Booking
	err       error
}

func (f *fakeExpirer) ExpireStale(ctx context.Context, threshold time.Duration) ([]bookings.Booking, error) {
	atomic.AddInt32(&f.calls, 1)
	f.threshold = threshold
	return f.out, f.err
}

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New(&fakeExpirer{}, "every now and then", time.Minute, nil)
	require.Error(t, err)

	_, err = New(&fakeExpirer{}, "@every 1m", 0, nil)
	require.Error(t, err)

	_, err = New(nil, "@every 1m", time.Minute, nil)
	require.Error(t, err)
}

func TestRunOnceUsesThreshold(t *testing.T) {
	f := &fakeExpirer{out: []bookings.Booking{{ID: 1}, {ID: 2}}}
	s, err := New(f, "@every 1m", 2*time.Minute, logging.New("error"))
	require.NoError(t, err)

	assert.Equal(t, 2, s.RunOnce(context.Background()))
	assert.Equal(t, 2*time.Minute, f.threshold)
}

func TestRunOnceSwallowsErrors(t *testing.T) {
	f := &fakeExpirer{err: errors.New("db down")}
	s, err := New(f, "@every 1m", time.Minute, logging.New("error"))
	require.NoError(t, err)
	assert.Zero(t, s.RunOnce(context.Background()))
}

func TestStartRunsOnScheduleAndStops(t *testing.T) {
	f := &fakeExpirer{}
	s, err := New(f, "@every 1s", time.Minute, logging.New("error"))
	require.NoError(t, err)

	s.Start()
	s.Start()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&f.calls) > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))

	after := atomic.LoadInt32(&f.calls)
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&f.calls))
}
