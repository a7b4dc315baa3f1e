package timeclock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tillworks/backend-pos/internal/timeclock"
)

const operatorID = "op-1"

// fakeClock advances manually so worked time is deterministic.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newClock() (*timeclock.Clock, *fakeClock) {
	fake := &fakeClock{t: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)}
	c := timeclock.NewClock()
	c.Now = fake.now
	return c, fake
}

func TestClockInOutComputesWorkedTime(t *testing.T) {
	clock, fake := newClock()
	ctx := context.Background()

	_, err := clock.ClockIn(ctx, operatorID)
	require.NoError(t, err)

	fake.advance(4 * time.Hour)
	entry, err := clock.ClockOut(ctx, operatorID)
	require.NoError(t, err)
	require.NotNil(t, entry.ClockedOut)
	require.Equal(t, 4*time.Hour, entry.Worked(fake.now()))

	history := clock.History(ctx)
	require.Len(t, history, 1)
}

func TestDoubleClockInRejected(t *testing.T) {
	clock, _ := newClock()
	ctx := context.Background()

	_, err := clock.ClockIn(ctx, operatorID)
	require.NoError(t, err)
	_, err = clock.ClockIn(ctx, operatorID)
	require.ErrorIs(t, err, timeclock.ErrAlreadyClockedIn)

	_, err = clock.ClockOut(ctx, "op-2")
	require.ErrorIs(t, err, timeclock.ErrNotClockedIn)
}

func TestBreaksAreExcludedFromWorkedTime(t *testing.T) {
	clock, fake := newClock()
	ctx := context.Background()

	_, err := clock.ClockIn(ctx, operatorID)
	require.NoError(t, err)

	fake.advance(2 * time.Hour)
	_, err = clock.StartBreak(ctx, operatorID)
	require.NoError(t, err)

	_, err = clock.StartBreak(ctx, operatorID)
	require.ErrorIs(t, err, timeclock.ErrBreakOpen)

	fake.advance(30 * time.Minute)
	entry, err := clock.EndBreak(ctx, operatorID)
	require.NoError(t, err)
	require.False(t, entry.OnBreak())

	_, err = clock.EndBreak(ctx, operatorID)
	require.ErrorIs(t, err, timeclock.ErrNoBreakOpen)

	fake.advance(90 * time.Minute)
	entry, err = clock.ClockOut(ctx, operatorID)
	require.NoError(t, err)
	require.Equal(t, 3*time.Hour+30*time.Minute, entry.Worked(fake.now()))
}

func TestClockOutClosesOpenBreak(t *testing.T) {
	clock, fake := newClock()
	ctx := context.Background()

	_, err := clock.ClockIn(ctx, operatorID)
	require.NoError(t, err)

	fake.advance(time.Hour)
	_, err = clock.StartBreak(ctx, operatorID)
	require.NoError(t, err)

	fake.advance(15 * time.Minute)
	entry, err := clock.ClockOut(ctx, operatorID)
	require.NoError(t, err)
	require.Len(t, entry.Breaks, 1)
	require.NotNil(t, entry.Breaks[0].EndedAt)
	require.Equal(t, time.Hour, entry.Worked(fake.now()))

	_, err = clock.Current(ctx, operatorID)
	require.ErrorIs(t, err, timeclock.ErrNotClockedIn)
}
