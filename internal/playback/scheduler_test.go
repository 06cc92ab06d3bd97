package playback

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestClockScheduler_Every(t *testing.T) {
	clock := clockwork.NewFakeClock()
	scheduler := NewClockScheduler(clock)

	ticks := make(chan struct{}, 10)
	stop := scheduler.Every(50*time.Millisecond, func() {
		ticks <- struct{}{}
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	for i := 0; i < 3; i++ {
		clock.Advance(50 * time.Millisecond)
		select {
		case <-ticks:
		case <-time.After(time.Second):
			t.Fatalf("tick %d not delivered", i+1)
		}
	}

	stop()
	stop()

	// The ticker is released once the goroutine observes stop
	require.NoError(t, clock.BlockUntilContext(ctx, 0))

	clock.Advance(time.Second)
	select {
	case <-ticks:
		t.Fatal("tick delivered after stop")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestNewClockScheduler_DefaultsToRealClock(t *testing.T) {
	scheduler := NewClockScheduler(nil)
	require.NotNil(t, scheduler.clock)
}
