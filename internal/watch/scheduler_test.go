package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/wikigen/internal/events"
)

func TestScheduler_FullRebuildFires(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	reqCh, unsub := events.Subscribe[events.BuildRequested](bus, 10)
	defer unsub()

	s, err := NewScheduler(bus)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	require.NoError(t, s.ScheduleFullRebuild(context.Background(), 30*time.Millisecond))
	s.Start()

	select {
	case req := <-reqCh:
		require.Equal(t, "scheduled_full_rebuild", req.Reason)
		require.True(t, req.Full)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scheduled rebuild request")
	}
}

func TestScheduler_StopPreventsFurtherRuns(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	reqCh, unsub := events.Subscribe[events.BuildRequested](bus, 10)
	defer unsub()

	s, err := NewScheduler(bus)
	require.NoError(t, err)

	require.NoError(t, s.ScheduleFullRebuild(context.Background(), 30*time.Millisecond))
	s.Start()

	select {
	case <-reqCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first scheduled request")
	}

	require.NoError(t, s.Stop())

	// Drain anything in flight, then expect silence.
	deadline := time.After(150 * time.Millisecond)
drain:
	for {
		select {
		case <-reqCh:
		case <-deadline:
			break drain
		}
	}

	select {
	case <-reqCh:
		t.Fatal("scheduler kept firing after Stop")
	case <-time.After(150 * time.Millisecond):
		// ok
	}
}
