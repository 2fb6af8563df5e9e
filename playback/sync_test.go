package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProjectAdvancesWhilePlaying(t *testing.T) {
	anchor := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := anchor.Add(5 * time.Second)

	data := Project(10, true, anchor, now)
	require.InDelta(t, 15.0, data.CurrentTime, 0.001)
	require.True(t, data.IsPlaying)
	require.Equal(t, now, data.ServerTime)
	require.InDelta(t, 5.0, data.SyncAccuracy, 0.001)
}

func TestProjectFrozenWhilePaused(t *testing.T) {
	anchor := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := anchor.Add(42 * time.Second)

	data := Project(10, false, anchor, now)
	require.InDelta(t, 10.0, data.CurrentTime, 0.001)
	require.False(t, data.IsPlaying)
}

func TestProjectClampsNegative(t *testing.T) {
	anchor := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// clock skew: query instant before the anchor
	data := Project(1, true, anchor, anchor.Add(-5*time.Second))
	require.Equal(t, 0.0, data.CurrentTime)
}
