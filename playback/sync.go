package playback

import (
	"time"

	"github.com/esc4n0rx/streamhive/types"
)

// SyncData tells a client where playback should be right now. SyncAccuracy is
// the wall-clock window (in seconds) the projection compensated for; clients
// use it to detect abnormal latency, the server attaches no meaning to it.
type SyncData struct {
	CurrentTime  float64   `json:"currentTime"`
	IsPlaying    bool      `json:"isPlaying"`
	ServerTime   time.Time `json:"serverTime"`
	SyncAccuracy float64   `json:"syncAccuracy"`
}

// Project computes the playback position at the query instant now from the
// stored anchor. A playing session advances by the elapsed wall-clock time, a
// paused one does not. The result is clamped to >= 0.
func Project(currentTime float64, isPlaying bool, updatedAt, now time.Time) SyncData {
	elapsed := now.Sub(updatedAt).Seconds()
	t := currentTime
	if isPlaying {
		t += elapsed
	}
	if t < 0 {
		t = 0
	}
	return SyncData{
		CurrentTime:  t,
		IsPlaying:    isPlaying,
		ServerTime:   now,
		SyncAccuracy: elapsed,
	}
}

// ProjectSession projects a session's authoritative state to now.
func ProjectSession(s *types.PlaybackSession, now time.Time) SyncData {
	return Project(s.CurrentTime, s.IsPlaying, s.UpdatedAt, now)
}
