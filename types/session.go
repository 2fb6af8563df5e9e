package types

import "time"

// PlaybackSession is the authoritative record of what a room is watching, at
// what time, and whether it is currently advancing. It is a store of record,
// not a live clock: clients reconcile against it by projecting CurrentTime
// over the wall-clock time elapsed since UpdatedAt.
//
// At most one session per room has IsActive set at any time.
type PlaybackSession struct {
	Id          string     `json:"id" gorm:"primaryKey"`
	RoomId      string     `json:"room_id" gorm:"index"`
	StartedBy   string     `json:"started_by"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	VideoUrl    string     `json:"video_url"`
	CurrentTime float64    `json:"current_time"`
	IsPlaying   bool       `json:"is_playing"`
	IsActive    bool       `json:"is_active"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (s *PlaybackSession) Public() map[string]interface{} {
	return map[string]interface{}{
		"id":          s.Id,
		"roomId":      s.RoomId,
		"startedBy":   s.StartedBy,
		"title":       s.Title,
		"description": s.Description,
		"videoUrl":    s.VideoUrl,
		"currentTime": s.CurrentTime,
		"isPlaying":   s.IsPlaying,
		"isActive":    s.IsActive,
		"startedAt":   s.StartedAt,
		"endedAt":     s.EndedAt,
		"updatedAt":   s.UpdatedAt,
	}
}
