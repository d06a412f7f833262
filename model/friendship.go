package model

import "time"

// FriendshipEdge is one directed half of a mutual friendship. An active
// friendship between A and B is always exactly two rows: (A,B) and (B,A),
// created and deleted together. IsBlocked hides the friend from the owner's
// side only; the reverse edge is untouched.
type FriendshipEdge struct {
	ID                  int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID             int64      `gorm:"uniqueIndex:idx_edge_pair;not null" json:"owner_id"`
	FriendID            int64      `gorm:"uniqueIndex:idx_edge_pair;not null" json:"friend_id"`
	FriendshipStartedAt time.Time  `gorm:"not null" json:"friendship_started_at"`
	IsBlocked           bool       `gorm:"default:false" json:"is_blocked"`
	BlockedAt           *time.Time `json:"blocked_at"`
}

// FriendshipStat is the per-directed-pair shadow aggregate, mirroring
// FriendshipEdge rows 1:1. Counters are maintained at pulse write time,
// never re-derived from pulse history on read.
type FriendshipStat struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID        int64      `gorm:"uniqueIndex:idx_stat_pair;not null" json:"owner_id"`
	FriendID       int64      `gorm:"uniqueIndex:idx_stat_pair;not null" json:"friend_id"`
	PulsesSent     int64      `gorm:"default:0" json:"pulses_sent"`
	PulsesReceived int64      `gorm:"default:0" json:"pulses_received"`
	TotalPulses    int64      `gorm:"default:0" json:"total_pulses"`
	StreakDays     int        `gorm:"default:0" json:"streak_days"`
	LastPulseAt    *time.Time `json:"last_pulse_at"`
	IsFavorite     bool       `gorm:"default:false" json:"is_favorite"`
	CustomNickname string     `gorm:"size:64" json:"custom_nickname"`
}
