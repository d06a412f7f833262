package model

import "time"

// ReactionTypes is the fixed set of reaction classes.
var ReactionTypes = []string{
	"heart", "smile", "laugh", "wow", "sad", "fire", "clap", "sparkle",
}

// IsValidReactionType reports whether t is one of the fixed reaction classes.
func IsValidReactionType(t string) bool {
	for _, rt := range ReactionTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// PulseReaction holds a user's single active reaction on a pulse. The
// unique (pulse_id, user_id) index is the storage-level backstop for the
// one-reaction-per-user invariant; concurrent inserts serialize on it.
type PulseReaction struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PulseID      int64     `gorm:"uniqueIndex:idx_pulse_reactor;not null" json:"pulse_id"`
	UserID       int64     `gorm:"uniqueIndex:idx_pulse_reactor;not null" json:"user_id"`
	ReactionType string    `gorm:"size:16;not null" json:"reaction_type"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
