package model

import "time"

// Pulse kinds.
const (
	PulseDirect = "direct"
	PulseCircle = "circle"
)

// Pulse is a short broadcast message, immutable once created. A pulse row
// only ever exists together with its full recipient set; both are written
// in the same transaction.
type Pulse struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID       int64     `gorm:"index:idx_pulse_sender;not null" json:"sender_id"`
	Kind           string    `gorm:"size:16;not null" json:"kind"`
	Message        string    `gorm:"size:280;not null" json:"message"`
	TargetCircleID *int64    `json:"target_circle_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// PulseRecipient is one delivery record. SeenAt transitions nil → timestamp
// exactly once, and only for the named recipient.
type PulseRecipient struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	PulseID     int64      `gorm:"uniqueIndex:idx_pulse_recipient;not null" json:"pulse_id"`
	RecipientID int64      `gorm:"uniqueIndex:idx_pulse_recipient;index:idx_recipient_inbox;not null" json:"recipient_id"`
	SeenAt      *time.Time `json:"seen_at"`
}
