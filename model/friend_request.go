package model

import "time"

// FriendRequest statuses. All transitions out of pending are terminal;
// rejected/cancelled pairs may create a fresh request later.
const (
	RequestPending   = 0
	RequestAccepted  = 1
	RequestRejected  = 2
	RequestCancelled = 3
)

// FriendRequest is a directional friendship proposal. Rows are never
// deleted; resolved requests remain as history.
type FriendRequest struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID    int64      `gorm:"index:idx_request_sender;not null" json:"sender_id"`
	ReceiverID  int64      `gorm:"index:idx_request_receiver;not null" json:"receiver_id"`
	Status      int        `gorm:"default:0" json:"status"`
	Message     string     `gorm:"size:280" json:"message"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RespondedAt *time.Time `json:"responded_at"`
}
