package model

import "time"

// Circle is a named, owned collection of friends used as a broadcast
// audience. Only the owner may modify it or broadcast to it.
type Circle struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID   int64     `gorm:"index:idx_circle_owner;not null" json:"owner_id"`
	Name      string    `gorm:"size:64;not null" json:"name"`
	IsPublic  bool      `gorm:"default:false" json:"is_public"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// CircleMember links a user into a circle.
type CircleMember struct {
	CircleID int64     `gorm:"primaryKey;index:idx_circle_member" json:"circle_id"`
	UserID   int64     `gorm:"primaryKey;index:idx_member_circle" json:"user_id"`
	AddedAt  time.Time `gorm:"autoCreateTime" json:"added_at"`
}
