package models

import (
	"time"
)

// Like records that a user liked a post. The (UserID, PostID) pair is
// unique; the index is the final arbiter under concurrent toggles.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_post_like" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_user_post_like" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// LikeRequest is the body for POST /api/likes/add and /api/likes/remove.
type LikeRequest struct {
	UserID uint `json:"userId"`
	PostID uint `json:"postId" validate:"required"`
}

// LikeResponse reports the like status and the live count after a toggle.
type LikeResponse struct {
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likes_count"`
}
