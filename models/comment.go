package models

import (
	"time"
)

// Comment is an append-only comment on a post. There is no edit or
// delete surface.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"not null" json:"content"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentView is a comment joined with its author's public fields.
type CommentView struct {
	ID             uint      `json:"id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	UserID         uint      `json:"user_id"`
	Username       string    `json:"username"`
	ProfilePicture string    `json:"profile_picture"`
}

// CreateCommentRequest is the body for POST /api/comments.
type CreateCommentRequest struct {
	UserID  uint   `json:"userId"`
	PostID  uint   `json:"postId" validate:"required"`
	Content string `json:"content" validate:"required,max=2000"`
}
