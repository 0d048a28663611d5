package models

import (
	"time"
)

// Post is a photo post owned by a single user.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ImagePath string    `gorm:"size:255;not null" json:"image_path"`
	Caption   string    `json:"caption"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt time.Time `json:"created_at"`

	Likes    []Like    `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	Comments []Comment `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}

// Author is the public slice of a user embedded in feed responses.
type Author struct {
	ID             uint   `json:"id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture"`
}

// PostView is a post joined with its author, live like count, the
// viewer's like status and a capped list of recent comments.
type PostView struct {
	ID         uint          `json:"id"`
	ImagePath  string        `json:"image_path"`
	Caption    string        `json:"caption"`
	UserID     uint          `json:"user_id"`
	CreatedAt  time.Time     `json:"created_at"`
	Author     Author        `json:"author"`
	LikesCount int64         `json:"likes_count"`
	IsLiked    bool          `json:"is_liked"`
	Comments   []CommentView `json:"comments"`
}

// Pagination describes the envelope returned with every feed page.
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

// FeedResponse is the body of the paginated post listing endpoints.
type FeedResponse struct {
	Posts      []PostView `json:"posts"`
	Pagination Pagination `json:"pagination"`
}

// CreatePostRequest is the body for POST /api/posts.
type CreatePostRequest struct {
	UserID    uint   `json:"userId"`
	ImagePath string `json:"imagePath" validate:"required,max=255"`
	Caption   string `json:"caption" validate:"max=2000"`
}
