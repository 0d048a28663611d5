package repository

import (
	"context"
	"errors"

	"instapurr/models"

	"gorm.io/gorm"
)

// LikeRepository defines the interface for like toggle operations.
// Add and Remove are idempotent and return the live like count for the
// post after the write.
type LikeRepository interface {
	Add(ctx context.Context, userID, postID uint) (int64, error)
	Remove(ctx context.Context, userID, postID uint) (int64, error)
	Count(ctx context.Context, postID uint) (int64, error)
}

// likeRepository implements LikeRepository
type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new like repository
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

// Add inserts the (user, post) pair. The unique index is the final
// arbiter under races: a duplicate-key result is treated as success.
func (r *likeRepository) Add(ctx context.Context, userID, postID uint) (int64, error) {
	like := models.Like{UserID: userID, PostID: postID}
	if err := r.db.WithContext(ctx).Create(&like).Error; err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			// Already liked; fall through to the count.
		case errors.Is(err, gorm.ErrForeignKeyViolated):
			return 0, models.NewNotFoundError("Post", postID)
		default:
			return 0, models.NewInternalError(err)
		}
	}
	return r.Count(ctx, postID)
}

// Remove deletes the pair. A missing pair is a no-op success.
func (r *likeRepository) Remove(ctx context.Context, userID, postID uint) (int64, error) {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&models.Like{}).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return r.Count(ctx, postID)
}

func (r *likeRepository) Count(ctx context.Context, postID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("post_id = ?", postID).
		Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
