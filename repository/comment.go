package repository

import (
	"context"
	"errors"

	"instapurr/models"

	"gorm.io/gorm"
)

// CommentRepository defines the interface for comment data operations.
// Comments are append-only; there is no update or delete.
type CommentRepository interface {
	// Create inserts the comment and reads the stored row back, with
	// author info, inside one transaction.
	Create(ctx context.Context, comment *models.Comment) (*models.CommentView, error)
	ListByPost(ctx context.Context, postID uint, limit, offset int) ([]models.CommentView, error)
}

// commentRepository implements CommentRepository
type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) (*models.CommentView, error) {
	var view models.CommentView
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		return tx.Table("comments").
			Select(`comments.id, comments.content, comments.created_at, comments.user_id,
				users.username, users.profile_picture`).
			Joins("JOIN users ON users.id = comments.user_id").
			Where("comments.id = ?", comment.ID).
			Scan(&view).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return nil, models.NewNotFoundError("Post", comment.PostID)
		}
		return nil, models.NewInternalError(err)
	}
	return &view, nil
}

// ListByPost returns comments newest-first with commenter info.
func (r *commentRepository) ListByPost(ctx context.Context, postID uint, limit, offset int) ([]models.CommentView, error) {
	views := make([]models.CommentView, 0, limit)
	err := r.db.WithContext(ctx).
		Table("comments").
		Select(`comments.id, comments.content, comments.created_at, comments.user_id,
			users.username, users.profile_picture`).
		Joins("JOIN users ON users.id = comments.user_id").
		Where("comments.post_id = ?", postID).
		Order("comments.created_at DESC, comments.id DESC").
		Limit(limit).
		Offset(offset).
		Scan(&views).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return views, nil
}
