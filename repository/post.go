package repository

import (
	"context"
	"errors"
	"time"

	"instapurr/models"

	"gorm.io/gorm"
)

// feedCommentCap bounds the comments embedded in each feed post.
const feedCommentCap = 5

// PostRepository defines the interface for post data operations. The
// listing methods return aggregated views: author, live like count,
// the viewer's like status and the most recent comments.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.PostView, error)
	Feed(ctx context.Context, limit, offset int, viewerID uint) ([]models.PostView, int64, error)
	FeedByAuthor(ctx context.Context, authorID uint, limit, offset int, viewerID uint) ([]models.PostView, int64, error)
	FeedLikedBy(ctx context.Context, userID uint, limit, offset int) ([]models.PostView, int64, error)
	Delete(ctx context.Context, id uint) error
}

// postRepository implements PostRepository
type postRepository struct {
	db       *gorm.DB
	comments CommentRepository
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, comments: NewCommentRepository(db)}
}

// postRow is the flat scan target for the aggregation query.
type postRow struct {
	ID             uint
	ImagePath      string
	Caption        string
	UserID         uint
	CreatedAt      time.Time
	Username       string
	ProfilePicture string
	LikesCount     int64
	IsLiked        bool
}

const feedSelect = `posts.id, posts.image_path, posts.caption, posts.user_id, posts.created_at,
	users.username, users.profile_picture,
	(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) AS likes_count,
	EXISTS(SELECT 1 FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) AS is_liked`

// feedBase builds the post/author join with the like aggregation.
// viewerID 0 never matches a row, so is_liked is false for anonymous
// viewers without a second query shape.
func (r *postRepository) feedBase(ctx context.Context, viewerID uint) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("posts").
		Select(feedSelect, viewerID).
		Joins("JOIN users ON users.id = posts.user_id")
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return models.NewNotFoundError("User", post.UserID)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.PostView, error) {
	var row postRow
	err := r.feedBase(ctx, viewerID).
		Where("posts.id = ?", id).
		Scan(&row).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if row.ID == 0 {
		return nil, models.NewNotFoundError("Post", id)
	}

	view, err := r.assemble(ctx, []postRow{row})
	if err != nil {
		return nil, err
	}
	return &view[0], nil
}

// Feed returns one reverse-chronological page over all posts and the
// full post count.
func (r *postRepository) Feed(ctx context.Context, limit, offset int, viewerID uint) ([]models.PostView, int64, error) {
	var rows []postRow
	err := r.feedBase(ctx, viewerID).
		Order("posts.created_at DESC, posts.id DESC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	views, err := r.assemble(ctx, rows)
	return views, total, err
}

// FeedByAuthor is the same page shape filtered to one author's posts.
func (r *postRepository) FeedByAuthor(ctx context.Context, authorID uint, limit, offset int, viewerID uint) ([]models.PostView, int64, error) {
	var rows []postRow
	err := r.feedBase(ctx, viewerID).
		Where("posts.user_id = ?", authorID).
		Order("posts.created_at DESC, posts.id DESC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("user_id = ?", authorID).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	views, err := r.assemble(ctx, rows)
	return views, total, err
}

// FeedLikedBy returns posts the user liked, ordered by like recency.
// is_liked is computed against the same user, so it is always true.
func (r *postRepository) FeedLikedBy(ctx context.Context, userID uint, limit, offset int) ([]models.PostView, int64, error) {
	var rows []postRow
	err := r.db.WithContext(ctx).
		Table("posts").
		Select(feedSelect, userID).
		Joins("JOIN users ON users.id = posts.user_id").
		Joins("JOIN likes viewer_likes ON viewer_likes.post_id = posts.id AND viewer_likes.user_id = ?", userID).
		Order("viewer_likes.created_at DESC, viewer_likes.id DESC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Like{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	views, err := r.assemble(ctx, rows)
	return views, total, err
}

// Delete removes a post together with its likes and comments in one
// transaction.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Post", id)
		}
		return models.NewInternalError(err)
	}
	return nil
}

// assemble turns scanned rows into views and attaches the capped
// comment lists, one query per post. Page sizes are small enough that
// this stays cheap.
func (r *postRepository) assemble(ctx context.Context, rows []postRow) ([]models.PostView, error) {
	views := make([]models.PostView, 0, len(rows))
	for _, row := range rows {
		comments, err := r.comments.ListByPost(ctx, row.ID, feedCommentCap, 0)
		if err != nil {
			return nil, err
		}
		views = append(views, models.PostView{
			ID:        row.ID,
			ImagePath: row.ImagePath,
			Caption:   row.Caption,
			UserID:    row.UserID,
			CreatedAt: row.CreatedAt,
			Author: models.Author{
				ID:             row.UserID,
				Username:       row.Username,
				ProfilePicture: row.ProfilePicture,
			},
			LikesCount: row.LikesCount,
			IsLiked:    row.IsLiked,
			Comments:   comments,
		})
	}
	return views, nil
}
