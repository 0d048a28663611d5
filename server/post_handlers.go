package server

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"instapurr/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	defaultFeedLimit = 10
	maxFeedLimit     = 50
	maxUploadBytes   = 5 * 1024 * 1024
)

// allowedImageTypes maps accepted upload MIME types to the stored
// extension. The type is sniffed from the bytes, never taken from the
// client, and the client filename is discarded entirely.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// feedPage clamps page and limit to safe values instead of silently
// falling back mid-query.
func feedPage(c *fiber.Ctx) (page, limit, offset int) {
	page = c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit = c.QueryInt("limit", defaultFeedLimit)
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}
	return page, limit, (page - 1) * limit
}

// feedEnvelope builds the pagination envelope shared by every listing.
func feedEnvelope(posts []models.PostView, total int64, page, limit int) models.FeedResponse {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return models.FeedResponse{
		Posts: posts,
		Pagination: models.Pagination{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: totalPages,
			HasMore:    page < totalPages,
		},
	}
}

// GetFeed handles GET /api/posts?page&limit&userId
func (s *Server) GetFeed(c *fiber.Ctx) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	page, limit, offset := feedPage(c)
	viewer := s.viewerID(c)

	posts, total, err := s.postRepo.Feed(ctx, limit, offset, viewer)
	if err != nil {
		return s.fail(c, statusFor(err), err)
	}

	return c.JSON(feedEnvelope(posts, total, page, limit))
}

// GetUserPosts handles GET /api/posts/user/:id
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	authorID, err := c.ParamsInt("id")
	if err != nil || authorID < 1 {
		return s.fail(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid user ID"))
	}

	page, limit, offset := feedPage(c)
	viewer := s.viewerID(c)

	posts, total, err := s.postRepo.FeedByAuthor(ctx, uint(authorID), limit, offset, viewer)
	if err != nil {
		return s.fail(c, statusFor(err), err)
	}

	return c.JSON(feedEnvelope(posts, total, page, limit))
}

// GetLikedPosts handles GET /api/posts/liked/:id
func (s *Server) GetLikedPosts(c *fiber.Ctx) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	userID, err := c.ParamsInt("id")
	if err != nil || userID < 1 {
		return s.fail(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid user ID"))
	}

	page, limit, offset := feedPage(c)

	posts, total, err := s.postRepo.FeedLikedBy(ctx, uint(userID), limit, offset)
	if err != nil {
		return s.fail(c, statusFor(err), err)
	}

	return c.JSON(feedEnvelope(posts, total, page, limit))
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return s.fail(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid post ID"))
	}

	post, err := s.postRepo.GetByID(ctx, uint(id), s.viewerID(c))
	if err != nil {
		return s.fail(c, statusFor(err), err)
	}

	return c.JSON(post)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req models.CreatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if err := s.validate.Struct(req); err != nil {
		return s.fail(c, fiber.StatusBadRequest,
			models.NewValidationError("imagePath is required"))
	}
	// A client-supplied userId must match the authenticated user.
	if req.UserID != 0 && req.UserID != userID {
		return s.fail(c, fiber.StatusForbidden,
			models.NewForbiddenError("Cannot create posts for another user"))
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	post := &models.Post{
		ImagePath: req.ImagePath,
		Caption:   req.Caption,
		UserID:    userID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return s.fail(c, statusFor(err), err)
	}

	// Load the aggregated view for the response
	view, err := s.postRepo.GetByID(ctx, post.ID, userID)
	if err != nil {
		return s.fail(c, statusFor(err), err)
	}

	return c.Status(fiber.StatusCreated).JSON(view)
}

// DeletePost handles DELETE /api/posts/:id (owner only).
func (s *Server) DeletePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := c.ParamsInt("id")
	if err != nil || postID < 1 {
		return s.fail(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid post ID"))
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	post, err := s.postRepo.GetByID(ctx, uint(postID), userID)
	if err != nil {
		return s.fail(c, statusFor(err), err)
	}
	if post.UserID != userID {
		return s.fail(c, fiber.StatusForbidden,
			models.NewForbiddenError("You can only delete your own posts"))
	}

	if err := s.postRepo.Delete(ctx, uint(postID)); err != nil {
		return s.fail(c, statusFor(err), err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// UploadImage handles POST /api/posts/upload (multipart field "image").
// The stored path is returned for use in a subsequent POST /api/posts.
func (s *Server) UploadImage(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return s.fail(c, fiber.StatusBadRequest,
			models.NewValidationError("Image file is required"))
	}

	if fileHeader.Size > maxUploadBytes {
		return s.fail(c, fiber.StatusBadRequest,
			models.NewValidationError("Image must not exceed 5MB"))
	}

	contentType, err := sniffImageType(fileHeader)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return s.fail(c, fiber.StatusBadRequest,
			models.NewValidationError("Only jpeg, png, gif and webp images are allowed"))
	}

	filename := uuid.NewString() + ext

	if err := c.SaveFile(fileHeader, filepath.Join(s.config.UploadDir, filename)); err != nil {
		return s.fail(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":   "File uploaded successfully",
		"file_path": "/uploads/" + filename,
	})
}

// sniffImageType detects the payload type from its leading bytes. The
// part's declared Content-Type and filename are attacker-controlled and
// are not consulted.
func sniffImageType(fileHeader *multipart.FileHeader) (string, error) {
	f, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return "", err
	}

	mediaType, _, err := mime.ParseMediaType(http.DetectContentType(head[:n]))
	if err != nil {
		return "", err
	}
	return mediaType, nil
}
