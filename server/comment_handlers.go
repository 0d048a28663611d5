package server

import (
	"strings"

	"instapurr/models"
	"instapurr/validation"

	"github.com/gofiber/fiber/v2"
)

// CreateComment handles POST /api/comments. Comments are append-only;
// the stored row is read back with its server-assigned id and
// timestamp in the same transaction.
func (s *Server) CreateComment(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req models.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.PostID == 0 {
		return s.fail(c, fiber.StatusBadRequest,
			models.NewValidationError("Post ID is required"))
	}
	if err := validation.ValidateCommentContent(req.Content); err != nil {
		return s.fail(c, fiber.StatusBadRequest, models.NewValidationError(err.Error()))
	}
	if req.UserID != 0 && req.UserID != userID {
		return s.fail(c, fiber.StatusForbidden,
			models.NewForbiddenError("Cannot comment for another user"))
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	if _, err := s.postRepo.GetByID(ctx, req.PostID, 0); err != nil {
		return s.fail(c, statusFor(err), err)
	}

	comment := &models.Comment{
		Content: strings.TrimSpace(req.Content),
		UserID:  userID,
		PostID:  req.PostID,
	}
	view, err := s.commentRepo.Create(ctx, comment)
	if err != nil {
		return s.fail(c, statusFor(err), err)
	}

	return c.Status(fiber.StatusCreated).JSON(view)
}

// GetComments handles GET /api/comments?postId&limit&offset. Comments
// come back newest-first.
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID := c.QueryInt("postId", 0)
	if postID < 1 {
		return s.fail(c, fiber.StatusBadRequest,
			models.NewValidationError("Post ID is required"))
	}

	limit := c.QueryInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	if _, err := s.postRepo.GetByID(ctx, uint(postID), 0); err != nil {
		return s.fail(c, statusFor(err), err)
	}

	comments, err := s.commentRepo.ListByPost(ctx, uint(postID), limit, offset)
	if err != nil {
		return s.fail(c, statusFor(err), err)
	}

	return c.JSON(fiber.Map{"comments": comments})
}
