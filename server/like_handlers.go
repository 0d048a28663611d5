package server

import (
	"instapurr/models"

	"github.com/gofiber/fiber/v2"
)

// likeRequest binds and authorizes the like toggle body. The acting
// user is always the token subject; a client-supplied userId must
// match it.
func (s *Server) likeRequest(c *fiber.Ctx) (userID, postID uint, err error) {
	actingUser := c.Locals("userID").(uint)

	var req models.LikeRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return 0, 0, models.NewValidationError("Invalid request body")
	}
	// DELETE requests may carry the pair in the query string instead.
	if req.PostID == 0 {
		req.PostID = uint(c.QueryInt("postId", 0))
		if req.UserID == 0 {
			req.UserID = uint(c.QueryInt("userId", 0))
		}
	}
	if err := s.validate.Struct(req); err != nil {
		return 0, 0, models.NewValidationError("User ID and Post ID are required")
	}
	if req.UserID != 0 && req.UserID != actingUser {
		return 0, 0, models.NewForbiddenError("Cannot toggle likes for another user")
	}
	return actingUser, req.PostID, nil
}

// AddLike handles POST /api/likes/add. Liking an already-liked post is
// a success that reports the current count.
func (s *Server) AddLike(c *fiber.Ctx) error {
	userID, postID, err := s.likeRequest(c)
	if err != nil {
		return s.fail(c, statusFor(err), err)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	// Surface a missing post as a clean 404 rather than relying on the
	// database to object.
	if _, err := s.postRepo.GetByID(ctx, postID, 0); err != nil {
		return s.fail(c, statusFor(err), err)
	}

	count, err := s.likeRepo.Add(ctx, userID, postID)
	if err != nil {
		return s.fail(c, statusFor(err), err)
	}

	return c.JSON(models.LikeResponse{Liked: true, LikesCount: count})
}

// RemoveLike handles POST and DELETE /api/likes/remove. Removing an
// absent like is a no-op success.
func (s *Server) RemoveLike(c *fiber.Ctx) error {
	userID, postID, err := s.likeRequest(c)
	if err != nil {
		return s.fail(c, statusFor(err), err)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	if _, err := s.postRepo.GetByID(ctx, postID, 0); err != nil {
		return s.fail(c, statusFor(err), err)
	}

	count, err := s.likeRepo.Remove(ctx, userID, postID)
	if err != nil {
		return s.fail(c, statusFor(err), err)
	}

	return c.JSON(models.LikeResponse{Liked: false, LikesCount: count})
}
