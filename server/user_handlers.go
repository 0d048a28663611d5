package server

import (
	"fmt"
	"time"

	"instapurr/cache"
	"instapurr/models"

	"github.com/gofiber/fiber/v2"
)

const profileCacheTTL = time.Minute

func profileCacheKey(id uint) string {
	return fmt.Sprintf("user:profile:%d", id)
}

// publicUser is the serialized shape of a profile; the password hash
// never leaves the model's json:"-" tag, this just pins the contract.
type publicUser struct {
	ID             uint      `json:"id"`
	Username       string    `json:"username"`
	ProfilePicture string    `json:"profile_picture"`
	Bio            string    `json:"bio"`
	CreatedAt      time.Time `json:"created_at"`
}

func toPublicUser(u *models.User) publicUser {
	return publicUser{
		ID:             u.ID,
		Username:       u.Username,
		ProfilePicture: u.ProfilePicture,
		Bio:            u.Bio,
		CreatedAt:      u.CreatedAt,
	}
}

// GetUserProfile handles GET /api/users/:id with a cache-aside read.
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return s.fail(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid user ID"))
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	var profile publicUser
	err = cache.CacheAside(ctx, s.redis, profileCacheKey(uint(id)), &profile, profileCacheTTL, func() error {
		user, err := s.userRepo.GetByID(ctx, uint(id))
		if err != nil {
			return err
		}
		profile = toPublicUser(user)
		return nil
	})
	if err != nil {
		return s.fail(c, statusFor(err), err)
	}

	return c.JSON(profile)
}

// UpdateUserProfile handles PUT /api/users/:id (self only). At least
// one of bio or profile_picture must be supplied.
func (s *Server) UpdateUserProfile(c *fiber.Ctx) error {
	actingUser := c.Locals("userID").(uint)

	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return s.fail(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid user ID"))
	}
	if uint(id) != actingUser {
		return s.fail(c, fiber.StatusForbidden,
			models.NewForbiddenError("You can only update your own profile"))
	}

	var req models.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Bio == nil && req.ProfilePicture == nil {
		return s.fail(c, fiber.StatusBadRequest,
			models.NewValidationError("No fields to update"))
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	user, err := s.userRepo.GetByID(ctx, uint(id))
	if err != nil {
		return s.fail(c, statusFor(err), err)
	}

	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.ProfilePicture != nil {
		user.ProfilePicture = *req.ProfilePicture
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return s.fail(c, statusFor(err), err)
	}

	cache.Invalidate(ctx, s.redis, profileCacheKey(user.ID))

	return c.JSON(toPublicUser(user))
}

// DeleteUser handles DELETE /api/users/:id (self only). Posts, likes
// and comments belonging to the account go with it.
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	actingUser := c.Locals("userID").(uint)

	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return s.fail(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid user ID"))
	}
	if uint(id) != actingUser {
		return s.fail(c, fiber.StatusForbidden,
			models.NewForbiddenError("You can only delete your own account"))
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := s.userRepo.Delete(ctx, uint(id)); err != nil {
		return s.fail(c, statusFor(err), err)
	}

	cache.Invalidate(ctx, s.redis, profileCacheKey(uint(id)))

	return c.SendStatus(fiber.StatusNoContent)
}
