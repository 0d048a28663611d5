package server

import (
	"strconv"
	"strings"
	"time"

	"instapurr/models"
	"instapurr/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// CheckUsername handles GET /api/users/check?username=...
// The lookup is a case-sensitive exact match.
func (s *Server) CheckUsername(c *fiber.Ctx) error {
	username := c.Query("username")
	if username == "" {
		return s.fail(c, fiber.StatusBadRequest,
			models.NewValidationError("Username is required"))
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	exists, err := s.userRepo.UsernameExists(ctx, username)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(fiber.Map{"exists": exists})
}

// Register handles POST /api/users/register
func (s *Server) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	req.Username = strings.TrimSpace(req.Username)
	if err := validation.ValidateUsername(req.Username); err != nil {
		return s.fail(c, fiber.StatusBadRequest, models.NewValidationError(err.Error()))
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		return s.fail(c, fiber.StatusBadRequest, models.NewValidationError(err.Error()))
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	// Pre-check is advisory; the unique constraint on the insert is the
	// final arbiter under concurrent registrations.
	exists, err := s.userRepo.UsernameExists(ctx, req.Username)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, err)
	}
	if exists {
		return s.fail(c, fiber.StatusConflict,
			models.NewConflictError("Username already taken"))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	user := &models.User{
		Username: req.Username,
		Password: string(hashedPassword),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if models.HasCode(err, models.CodeConflict) {
			return s.fail(c, fiber.StatusConflict, err)
		}
		return s.fail(c, fiber.StatusInternalServerError, err)
	}

	token, err := s.generateToken(user.ID)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":       user.ID,
		"username": user.Username,
		"token":    token,
	})
}

// Login handles POST /api/users/login. Unknown usernames and wrong
// passwords share one generic message so usernames cannot be
// enumerated.
func (s *Server) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if req.Username == "" || req.Password == "" {
		return s.fail(c, fiber.StatusBadRequest,
			models.NewValidationError("Username and password are required"))
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, err)
	}
	if user == nil {
		return s.fail(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid username or password"))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return s.fail(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid username or password"))
	}

	token, err := s.generateToken(user.ID)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"id":              user.ID,
		"username":        user.Username,
		"profile_picture": user.ProfilePicture,
		"bio":             user.Bio,
		"created_at":      user.CreatedAt,
		"token":           token,
	})
}

// Logout handles POST /api/users/logout. The token's jti is revoked in
// Redis until the token would have expired anyway. Without Redis the
// token simply ages out.
func (s *Server) Logout(c *fiber.Ctx) error {
	if s.redis == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}

	claims, ok := c.Locals("claims").(jwt.MapClaims)
	if !ok {
		return c.SendStatus(fiber.StatusNoContent)
	}

	jti, _ := claims["jti"].(string)
	exp, _ := claims["exp"].(float64)
	if jti == "" || exp == 0 {
		return c.SendStatus(fiber.StatusNoContent)
	}

	ttl := time.Until(time.Unix(int64(exp), 0))
	if ttl > 0 {
		if err := s.redis.Set(c.UserContext(), revokedSessionKey(jti), "1", ttl).Err(); err != nil {
			return s.fail(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		}
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// generateToken creates a JWT token for the given user ID
func (s *Server) generateToken(userID uint) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iss": tokenIssuer,
		"aud": "instapurr-client",
		"exp": now.Add(time.Hour * 24 * 7).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"jti": uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}
