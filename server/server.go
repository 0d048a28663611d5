// Package server contains the HTTP surface of the InstaPurr API.
package server

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"instapurr/cache"
	"instapurr/config"
	"instapurr/database"
	"instapurr/middleware"
	"instapurr/models"
	"instapurr/repository"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// dbTimeout bounds every database round-trip issued from a handler.
const dbTimeout = 5 * time.Second

const tokenIssuer = "instapurr-api"

// Server holds all dependencies and provides handlers
type Server struct {
	config      *config.Config
	db          *gorm.DB
	redis       *redis.Client
	prom        *fiberprometheus.FiberPrometheus
	validate    *validator.Validate
	userRepo    repository.UserRepository
	postRepo    repository.PostRepository
	likeRepo    repository.LikeRepository
	commentRepo repository.CommentRepository
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// A partial schema must never serve traffic.
	if err := database.EnsureSchema(db); err != nil {
		return nil, fmt.Errorf("schema setup failed: %w", err)
	}

	redisClient := cache.NewClient(cfg.RedisURL)

	srv := newServer(cfg, db, redisClient)
	srv.prom = middleware.InitMetrics("instapurr-api")
	return srv, nil
}

// newServer wires repositories onto existing connections. Tests use it
// directly with an in-memory database. The Prometheus middleware stays
// off here: it registers process-global collectors, so only NewServer
// attaches it.
func newServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	return &Server{
		config:      cfg,
		db:          db,
		redis:       redisClient,
		validate:    validator.New(),
		userRepo:    repository.NewUserRepository(db),
		postRepo:    repository.NewPostRepository(db),
		likeRepo:    repository.NewLikeRepository(db),
		commentRepo: repository.NewCommentRepository(db),
	}
}

// SetupMiddleware configures global middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Request ID for tracing
	app.Use(requestid.New())

	// Security headers
	app.Use(helmet.New())

	// Structured logging middleware
	app.Use(middleware.StructuredLogger())

	// Prometheus request metrics
	if s.prom != nil {
		app.Use(s.prom.Middleware)
	}

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"message": "Too many requests, please try again later.",
			})
		},
	}))

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health check
	api.Get("/health", s.HealthCheck)

	// Prometheus scrape endpoint
	if s.prom != nil {
		s.prom.RegisterAt(app, "/metrics")
	}

	// Uploaded images are served from a public static prefix.
	app.Static("/uploads", s.config.UploadDir)

	// Auth and account routes
	users := api.Group("/users")
	users.Get("/check", s.CheckUsername)
	users.Post("/register", middleware.RateLimit(s.redis, 5, 10*time.Minute, "register"), s.Register)
	users.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	users.Post("/logout", s.AuthRequired(), s.Logout)
	users.Get("/:id", s.GetUserProfile)
	users.Put("/:id", s.AuthRequired(), s.UpdateUserProfile)
	users.Delete("/:id", s.AuthRequired(), s.DeleteUser)

	// Feed routes are public; the viewer is resolved from the token when
	// present, otherwise from the userId query parameter.
	posts := api.Group("/posts")
	posts.Get("/", s.GetFeed)
	posts.Get("/user/:id", s.GetUserPosts)
	posts.Get("/liked/:id", s.GetLikedPosts)
	posts.Get("/:id", s.GetPost)
	posts.Post("/", s.AuthRequired(), middleware.RateLimit(s.redis, 10, time.Minute, "create_post"), s.CreatePost)
	posts.Post("/upload", s.AuthRequired(), middleware.RateLimit(s.redis, 10, time.Minute, "upload"), s.UploadImage)
	posts.Delete("/:id", s.AuthRequired(), s.DeletePost)

	// Like toggle
	likes := api.Group("/likes", s.AuthRequired())
	likes.Post("/add", s.AddLike)
	likes.Post("/remove", s.RemoveLike)
	likes.Delete("/remove", s.RemoveLike)

	// Comments
	comments := api.Group("/comments")
	comments.Get("/", s.GetComments)
	comments.Post("/", s.AuthRequired(), middleware.RateLimit(s.redis, 15, time.Minute, "create_comment"), s.CreateComment)
}

// HealthCheck handles health check requests
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), dbTimeout)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"message": "InstaPurr API",
		"status":  "healthy",
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Shutdown releases server resources.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			return err
		}
	}
	return database.Close(s.db)
}

// AuthRequired returns the authentication middleware.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c)
		if tokenString == "" {
			return s.fail(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := s.parseToken(tokenString)
		if err != nil {
			return s.fail(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		// Revoked sessions are denied when Redis is available.
		if jti, ok := claims["jti"].(string); ok && s.redis != nil {
			revoked, err := s.redis.Exists(c.UserContext(), revokedSessionKey(jti)).Result()
			if err == nil && revoked > 0 {
				return s.fail(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Session has been revoked"))
			}
		}

		userID, err := subjectID(claims)
		if err != nil {
			return s.fail(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token claims"))
		}

		c.Locals("userID", userID)
		c.Locals("claims", claims)
		return c.Next()
	}
}

// parseToken validates signature, signing method, expiry and issuer.
func (s *Server) parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// viewerID resolves the viewing user for public feed endpoints: the
// bearer token when present, otherwise the userId query parameter.
// Returns 0 for anonymous viewers.
func (s *Server) viewerID(c *fiber.Ctx) uint {
	if tokenString := bearerToken(c); tokenString != "" {
		if claims, err := s.parseToken(tokenString); err == nil {
			if id, err := subjectID(claims); err == nil {
				return id
			}
		}
	}
	return uint(c.QueryInt("userId", 0))
}

// requestCtx bounds handler database work with a timeout so a stalled
// database surfaces as an error instead of a hung request.
func requestCtx(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), dbTimeout)
}

// fail renders an error response, including wrapped detail outside
// production.
func (s *Server) fail(c *fiber.Ctx, status int, err error) error {
	return models.RespondWithError(c, status, err, !s.config.IsProduction())
}

// statusFor maps repository error codes to HTTP statuses.
func statusFor(err error) int {
	switch {
	case models.HasCode(err, models.CodeNotFound):
		return fiber.StatusNotFound
	case models.HasCode(err, models.CodeValidation):
		return fiber.StatusBadRequest
	case models.HasCode(err, models.CodeConflict):
		return fiber.StatusConflict
	case models.HasCode(err, models.CodeUnauthorized):
		return fiber.StatusUnauthorized
	case models.HasCode(err, models.CodeForbidden):
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

func bearerToken(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

func subjectID(claims jwt.MapClaims) (uint, error) {
	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, fmt.Errorf("missing sub claim")
	}
	id, err := strconv.ParseUint(sub, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func revokedSessionKey(jti string) string {
	return "session:revoked:" + jti
}
