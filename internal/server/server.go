package server

import (
	"context"

	"github.com/Evan-Ewald-Richardson/TREES/internal/auth"
	"github.com/Evan-Ewald-Richardson/TREES/internal/config"
	"github.com/Evan-Ewald-Richardson/TREES/internal/course"
	"github.com/Evan-Ewald-Richardson/TREES/internal/editor"
	"github.com/Evan-Ewald-Richardson/TREES/internal/gpx"
	"github.com/Evan-Ewald-Richardson/TREES/internal/leaderboard"
	"github.com/Evan-Ewald-Richardson/TREES/internal/segtime"
	"github.com/Evan-Ewald-Richardson/TREES/internal/shared/wire"
	"github.com/Evan-Ewald-Richardson/TREES/internal/strava"
	"github.com/Evan-Ewald-Richardson/TREES/internal/stream"
	"github.com/Evan-Ewald-Richardson/TREES/internal/uploads"
	"github.com/Evan-Ewald-Richardson/TREES/internal/users"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App     *fiber.App
	Cfg     config.Config
	DB      *pgxpool.Pool
	Redis   *redis.Client
	Stream  *stream.Hub
	Editors *editor.Registry
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: 12 << 20, // gpx uploads
	})
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
	}

	registerRoutes(s)
	return s
}

// editorBackend lets editing sessions load and save courses through the
// same services the HTTP surface uses.
type editorBackend struct {
	courses *course.Service
	boards  *leaderboard.Service
}

func (b *editorBackend) GetCourse(ctx context.Context, id int) (wire.Course, error) {
	return b.courses.Get(ctx, id)
}

func (b *editorBackend) CreateCourse(ctx context.Context, draft editor.CourseDraft) (wire.Course, error) {
	return b.courses.Create(ctx, course.CreateInput{
		Name:        draft.Name,
		BufferM:     draft.BufferM,
		Gates:       draft.Gates,
		CreatedBy:   draft.CreatedBy,
		Description: draft.Description,
	})
}

func (b *editorBackend) CoursesSummary(ctx context.Context) ([]wire.CourseSummary, error) {
	return b.courses.Summary(ctx)
}

func (b *editorBackend) Leaderboard(ctx context.Context, courseID int) (wire.Leaderboard, error) {
	return b.boards.Board(ctx, courseID)
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	courseSvc := course.NewService(s.DB)
	boardSvc := leaderboard.NewService(s.DB, s.Stream)
	backend := &editorBackend{courses: courseSvc, boards: boardSvc}

	// segment geometry goes through the HTTP contract so it can be served
	// by this instance or offloaded to another
	segments := segtime.NewClient(s.Cfg.SegmentServiceURL)
	s.Editors = editor.NewRegistry(func() *editor.Session {
		return editor.NewSession(segments, backend, nil)
	})

	api := s.App.Group("/api")
	gpx.RegisterRoutes(api)

	authSvc := auth.NewService(s.Cfg.JWTSecret, s.DB, s.Cfg.SuperUserName)
	auth.RegisterRoutes(s.App.Group("/auth"), authSvc)
	s.App.Post("/users/login", auth.LoginHandler(authSvc))
	s.App.Get("/courses_summary", course.SummaryHandler(courseSvc))
	course.RegisterRoutes(s.App.Group("/courses"), courseSvc, jwtMiddleware)
	leaderboard.RegisterRoutes(s.App.Group("/leaderboard"), boardSvc, jwtMiddleware)
	users.RegisterRoutes(s.App.Group("/users"), users.NewService(s.DB), jwtMiddleware)
	uploads.RegisterRoutes(s.App, uploads.NewService(s.Cfg.UploadDir, courseSvc), jwtMiddleware)
	strava.RegisterRoutes(s.App.Group("/strava"), strava.NewService(s.Redis, s.Cfg.StravaClientID, s.Cfg.StravaSecret, s.Cfg.StravaBaseURL), jwtMiddleware)
	editor.RegisterRoutes(s.App.Group("/editor"), s.Editors)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
