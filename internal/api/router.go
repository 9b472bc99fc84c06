package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/chamada/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/chamada/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/chamada/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/chamada/internal/ws"
)

// bodyLimit leaves room for multipart overhead around a 10MB image
const bodyLimit = 12 * 1024 * 1024

type Dependencies struct {
	Enrollment  handler.Enroller
	Students    handler.StudentReader
	Recognition handler.Recognizer
	Attendance  handler.AttendanceMarker
	Hasher      handler.CredentialHasher
	Store       handler.Pinger
	// Camera is nil when the camera is disabled
	Camera handler.FrameSource
	Hub    *ws.Hub
}

type Options struct {
	RequestTimeout time.Duration
	// RateLimit is requests per minute per client IP
	RateLimit int
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	deps        *Dependencies
	opts        Options
	rateLimiter *middleware.RateLimiter
	cancelHub   context.CancelFunc
}

func NewRouter(logger *slog.Logger, deps *Dependencies, opts Options) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Chamada API",
		BodyLimit:    bodyLimit,
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
		opts:   opts,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Swagger documentation
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	var (
		store  handler.Pinger
		camera handler.FrameSource
	)
	if r.deps != nil {
		store = r.deps.Store
		camera = r.deps.Camera
	}
	healthHandler := handler.NewHealthHandler(store, camera)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	if r.deps == nil {
		return
	}

	v1 := r.app.Group("/v1")

	// Long-lived connections stay outside the request timeout
	if r.deps.Hub != nil {
		hubCtx, hubCancel := context.WithCancel(context.Background())
		r.cancelHub = hubCancel
		go r.deps.Hub.Run(hubCtx)

		v1.Get("/ws", ws.UpgradeMiddleware(), ws.Handler(r.deps.Hub))
	}

	cameraHandler := handler.NewCameraHandler(camera, r.logger)
	v1.Get("/camera/feed", cameraHandler.Feed)

	// Per-IP rate limiting; capture endpoints contend for the one camera
	rateLimit := r.opts.RateLimit
	if rateLimit <= 0 {
		rateLimit = middleware.DefaultRateLimiterConfig().Max
	}
	captureLimit := EndpointLimit(rateLimit / 4)
	r.rateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Max:    rateLimit,
		Window: time.Minute,
		PerEndpoint: map[string]middleware.EndpointRateLimit{
			"/v1/students/capture":  captureLimit,
			"/v1/recognize/capture": captureLimit,
		},
	})

	api := v1.Group("", r.rateLimiter.Handler(), middleware.Timeout(r.opts.RequestTimeout))

	hasher := r.deps.Hasher
	if hasher == nil {
		hasher = handler.NewArgon2Hasher()
	}
	studentHandler := handler.NewStudentHandler(r.deps.Enrollment, r.deps.Students, camera, hasher, r.logger)
	recognitionHandler := handler.NewRecognitionHandler(r.deps.Recognition, camera, r.logger)
	attendanceHandler := handler.NewAttendanceHandler(r.deps.Attendance, camera, r.logger)

	// Students
	api.Post("/students", studentHandler.Create)
	api.Post("/students/capture", studentHandler.Capture)
	api.Get("/students", studentHandler.List)
	api.Get("/students/:id", studentHandler.Get)
	api.Get("/students/:id/image", studentHandler.Image)

	// Recognition
	api.Post("/recognize", recognitionHandler.Recognize)
	api.Post("/recognize/capture", recognitionHandler.Capture)

	// Attendance
	api.Post("/attendance", attendanceHandler.Mark)

	// Camera
	api.Get("/camera/snapshot", cameraHandler.Snapshot)
}

// EndpointLimit is a per-minute limit of at least one request.
func EndpointLimit(perMinute int) middleware.EndpointRateLimit {
	if perMinute < 1 {
		perMinute = 1
	}
	return middleware.EndpointRateLimit{Requests: perMinute, Window: time.Minute}
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	// Stop WebSocket hub
	if r.cancelHub != nil {
		r.cancelHub()
	}

	// Stop rate limiter cleanup goroutine
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return r.app.Shutdown()
}
