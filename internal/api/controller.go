// Package api implements the versioned JSON API. All routes are mounted
// under /api/v1; everything except the auth endpoints and health check sits
// behind the JWT middleware.
package api

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/obralens/obralens/internal/auth"
	"github.com/obralens/obralens/internal/conf"
	"github.com/obralens/obralens/internal/datastore"
	"github.com/obralens/obralens/internal/detection"
	"github.com/obralens/obralens/internal/errors"
	"github.com/obralens/obralens/internal/logging"
	"github.com/obralens/obralens/internal/model"
	"github.com/obralens/obralens/internal/observability"
	"github.com/obralens/obralens/internal/project"
	"github.com/obralens/obralens/internal/report"
	"github.com/obralens/obralens/internal/review"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Settings *conf.Settings
	DS       datastore.Interface

	Auth     *auth.Service
	Projects *project.Service
	Review   *review.Pipeline
	Detector *detection.Client
	Reports  *report.Generator

	projectCache *cache.Cache // short-lived cache for project reads
	apiLogger    *slog.Logger
	metrics      *observability.Metrics
	startTime    time.Time
}

// Config bundles the controller's dependencies.
type Config struct {
	Echo     *echo.Echo
	Settings *conf.Settings
	DS       datastore.Interface
	Auth     *auth.Service
	Projects *project.Service
	Review   *review.Pipeline
	Detector *detection.Client
	Reports  *report.Generator
	Metrics  *observability.Metrics
}

// New creates the API controller and registers all routes.
func New(cfg Config) *Controller {
	c := &Controller{
		Echo:         cfg.Echo,
		Settings:     cfg.Settings,
		DS:           cfg.DS,
		Auth:         cfg.Auth,
		Projects:     cfg.Projects,
		Review:       cfg.Review,
		Detector:     cfg.Detector,
		Reports:      cfg.Reports,
		projectCache: cache.New(30*time.Second, time.Minute),
		apiLogger:    logging.ForService("api"),
		metrics:      cfg.Metrics,
		startTime:    time.Now(),
	}
	c.Group = cfg.Echo.Group("/api/v1")
	if c.metrics != nil {
		c.Group.Use(c.metricsMiddleware())
	}
	c.initRoutes()
	return c
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)

	// Public auth endpoints.
	authGroup := c.Group.Group("/auth")
	authGroup.POST("/login", c.LoginHandler)
	authGroup.POST("/complete-registration", c.CompleteRegistration)
	authGroup.POST("/security-question", c.SecurityQuestionHandler)
	authGroup.POST("/reset-password", c.ResetPasswordHandler)

	authenticated := c.Auth.Middleware()

	users := c.Group.Group("/users", authenticated, auth.RequireRole(model.RoleAdmin))
	users.POST("", c.PreRegisterUser)

	profile := c.Group.Group("/profile", authenticated)
	profile.GET("/me", c.GetProfile)
	profile.PUT("/me", c.UpdateProfile)
	profile.PATCH("/password", c.ChangePassword)
	profile.PATCH("/avatar", c.UpdateAvatar)

	projects := c.Group.Group("/projects", authenticated)
	projects.GET("", c.ListProjects)
	projects.POST("", c.CreateProject)

	// Review routes must be registered before /:id so "review" and
	// "process-images" are not captured as project ids.
	projects.POST("/process-images", c.ProcessImages)
	projects.GET("/review/:reviewId", c.GetReview)
	projects.GET("/review/:reviewId/images/:imageId", c.GetReviewImage)
	projects.POST("/review/:reviewId/save", c.SaveReview)

	projects.GET("/:id", c.GetProject)
	projects.PUT("/:id", c.UpdateProject)
	projects.DELETE("/:id", c.DeleteProject, auth.RequireRole(model.RoleAdmin))

	projects.POST("/:projectId/inspections", c.CreateInspection)
	projects.DELETE("/:projectId/inspections/:inspectionId", c.DeleteInspection)
	projects.DELETE("/:projectId/inspections/:inspectionId/images/:imageName", c.DeleteInspectionImage)
	projects.GET("/:projectId/report/pdf/inspections/:inspectionId", c.GenerateReport)

	detectionGroup := c.Group.Group("/detection", authenticated)
	detectionGroup.POST("/switch-model/:name", c.SwitchDetectionModel)
}

// HealthCheck returns basic process liveness information.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":     "healthy",
		"uptime_sec": int(time.Since(c.startTime).Seconds()),
	})
}

// ErrorResponse is the JSON body returned for every API error.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response with a fresh correlation id.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a short random identifier for error tracking.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError logs an error with a correlation id and returns the JSON error
// response with the given status code.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)

	var errorStr string
	if err != nil {
		errorStr = err.Error()
	} else {
		errorStr = message
	}
	c.apiLogger.Error("API error",
		"correlation_id", resp.CorrelationID,
		"message", message,
		"error", errorStr,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP(),
	)

	return ctx.JSON(code, resp)
}

// ServiceError maps a service-layer error onto its HTTP status via the error
// category and returns the JSON error response.
func (c *Controller) ServiceError(ctx echo.Context, err error, message string) error {
	return c.HandleError(ctx, err, message, statusFor(err))
}

// statusFor maps error categories to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.IsValidation(err):
		return http.StatusBadRequest
	case errors.IsCategory(err, errors.CategoryAuth):
		return http.StatusUnauthorized
	case errors.IsCategory(err, errors.CategoryForbidden):
		return http.StatusForbidden
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// invalidateProjectCache drops cached project reads after any mutation.
func (c *Controller) invalidateProjectCache() {
	c.projectCache.Flush()
}
