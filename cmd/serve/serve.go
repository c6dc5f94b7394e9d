// Package serve implements the HTTP server subcommand.
package serve

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/obralens/obralens/internal/api"
	"github.com/obralens/obralens/internal/auth"
	"github.com/obralens/obralens/internal/conf"
	"github.com/obralens/obralens/internal/datastore"
	"github.com/obralens/obralens/internal/detection"
	"github.com/obralens/obralens/internal/httpclient"
	"github.com/obralens/obralens/internal/logging"
	"github.com/obralens/obralens/internal/observability"
	"github.com/obralens/obralens/internal/project"
	"github.com/obralens/obralens/internal/report"
	"github.com/obralens/obralens/internal/review"
)

// Command returns the serve subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings)
		},
	}
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", settings.WebServer.Port, "Port to listen on")
	return cmd
}

func run(ctx context.Context, settings *conf.Settings) error {
	logger := logging.ForService("server")

	if err := settings.EnsureDirectories(); err != nil {
		return err
	}

	store := datastore.New(settings.Storage.DataFile)
	authService := auth.NewService(store, settings.Security)
	projectService := project.NewService(store, settings.Storage.UploadsDir)

	detector := detection.NewClient(settings.Detection.ServiceURL, httpclient.New(&httpclient.Config{
		DefaultTimeout: settings.Detection.Timeout,
	}))
	reports := report.NewGenerator(store, settings.Storage.UploadsDir, settings.Report.RenderTimeout)

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	pipeline := review.NewPipeline(review.Config{
		StagingRoot: settings.Storage.StagingRoot,
		UploadsDir:  settings.Storage.UploadsDir,
		Workers:     settings.Detection.Workers,
		Detector:    detector,
		Store:       store,
		Metrics:     metrics.Review,
	})

	e := echo.New()
	e.HideBanner = true
	e.Debug = settings.WebServer.Debug
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit(settings.WebServer.BodyLimit))

	// Uploaded assets are served read-only; Echo's static handler rejects
	// path traversal.
	e.Static("/files", settings.Storage.UploadsDir)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api.New(api.Config{
		Echo:     e,
		Settings: settings,
		DS:       store,
		Auth:     authService,
		Projects: projectService,
		Review:   pipeline,
		Detector: detector,
		Reports:  reports,
		Metrics:  metrics,
	})

	// Serve until interrupted, then drain in-flight requests.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", settings.WebServer.Port)
		errCh <- e.Start(":" + settings.WebServer.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
