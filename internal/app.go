package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stride/internal/controllers"
	"stride/internal/outbox"
	"stride/internal/providers"
	"stride/internal/sampler"
	"stride/internal/services"
	"stride/internal/statistic/interfaces"
	"stride/internal/storage"
	"stride/internal/structures"
)

const loadTimeout = 30 * time.Second

type App struct {
	WebServer *http.Server
}

// NewHandler mounts the API routes behind the metrics middleware next to the
// health and metrics endpoints.
func NewHandler(healthController *controllers.HealthController, conf *structures.Config, router providers.RouterProviderInterface, metrics providers.MetricsProviderInterface) http.Handler {
	apiMux := http.NewServeMux()
	for _, route := range router.GetRoutes() {
		apiMux.Handle(route.Url, route.Handler)
	}

	instrumentedAPI := providers.MetricsMiddleware(metrics, router.Paths(), apiMux)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthController.Health)
	if conf.Metrics.Enabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.Handle("/", instrumentedAPI)
	return mux
}

func NewApp(
	healthController *controllers.HealthController,
	scheduler interfaces.SchedulerInterface,
	service services.RunServiceInterface,
	writes outbox.OutboxInterface,
	feed *sampler.Feed,
	store storage.RecordStore,
	conf *structures.Config,
	logger providers.Logger,
	router providers.RouterProviderInterface,
	metrics providers.MetricsProviderInterface,
) (*App, error) {
	logger.Infof(providers.TypeApp, "Starting %s", conf.AppName)
	err := scheduler.Restore()
	if err != nil {
		logger.Errorf(providers.TypeApp, "Restore error: %s", err)
	}

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), loadTimeout)
	err = service.Load(loadCtx)
	cancelLoad()
	if err != nil {
		logger.Errorf(providers.TypeApp, "Load error: %s", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writes.Start(ctx)
	go logFailures(writes, logger)

	if err = feed.Start(ctx); err != nil {
		logger.Errorf(providers.TypeApp, "Location feed error: %s", err)
	}

	app := &App{
		WebServer: &http.Server{
			Addr:         conf.WebServer.Host + ":" + strconv.Itoa(conf.WebServer.Port),
			Handler:      NewHandler(healthController, conf, router, metrics),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	scheduler.Init()

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof(providers.TypeApp, "Listening HTTP clients on %s:%d", conf.WebServer.Host, conf.WebServer.Port)
		if err := app.WebServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-stop:
		logger.Infof(providers.TypeApp, "Shutdown signal received")
	case err := <-serverErr:
		runErr = fmt.Errorf("server error: %w", err)
	}

	feed.Stop()
	scheduler.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err = app.WebServer.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}

	writes.Stop()
	if err = scheduler.Persist(); err != nil && runErr == nil {
		runErr = err
	}
	if err = store.Close(); err != nil {
		logger.Errorf(providers.TypeApp, "Closing record store: %s", err)
	}
	if runErr != nil {
		logger.Errorf(providers.TypeApp, "Stopped with error: %s", runErr)
		logger.Close()
		return nil, runErr
	}
	logger.Infof(providers.TypeApp, "gracefully stopped")
	logger.Close()
	return app, nil
}

func logFailures(writes outbox.OutboxInterface, logger providers.Logger) {
	for failure := range writes.Errors() {
		logger.Errorf(providers.TypeApp, "Dropped %s write %s: %s", failure.Kind, failure.TaskID, failure.Err)
	}
}
