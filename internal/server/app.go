// Package server wires the archive server together. It connects the three
// stores, runs the relational migrations, and runs the HTTP API and the gRPC
// health endpoint until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrijs2005/archivia/internal/filex"
	"github.com/dmitrijs2005/archivia/internal/logging"
	"github.com/dmitrijs2005/archivia/internal/saga"
	"github.com/dmitrijs2005/archivia/internal/server/config"
	"github.com/dmitrijs2005/archivia/internal/server/httpapi"
	"github.com/dmitrijs2005/archivia/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/archivia/internal/server/services"
	"github.com/dmitrijs2005/archivia/internal/server/stores"

	gs "github.com/dmitrijs2005/archivia/internal/server/grpc"
)

const connectTimeout = 30 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	mongo    *stores.Mongo
	registry *prometheus.Registry

	documents *services.DocumentService
	uploads   *services.UploadService
	checker   *gs.HealthChecker
}

// NewApp connects to every store and builds the services. Connection
// failures are returned; nothing is left open on error.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	stagingDir, err := filex.EnsureStagingDir(c.StagingDir)
	if err != nil {
		return nil, fmt.Errorf("staging dir init error: %w", err)
	}
	c.StagingDir = stagingDir

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migrations error: %w", err)
	}

	mongo, err := stores.ConnectMongo(ctx, c.MongoURI, c.MongoDatabase, c.MongoCollection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mongo init error: %w", err)
	}
	if err := mongo.EnsureIndexes(ctx); err != nil {
		_ = mongo.Close(context.Background())
		_ = db.Close()
		return nil, fmt.Errorf("mongo indexes error: %w", err)
	}

	objects, err := stores.NewS3(ctx, stores.S3Config{
		Region:   c.S3Region,
		User:     c.S3RootUser,
		Password: c.S3RootPassword,
		Endpoint: c.S3BaseEndpoint,
		Bucket:   c.S3Bucket,
	})
	if err == nil {
		err = objects.EnsureBucket(ctx)
	}
	if err != nil {
		_ = mongo.Close(context.Background())
		_ = db.Close()
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	platform := stores.NewPostgres(db, repos)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	coord := saga.NewCoordinator(platform, mongo, objects,
		saga.WithLogger(logger),
		saga.WithMetrics(saga.NewPromMetrics(registry)))

	checker := gs.NewHealthChecker(map[string]gs.Pinger{
		"platform": platform,
		"metadata": mongo,
		"object":   objects,
	}, c.HealthCheckInterval, logger)

	return &App{
		config:    c,
		logger:    logger,
		db:        db,
		mongo:     mongo,
		registry:  registry,
		documents: services.NewDocumentService(coord, platform, mongo, objects, c, logger),
		uploads:   services.NewUploadService(coord, platform, objects, objects, c, logger),
		checker:   checker,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	router := httpapi.NewRouter(app.documents, app.uploads, []byte(app.config.SecretKey),
		app.registry, httpapi.NewMetrics(app.registry), app.logger)

	s := httpapi.NewServer(app.config.EndpointAddrHTTP, router, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.checker)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a signal arrives or a server fails, then closes the
// store connections.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close()
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.mongo.Close(ctx); err != nil {
		app.logger.Warn(ctx, "mongo close error", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close error", "error", err)
	}
}
