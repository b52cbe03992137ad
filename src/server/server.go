package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"labeladmin/src/app"
	"labeladmin/src/auth"
	cfg "labeladmin/src/configuration"
	"labeladmin/src/imaging"
	"labeladmin/src/logging"
	"labeladmin/src/repository"
	"labeladmin/src/session"
)

const shutdownTimeout = 10 * time.Second

type (
	// Dependencies is everything the router needs. Exporter may be nil, in
	// which case the export endpoints are not registered.
	Dependencies struct {
		Config      *cfg.Properties
		Logger      *zap.Logger
		Collections *app.CollectionService
		Verifier    auth.Verifier
		Sessions    session.Store
		Normalizer  *imaging.Normalizer
		Exporter    *app.Exporter
	}
)

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	config := deps.Config
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery(), logging.Requests(deps.Logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     config.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Cache-Control"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if config.Server.Pprof {
		pprof.Register(router)
	}

	templates, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	router.SetHTMLTemplate(templates)

	authHandler := NewAuthHandler(deps.Verifier, deps.Sessions, config.Session.CookieName, deps.Logger)
	collectionHandler := NewCollectionHandler(deps.Collections, deps.Logger)
	imageHandler := NewImageHandler(deps.Normalizer, deps.Logger)
	pageHandler := NewPageHandler(deps.Collections, deps.Normalizer, deps.Logger)

	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "success"}) })

	api := router.Group("/api")
	api.POST("/auth/login", authHandler.Login)
	api.POST("/images/normalize", imageHandler.Normalize)
	for _, c := range deps.Collections.Schema().Collections {
		collectionHandler.Register(router, c)
	}
	if deps.Exporter != nil {
		exportHandler := NewExportHandler(deps.Exporter, deps.Collections.Schema(), deps.Logger)
		api.GET("/exports", exportHandler.List)
		api.POST("/exports/:collection", exportHandler.Create)
		api.DELETE("/exports", exportHandler.Delete)
	}

	router.GET("/session/events", authHandler.Events)

	pages := router.Group("/", withBrand(config.Server.Brand), authHandler.Gate)
	pages.GET(session.LoginRoute, authHandler.LoginPage)
	pages.POST(session.LoginRoute, authHandler.LoginForm)
	pages.POST("/logout", authHandler.Logout)
	pages.GET(session.HomeRoute, pageHandler.Home)
	for _, c := range deps.Collections.Schema().Collections {
		pages.GET(c.Page, pageHandler.Show(c))
		pages.POST(c.Page, pageHandler.Submit(c))
	}

	router.NoRoute(func(ctx *gin.Context) { ctx.JSON(http.StatusNotFound, gin.H{}) })
	return router, nil
}

// Build opens every backend named in config. The returned cleanup closes them.
func Build(ctx context.Context, config *cfg.Properties, logger *zap.Logger) (Dependencies, func(), error) {
	deps := Dependencies{Config: config, Logger: logger}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	schema, err := app.LoadSchema()
	if err != nil {
		return deps, cleanup, err
	}

	store, err := repository.Open(ctx, config.Store)
	if err != nil {
		return deps, cleanup, fmt.Errorf("open document store: %w", err)
	}
	closers = append(closers, func() {
		if err := store.Close(); err != nil {
			logger.Warn("close document store", zap.Error(err))
		}
	})
	deps.Collections = app.NewCollectionService(store, schema)

	switch config.Session.Driver {
	case "redis":
		client, err := session.NewRedisClient(config.Session.RedisAddr, config.Session.RedisPassword, config.Session.RedisDB)
		if err != nil {
			cleanup()
			return deps, func() {}, err
		}
		closers = append(closers, func() { client.Close() })
		deps.Sessions = session.NewRedisStore(client)
	case "", "memory":
		deps.Sessions = session.NewMemoryStore()
	default:
		cleanup()
		return deps, func() {}, fmt.Errorf("unknown session driver %q", config.Session.Driver)
	}

	deps.Verifier, err = auth.NewVerifier(ctx, config.Auth)
	if err != nil {
		cleanup()
		return deps, func() {}, err
	}

	deps.Normalizer = imaging.New(
		imaging.WithMaxSourceBytes(config.Image.MaxSourceBytes),
		imaging.WithMaxEdge(config.Image.MaxEdge),
		imaging.WithMaxPayloadChars(config.Image.MaxPayloadChars),
	)

	if config.S3.Enabled {
		s3, err := app.NewMinioS3Client(config.S3, logger)
		if err != nil {
			cleanup()
			return deps, func() {}, err
		}
		deps.Exporter = app.NewExporter(deps.Collections, s3)
	}
	return deps, cleanup, nil
}

// RunServer serves until ctx is cancelled, then drains connections.
func RunServer(ctx context.Context, config *cfg.Properties, logger *zap.Logger) error {
	if config.Server.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	deps, cleanup, err := Build(ctx, config, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	router, err := NewRouter(deps)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: config.Server.ReadTimeout,
		// Streaming handlers end when the server context is cancelled.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr),
			zap.String("store", config.Store.Driver),
			zap.String("session", config.Session.Driver),
			zap.String("auth", config.Auth.Mode),
			zap.Bool("exports", deps.Exporter != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
