package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/pkg/database"
	pkgjwt "github.com/weiawesome/wes-io-live/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/pkg/middleware"
	"github.com/weiawesome/wes-io-live/pkg/pubsub"
	"github.com/weiawesome/wes-io-live/search-service/internal/cache"
	"github.com/weiawesome/wes-io-live/search-service/internal/config"
	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
	"github.com/weiawesome/wes-io-live/search-service/internal/handler"
	"github.com/weiawesome/wes-io-live/search-service/internal/recorder"
	"github.com/weiawesome/wes-io-live/search-service/internal/repository"
	"github.com/weiawesome/wes-io-live/search-service/internal/service"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// 2. Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty || cfg.Log.Level == "debug",
		ServiceName: "search-service",
	})
	logger := pkglog.L()

	// 3. Init DB
	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to get underlying sql.DB")
	}
	defer sqlDB.Close()

	// Users, posts, follows and conversations belong to other services;
	// they are only migrated here for standalone deployments.
	models := domain.OwnedModels()
	if cfg.Database.MigrateReadSide {
		models = append(models, domain.ReadModels()...)
	}
	if err := database.AutoMigrate(db, models...); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Bool("read_side", cfg.Database.MigrateReadSide).Msg("database migration completed")

	// 4. Repositories and providers
	followRepo := repository.NewGormFollowRepository(db)
	historyRepo := repository.NewGormHistoryRepository(db)
	savedRepo := repository.NewGormSavedSearchRepository(db)

	providers := service.Providers{
		Users:         repository.NewGormUserProvider(db, followRepo),
		Posts:         repository.NewGormPostProvider(db),
		Conversations: repository.NewGormConversationProvider(db),
	}

	if cfg.Search.Backend == config.BackendElasticsearch {
		esClient, err := elasticsearch.NewClient(elasticsearch.Config{
			Addresses: cfg.Elasticsearch.Addresses,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create elasticsearch client")
		}

		// Verify ES connection
		res, err := esClient.Info()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to elasticsearch")
		}
		res.Body.Close()
		logger.Info().Strs("addresses", cfg.Elasticsearch.Addresses).Msg("elasticsearch connected")

		for index, mapping := range map[string]string{
			cfg.Elasticsearch.IndexUsers: repository.UserIndexMapping,
			cfg.Elasticsearch.IndexPosts: repository.PostIndexMapping,
		} {
			indexCtx, indexCancel := context.WithTimeout(context.Background(), 10*time.Second)
			created, err := repository.EnsureIndex(indexCtx, esClient, index, mapping)
			indexCancel()
			if err != nil {
				logger.Fatal().Err(err).Str("index", index).Msg("failed to prepare elasticsearch index")
			}
			if created {
				logger.Info().Str("index", index).Msg("elasticsearch index created")
			}
		}

		providers.Users = repository.NewESUserProvider(esClient, cfg.Elasticsearch.IndexUsers, followRepo)
		providers.Posts = repository.NewESPostProvider(esClient, cfg.Elasticsearch.IndexPosts, followRepo)
	}
	logger.Info().Str("backend", cfg.Search.Backend).Msg("search providers ready")

	// 5. Response cache
	var searchCache cache.SearchCache = cache.NoopCache{}
	if cfg.Cache.Enabled {
		redisCache, err := cache.NewRedisSearchCache(cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		searchCache = redisCache
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	defer searchCache.Close()

	// 6. Event bus, recorder and persistence worker
	bus, err := pubsub.NewPubSub(cfg.PubSub)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create pubsub")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := recorder.NewWorker(bus, historyRepo, savedRepo, cfg.Recorder.WriteTimeout)
	if err := worker.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start history worker")
	}

	rec := recorder.New(bus, recorder.Config{
		QueueSize:      cfg.Recorder.QueueSize,
		PublishTimeout: cfg.Recorder.PublishTimeout,
	})
	rec.Start()
	logger.Info().Str("driver", cfg.PubSub.Driver).Msg("history recorder started")

	// 7. Services
	searchService := service.NewSearchService(providers, searchCache, service.CacheOptions{
		Prefix: cfg.Cache.Prefix,
		TTL:    cfg.Cache.TTL,
	}, rec, service.WithSearchTimeout(cfg.Search.Timeout))
	historyService := service.NewHistoryService(historyRepo)
	savedService := service.NewSavedSearchService(savedRepo, rec)

	// 8. Auth
	jwtManager, err := pkgjwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 0)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create jwt manager")
	}
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)

	// 9. Setup Gin router + HTTP server
	httpHandler := handler.NewHandler(searchService, historyService, savedService, authMiddleware)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	httpHandler.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logger.Info().Str("addr", addr).Msg("search-service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// 10. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		// 1. drain HTTP so no new searches are recorded
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("HTTP server forced to shutdown")
		}

		// 2. flush queued events to the bus
		rec.Close()

		// 3. stop the worker; events still on the bus are dropped
		cancel()
		<-worker.Done()

		if err := bus.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing pubsub")
		}
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("search-service stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}
