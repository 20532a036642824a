package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messenger-service/internal/config"
	"messenger-service/internal/crypto"
	"messenger-service/internal/db"
	"messenger-service/internal/delivery"
	"messenger-service/internal/handlers"
	"messenger-service/internal/logging"
	"messenger-service/internal/media"
	"messenger-service/internal/middleware"
	"messenger-service/internal/observability"
	"messenger-service/internal/presence"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/tracing"
	"messenger-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		logger.WithError(err).Fatal("setup tracing")
	}

	database, err := db.Connect(cfg.DatabaseDSN, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to db")
	}
	defer database.Close()

	var codec crypto.Codec = crypto.NopCodec{}
	if cfg.ContentSecret != "" {
		aes, err := crypto.NewAESCodec(cfg.ContentSecret)
		if err != nil {
			logger.WithError(err).Fatal("content codec")
		}
		codec = aes
	} else {
		logger.Warn("CONTENT_SECRET empty, message content stored in plaintext")
	}

	chatRepo := repositories.NewChatRepo(database, codec)
	messageRepo := repositories.NewMessageRepo(database, codec)
	userRepo := repositories.NewUserRepo(database)
	if err := userRepo.ResetPresence(ctx); err != nil {
		logger.WithError(err).Warn("reset persisted presence")
	}

	mirrors := presence.Mirrors{userRepo}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		redisMirror := presence.NewRedisMirror(rdb, cfg.ServiceName, cfg.Redis.PresenceTTL)
		if err := redisMirror.Reset(ctx); err != nil {
			logger.WithError(err).Warn("redis presence unavailable at start-up")
		}
		mirrors = append(mirrors, redisMirror)
	}

	store := buildMediaStore(ctx, cfg, logger)

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AMQP.AuditRoutingKey, cfg.ServiceName, cfg.Environment, logger)

	registry := presence.NewRegistry()
	hub := ws.NewHub(registry, logger)

	svc := delivery.NewService(delivery.Deps{
		Chats:         chatRepo,
		Messages:      messageRepo,
		Users:         userRepo,
		Presence:      registry,
		Mirror:        mirrors,
		Broadcaster:   hub,
		Media:         store,
		MaxMediaBytes: cfg.S3.MaxBytes,
		Logger:        logger,
	})

	verifier := middleware.NewJWTVerifier(cfg.JWTSecret)
	socket := ws.NewSocketHandler(hub, ws.NewRouter(hub, svc, logger), svc, verifier,
		cfg.Realtime.EventsPerSecond, cfg.Realtime.Burst, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	handlers.RegisterRoutes(router, middleware.AuthMiddleware(verifier),
		handlers.NewChatHandler(svc, audit), handlers.NewMessageHandler(svc, audit))
	handlers.RegisterDebugRoutes(router, audit, registry, hub, cfg.DebugRoutes)

	router.GET("/ws", socket.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.WithFields(logrus.Fields{
			"port":      cfg.Port,
			"publisher": rabbitmq.PublisherMode(publisher),
		}).Info("messenger service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.WithError(err).Warn("tracing shutdown")
	}
}

// buildMediaStore returns nil when no bucket is configured; media uploads then
// fail with a blob-store error.
func buildMediaStore(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) media.Store {
	if cfg.S3.Bucket == "" {
		logger.Warn("S3_BUCKET empty, media uploads disabled")
		return nil
	}
	s3cfg := media.S3Config{
		Bucket:        cfg.S3.Bucket,
		Region:        cfg.S3.Region,
		Endpoint:      cfg.S3.Endpoint,
		PublicBaseURL: cfg.S3.PublicBaseURL,
	}
	uploader, err := media.NewS3Uploader(ctx, s3cfg)
	if err != nil {
		logger.WithError(err).Warn("s3 uploader unavailable, media uploads disabled")
		return nil
	}

	var recorder media.Recorder = media.NopRecorder{}
	if cfg.Mongo.URI != "" {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			logger.WithError(err).Warn("mongo unavailable, media records disabled")
		} else {
			recorder = media.NewMongoRecorder(client.Database(cfg.Mongo.Database).Collection("media"))
		}
	}
	return media.NewS3Store(uploader, s3cfg, recorder, logger)
}
