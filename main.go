package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/face-register/internal/auth"
	"github.com/example/face-register/internal/config"
	"github.com/example/face-register/internal/facedetect"
	"github.com/example/face-register/internal/facedetect/cascade"
	"github.com/example/face-register/internal/grpcclient"
	"github.com/example/face-register/internal/handlers"
	"github.com/example/face-register/internal/imageprocessor"
	"github.com/example/face-register/internal/logging"
	"github.com/example/face-register/internal/repository"
	"github.com/example/face-register/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db := initDatabase(ctx, cfg.DatabaseDSN, logger)
	repo := repository.NewUserRepository(db, logger)
	if err := repo.AutoMigrate(ctx); err != nil {
		logger.Fatal("auto migrate failed", zap.Error(err))
	}

	redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
	defer redisCancel()
	redisClient := initRedis(redisCtx, cfg.RedisAddr, logger)
	defer redisClient.Close()

	detector, closeDetector := initDetector(ctx, cfg, logger)
	defer closeDetector()

	if cfg.GRPCAddr != "" {
		grpcServer := serveDetector(cfg.GRPCAddr, detector, logger)
		defer grpcServer.GracefulStop()
	}

	processor := imageprocessor.NewProcessor(detector)
	cache := usecase.NewRedisCache(redisClient)
	uc := usecase.NewRegistrationUseCase(repo, cache, processor, logger, usecase.WithPortraitTTL(cfg.PortraitCacheTTL))

	r := gin.Default()
	r.Use(handlers.CORS(cfg.CORSAllowedOrigins))

	authMiddleware := auth.JWTMiddleware(cfg.JWTSecret, cfg.JWTAudience, "staff", "admin")
	handlers.RegisterRoutes(r, uc, authMiddleware)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("registration API listening", zap.String("addr", cfg.HTTPAddr))
	if err := serveHTTPServer(server, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func initDatabase(ctx context.Context, dsn string, zapLogger *zap.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, addr string, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

// initDetector prefers a remote detection service and otherwise loads a pool
// of local cascades, since a single cascade is not safe for concurrent use.
func initDetector(ctx context.Context, cfg *config.Config, logger *zap.Logger) (imageprocessor.Detector, func()) {
	if cfg.DetectorAddr != "" {
		detector, conn, err := grpcclient.DialFaceDetector(ctx, cfg.DetectorAddr, logger)
		if err != nil {
			logger.Fatal("failed to connect to face detector", zap.Error(err))
		}
		logger.Info("using remote face detector", zap.String("addr", cfg.DetectorAddr))
		return detector, func() { conn.Close() }
	}

	pool, err := cascade.NewPool(cfg.CascadePath, cfg.DetectorPoolSize)
	if err != nil {
		logger.Fatal("failed to load face cascade", zap.Error(err), zap.String("path", cfg.CascadePath))
	}
	logger.Info("using local face cascade", zap.String("path", cfg.CascadePath), zap.Int("pool_size", pool.Size()))
	return pool, func() {
		if err := pool.Close(); err != nil {
			logger.Warn("failed to release face cascades", zap.Error(err))
		}
	}
}

func serveDetector(addr string, detector imageprocessor.Detector, logger *zap.Logger) *grpc.Server {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal("failed to listen for gRPC", zap.Error(err), zap.String("addr", addr))
	}

	grpcServer := grpc.NewServer()
	facedetect.RegisterServer(grpcServer, facedetect.NewServer(detector, logger))
	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("gRPC server stopped", zap.Error(err))
		}
	}()
	logger.Info("face detector gRPC listening", zap.String("addr", addr))
	return grpcServer
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
