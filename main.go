package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/krishanu7/battleship-engine/config"
	"github.com/krishanu7/battleship-engine/db"
	"github.com/krishanu7/battleship-engine/internal/archive"
	"github.com/krishanu7/battleship-engine/internal/auth"
	"github.com/krishanu7/battleship-engine/internal/game"
	"github.com/krishanu7/battleship-engine/internal/leaderboard"
	"github.com/krishanu7/battleship-engine/internal/match"
	"github.com/krishanu7/battleship-engine/internal/notify"
	"github.com/krishanu7/battleship-engine/internal/reminder"
	"github.com/krishanu7/battleship-engine/internal/ws"
	"github.com/krishanu7/battleship-engine/pkg/logging"
	redisPkg "github.com/krishanu7/battleship-engine/pkg/redis"
	wsPkg "github.com/krishanu7/battleship-engine/pkg/websocket"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// store is everything the server needs from persistence.
type store interface {
	game.Store
	auth.Accounts
	leaderboard.Source
}

func main() {
	cfg := config.LoadConfig()
	if err := logging.Init(cfg.Env); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logging.Sync()
	if err := cfg.Validate(); err != nil {
		logging.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var st store
	if cfg.DBUrl == "" {
		logging.Warn("DB_URL not set, using in-memory store")
		st = db.NewMemoryStore()
	} else {
		conn, err := sql.Open("postgres", cfg.DBUrl)
		if err != nil {
			logging.Fatal("failed to open database", zap.Error(err))
		}
		defer conn.Close()
		if err := conn.PingContext(ctx); err != nil {
			logging.Fatal("failed to connect database", zap.Error(err))
		}
		if err := db.Migrate(ctx, conn); err != nil {
			logging.Fatal("failed to migrate database", zap.Error(err))
		}
		st = db.NewPostgresStore(conn, cfg.TxRetries)
	}

	rdb, err := redisPkg.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logging.Warn("running without redis", zap.Error(err))
		rdb.Close()
		rdb = nil
	}

	var mailer notify.Mailer = notify.LogMailer{}
	if cfg.SMTPHost != "" {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	}

	generalHub := wsPkg.NewGeneralHub()
	worker := ws.NewNotificationWorker(rdb, generalHub, mailer)
	var notifier game.Notifier = notify.NewLocal(worker)
	if rdb != nil {
		notifier = notify.NewRedisPublisher(rdb)
		go worker.Run(ctx)
	}

	authService := auth.NewService(st, cfg.JWTSecret)
	authorize := authService.Authorizer(cfg.RequireAuth)

	gameService := game.NewService(st, authService, notifier, game.Config{
		BoardSize:     cfg.BoardSize,
		NotifyTimeout: cfg.NotifyTimeout,
	})

	leaderboardService := leaderboard.NewService(st, rdb, cfg.LeaderboardTTL)
	gameService.OnFinish(leaderboardService.Invalidate)

	if cfg.ArchiveBucket != "" {
		client, err := archive.NewS3Client(ctx, archive.Config{
			Bucket:          cfg.ArchiveBucket,
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.ArchiveEndpoint,
			AccessKeyID:     cfg.ArchiveAccessKeyID,
			SecretAccessKey: cfg.ArchiveSecretAccessKey,
		})
		if err != nil {
			logging.Fatal("failed to create s3 client", zap.Error(err))
		}
		gameService.OnFinish(archive.NewS3Archiver(client, cfg.ArchiveBucket, gameService).Archive)
	}

	reminders, err := reminder.New(gameService, cfg.ReminderInterval)
	if err != nil {
		logging.Fatal("failed to start reminders", zap.Error(err))
	}
	reminders.Start()
	defer reminders.Stop()

	mux := http.NewServeMux()

	authHandler := auth.NewAuthHandler(authService)
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)

	game.NewHandler(gameService, authorize).Register(mux)
	mux.HandleFunc("GET /api/v1/rankings", leaderboard.NewHandler(leaderboardService).Rankings)

	if rdb != nil {
		matchService := match.NewService(rdb, authService, gameService, notifier)
		match.NewHandler(matchService).Register(mux)
		go matchService.RunMatchmaker(ctx, nil)
	}

	mux.HandleFunc("GET /ws/notifications", ws.NewGeneralHandler(generalHub, authService, authorize).ServeGeneralWS)
	mux.HandleFunc("GET /ws/matches/{id}", ws.NewHandler(wsPkg.NewHub(), gameService, authorize).ServeWS)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logging.Info("server started", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logging.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error("graceful shutdown failed", zap.Error(err))
	}
	worker.Wait()
}
