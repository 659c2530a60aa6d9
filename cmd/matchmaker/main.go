package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"syscall"

	"github.com/krishanu7/battleship-engine/config"
	"github.com/krishanu7/battleship-engine/db"
	"github.com/krishanu7/battleship-engine/internal/auth"
	"github.com/krishanu7/battleship-engine/internal/game"
	"github.com/krishanu7/battleship-engine/internal/match"
	"github.com/krishanu7/battleship-engine/internal/notify"
	"github.com/krishanu7/battleship-engine/pkg/logging"
	"github.com/krishanu7/battleship-engine/pkg/redis"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// The matchmaker pairs queued players against the shared database and
// publishes match_found notifications for the API instances to deliver.
func main() {
	cfg := config.LoadConfig()
	if err := logging.Init(cfg.Env); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DBUrl == "" {
		logging.Fatal("DB_URL is required by the standalone matchmaker")
	}
	conn, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		logging.Fatal("failed to open database", zap.Error(err))
	}
	defer conn.Close()
	store := db.NewPostgresStore(conn, cfg.TxRetries)

	rdb, err := redis.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logging.Fatal("redis is required by the matchmaker", zap.Error(err))
	}
	defer rdb.Close()

	notifier := notify.NewRedisPublisher(rdb)
	accounts := auth.NewService(store, cfg.JWTSecret)
	games := game.NewService(store, accounts, notifier, game.Config{
		BoardSize:     cfg.BoardSize,
		NotifyTimeout: cfg.NotifyTimeout,
	})
	matchService := match.NewService(rdb, accounts, games, notifier)

	results := make(chan match.MatchResult)
	logging.Info("matchmaker service starting")
	go func() {
		matchService.RunMatchmaker(ctx, results)
		close(results)
	}()

	for result := range results {
		logging.Info("match created by matchmaker",
			zap.String("match_id", result.MatchID),
			zap.String("player_1", result.Player1),
			zap.String("player_2", result.Player2),
		)
	}
}
