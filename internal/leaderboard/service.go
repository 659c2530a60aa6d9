package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/krishanu7/battleship-engine/db"
	"github.com/krishanu7/battleship-engine/internal/game"
	"github.com/krishanu7/battleship-engine/pkg/logging"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKey = "leaderboard:rankings"

// Source computes rankings from persisted matches.
type Source interface {
	WinCounts(ctx context.Context) ([]db.WinCount, error)
}

type Service struct {
	source Source
	rdb    *redis.Client
	ttl    time.Duration
}

type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
	Wins     int    `json:"wins"`
}

// NewService returns a leaderboard. With a nil redis client or a zero ttl
// every call goes to the source.
func NewService(source Source, rdb *redis.Client, ttl time.Duration) *Service {
	return &Service{source: source, rdb: rdb, ttl: ttl}
}

// GetLeaderboard returns every player by wins descending, then name. A
// positive limit truncates the list.
func (s *Service) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	entries, ok := s.cached(ctx)
	if !ok {
		counts, err := s.source.WinCounts(ctx)
		if err != nil {
			return nil, err
		}
		entries = make([]LeaderboardEntry, 0, len(counts))
		for i, c := range counts {
			entries = append(entries, LeaderboardEntry{
				Rank:     i + 1,
				PlayerID: c.PlayerID,
				Username: c.Username,
				Wins:     c.Wins,
			})
		}
		s.store(ctx, entries)
	}
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

// Invalidate drops the cached rankings. It is registered as a finish hook.
func (s *Service) Invalidate(ctx context.Context, m game.Match) {
	if !s.caching() {
		return
	}
	if err := s.rdb.Del(ctx, cacheKey).Err(); err != nil {
		logging.Warn("failed to invalidate leaderboard cache", zap.String("match_id", m.ID), zap.Error(err))
	}
}

func (s *Service) caching() bool {
	return s.rdb != nil && s.ttl > 0
}

func (s *Service) cached(ctx context.Context) ([]LeaderboardEntry, bool) {
	if !s.caching() {
		return nil, false
	}
	raw, err := s.rdb.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.Warn("failed to read leaderboard cache", zap.Error(err))
		}
		return nil, false
	}
	var entries []LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		logging.Warn("corrupt leaderboard cache", zap.Error(err))
		return nil, false
	}
	return entries, true
}

func (s *Service) store(ctx context.Context, entries []LeaderboardEntry) {
	if !s.caching() {
		return
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, cacheKey, raw, s.ttl).Err(); err != nil {
		logging.Warn("failed to write leaderboard cache", zap.Error(err))
	}
}
