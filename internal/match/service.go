package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/krishanu7/battleship-engine/internal/game"
	"github.com/krishanu7/battleship-engine/pkg/logging"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const assignmentTTL = time.Hour

var ErrNotEnoughPlayers = errors.New("not enough players")

// Games creates the match for a pair of queued players.
type Games interface {
	CreateMatch(ctx context.Context, player1, player2 string) (*game.Match, error)
}

type Service struct {
	redisClient *redis.Client
	players     game.PlayerDirectory
	games       Games
	notifier    game.Notifier
	mainQueue   string // players waiting in the lobby
	startQueue  string // players who pressed start
	setName     string // lobby membership
	channel     string // wakes the matchmaker
}

type MatchResult struct {
	Player1 string `json:"player_1"`
	Player2 string `json:"player_2"`
	MatchID string `json:"match_id"`
}

func NewService(rdb *redis.Client, players game.PlayerDirectory, games Games, notifier game.Notifier) *Service {
	return &Service{
		redisClient: rdb,
		players:     players,
		games:       games,
		notifier:    notifier,
		mainQueue:   "matchmaking_queue",
		startQueue:  "match_start_queue",
		setName:     "queued_players",
		channel:     "matchmaking_channel",
	}
}

func assignmentKey(player string) string {
	return "player_match:" + player
}

func (s *Service) AddToQueue(ctx context.Context, player string) error {
	if _, err := s.players.PlayerByName(ctx, player); err != nil {
		return err
	}
	added, err := s.redisClient.SAdd(ctx, s.setName, player).Result()
	if err != nil {
		return fmt.Errorf("failed to add to queue set: %w", err)
	}
	if added == 0 {
		return fmt.Errorf("%w: %s is already in the queue", game.ErrAlreadyExists, player)
	}
	if err := s.redisClient.LPush(ctx, s.mainQueue, player).Err(); err != nil {
		s.redisClient.SRem(ctx, s.setName, player)
		return fmt.Errorf("failed to add to queue: %w", err)
	}
	return nil
}

func (s *Service) RemoveFromQueue(ctx context.Context, player string) error {
	if err := s.redisClient.LRem(ctx, s.mainQueue, 0, player).Err(); err != nil {
		return fmt.Errorf("failed to remove from queue: %w", err)
	}
	if err := s.redisClient.SRem(ctx, s.setName, player).Err(); err != nil {
		return fmt.Errorf("failed to remove from set: %w", err)
	}
	if err := s.redisClient.LRem(ctx, s.startQueue, 0, player).Err(); err != nil {
		return fmt.Errorf("failed to remove from start queue: %w", err)
	}
	return nil
}

// StartMatching moves a lobby player to the start queue and wakes the
// matchmaker.
func (s *Service) StartMatching(ctx context.Context, player string) error {
	exists, err := s.redisClient.SIsMember(ctx, s.setName, player).Result()
	if err != nil {
		return fmt.Errorf("failed to check queue set: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s is not in the queue", game.ErrNotFound, player)
	}
	if err := s.RemoveFromQueue(ctx, player); err != nil {
		return err
	}
	if err := s.redisClient.LPush(ctx, s.startQueue, player).Err(); err != nil {
		return fmt.Errorf("failed to add to start queue: %w", err)
	}
	if err := s.redisClient.Publish(ctx, s.channel, player).Err(); err != nil {
		s.redisClient.LRem(ctx, s.startQueue, 0, player)
		return fmt.Errorf("failed to publish to channel: %w", err)
	}
	return nil
}

// MatchPlayers pops the two longest waiting players of the start queue.
func (s *Service) MatchPlayers(ctx context.Context) (string, string, error) {
	p1, err := s.redisClient.RPop(ctx, s.startQueue).Result()
	if err != nil {
		return "", "", ErrNotEnoughPlayers
	}
	p2, err := s.redisClient.RPop(ctx, s.startQueue).Result()
	if err != nil {
		s.redisClient.RPush(ctx, s.startQueue, p1)
		return "", "", ErrNotEnoughPlayers
	}
	return p1, p2, nil
}

// Pair matches two waiting players, creates their match and tells them.
func (s *Service) Pair(ctx context.Context) (*MatchResult, error) {
	p1, p2, err := s.MatchPlayers(ctx)
	if err != nil {
		return nil, err
	}
	m, err := s.games.CreateMatch(ctx, p1, p2)
	if err != nil {
		s.requeue(ctx, p1, p2)
		return nil, fmt.Errorf("failed to create match for %s and %s: %w", p1, p2, err)
	}

	pipe := s.redisClient.TxPipeline()
	pipe.Set(ctx, assignmentKey(p1), m.ID, assignmentTTL)
	pipe.Set(ctx, assignmentKey(p2), m.ID, assignmentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		logging.Warn("failed to store match assignment", zap.String("match_id", m.ID), zap.Error(err))
	}

	result := &MatchResult{Player1: p1, Player2: p2, MatchID: m.ID}
	if s.notifier != nil {
		err := s.notifier.Notify(ctx, game.Notification{
			Type:       game.NotifyMatchFound,
			MatchID:    m.ID,
			Recipients: []game.Recipient{m.Player1.Recipient(), m.Player2.Recipient()},
			Message:    fmt.Sprintf("Match found: %s vs %s. Place your ships!", p1, p2),
		})
		if err != nil {
			logging.Warn("failed to notify match found", zap.String("match_id", m.ID), zap.Error(err))
		}
	}
	return result, nil
}

// requeue puts an unmatched pair back at the head of the start queue, p1
// first. Names that no longer resolve to a player are dropped, and a player
// queued twice keeps a single entry.
func (s *Service) requeue(ctx context.Context, p1, p2 string) {
	keep := make([]any, 0, 2)
	for _, player := range []string{p2, p1} {
		if _, err := s.players.PlayerByName(ctx, player); errors.Is(err, game.ErrNotFound) {
			logging.Warn("dropping unknown player from start queue", zap.String("player", player))
			continue
		}
		if len(keep) == 1 && keep[0] == player {
			continue
		}
		keep = append(keep, player)
	}
	if len(keep) == 0 {
		return
	}
	if err := s.redisClient.RPush(ctx, s.startQueue, keep...).Err(); err != nil {
		logging.Error("failed to requeue players",
			zap.String("player_1", p1),
			zap.String("player_2", p2),
			zap.Error(err),
		)
	}
}

// RunMatchmaker pairs players whenever someone starts matching, until ctx
// is done. Each pairing is sent on results when it is not nil.
func (s *Service) RunMatchmaker(ctx context.Context, results chan<- MatchResult) {
	pubsub := s.redisClient.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-messages:
			if !ok {
				return
			}
		}

		for {
			length, err := s.redisClient.LLen(ctx, s.startQueue).Result()
			if err != nil || length < 2 {
				break
			}
			result, err := s.Pair(ctx)
			if err != nil {
				if !errors.Is(err, ErrNotEnoughPlayers) {
					logging.Warn("matchmaking failed", zap.Error(err))
				}
				break
			}
			logging.Info("players matched",
				zap.String("player_1", result.Player1),
				zap.String("player_2", result.Player2),
				zap.String("match_id", result.MatchID),
			)
			if results != nil {
				select {
				case results <- *result:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// GetMatchStatus reports "waiting", "matched", "in_queue" or "not_found".
func (s *Service) GetMatchStatus(ctx context.Context, player string) (string, string, error) {
	_, err := s.redisClient.LPos(ctx, s.startQueue, player, redis.LPosArgs{}).Result()
	if err == nil {
		return "waiting", "", nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", "", fmt.Errorf("failed to check start queue: %w", err)
	}

	matchID, err := s.redisClient.Get(ctx, assignmentKey(player)).Result()
	if err == nil {
		return "matched", matchID, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", "", fmt.Errorf("failed to check assignment: %w", err)
	}

	exists, err := s.redisClient.SIsMember(ctx, s.setName, player).Result()
	if err != nil {
		return "", "", fmt.Errorf("failed to check queue set: %w", err)
	}
	if exists {
		return "in_queue", "", nil
	}
	return "not_found", "", nil
}

func (s *Service) QueueLength(ctx context.Context) (int64, error) {
	return s.redisClient.LLen(ctx, s.mainQueue).Result()
}
