package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
)

// maxStoredResults bounds the per-participant history list.
const maxStoredResults = 50

// GameArchive persists the outcomes of finished matches. Live session state
// never goes through here; the archive is written once, at the terminal
// transition, and read only for history requests.
type GameArchive interface {
	SaveResult(ctx context.Context, result *entity.GameResult) error
	RecentResults(ctx context.Context, identity string, limit int) ([]*entity.GameResult, error)
}

type dbArchive struct {
	client *redis.Client
}

func NewGameArchive(client *redis.Client) GameArchive {
	return &dbArchive{
		client: client,
	}
}

func (that *dbArchive) SaveResult(ctx context.Context, result *entity.GameResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("could not marshal game result: %w", err)
	}

	pipe := that.client.TxPipeline()
	for _, player := range result.Players {
		if player.IsComputer() {
			continue
		}

		key := resultsKey(player.Identity)
		pipe.LPush(ctx, key, resultJSON)
		pipe.LTrim(ctx, key, 0, maxStoredResults-1)
	}

	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save game result: %w", err)
	}

	return nil
}

func (that *dbArchive) RecentResults(ctx context.Context, identity string, limit int) ([]*entity.GameResult, error) {
	entries, err := that.client.LRange(ctx, resultsKey(identity), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load game results: %w", err)
	}

	results := make([]*entity.GameResult, 0, len(entries))
	for _, entry := range entries {
		var result entity.GameResult
		if err = json.Unmarshal([]byte(entry), &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal game result: %w", err)
		}

		results = append(results, &result)
	}

	return results, nil
}

func resultsKey(identity string) string {
	return "results:" + identity
}
