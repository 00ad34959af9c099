// Package cache содержит кэш результатов сессий поверх Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmeshcher/f1bet-system/internal/openf1"
)

const resultsTTL = 5 * time.Minute

// SessionResultCache хранит ответы внешнего API по ключу сессии.
// Кэшируются только неизменяемые внешние данные: балансы и статусы
// ставок через кэш не проходят.
type SessionResultCache struct {
	rdb *redis.Client
}

// New подключается к Redis по указанному адресу и возвращает кэш.
func New(addr string) (*SessionResultCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &SessionResultCache{rdb: rdb}, nil
}

// GetSessionResults возвращает закэшированные результаты сессии.
// Второе значение false означает промах кэша.
func (c *SessionResultCache) GetSessionResults(ctx context.Context, sessionKey int32) ([]openf1.SessionResult, bool) {
	if c == nil {
		return nil, false
	}

	raw, err := c.rdb.Get(ctx, resultsKey(sessionKey)).Bytes()
	if err != nil {
		return nil, false
	}

	var results []openf1.SessionResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false
	}

	return results, true
}

// SetSessionResults сохраняет результаты сессии с ограниченным временем жизни.
func (c *SessionResultCache) SetSessionResults(ctx context.Context, sessionKey int32, results []openf1.SessionResult) {
	if c == nil {
		return
	}

	raw, err := json.Marshal(results)
	if err != nil {
		return
	}

	c.rdb.Set(ctx, resultsKey(sessionKey), raw, resultsTTL)
}

// Close закрывает соединение с Redis.
func (c *SessionResultCache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

func resultsKey(sessionKey int32) string {
	return fmt.Sprintf("session_result:%d", sessionKey)
}
