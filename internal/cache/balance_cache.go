// Package cache - read-through кэш проекции "баланс + последние операции" поверх redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fsdevblog/groph-balance/internal/domain"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// BalanceTTL ограничивает жизнь записи кэша. Движок баланса инвалидирует ключ после каждой
// успешной мутации, TTL - страховка на случай, когда инвалидация не прошла: устаревшая
// проекция живет не дольше этого срока.
const BalanceTTL = 10 * time.Second

// ErrCacheMiss возвращается при отсутствии ключа, читатель должен сходить в хранилище
// и заполнить кэш сам (read-through с явной инвалидацией, не write-through).
var ErrCacheMiss = errors.New("cache miss")

type BalanceCache struct {
	client *redis.Client
}

func NewBalanceCache(client *redis.Client) *BalanceCache {
	return &BalanceCache{client: client}
}

func balanceKey(userID int64) string {
	return fmt.Sprintf("balance:%d", userID)
}

// Get возвращает закэшированную проекцию или ErrCacheMiss.
func (c *BalanceCache) Get(ctx context.Context, userID int64) (*domain.BalanceWithHistory, error) {
	payload, err := c.client.Get(ctx, balanceKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, errors.Wrapf(err, "[cache] getting balance for user %d", userID)
	}

	var value domain.BalanceWithHistory
	if unmarshalErr := json.Unmarshal(payload, &value); unmarshalErr != nil {
		// Битая запись равносильна промаху, перезапишется при следующем чтении.
		return nil, ErrCacheMiss
	}
	return &value, nil
}

// Set записывает проекцию с TTL BalanceTTL. Конкурентные Set не координируются -
// кэш лишь проекция, последний пишущий побеждает.
func (c *BalanceCache) Set(ctx context.Context, userID int64, value *domain.BalanceWithHistory) error {
	payload, marshalErr := json.Marshal(value)
	if marshalErr != nil {
		return errors.Wrapf(marshalErr, "[cache] marshaling balance for user %d", userID)
	}
	if err := c.client.Set(ctx, balanceKey(userID), payload, BalanceTTL).Err(); err != nil {
		return errors.Wrapf(err, "[cache] setting balance for user %d", userID)
	}
	return nil
}

// Invalidate удаляет ключ (именно удаляет, а не перезаписывает) - следующее чтение
// заполнит кэш свежими данными из хранилища.
func (c *BalanceCache) Invalidate(ctx context.Context, userID int64) error {
	if err := c.client.Del(ctx, balanceKey(userID)).Err(); err != nil {
		return errors.Wrapf(err, "[cache] invalidating balance for user %d", userID)
	}
	return nil
}
