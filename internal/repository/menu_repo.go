package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"restopos/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type menuRepo struct{ db *gorm.DB }

func NewMenuRepository(db *gorm.DB) MenuRepository { return &menuRepo{db: db} }

func (r *menuRepo) FindItem(ctx context.Context, restaurantID, itemID uuid.UUID) (*model.MenuItem, error) {
	var m model.MenuItem
	err := r.db.WithContext(ctx).
		Preload("Modifiers").
		Where("restaurant_id = ?", restaurantID).
		First(&m, "id = ?", itemID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

// cachedMenu is a read-through Redis cache in front of another MenuRepository.
// Cache errors fall back to the source; they are never surfaced to callers.
type cachedMenu struct {
	next MenuRepository
	rdb  *redis.Client
	ttl  time.Duration
}

// NewCachedMenuRepository wraps next with a Redis cache. A nil client
// disables caching.
func NewCachedMenuRepository(next MenuRepository, rdb *redis.Client, ttl time.Duration) MenuRepository {
	if rdb == nil {
		return next
	}
	return &cachedMenu{next: next, rdb: rdb, ttl: ttl}
}

func menuCacheKey(restaurantID, itemID uuid.UUID) string {
	return fmt.Sprintf("menu:%s:%s", restaurantID, itemID)
}

func (c *cachedMenu) FindItem(ctx context.Context, restaurantID, itemID uuid.UUID) (*model.MenuItem, error) {
	key := menuCacheKey(restaurantID, itemID)

	if cached, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var m model.MenuItem
		if jsonErr := json.Unmarshal(cached, &m); jsonErr == nil {
			return &m, nil
		}
	}

	m, err := c.next.FindItem(ctx, restaurantID, itemID)
	if err != nil {
		return nil, err
	}

	if b, jsonErr := json.Marshal(m); jsonErr == nil {
		if setErr := c.rdb.Set(ctx, key, b, c.ttl).Err(); setErr != nil {
			log.Debug().Err(setErr).Str("key", key).Msg("menu cache: set failed")
		}
	}
	return m, nil
}
