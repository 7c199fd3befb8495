package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Backend is the item store contract the rest of the service depends on.
type Backend interface {
	InsertItem(ctx context.Context, it Item) (Item, error)
	DeleteItem(ctx context.Context, ownerID, id string) error
	UpsertItems(ctx context.Context, recs []ItemRecord) error
	ListItems(ctx context.Context, ownerID, groupID string) ([]Item, error)
	ListCards(ctx context.Context, ownerID string) ([]Item, error)

	InsertGroup(ctx context.Context, g Group) (Group, error)
	DeleteGroup(ctx context.Context, ownerID, id string) error
	UpsertGroups(ctx context.Context, recs []GroupRecord) error
	ListGroups(ctx context.Context, ownerID string) ([]Group, error)
}

// Cache wraps a Backend with a Redis read-through cache. Each owner's reads
// live in one hash that every write through the cache evicts. Evictions also
// bump a per-owner generation so a read that raced a write does not put its
// older snapshot back.
type Cache struct {
	base  Backend
	redis *redis.Client
	ttl   time.Duration
	log   *log.Logger
}

var errStaleRead = errors.New("cache generation moved during read")

// NewCache creates a caching wrapper. A nil client disables caching.
func NewCache(base Backend, client *redis.Client, ttl time.Duration, logger *log.Logger) *Cache {
	if base == nil {
		panic("database.NewCache: base store is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Cache{base: base, redis: client, ttl: ttl, log: logger}
}

func (c *Cache) InsertItem(ctx context.Context, it Item) (Item, error) {
	created, err := c.base.InsertItem(ctx, it)
	if err != nil {
		return Item{}, err
	}
	c.evict(ctx, it.OwnerID)
	return created, nil
}

func (c *Cache) DeleteItem(ctx context.Context, ownerID, id string) error {
	if err := c.base.DeleteItem(ctx, ownerID, id); err != nil {
		return err
	}
	c.evict(ctx, ownerID)
	return nil
}

func (c *Cache) UpsertItems(ctx context.Context, recs []ItemRecord) error {
	if err := c.base.UpsertItems(ctx, recs); err != nil {
		return err
	}
	owners := make(map[string]struct{}, 1)
	for _, r := range recs {
		owners[r.OwnerID] = struct{}{}
	}
	c.evictOwners(ctx, owners)
	return nil
}

func (c *Cache) ListItems(ctx context.Context, ownerID, groupID string) ([]Item, error) {
	field := "items:" + groupID
	var items []Item
	if c.load(ctx, ownerID, field, &items) {
		return items, nil
	}
	gen, cacheable := c.generation(ctx, ownerID)
	items, err := c.base.ListItems(ctx, ownerID, groupID)
	if err != nil {
		return nil, err
	}
	if cacheable {
		c.store(ctx, ownerID, gen, field, items)
	}
	return items, nil
}

func (c *Cache) ListCards(ctx context.Context, ownerID string) ([]Item, error) {
	var items []Item
	if c.load(ctx, ownerID, "cards", &items) {
		return items, nil
	}
	gen, cacheable := c.generation(ctx, ownerID)
	items, err := c.base.ListCards(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if cacheable {
		c.store(ctx, ownerID, gen, "cards", items)
	}
	return items, nil
}

func (c *Cache) InsertGroup(ctx context.Context, g Group) (Group, error) {
	created, err := c.base.InsertGroup(ctx, g)
	if err != nil {
		return Group{}, err
	}
	c.evict(ctx, g.OwnerID)
	return created, nil
}

func (c *Cache) DeleteGroup(ctx context.Context, ownerID, id string) error {
	if err := c.base.DeleteGroup(ctx, ownerID, id); err != nil {
		return err
	}
	c.evict(ctx, ownerID)
	return nil
}

func (c *Cache) UpsertGroups(ctx context.Context, recs []GroupRecord) error {
	if err := c.base.UpsertGroups(ctx, recs); err != nil {
		return err
	}
	owners := make(map[string]struct{}, 1)
	for _, r := range recs {
		owners[r.OwnerID] = struct{}{}
	}
	c.evictOwners(ctx, owners)
	return nil
}

func (c *Cache) ListGroups(ctx context.Context, ownerID string) ([]Group, error) {
	var groups []Group
	if c.load(ctx, ownerID, "groups", &groups) {
		return groups, nil
	}
	gen, cacheable := c.generation(ctx, ownerID)
	groups, err := c.base.ListGroups(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if cacheable {
		c.store(ctx, ownerID, gen, "groups", groups)
	}
	return groups, nil
}

func (c *Cache) load(ctx context.Context, ownerID, field string, dst any) bool {
	if c.redis == nil || ownerID == "" {
		return false
	}
	key := ownerCacheKey(ownerID)
	data, err := c.redis.HGet(ctx, key, field).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			// On redis errors fall back to the store without failing.
			c.log.WithError(err).WithField("owner", ownerID).Warn("Redis read failed; using the database")
			c.drop(ctx, ownerID, key)
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.log.WithError(err).WithFields(log.Fields{"owner": ownerID, "field": field}).Warn("Discarding corrupt cache entry")
		c.drop(ctx, ownerID, key)
		return false
	}
	return true
}

// generation reads the owner's eviction counter. It reports false when the
// result of a read should not be cached.
func (c *Cache) generation(ctx context.Context, ownerID string) (int64, bool) {
	if c.redis == nil || c.ttl == 0 || ownerID == "" {
		return 0, false
	}
	gen, err := c.redis.Get(ctx, generationKey(ownerID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.log.WithError(err).WithField("owner", ownerID).Debug("Cache generation unavailable")
		return 0, false
	}
	return gen, true
}

// store caches v unless a write evicted the owner since gen was read.
func (c *Cache) store(ctx context.Context, ownerID string, gen int64, field string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	key, genKey := ownerCacheKey(ownerID), generationKey(ownerID)
	err = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleRead
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, field, data)
			pipe.Expire(ctx, key, c.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
	case errors.Is(err, errStaleRead), errors.Is(err, redis.TxFailedErr):
		c.log.WithFields(log.Fields{"owner": ownerID, "field": field}).Debug("Skipped caching a read that raced a write")
	default:
		c.log.WithError(err).WithField("owner", ownerID).Warn("Failed to populate cache")
	}
}

func (c *Cache) drop(ctx context.Context, ownerID, key string) {
	if err := c.redis.Del(ctx, key).Err(); err != nil {
		c.log.WithError(err).WithField("owner", ownerID).Warn("Failed to drop cache entry")
	}
}

func (c *Cache) evict(ctx context.Context, ownerID string) {
	if c.redis == nil || ownerID == "" {
		return
	}
	genKey := generationKey(ownerID)
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, ownerCacheKey(ownerID))
		pipe.Incr(ctx, genKey)
		if c.ttl > 0 {
			pipe.Expire(ctx, genKey, c.ttl)
		}
		return nil
	})
	if err != nil {
		c.log.WithError(err).WithField("owner", ownerID).Warn("Failed to evict cache; entries may be stale until they expire")
	}
}

func (c *Cache) evictOwners(ctx context.Context, owners map[string]struct{}) {
	for o := range owners {
		c.evict(ctx, o)
	}
}

func ownerCacheKey(ownerID string) string {
	return "board:" + ownerID
}

func generationKey(ownerID string) string {
	return "board-gen:" + ownerID
}
