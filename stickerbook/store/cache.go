package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	lru "github.com/hashicorp/golang-lru"
	"github.com/stickerbook/manager/stickerbook/config"
	"github.com/stickerbook/manager/stickerbook/database/models"
	"github.com/stickerbook/manager/stickerbook/events"
	"golang.org/x/sync/singleflight"
)

// AlbumSource is the backend read path for albums.
type AlbumSource interface {
	GetAll(ctx context.Context) ([]*models.Album, error)
}

// StickerSource is the backend read path for one album's stickers.
type StickerSource interface {
	GetByAlbumID(ctx context.Context, albumID string) ([]*models.Sticker, error)
}

type albumEntry struct {
	albums    []*models.Album
	expiresAt time.Time
}

type stickerEntry struct {
	stickers  []*models.Sticker
	expiresAt time.Time
	// retryAt is set when the last fetch fell through to the empty
	// fallback; a single early retry is allowed once it passes.
	retryAt time.Time
	// retried marks an entry whose early retry already failed. The
	// empty value then holds until the TTL expires.
	retried bool
}

// Cache sits between the views and the repositories. Reads are served
// from memory while fresh; expired or missing entries trigger a backend
// fetch deduplicated through singleflight. When the backend is down the
// cache falls back to the file mirror, and failing that returns empty
// data with a short retry window instead of erroring the caller.
type Cache struct {
	albumSource   AlbumSource
	stickerSource StickerSource
	mirror        *LocalStore
	bus           *events.Bus

	ttl      time.Duration
	minGap   time.Duration
	retryGap time.Duration
	now      func() time.Time

	mu          sync.RWMutex
	albums      *albumEntry
	lastRefresh time.Time

	// stickers holds per-album entries; the LRU bounds memory when a
	// collection spans many albums.
	stickers *lru.Cache

	group singleflight.Group
}

func NewCache(albums AlbumSource, stickers StickerSource, mirror *LocalStore, bus *events.Bus) *Cache {
	entries, _ := lru.New(config.MaxCachedAlbums)
	return &Cache{
		albumSource:   albums,
		stickerSource: stickers,
		mirror:        mirror,
		bus:           bus,
		ttl:           config.StickerCacheTTL,
		minGap:        config.RefreshMinInterval,
		retryGap:      config.CacheRetryDelay,
		now:           time.Now,
		stickers:      entries,
	}
}

// Albums returns the album list, from memory when fresh.
func (c *Cache) Albums(ctx context.Context) ([]*models.Album, error) {
	c.mu.RLock()
	entry := c.albums
	c.mu.RUnlock()

	if entry != nil && c.now().Before(entry.expiresAt) {
		return entry.albums, nil
	}

	v, err, _ := c.group.Do("albums", func() (any, error) {
		return c.fetchAlbums(ctx), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*models.Album), nil
}

func (c *Cache) fetchAlbums(ctx context.Context) []*models.Album {
	albums, err := c.albumSource.GetAll(ctx)
	if err == nil {
		c.storeAlbums(albums)
		if c.mirror != nil {
			if werr := c.mirror.Set(KeyAlbums, albums); werr != nil {
				slog.Warn("Failed to mirror albums",
					slog.String("type", "sys"),
					slog.Any("error", werr),
				)
			}
		}
		return albums
	}

	slog.Warn("Album fetch failed, falling back to mirror",
		slog.String("type", "db"),
		slog.Any("error", err),
	)

	if c.mirror != nil {
		var mirrored []*models.Album
		if ok, merr := c.mirror.Get(KeyAlbums, &mirrored); merr == nil && ok {
			c.storeAlbums(mirrored)
			return mirrored
		}
	}

	// Nothing local either; hand back empty data and allow an early
	// retry so the next read does not wait out the full TTL.
	c.mu.Lock()
	c.albums = &albumEntry{albums: []*models.Album{}, expiresAt: c.now().Add(c.retryGap)}
	c.mu.Unlock()
	return []*models.Album{}
}

func (c *Cache) storeAlbums(albums []*models.Album) {
	c.mu.Lock()
	c.albums = &albumEntry{albums: albums, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Stickers returns one album's stickers, from memory when fresh.
func (c *Cache) Stickers(ctx context.Context, albumID string) ([]*models.Sticker, error) {
	if albumID == "" {
		return nil, fmt.Errorf("album id is required")
	}

	var entry *stickerEntry
	if v, ok := c.stickers.Get(albumID); ok {
		entry = v.(*stickerEntry)
	}

	now := c.now()
	if entry != nil {
		fresh := now.Before(entry.expiresAt)
		retryDue := !entry.retryAt.IsZero() && now.After(entry.retryAt)
		if fresh && !retryDue {
			return entry.stickers, nil
		}
	}

	v, err, _ := c.group.Do("stickers:"+albumID, func() (any, error) {
		return c.fetchStickers(ctx, albumID), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*models.Sticker), nil
}

func (c *Cache) fetchStickers(ctx context.Context, albumID string) []*models.Sticker {
	stickers, err := c.stickerSource.GetByAlbumID(ctx, albumID)
	if err == nil {
		c.storeStickers(albumID, stickers, time.Time{}, false)
		if c.mirror != nil {
			if werr := c.mirror.Set(StickerKey(albumID), stickers); werr != nil {
				slog.Warn("Failed to mirror stickers",
					slog.String("type", "sys"),
					slog.String("album_id", albumID),
					slog.Any("error", werr),
				)
			}
		}
		return stickers
	}

	slog.Warn("Sticker fetch failed, falling back to mirror",
		slog.String("type", "db"),
		slog.String("album_id", albumID),
		slog.Any("error", err),
	)

	if c.mirror != nil {
		var mirrored []*models.Sticker
		if ok, merr := c.mirror.Get(StickerKey(albumID), &mirrored); merr == nil && ok {
			c.storeStickers(albumID, mirrored, time.Time{}, false)
			return mirrored
		}
	}

	// First failure opens one early retry window; a second failure
	// pins the empty value until the TTL runs out.
	retryAt := c.now().Add(c.retryGap)
	retried := false
	if v, ok := c.stickers.Get(albumID); ok {
		if prev := v.(*stickerEntry); !prev.retryAt.IsZero() || prev.retried {
			retryAt = time.Time{}
			retried = true
		}
	}
	c.storeStickers(albumID, []*models.Sticker{}, retryAt, retried)
	return []*models.Sticker{}
}

func (c *Cache) storeStickers(albumID string, stickers []*models.Sticker, retryAt time.Time, retried bool) {
	c.stickers.Add(albumID, &stickerEntry{
		stickers:  stickers,
		expiresAt: c.now().Add(c.ttl),
		retryAt:   retryAt,
		retried:   retried,
	})
}

// InvalidateAlbums drops the cached album list.
func (c *Cache) InvalidateAlbums() {
	c.mu.Lock()
	c.albums = nil
	c.mu.Unlock()
}

// InvalidateStickers drops one album's cached stickers.
func (c *Cache) InvalidateStickers(albumID string) {
	c.stickers.Remove(albumID)
}

// InvalidateAll drops everything.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.albums = nil
	c.mu.Unlock()
	c.stickers.Purge()
}

// Refresh reloads all cached data, at most once per minimum interval.
// Returns false when throttled.
func (c *Cache) Refresh(ctx context.Context) bool {
	c.mu.Lock()
	if !c.lastRefresh.IsZero() && c.now().Sub(c.lastRefresh) < c.minGap {
		c.mu.Unlock()
		return false
	}
	c.lastRefresh = c.now()
	c.mu.Unlock()

	c.refresh(ctx)
	return true
}

// ForceRefresh reloads all cached data ignoring the throttle.
func (c *Cache) ForceRefresh(ctx context.Context) {
	c.mu.Lock()
	c.lastRefresh = c.now()
	c.mu.Unlock()
	c.refresh(ctx)
}

func (c *Cache) refresh(ctx context.Context) {
	keys := c.stickers.Keys()
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, k.(string))
	}
	c.mu.Lock()
	c.albums = nil
	c.mu.Unlock()
	c.stickers.Purge()

	c.fetchAlbums(ctx)
	for _, id := range ids {
		c.fetchStickers(ctx, id)
	}

	if c.mirror != nil {
		if err := c.mirror.Set(KeyLastRefresh, c.now().UnixMilli()); err != nil {
			slog.Warn("Failed to record refresh timestamp",
				slog.String("type", "sys"),
				slog.Any("error", err),
			)
		}
	}
	if c.bus != nil {
		origin := ""
		if c.mirror != nil {
			origin = c.mirror.InstanceID()
		}
		c.bus.PublishNow(events.AlbumDataChanged{Origin: origin})
	}
}

// LastRefresh reports when the last successful full refresh ran, from
// the shared mirror so the value survives restarts and spans instances.
func (c *Cache) LastRefresh() time.Time {
	if c.mirror == nil {
		return time.Time{}
	}
	var millis int64
	if ok, err := c.mirror.Get(KeyLastRefresh, &millis); err != nil || !ok {
		return time.Time{}
	}
	return time.UnixMilli(millis)
}
