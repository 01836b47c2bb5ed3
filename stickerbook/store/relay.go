package store

import (
	"log/slog"

	"github.com/stickerbook/manager/stickerbook/events"
)

// Relay turns foreign mirror writes into local bus events. When another
// running instance updates a mirror file, the relay invalidates the
// matching cache entry and republishes the change locally so open views
// reload. Events keep the foreign origin, which stops the cache from
// writing the mirror again and echoing the change back.
type Relay struct {
	store *LocalStore
	cache *Cache
	bus   *events.Bus
}

func NewRelay(store *LocalStore, cache *Cache, bus *events.Bus) *Relay {
	return &Relay{store: store, cache: cache, bus: bus}
}

// Start begins watching the mirror directory. It returns once the
// watcher is installed; dispatch happens on the watcher goroutine.
func (r *Relay) Start() error {
	return r.store.Watch(r.handle)
}

func (r *Relay) handle(key string) {
	slog.Debug("Foreign mirror write",
		slog.String("type", "sys"),
		slog.String("key", key),
	)

	switch {
	case key == KeyAlbums || key == KeyRecycledAlbums:
		r.cache.InvalidateAlbums()
		r.bus.PublishNow(events.AlbumDataChanged{Origin: "remote"})

	case key == KeyIntakeLog:
		r.bus.PublishNow(events.InventoryDataChanged{Origin: "remote"})

	case key == KeyLastRefresh, key == KeyLastSelected, key == KeyAlbumOrder, key == KeyStarredTeams:
		// Preference and bookkeeping keys carry no cached backend data.

	default:
		if albumID := AlbumIDFromKey(key); albumID != "" {
			r.cache.InvalidateStickers(albumID)
			r.bus.PublishNow(events.StickerDataChanged{
				Origin:  "remote",
				AlbumID: albumID,
				Action:  "sync",
			})
		}
	}
}

func (r *Relay) Stop() error {
	return r.store.Close()
}
