// Package store holds the client-side data layer: a JSON file mirror of
// backend data, a TTL cache in front of the repositories, and the relay
// that keeps multiple running instances in sync through the mirror.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/stickerbook/manager/stickerbook/config"
)

// Mirror keys. Sticker data is stored per album under KeyStickersPrefix.
const (
	KeyAlbums         = "albums"
	KeyStickersPrefix = "stickers:"
	KeyRecycledAlbums = "recycledAlbums"
	KeyStarredTeams   = "starredTeams"
	KeyLastSelected   = "lastSelectedAlbumId"
	KeyLastRefresh    = "lastRefreshTimestamp"
	KeyIntakeLog      = "intakeLog"
	KeyAlbumOrder     = "albumOrder"
)

// StickerKey builds the mirror key for one album's stickers.
func StickerKey(albumID string) string {
	return KeyStickersPrefix + albumID
}

// AlbumIDFromKey extracts the album id from a sticker mirror key, or ""
// if the key is not a sticker key.
func AlbumIDFromKey(key string) string {
	if strings.HasPrefix(key, KeyStickersPrefix) {
		return strings.TrimPrefix(key, KeyStickersPrefix)
	}
	return ""
}

// envelope wraps every mirrored value with the writer's instance id so
// the file watcher can tell foreign writes from its own.
type envelope struct {
	Origin    string          `json:"origin"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Data      json.RawMessage `json:"data"`
}

// LocalStore persists one JSON file per key under a root directory.
// Writes go through a temp file and rename so readers never observe a
// half-written value. Other running instances pick up changes through
// a directory watcher; each instance filters out its own writes by the
// origin id embedded in the file.
type LocalStore struct {
	root       string
	instanceID string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &LocalStore{
		root:       root,
		instanceID: uuid.New().String(),
	}, nil
}

// InstanceID returns the id stamped into this process's mirror writes.
func (s *LocalStore) InstanceID() string {
	return s.instanceID
}

func (s *LocalStore) path(key string) string {
	// Keys are restricted to filename-safe characters; the sticker key
	// separator is the only one needing mapping.
	name := strings.ReplaceAll(key, ":", "@") + ".json"
	return filepath.Join(s.root, name)
}

func keyFromFilename(name string) string {
	name = strings.TrimSuffix(name, ".json")
	return strings.ReplaceAll(name, "@", ":")
}

// Set marshals v and atomically replaces the value stored under key.
// The write is bounded by the store write timeout so a stalled disk
// (network mounts in particular) cannot hang callers indefinitely.
func (s *LocalStore) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal value for %q: %w", key, err)
	}
	env := envelope{
		Origin:    s.instanceID,
		UpdatedAt: time.Now(),
		Data:      data,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope for %q: %w", key, err)
	}

	done := make(chan error, 1)
	go func() { done <- s.writeFile(key, raw) }()
	select {
	case err := <-done:
		return err
	case <-time.After(config.StoreWriteTimeout):
		return fmt.Errorf("timed out writing %q after %v", key, config.StoreWriteTimeout)
	}
}

func (s *LocalStore) writeFile(key string, raw []byte) error {
	target := s.path(key)
	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %q: %w", key, err)
	}
	return nil
}

// Get unmarshals the value stored under key into out. The second return
// is false when the key has never been written.
func (s *LocalStore) Get(key string, out any) (bool, error) {
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %q: %w", key, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false, fmt.Errorf("corrupt mirror entry %q: %w", key, err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %q: %w", key, err)
	}
	return true, nil
}

func (s *LocalStore) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// Keys lists every stored key.
func (s *LocalStore) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list store directory: %w", err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".tmp-") {
			continue
		}
		keys = append(keys, keyFromFilename(name))
	}
	return keys, nil
}

// Watch starts the directory watcher and invokes fn for every key whose
// file was changed by another instance. Writes from this instance are
// filtered out by origin id. Watch may be called once; Close stops it.
func (s *LocalStore) Watch(fn func(key string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return fmt.Errorf("store watcher already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(s.root); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch store directory: %w", err)
	}
	s.watcher = watcher
	s.done = make(chan struct{})

	go s.watchLoop(watcher, fn)
	return nil
}

func (s *LocalStore) watchLoop(watcher *fsnotify.Watcher, fn func(key string)) {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			// Renames land as Create on the target file.
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".tmp-") {
				continue
			}
			key := keyFromFilename(name)
			if s.isOwnWrite(event.Name) {
				continue
			}
			fn(key)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Store watcher error",
				slog.String("type", "sys"),
				slog.Any("error", err),
			)
		}
	}
}

func (s *LocalStore) isOwnWrite(path string) bool {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false
	}
	return env.Origin == s.instanceID
}

func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	err := s.watcher.Close()
	s.watcher = nil
	return err
}
