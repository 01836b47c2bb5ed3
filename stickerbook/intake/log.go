// Package intake keeps the acquisition history: every batch of stickers
// that entered the collection, whether through a file import, a completed
// exchange or a manual toggle.
package intake

import (
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/stickerbook/manager/stickerbook/database/models"
	"github.com/stickerbook/manager/stickerbook/store"
)

// Common source descriptors. The field is free text; exchanges record
// the counterparty ("exchange with Dana") instead of a fixed label.
const (
	SourceImport = "file import"
	SourceManual = "manual entry"
	SourcePack   = "pack purchase"
)

// maxEntries caps the persisted history; older entries roll off.
const maxEntries = 200

// Entry is one intake action. The number lists distinguish stickers
// owned for the first time from ones that became or gained duplicates.
type Entry struct {
	ID                string                 `json:"id"`
	Timestamp         time.Time              `json:"timestamp"`
	AlbumID           string                 `json:"albumId"`
	AlbumName         string                 `json:"albumName,omitempty"`
	Source            string                 `json:"source"`
	SourceDetails     string                 `json:"sourceDetails,omitempty"`
	NewStickers       []models.StickerNumber `json:"newStickers"`
	NewDuplicates     []models.StickerNumber `json:"newDuplicates"`
	UpdatedDuplicates []models.StickerNumber `json:"updatedDuplicates"`
}

// Total returns how many stickers the entry covers.
func (e Entry) Total() int {
	return len(e.NewStickers) + len(e.NewDuplicates) + len(e.UpdatedDuplicates)
}

// Log is the persisted intake history, newest first. Entries are
// append-only; the only mutation is a full clear. They live in the
// shared mirror so every running instance sees the same history.
type Log struct {
	mirror *store.LocalStore
	now    func() time.Time

	mu sync.Mutex
}

func NewLog(mirror *store.LocalStore) *Log {
	return &Log{mirror: mirror, now: time.Now}
}

// Record appends an entry and returns it with id and timestamp filled in.
func (l *Log) Record(e Entry) Entry {
	e.ID = uuid.New().String()
	e.Timestamp = l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.load()
	entries = append([]Entry{e}, entries...)
	if len(entries) > maxEntries {
		entries = entries[:maxEntries]
	}
	l.save(entries)

	return e
}

// Entries returns the history newest first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

// EntriesForAlbum filters the history to one album.
func (l *Log) EntriesForAlbum(albumID string) []Entry {
	var out []Entry
	for _, e := range l.Entries() {
		if e.AlbumID == albumID {
			out = append(out, e)
		}
	}
	return out
}

func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.save([]Entry{})
}

func (l *Log) load() []Entry {
	var entries []Entry
	if _, err := l.mirror.Get(store.KeyIntakeLog, &entries); err != nil {
		slog.Warn("Failed to read intake log",
			slog.String("type", "sys"),
			slog.Any("error", err),
		)
	}
	return entries
}

func (l *Log) save(entries []Entry) {
	if err := l.mirror.Set(store.KeyIntakeLog, entries); err != nil {
		slog.Warn("Failed to write intake log",
			slog.String("type", "sys"),
			slog.Any("error", err),
		)
	}
}
