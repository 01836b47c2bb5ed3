// Package services orchestrates the data layer: bulk imports, collection
// mutations and exchange handling, each publishing change events so open
// views stay current.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/stickerbook/manager/stickerbook/config"
	"github.com/stickerbook/manager/stickerbook/database/models"
	"github.com/stickerbook/manager/stickerbook/database/repositories"
	"github.com/stickerbook/manager/stickerbook/events"
	"github.com/stickerbook/manager/stickerbook/importer"
	"github.com/stickerbook/manager/stickerbook/intake"
	"github.com/stickerbook/manager/stickerbook/store"
)

var (
	// ErrNoAlbumSelected is returned before any write when the target
	// album is missing.
	ErrNoAlbumSelected = errors.New("no album selected")

	// ErrNoValidRows is returned when parsing left nothing to import.
	ErrNoValidRows = errors.New("no valid rows to import")

	// ErrImportAborted is returned when the caller declined the
	// large-import confirmation. No write has happened at that point.
	ErrImportAborted = errors.New("import aborted")
)

// BatchWriteError reports a fully failed import: zero batches landed.
type BatchWriteError struct {
	RateLimited bool
	Err         error
}

func (e *BatchWriteError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("import rejected by rate/quota limits: %v", e.Err)
	}
	return fmt.Sprintf("import failed: %v", e.Err)
}

func (e *BatchWriteError) Unwrap() error { return e.Err }

// BatchWriter is the backend write path for sticker batches.
type BatchWriter interface {
	BulkUpsert(ctx context.Context, stickers []*models.Sticker) error
}

// ImportResult reports counts, never a bare boolean: partial success is
// the normal failure mode for bulk writes and the caller needs to know
// how much is left to re-run.
type ImportResult struct {
	Imported      int
	Attempted     int
	FailedBatches int
	RateLimited   bool
}

// ImportOptions tunes one pipeline run.
type ImportOptions struct {
	// BatchSize caps rows per backend call; defaults to the configured
	// batch size, clamped to the maximum.
	BatchSize int

	// Confirm gates imports larger than the configured threshold. The
	// run aborts with ErrImportAborted when it returns false. A nil
	// Confirm skips the gate.
	Confirm func(totalRows int) bool

	// Progress receives a monotonically increasing percentage after
	// every batch, reaching 100 when the run finishes.
	Progress func(percent int)
}

// ImportService runs the bulk import pipeline: normalized rows go to the
// backend in fixed-size batches, strictly in order, with a delay between
// batches. Rate-limited batches retry in place with exponential backoff
// before counting as failed; other failures skip the batch and move on.
type ImportService struct {
	writer BatchWriter
	albums repositories.AlbumRepository
	cache  *store.Cache
	bus    *events.Bus
	log    *intake.Log

	// sleep is replaced in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewImportService(writer BatchWriter, albums repositories.AlbumRepository, cache *store.Cache, bus *events.Bus, log *intake.Log) *ImportService {
	return &ImportService{
		writer: writer,
		albums: albums,
		cache:  cache,
		bus:    bus,
		log:    log,
		sleep:  sleepCtx,
	}
}

// ImportFile parses raw file content and imports it. Workbooks and
// delimited text are both accepted; decode failures surface before any
// network activity.
func (s *ImportService) ImportFile(ctx context.Context, albumID, filename string, raw []byte, opts ImportOptions) (ImportResult, error) {
	rows, err := importer.ParseFile(filename, raw)
	if err != nil {
		return ImportResult{}, err
	}
	return s.Import(ctx, albumID, rows, opts)
}

// Import commits parsed rows to the target album.
func (s *ImportService) Import(ctx context.Context, albumID string, rows []importer.Row, opts ImportOptions) (ImportResult, error) {
	if albumID == "" {
		return ImportResult{}, ErrNoAlbumSelected
	}
	if len(rows) == 0 {
		return ImportResult{}, ErrNoValidRows
	}
	if len(rows) > config.LargeImportThreshold && opts.Confirm != nil && !opts.Confirm(len(rows)) {
		return ImportResult{}, ErrImportAborted
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = config.DefaultBatchSize
	}
	if batchSize > config.MaxBatchSize {
		batchSize = config.MaxBatchSize
	}

	stickers := rowsToStickers(albumID, rows)
	batches := chunkStickers(stickers, batchSize)

	slog.Info("Starting import",
		slog.String("type", "cmd"),
		slog.String("album_id", albumID),
		slog.Int("rows", len(rows)),
		slog.Int("batches", len(batches)),
	)

	result := ImportResult{Attempted: len(stickers)}
	imported := make([]*models.Sticker, 0, len(stickers))

	limitBackoff := backoff.NewExponentialBackOff()
	limitBackoff.InitialInterval = config.RateLimitInitialDelay
	limitBackoff.MaxInterval = config.RateLimitMaxDelay
	limitBackoff.MaxElapsedTime = 0
	delay := config.InterBatchDelay

	var lastErr error
	for i, batch := range batches {
		if i > 0 {
			if err := s.sleep(ctx, delay); err != nil {
				// Cancelled mid-run: report what already landed.
				s.finish(albumID, imported, &result, opts)
				return result, err
			}
		}

		err := s.writeBatch(ctx, batch)
		for attempt := 1; err != nil && repositories.IsRateLimited(err) && attempt <= config.MaxBatchRetries; attempt++ {
			result.RateLimited = true
			wait := limitBackoff.NextBackOff()
			slog.Warn("Import batch rate limited, retrying",
				slog.String("type", "db"),
				slog.String("album_id", albumID),
				slog.Int("batch", i+1),
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
			)
			if serr := s.sleep(ctx, wait); serr != nil {
				s.finish(albumID, imported, &result, opts)
				return result, serr
			}
			err = s.writeBatch(ctx, batch)
		}
		if err == nil {
			result.Imported += len(batch)
			imported = append(imported, batch...)
			delay = config.InterBatchDelay
			limitBackoff.Reset()
		} else {
			result.FailedBatches++
			lastErr = err
			if repositories.IsRateLimited(err) {
				result.RateLimited = true
				delay = limitBackoff.NextBackOff()
			}
			slog.Warn("Import batch failed",
				slog.String("type", "db"),
				slog.String("album_id", albumID),
				slog.Int("batch", i+1),
				slog.Int("size", len(batch)),
				slog.Bool("rate_limited", repositories.IsRateLimited(err)),
				slog.Any("error", err),
			)
		}

		if opts.Progress != nil {
			opts.Progress((i + 1) * 100 / len(batches))
		}

		if ctx.Err() != nil {
			s.finish(albumID, imported, &result, opts)
			return result, ctx.Err()
		}
	}

	if result.Imported == 0 {
		return result, &BatchWriteError{RateLimited: result.RateLimited, Err: lastErr}
	}

	s.finish(albumID, imported, &result, opts)

	slog.Info("Import finished",
		slog.String("type", "cmd"),
		slog.String("album_id", albumID),
		slog.Int("imported", result.Imported),
		slog.Int("attempted", result.Attempted),
		slog.Int("failed_batches", result.FailedBatches),
	)
	return result, nil
}

// finish runs the success side effects: audit entry, cache invalidation
// and a change event so every view reloads.
func (s *ImportService) finish(albumID string, imported []*models.Sticker, result *ImportResult, opts ImportOptions) {
	if len(imported) == 0 {
		return
	}

	if s.log != nil {
		numbers := make([]models.StickerNumber, len(imported))
		for i, st := range imported {
			numbers[i] = st.Number
		}
		s.log.Record(intake.Entry{
			AlbumID:     albumID,
			AlbumName:   s.albumName(albumID),
			Source:      intake.SourceImport,
			NewStickers: numbers,
		})
	}

	if s.cache != nil {
		s.cache.InvalidateStickers(albumID)
	}
	if s.bus != nil {
		s.bus.Publish(events.StickerDataChanged{
			AlbumID: albumID,
			Action:  "import",
			Count:   result.Imported,
		})
		s.bus.PublishNow(events.InventoryDataChanged{AlbumID: albumID})
	}
}

func (s *ImportService) writeBatch(ctx context.Context, batch []*models.Sticker) error {
	batchCtx, cancel := context.WithTimeout(ctx, config.BatchWriteTimeout)
	defer cancel()
	return s.writer.BulkUpsert(batchCtx, batch)
}

func (s *ImportService) albumName(albumID string) string {
	if s.albums == nil {
		return ""
	}
	album, err := s.albums.GetByID(context.Background(), albumID)
	if err != nil {
		return ""
	}
	return album.Name
}

// rowsToStickers materializes import rows as owned stickers.
func rowsToStickers(albumID string, rows []importer.Row) []*models.Sticker {
	stickers := make([]*models.Sticker, len(rows))
	now := time.Now()
	for i, row := range rows {
		stickers[i] = &models.Sticker{
			ID:           uuid.New().String(),
			AlbumID:      albumID,
			Number:       row.Number,
			Name:         row.Name,
			Team:         row.Team,
			Category:     row.Category,
			IsOwned:      true,
			LastModified: now,
		}
	}
	return stickers
}

func chunkStickers(stickers []*models.Sticker, size int) [][]*models.Sticker {
	var batches [][]*models.Sticker
	for i := 0; i < len(stickers); i += size {
		end := i + size
		if end > len(stickers) {
			end = len(stickers)
		}
		batches = append(batches, stickers[i:end])
	}
	return batches
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
