package repositories

import (
	"context"
	"time"

	"github.com/stickerbook/manager/stickerbook/config"
	"github.com/stickerbook/manager/stickerbook/database/models"
	"github.com/uptrace/bun"
)

type StickerRepository interface {
	Create(ctx context.Context, sticker *models.Sticker) error
	GetByID(ctx context.Context, id string) (*models.Sticker, error)
	GetByAlbumID(ctx context.Context, albumID string) ([]*models.Sticker, error)
	GetByNumber(ctx context.Context, albumID string, number models.StickerNumber) (*models.Sticker, error)
	NumberExists(ctx context.Context, albumID string, number models.StickerNumber) (bool, error)
	Update(ctx context.Context, sticker *models.Sticker) error
	BulkUpsert(ctx context.Context, stickers []*models.Sticker) error
	UpdateTeam(ctx context.Context, albumID, oldTeam, newTeam, newLogo string) (int64, error)
	Delete(ctx context.Context, id string) error
	DeleteByAlbum(ctx context.Context, albumID string) error
	CountByAlbum(ctx context.Context, albumID string) (int, error)
}

type stickerRepository struct {
	db   *bun.DB
	base *BaseRepository
}

func NewStickerRepository(db *bun.DB) StickerRepository {
	return &stickerRepository{db: db, base: NewBaseRepository(db)}
}

func (r *stickerRepository) Create(ctx context.Context, sticker *models.Sticker) error {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	exists, err := r.numberExists(ctx, sticker.AlbumID, sticker.Number, sticker.ID)
	if err != nil {
		return err
	}
	if exists {
		return &ConflictError{Entity: "sticker", Field: "number", Value: sticker.Number.String()}
	}

	now := time.Now()
	sticker.CreatedAt = now
	sticker.UpdatedAt = now
	sticker.LastModified = now

	_, err = r.db.NewInsert().
		Model(sticker).
		Exec(ctx)
	return r.base.HandleErrorWithID("create", "sticker", sticker.ID, err)
}

func (r *stickerRepository) GetByID(ctx context.Context, id string) (*models.Sticker, error) {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	sticker := new(models.Sticker)
	err := r.db.NewSelect().
		Model(sticker).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, r.base.HandleErrorWithID("get", "sticker", id, err)
	}
	return sticker, nil
}

func (r *stickerRepository) GetByAlbumID(ctx context.Context, albumID string) ([]*models.Sticker, error) {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	var stickers []*models.Sticker
	err := r.db.NewSelect().
		Model(&stickers).
		Where("albumid = ?", albumID).
		Where("isdeleted = ?", false).
		Scan(ctx)
	if err != nil {
		return nil, r.base.HandleError("list", "sticker", err)
	}

	// Numeric order cannot come from the text column, sort in memory.
	models.SortStickers(stickers)
	return stickers, nil
}

func (r *stickerRepository) GetByNumber(ctx context.Context, albumID string, number models.StickerNumber) (*models.Sticker, error) {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	sticker := new(models.Sticker)
	err := r.db.NewSelect().
		Model(sticker).
		Where("albumid = ?", albumID).
		Where("number = ?", number).
		Where("isdeleted = ?", false).
		Scan(ctx)
	if err != nil {
		return nil, r.base.HandleErrorWithID("get by number", "sticker", number.String(), err)
	}
	return sticker, nil
}

func (r *stickerRepository) NumberExists(ctx context.Context, albumID string, number models.StickerNumber) (bool, error) {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	return r.numberExists(ctx, albumID, number, "")
}

func (r *stickerRepository) numberExists(ctx context.Context, albumID string, number models.StickerNumber, excludeID string) (bool, error) {
	q := r.db.NewSelect().
		Model((*models.Sticker)(nil)).
		Where("albumid = ?", albumID).
		Where("number = ?", number).
		Where("isdeleted = ?", false)
	if excludeID != "" {
		q = q.Where("id != ?", excludeID)
	}
	exists, err := q.Exists(ctx)
	if err != nil {
		return false, r.base.HandleError("check number", "sticker", err)
	}
	return exists, nil
}

func (r *stickerRepository) Update(ctx context.Context, sticker *models.Sticker) error {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	sticker.UpdatedAt = time.Now()
	res, err := r.db.NewUpdate().
		Model(sticker).
		WherePK().
		Exec(ctx)
	if err != nil {
		return r.base.HandleErrorWithID("update", "sticker", sticker.ID, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return &NotFoundError{Entity: "sticker", ID: sticker.ID}
	}
	return nil
}

// BulkUpsert writes stickers in chunks, updating existing rows by primary key.
// Callers control batch sizing; chunking here only guards against oversized
// statements when a caller passes a whole album at once.
func (r *stickerRepository) BulkUpsert(ctx context.Context, stickers []*models.Sticker) error {
	if len(stickers) == 0 {
		return nil
	}

	ctx, cancel := r.base.WithCustomTimeout(ctx, config.BatchWriteTimeout)
	defer cancel()

	now := time.Now()
	for _, s := range stickers {
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		s.UpdatedAt = now
		if s.LastModified.IsZero() {
			s.LastModified = now
		}
	}

	for i := 0; i < len(stickers); i += config.MaxBatchSize {
		end := i + config.MaxBatchSize
		if end > len(stickers) {
			end = len(stickers)
		}
		chunk := stickers[i:end]

		_, err := r.db.NewInsert().
			Model(&chunk).
			On("CONFLICT (id) DO UPDATE").
			Set("name = EXCLUDED.name").
			Set("team = EXCLUDED.team").
			Set("teamlogo = EXCLUDED.teamlogo").
			Set("category = EXCLUDED.category").
			Set("imageurl = EXCLUDED.imageurl").
			Set("isowned = EXCLUDED.isowned").
			Set("isduplicate = EXCLUDED.isduplicate").
			Set("duplicatecount = EXCLUDED.duplicatecount").
			Set("isdeleted = EXCLUDED.isdeleted").
			Set("lastmodified = EXCLUDED.lastmodified").
			Set("updatedat = EXCLUDED.updatedat").
			Exec(ctx)
		if err != nil {
			return r.base.HandleError("bulk upsert", "sticker", err)
		}
	}
	return nil
}

// UpdateTeam renames a team across an album and returns how many stickers
// were touched. Passing an empty newLogo keeps the existing logo.
func (r *stickerRepository) UpdateTeam(ctx context.Context, albumID, oldTeam, newTeam, newLogo string) (int64, error) {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	now := time.Now()
	q := r.db.NewUpdate().
		Model((*models.Sticker)(nil)).
		Set("team = ?", newTeam).
		Set("lastmodified = ?", now).
		Set("updatedat = ?", now).
		Where("albumid = ?", albumID).
		Where("team = ?", oldTeam).
		Where("isdeleted = ?", false)
	if newLogo != "" {
		q = q.Set("teamlogo = ?", newLogo)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return 0, r.base.HandleError("rename team", "sticker", err)
	}
	rows, _ := res.RowsAffected()
	return rows, nil
}

func (r *stickerRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	now := time.Now()
	res, err := r.db.NewUpdate().
		Model((*models.Sticker)(nil)).
		Set("isdeleted = ?", true).
		Set("lastmodified = ?", now).
		Set("updatedat = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return r.base.HandleErrorWithID("delete", "sticker", id, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return &NotFoundError{Entity: "sticker", ID: id}
	}
	return nil
}

func (r *stickerRepository) DeleteByAlbum(ctx context.Context, albumID string) error {
	ctx, cancel := r.base.WithCustomTimeout(ctx, config.BatchWriteTimeout)
	defer cancel()

	now := time.Now()
	_, err := r.db.NewUpdate().
		Model((*models.Sticker)(nil)).
		Set("isdeleted = ?", true).
		Set("lastmodified = ?", now).
		Set("updatedat = ?", now).
		Where("albumid = ?", albumID).
		Exec(ctx)
	return r.base.HandleError("delete by album", "sticker", err)
}

func (r *stickerRepository) CountByAlbum(ctx context.Context, albumID string) (int, error) {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	count, err := r.db.NewSelect().
		Model((*models.Sticker)(nil)).
		Where("albumid = ?", albumID).
		Where("isdeleted = ?", false).
		Count(ctx)
	if err != nil {
		return 0, r.base.HandleError("count", "sticker", err)
	}
	return count, nil
}
