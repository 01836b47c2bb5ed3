package repositories

import (
	"context"
	"time"

	"github.com/stickerbook/manager/stickerbook/database/models"
	"github.com/uptrace/bun"
)

type AlbumRepository interface {
	Create(ctx context.Context, album *models.Album) error
	GetByID(ctx context.Context, id string) (*models.Album, error)
	GetAll(ctx context.Context) ([]*models.Album, error)
	GetRecycled(ctx context.Context) ([]*models.Album, error)
	Update(ctx context.Context, album *models.Album) error
	Recycle(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
	Purge(ctx context.Context, id string) error
	SetTotalStickers(ctx context.Context, id string, total int) error
}

type albumRepository struct {
	db   *bun.DB
	base *BaseRepository
}

func NewAlbumRepository(db *bun.DB) AlbumRepository {
	return &albumRepository{db: db, base: NewBaseRepository(db)}
}

func (r *albumRepository) Create(ctx context.Context, album *models.Album) error {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	now := time.Now()
	album.CreatedAt = now
	album.UpdatedAt = now
	album.LastModified = now

	_, err := r.db.NewInsert().
		Model(album).
		Exec(ctx)
	return r.base.HandleErrorWithID("create", "album", album.ID, err)
}

func (r *albumRepository) GetByID(ctx context.Context, id string) (*models.Album, error) {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	album := new(models.Album)
	err := r.db.NewSelect().
		Model(album).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, r.base.HandleErrorWithID("get", "album", id, err)
	}
	return album, nil
}

func (r *albumRepository) GetAll(ctx context.Context) ([]*models.Album, error) {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	var albums []*models.Album
	err := r.db.NewSelect().
		Model(&albums).
		Where("isdeleted = ?", false).
		Order("year DESC", "name ASC").
		Scan(ctx)
	if err != nil {
		return nil, r.base.HandleError("list", "album", err)
	}
	return albums, nil
}

// GetRecycled returns soft-deleted albums still waiting in the recycle bin.
func (r *albumRepository) GetRecycled(ctx context.Context) ([]*models.Album, error) {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	var albums []*models.Album
	err := r.db.NewSelect().
		Model(&albums).
		Where("isdeleted = ?", true).
		Order("lastmodified DESC").
		Scan(ctx)
	if err != nil {
		return nil, r.base.HandleError("list recycled", "album", err)
	}
	return albums, nil
}

func (r *albumRepository) Update(ctx context.Context, album *models.Album) error {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	album.Touch()
	res, err := r.db.NewUpdate().
		Model(album).
		WherePK().
		Exec(ctx)
	if err != nil {
		return r.base.HandleErrorWithID("update", "album", album.ID, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return &NotFoundError{Entity: "album", ID: album.ID}
	}
	return nil
}

func (r *albumRepository) Recycle(ctx context.Context, id string) error {
	return r.setDeleted(ctx, id, true)
}

func (r *albumRepository) Restore(ctx context.Context, id string) error {
	return r.setDeleted(ctx, id, false)
}

func (r *albumRepository) setDeleted(ctx context.Context, id string, deleted bool) error {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	res, err := r.db.NewUpdate().
		Model((*models.Album)(nil)).
		Set("isdeleted = ?", deleted).
		Set("lastmodified = ?", time.Now()).
		Set("updatedat = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return r.base.HandleErrorWithID("set delete flag", "album", id, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return &NotFoundError{Entity: "album", ID: id}
	}
	return nil
}

// Purge permanently removes a recycled album and its stickers.
func (r *albumRepository) Purge(ctx context.Context, id string) error {
	return r.base.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.Sticker)(nil)).
			Where("albumid = ?", id).
			Exec(ctx); err != nil {
			return r.base.HandleErrorWithID("purge stickers", "album", id, err)
		}
		res, err := tx.NewDelete().
			Model((*models.Album)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return r.base.HandleErrorWithID("purge", "album", id, err)
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return &NotFoundError{Entity: "album", ID: id}
		}
		return nil
	})
}

func (r *albumRepository) SetTotalStickers(ctx context.Context, id string, total int) error {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.NewUpdate().
		Model((*models.Album)(nil)).
		Set("totalstickers = ?", total).
		Set("lastmodified = ?", time.Now()).
		Set("updatedat = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	return r.base.HandleErrorWithID("update sticker count", "album", id, err)
}
