package repositories

import (
	"context"
	"time"

	"github.com/stickerbook/manager/stickerbook/database/models"
	"github.com/uptrace/bun"
)

type ExchangeRepository interface {
	Create(ctx context.Context, offer *models.ExchangeOffer) error
	GetByID(ctx context.Context, id string) (*models.ExchangeOffer, error)
	GetByAlbumID(ctx context.Context, albumID string) ([]*models.ExchangeOffer, error)
	GetActiveByAlbumID(ctx context.Context, albumID string) ([]*models.ExchangeOffer, error)
	UpdateStatus(ctx context.Context, id string, status models.OfferStatus) error
	Update(ctx context.Context, offer *models.ExchangeOffer) error
	Delete(ctx context.Context, id string) error
}

type exchangeRepository struct {
	db   *bun.DB
	base *BaseRepository
}

func NewExchangeRepository(db *bun.DB) ExchangeRepository {
	return &exchangeRepository{db: db, base: NewBaseRepository(db)}
}

func (r *exchangeRepository) Create(ctx context.Context, offer *models.ExchangeOffer) error {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	now := time.Now()
	offer.CreatedAt = now
	offer.UpdatedAt = now
	offer.LastModified = now
	if offer.Status == "" {
		offer.Status = models.OfferPending
	}

	_, err := r.db.NewInsert().
		Model(offer).
		Exec(ctx)
	return r.base.HandleErrorWithID("create", "exchange offer", offer.ID, err)
}

func (r *exchangeRepository) GetByID(ctx context.Context, id string) (*models.ExchangeOffer, error) {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	offer := new(models.ExchangeOffer)
	err := r.db.NewSelect().
		Model(offer).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, r.base.HandleErrorWithID("get", "exchange offer", id, err)
	}
	return offer, nil
}

func (r *exchangeRepository) GetByAlbumID(ctx context.Context, albumID string) ([]*models.ExchangeOffer, error) {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	var offers []*models.ExchangeOffer
	err := r.db.NewSelect().
		Model(&offers).
		Where("albumid = ?", albumID).
		Where("isdeleted = ?", false).
		Order("createdat DESC").
		Scan(ctx)
	if err != nil {
		return nil, r.base.HandleError("list", "exchange offer", err)
	}
	return offers, nil
}

func (r *exchangeRepository) GetActiveByAlbumID(ctx context.Context, albumID string) ([]*models.ExchangeOffer, error) {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	var offers []*models.ExchangeOffer
	err := r.db.NewSelect().
		Model(&offers).
		Where("albumid = ?", albumID).
		Where("isdeleted = ?", false).
		Where("status IN (?)", bun.In([]models.OfferStatus{models.OfferPending, models.OfferActive, models.OfferAccepted})).
		Order("createdat DESC").
		Scan(ctx)
	if err != nil {
		return nil, r.base.HandleError("list active", "exchange offer", err)
	}
	return offers, nil
}

func (r *exchangeRepository) UpdateStatus(ctx context.Context, id string, status models.OfferStatus) error {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	now := time.Now()
	res, err := r.db.NewUpdate().
		Model((*models.ExchangeOffer)(nil)).
		Set("status = ?", status).
		Set("lastmodified = ?", now).
		Set("updatedat = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return r.base.HandleErrorWithID("update status", "exchange offer", id, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return &NotFoundError{Entity: "exchange offer", ID: id}
	}
	return nil
}

func (r *exchangeRepository) Update(ctx context.Context, offer *models.ExchangeOffer) error {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	offer.Touch()
	res, err := r.db.NewUpdate().
		Model(offer).
		WherePK().
		Exec(ctx)
	if err != nil {
		return r.base.HandleErrorWithID("update", "exchange offer", offer.ID, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return &NotFoundError{Entity: "exchange offer", ID: offer.ID}
	}
	return nil
}

func (r *exchangeRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	now := time.Now()
	res, err := r.db.NewUpdate().
		Model((*models.ExchangeOffer)(nil)).
		Set("isdeleted = ?", true).
		Set("lastmodified = ?", now).
		Set("updatedat = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return r.base.HandleErrorWithID("delete", "exchange offer", id, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return &NotFoundError{Entity: "exchange offer", ID: id}
	}
	return nil
}
