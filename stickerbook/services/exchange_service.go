package services

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/google/uuid"
	"github.com/stickerbook/manager/stickerbook/database/models"
	"github.com/stickerbook/manager/stickerbook/database/repositories"
	"github.com/stickerbook/manager/stickerbook/events"
	"github.com/stickerbook/manager/stickerbook/intake"
	"github.com/stickerbook/manager/stickerbook/store"
)

// ExchangeService manages sticker exchange offers. Offers reference
// stickers by number within their album, so every incoming reference is
// resolved against live stickers before the offer is stored.
type ExchangeService struct {
	offers   repositories.ExchangeRepository
	stickers repositories.StickerRepository
	cache    *store.Cache
	bus      *events.Bus
	log      *intake.Log
}

func NewExchangeService(
	offers repositories.ExchangeRepository,
	stickers repositories.StickerRepository,
	cache *store.Cache,
	bus *events.Bus,
	log *intake.Log,
) *ExchangeService {
	return &ExchangeService{
		offers:   offers,
		stickers: stickers,
		cache:    cache,
		bus:      bus,
		log:      log,
	}
}

func (s *ExchangeService) OffersForAlbum(ctx context.Context, albumID string) ([]*models.ExchangeOffer, error) {
	return s.offers.GetByAlbumID(ctx, albumID)
}

func (s *ExchangeService) ActiveOffers(ctx context.Context, albumID string) ([]*models.ExchangeOffer, error) {
	return s.offers.GetActiveByAlbumID(ctx, albumID)
}

// CreateOffer validates that every referenced number resolves to a live
// sticker in the album, then stores the offer.
func (s *ExchangeService) CreateOffer(ctx context.Context, offer *models.ExchangeOffer) error {
	if offer.AlbumID == "" {
		return ErrNoAlbumSelected
	}
	if offer.UserName == "" {
		return fmt.Errorf("offer user name is required")
	}
	if len(offer.WantedStickerIDs) == 0 && len(offer.OfferedStickerIDs) == 0 {
		return fmt.Errorf("offer references no stickers")
	}

	for _, num := range append(offer.WantedNumbers(), offer.OfferedNumbers()...) {
		if _, err := s.stickers.GetByNumber(ctx, offer.AlbumID, num); err != nil {
			return fmt.Errorf("offer references unknown sticker %s: %w", num, err)
		}
	}

	if offer.ID == "" {
		offer.ID = uuid.New().String()
	}
	if err := s.offers.Create(ctx, offer); err != nil {
		return err
	}
	s.offersChanged(offer.AlbumID)
	return nil
}

func (s *ExchangeService) Accept(ctx context.Context, offerID string) error {
	return s.setStatus(ctx, offerID, models.OfferAccepted)
}

func (s *ExchangeService) Decline(ctx context.Context, offerID string) error {
	return s.setStatus(ctx, offerID, models.OfferDeclined)
}

func (s *ExchangeService) setStatus(ctx context.Context, offerID string, status models.OfferStatus) error {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return err
	}
	if err := s.offers.UpdateStatus(ctx, offerID, status); err != nil {
		return err
	}
	s.offersChanged(offer.AlbumID)
	return nil
}

// Complete finishes an exchange: the wanted stickers enter the
// collection (owned, or another duplicate if already owned), the offer
// is marked completed and the intake log records the counterparty.
func (s *ExchangeService) Complete(ctx context.Context, offerID string) error {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return err
	}
	if offer.Status == models.OfferCompleted {
		return fmt.Errorf("offer %s already completed", offerID)
	}

	entry := intake.Entry{
		AlbumID: offer.AlbumID,
		Source:  "exchange with " + offer.UserName,
	}

	for _, num := range offer.WantedNumbers() {
		sticker, err := s.stickers.GetByNumber(ctx, offer.AlbumID, num)
		if err != nil {
			slog.Warn("Exchange references missing sticker",
				slog.String("type", "cmd"),
				slog.String("offer_id", offerID),
				slog.String("number", num.String()),
				slog.Any("error", err),
			)
			continue
		}

		wasOwned := sticker.IsOwned
		sticker.AddDuplicate()
		if err := s.stickers.Update(ctx, sticker); err != nil {
			return fmt.Errorf("failed to apply exchange for sticker %s: %w", num, err)
		}

		switch {
		case !wasOwned:
			entry.NewStickers = append(entry.NewStickers, num)
		case sticker.DuplicateCount == 1:
			entry.NewDuplicates = append(entry.NewDuplicates, num)
		default:
			entry.UpdatedDuplicates = append(entry.UpdatedDuplicates, num)
		}
	}

	if err := s.offers.UpdateStatus(ctx, offerID, models.OfferCompleted); err != nil {
		return err
	}

	if entry.Total() > 0 && s.log != nil {
		s.log.Record(entry)
	}
	s.cache.InvalidateStickers(offer.AlbumID)
	s.bus.Publish(events.StickerDataChanged{
		AlbumID: offer.AlbumID,
		Action:  "exchange",
		Count:   entry.Total(),
	})
	s.offersChanged(offer.AlbumID)
	return nil
}

func (s *ExchangeService) Delete(ctx context.Context, offerID string) error {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return err
	}
	if err := s.offers.Delete(ctx, offerID); err != nil {
		return err
	}
	s.offersChanged(offer.AlbumID)
	return nil
}

func (s *ExchangeService) offersChanged(albumID string) {
	s.bus.PublishNow(events.ExchangeOffersChanged{AlbumID: albumID})
}
