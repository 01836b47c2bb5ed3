package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stickerbook/manager/stickerbook/database/models"
)

func TestCreateOfferValidatesNumbers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedSticker(t, &models.Sticker{ID: "s1", AlbumID: "a1", Number: models.NumberOf(1), Name: "Messi"})

	err := env.exchange.CreateOffer(ctx, &models.ExchangeOffer{
		AlbumID:          "a1",
		UserName:         "Dana",
		WantedStickerIDs: []string{"99"},
	})
	if err == nil || !strings.Contains(err.Error(), "unknown sticker") {
		t.Errorf("offer with unknown number: err = %v", err)
	}

	offer := &models.ExchangeOffer{
		AlbumID:          "a1",
		UserName:         "Dana",
		WantedStickerIDs: []string{"1"},
	}
	if err := env.exchange.CreateOffer(ctx, offer); err != nil {
		t.Fatalf("valid offer: %v", err)
	}
	if offer.ID == "" {
		t.Error("offer id not assigned")
	}

	stored, err := env.offers.GetByID(ctx, offer.ID)
	if err != nil {
		t.Fatalf("offer not stored: %v", err)
	}
	if stored.Status != models.OfferPending {
		t.Errorf("new offer status = %s, want pending", stored.Status)
	}
}

func TestCompleteExchangeAppliesIntake(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// One sticker not yet owned, one already owned.
	env.seedSticker(t, &models.Sticker{ID: "s1", AlbumID: "a1", Number: models.NumberOf(1), Name: "Messi"})
	env.seedSticker(t, &models.Sticker{ID: "s2", AlbumID: "a1", Number: models.NumberOf(2), Name: "Ronaldo", IsOwned: true})

	offer := &models.ExchangeOffer{
		AlbumID:          "a1",
		UserName:         "Dana",
		WantedStickerIDs: []string{"1", "2"},
	}
	if err := env.exchange.CreateOffer(ctx, offer); err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}

	if err := env.exchange.Complete(ctx, offer.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	s1, _ := env.stickers.GetByID(ctx, "s1")
	if !s1.IsOwned || s1.DuplicateCount != 0 {
		t.Errorf("unowned sticker after exchange: %+v", s1)
	}
	s2, _ := env.stickers.GetByID(ctx, "s2")
	if s2.DuplicateCount != 1 || !s2.IsDuplicate {
		t.Errorf("owned sticker after exchange: count=%d", s2.DuplicateCount)
	}

	stored, _ := env.offers.GetByID(ctx, offer.ID)
	if stored.Status != models.OfferCompleted {
		t.Errorf("offer status = %s, want completed", stored.Status)
	}

	entries := env.log.EntriesForAlbum("a1")
	if len(entries) != 1 {
		t.Fatalf("got %d intake entries, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Source != "exchange with Dana" {
		t.Errorf("intake source = %q", entry.Source)
	}
	if len(entry.NewStickers) != 1 || entry.NewStickers[0] != models.NumberOf(1) {
		t.Errorf("new stickers = %v", entry.NewStickers)
	}
	if len(entry.NewDuplicates) != 1 || entry.NewDuplicates[0] != models.NumberOf(2) {
		t.Errorf("new duplicates = %v", entry.NewDuplicates)
	}

	// A second completion is rejected.
	if err := env.exchange.Complete(ctx, offer.ID); err == nil {
		t.Error("double completion not rejected")
	}
}

func TestOfferStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedSticker(t, &models.Sticker{ID: "s1", AlbumID: "a1", Number: models.NumberOf(1)})

	offer := &models.ExchangeOffer{AlbumID: "a1", UserName: "Dana", WantedStickerIDs: []string{"1"}}
	if err := env.exchange.CreateOffer(ctx, offer); err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}

	if err := env.exchange.Accept(ctx, offer.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	active, _ := env.exchange.ActiveOffers(ctx, "a1")
	if len(active) != 1 {
		t.Errorf("accepted offer not active: %d", len(active))
	}

	if err := env.exchange.Decline(ctx, offer.ID); err != nil {
		t.Fatalf("Decline: %v", err)
	}
	active, _ = env.exchange.ActiveOffers(ctx, "a1")
	if len(active) != 0 {
		t.Errorf("declined offer still active")
	}

	if err := env.exchange.Delete(ctx, offer.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	all, _ := env.exchange.OffersForAlbum(ctx, "a1")
	if len(all) != 0 {
		t.Errorf("deleted offer still listed")
	}
}
