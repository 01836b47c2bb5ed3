package services

import (
	"context"
	"testing"

	"github.com/stickerbook/manager/stickerbook/database/models"
	"github.com/stickerbook/manager/stickerbook/database/repositories"
	"github.com/stickerbook/manager/stickerbook/events"
)

func TestToggleOwnedResetsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	st := env.seedSticker(t, &models.Sticker{
		ID: "s1", AlbumID: "a1", Number: models.NumberOf(1),
		Name: "Messi", Team: "Miami",
		IsOwned: true, IsDuplicate: true, DuplicateCount: 2,
	})

	// Un-owning zeroes the duplicate bookkeeping.
	got, err := env.collection.ToggleOwned(ctx, st.ID)
	if err != nil {
		t.Fatalf("ToggleOwned: %v", err)
	}
	if got.IsOwned {
		t.Error("sticker still owned after toggle off")
	}
	if got.DuplicateCount != 0 || got.IsDuplicate {
		t.Errorf("duplicates survived un-owning: count=%d dup=%v", got.DuplicateCount, got.IsDuplicate)
	}

	// Owning again starts clean.
	got, err = env.collection.ToggleOwned(ctx, st.ID)
	if err != nil {
		t.Fatalf("ToggleOwned: %v", err)
	}
	if !got.IsOwned || got.DuplicateCount != 0 {
		t.Errorf("re-owned state wrong: %+v", got)
	}

	// The manual intake was logged.
	entries := env.log.EntriesForAlbum("a1")
	if len(entries) != 1 {
		t.Fatalf("got %d intake entries, want 1 (only the own transition)", len(entries))
	}
	if len(entries[0].NewStickers) != 1 || entries[0].NewStickers[0] != models.NumberOf(1) {
		t.Errorf("intake entry = %+v", entries[0])
	}
}

func TestDuplicateLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	st := env.seedSticker(t, &models.Sticker{
		ID: "s1", AlbumID: "a1", Number: models.NumberOf(7), Name: "Player", Team: "Team",
	})

	// First add on an unowned sticker marks it owned.
	got, err := env.collection.AddDuplicate(ctx, st.ID)
	if err != nil {
		t.Fatalf("AddDuplicate: %v", err)
	}
	if !got.IsOwned || got.DuplicateCount != 0 {
		t.Errorf("first add: %+v", got)
	}

	// Second add is the first real duplicate.
	got, _ = env.collection.AddDuplicate(ctx, st.ID)
	if got.DuplicateCount != 1 || !got.IsDuplicate {
		t.Errorf("second add: count=%d dup=%v", got.DuplicateCount, got.IsDuplicate)
	}

	got, _ = env.collection.RemoveDuplicate(ctx, st.ID)
	if got.DuplicateCount != 0 || got.IsDuplicate {
		t.Errorf("after remove: count=%d dup=%v", got.DuplicateCount, got.IsDuplicate)
	}
}

func TestBulkIntakePackPurchase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedSticker(t, &models.Sticker{ID: "s7", AlbumID: "a1", Number: models.NumberOf(7), Name: "Seven"})
	env.seedSticker(t, &models.Sticker{ID: "s12", AlbumID: "a1", Number: models.NumberOf(12), Name: "Twelve",
		IsOwned: true, IsDuplicate: true, DuplicateCount: 1})

	// A pack with two copies of 7 and one of 12: the first 7 owns the
	// sticker, the second is its first duplicate, 12 gains another copy.
	entry, err := env.collection.BulkIntake(ctx, "a1", "", []models.StickerNumber{
		models.NumberOf(7), models.NumberOf(7), models.NumberOf(12),
	})
	if err != nil {
		t.Fatalf("BulkIntake: %v", err)
	}

	if entry.Source != "pack purchase" {
		t.Errorf("entry source = %q, want pack purchase", entry.Source)
	}
	if len(entry.NewStickers) != 1 || entry.NewStickers[0] != models.NumberOf(7) {
		t.Errorf("new stickers = %v", entry.NewStickers)
	}
	if len(entry.NewDuplicates) != 1 || entry.NewDuplicates[0] != models.NumberOf(7) {
		t.Errorf("new duplicates = %v", entry.NewDuplicates)
	}
	if len(entry.UpdatedDuplicates) != 1 || entry.UpdatedDuplicates[0] != models.NumberOf(12) {
		t.Errorf("updated duplicates = %v", entry.UpdatedDuplicates)
	}

	s7, _ := env.stickers.GetByID(ctx, "s7")
	if !s7.IsOwned || s7.DuplicateCount != 1 {
		t.Errorf("sticker 7 after pack: %+v", s7)
	}
	s12, _ := env.stickers.GetByID(ctx, "s12")
	if s12.DuplicateCount != 2 {
		t.Errorf("sticker 12 after pack: count=%d", s12.DuplicateCount)
	}

	entries := env.log.EntriesForAlbum("a1")
	if len(entries) != 1 || entries[0].Total() != 3 {
		t.Fatalf("intake log = %+v", entries)
	}
}

func TestBulkIntakeValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedSticker(t, &models.Sticker{ID: "s1", AlbumID: "a1", Number: models.NumberOf(1)})

	if _, err := env.collection.BulkIntake(ctx, "", "", []models.StickerNumber{models.NumberOf(1)}); err == nil {
		t.Error("missing album accepted")
	}
	if _, err := env.collection.BulkIntake(ctx, "a1", "", nil); err == nil {
		t.Error("empty number list accepted")
	}

	// Unknown numbers are skipped; a pack matching nothing is an error
	// and leaves no intake entry behind.
	if _, err := env.collection.BulkIntake(ctx, "a1", "", []models.StickerNumber{models.NumberOf(99)}); err == nil {
		t.Error("pack with no matching stickers accepted")
	}
	if entries := env.log.EntriesForAlbum("a1"); len(entries) != 0 {
		t.Errorf("empty pack left %d intake entries", len(entries))
	}

	// A mixed pack keeps the matching numbers.
	entry, err := env.collection.BulkIntake(ctx, "a1", "", []models.StickerNumber{
		models.NumberOf(99), models.NumberOf(1),
	})
	if err != nil {
		t.Fatalf("mixed pack: %v", err)
	}
	if entry.Total() != 1 || len(entry.NewStickers) != 1 {
		t.Errorf("mixed pack entry = %+v", entry)
	}
}

func TestAddStickerRejectsDuplicateNumber(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.collection.AddSticker(ctx, "a1", models.NumberOf(5), "First", "Team", ""); err != nil {
		t.Fatalf("AddSticker: %v", err)
	}
	_, err := env.collection.AddSticker(ctx, "a1", models.NumberOf(5), "Second", "Team", "")
	if !repositories.IsConflict(err) {
		t.Errorf("duplicate number: err = %v, want conflict", err)
	}

	// Same number in another album is fine.
	if _, err := env.collection.AddSticker(ctx, "a2", models.NumberOf(5), "Other", "Team", ""); err != nil {
		t.Errorf("same number, other album: %v", err)
	}
}

func TestRenameTeamPropagates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedSticker(t, &models.Sticker{ID: "s1", AlbumID: "a1", Number: models.NumberOf(1), Team: "Old FC"})
	env.seedSticker(t, &models.Sticker{ID: "s2", AlbumID: "a1", Number: models.NumberOf(2), Team: "Old FC"})
	env.seedSticker(t, &models.Sticker{ID: "s3", AlbumID: "a1", Number: models.NumberOf(3), Team: "Other"})
	env.prefs.StarTeam("Old FC")

	var teamEvents []events.TeamsDataChanged
	env.bus.Subscribe(events.TypeTeamsDataChanged, func(e events.Event) {
		teamEvents = append(teamEvents, e.(events.TeamsDataChanged))
	})

	changed, err := env.collection.RenameTeam(ctx, "a1", "Old FC", "New FC", "")
	if err != nil {
		t.Fatalf("RenameTeam: %v", err)
	}
	if changed != 2 {
		t.Errorf("changed = %d, want 2", changed)
	}

	stickers, _ := env.stickers.GetByAlbumID(ctx, "a1")
	for _, st := range stickers {
		if st.Team == "Old FC" {
			t.Errorf("sticker %s kept the old team name", st.ID)
		}
	}

	// The star follows the rename.
	if env.prefs.IsTeamStarred("Old FC") || !env.prefs.IsTeamStarred("New FC") {
		t.Errorf("starred teams after rename: %v", env.prefs.StarredTeams())
	}

	if len(teamEvents) != 1 || teamEvents[0].NewName != "New FC" {
		t.Errorf("team events = %+v", teamEvents)
	}
}

func TestSearchStickers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedSticker(t, &models.Sticker{ID: "s1", AlbumID: "a1", Number: models.NumberOf(10), Name: "Lionel Messi", Team: "Inter Miami"})
	env.seedSticker(t, &models.Sticker{ID: "s2", AlbumID: "a1", Number: models.NumberOf(7), Name: "Cristiano Ronaldo", Team: "Al Nassr"})
	env.seedSticker(t, &models.Sticker{ID: "s3", AlbumID: "a1", Number: models.CodeOf("L5"), Name: "Logo", Team: "Extra"})

	results, err := env.collection.SearchStickers(ctx, "a1", "messi")
	if err != nil {
		t.Fatalf("SearchStickers: %v", err)
	}
	if len(results) == 0 || results[0].ID != "s1" {
		t.Errorf("search for messi returned %+v", results)
	}

	// Empty query returns the whole album in number order.
	all, err := env.collection.SearchStickers(ctx, "a1", "")
	if err != nil {
		t.Fatalf("SearchStickers: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("empty query returned %d stickers", len(all))
	}
	if all[0].Number != models.NumberOf(7) || all[2].Number != models.CodeOf("L5") {
		t.Errorf("album order wrong: %v, %v, %v", all[0].Number, all[1].Number, all[2].Number)
	}
}

func TestAlbumRecycleLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	album, err := env.collection.CreateAlbum(ctx, "World Cup 2026", "", 2026, 600)
	if err != nil {
		t.Fatalf("CreateAlbum: %v", err)
	}

	if err := env.collection.RecycleAlbum(ctx, album.ID); err != nil {
		t.Fatalf("RecycleAlbum: %v", err)
	}
	live, _ := env.albums.GetAll(ctx)
	if len(live) != 0 {
		t.Error("recycled album still listed as live")
	}
	recycled, _ := env.collection.RecycledAlbums(ctx)
	if len(recycled) != 1 {
		t.Fatalf("recycle bin holds %d albums, want 1", len(recycled))
	}

	if err := env.collection.RestoreAlbum(ctx, album.ID); err != nil {
		t.Fatalf("RestoreAlbum: %v", err)
	}
	live, _ = env.albums.GetAll(ctx)
	if len(live) != 1 {
		t.Error("restored album missing from live list")
	}

	if err := env.collection.RecycleAlbum(ctx, album.ID); err != nil {
		t.Fatalf("RecycleAlbum: %v", err)
	}
	if err := env.collection.PurgeAlbum(ctx, album.ID); err != nil {
		t.Fatalf("PurgeAlbum: %v", err)
	}
	if _, err := env.albums.GetByID(ctx, album.ID); !repositories.IsNotFound(err) {
		t.Errorf("purged album still exists: err = %v", err)
	}
}

func TestAlbumsApplySavedOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a1, _ := env.collection.CreateAlbum(ctx, "Alpha", "", 2024, 100)
	a2, _ := env.collection.CreateAlbum(ctx, "Beta", "", 2025, 100)
	a3, _ := env.collection.CreateAlbum(ctx, "Gamma", "", 2026, 100)
	env.prefs.SetAlbumOrder([]string{a3.ID, a1.ID, a2.ID})

	albums, err := env.collection.Albums(ctx)
	if err != nil {
		t.Fatalf("Albums: %v", err)
	}
	got := []string{albums[0].ID, albums[1].ID, albums[2].ID}
	want := []string{a3.ID, a1.ID, a2.ID}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("album order = %v, want %v", got, want)
		}
	}
}

func TestRecomputeUserStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.collection.CreateAlbum(ctx, "Album", "", 2026, 4); err != nil {
		t.Fatal(err)
	}
	albums, _ := env.albums.GetAll(ctx)
	albumID := albums[0].ID

	env.seedSticker(t, &models.Sticker{ID: "s1", AlbumID: albumID, Number: models.NumberOf(1), IsOwned: true})
	env.seedSticker(t, &models.Sticker{ID: "s2", AlbumID: albumID, Number: models.NumberOf(2), IsOwned: true, DuplicateCount: 2, IsDuplicate: true})
	env.seedSticker(t, &models.Sticker{ID: "s3", AlbumID: albumID, Number: models.NumberOf(3)})

	user, err := env.collection.RecomputeUserStats(ctx, "u1", "Collector")
	if err != nil {
		t.Fatalf("RecomputeUserStats: %v", err)
	}
	if user.TotalStickers != 3 || user.OwnedStickers != 2 || user.NeededStickers != 1 || user.DuplicateStickers != 2 {
		t.Errorf("stats = %+v", user)
	}

	stored, err := env.users.GetByID(ctx, "u1")
	if err != nil {
		t.Fatalf("stats not persisted: %v", err)
	}
	if stored.OwnedStickers != 2 {
		t.Errorf("persisted stats = %+v", stored)
	}
}
