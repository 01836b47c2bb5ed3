package services

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"
	"github.com/stickerbook/manager/stickerbook/database/models"
	"github.com/stickerbook/manager/stickerbook/database/repositories"
	"github.com/stickerbook/manager/stickerbook/events"
	"github.com/stickerbook/manager/stickerbook/intake"
	"github.com/stickerbook/manager/stickerbook/store"
)

// CollectionService handles album lifecycle and single-sticker mutations.
// Every mutation updates the cache optimistically and publishes a change
// event; reads go through the cache.
type CollectionService struct {
	albums   repositories.AlbumRepository
	stickers repositories.StickerRepository
	users    repositories.UserRepository
	cache    *store.Cache
	bus      *events.Bus
	prefs    *store.Preferences
	log      *intake.Log
}

func NewCollectionService(
	albums repositories.AlbumRepository,
	stickers repositories.StickerRepository,
	users repositories.UserRepository,
	cache *store.Cache,
	bus *events.Bus,
	prefs *store.Preferences,
	log *intake.Log,
) *CollectionService {
	return &CollectionService{
		albums:   albums,
		stickers: stickers,
		users:    users,
		cache:    cache,
		bus:      bus,
		prefs:    prefs,
		log:      log,
	}
}

// Albums lists live albums, applying the user's saved ordering when one
// exists. Albums missing from the saved order sort after ordered ones.
func (s *CollectionService) Albums(ctx context.Context) ([]*models.Album, error) {
	albums, err := s.cache.Albums(ctx)
	if err != nil {
		return nil, err
	}

	order := s.prefs.AlbumOrder()
	if len(order) == 0 {
		return albums, nil
	}

	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i
	}
	ordered := make([]*models.Album, len(albums))
	copy(ordered, albums)
	// Stable insertion by saved rank; unlisted albums keep relative order.
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && albumRank(rank, ordered[j]) < albumRank(rank, ordered[j-1]); j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	return ordered, nil
}

func albumRank(rank map[string]int, a *models.Album) int {
	if r, ok := rank[a.ID]; ok {
		return r
	}
	return len(rank) + 1
}

// Stickers lists one album's stickers in album order, through the cache.
func (s *CollectionService) Stickers(ctx context.Context, albumID string) ([]*models.Sticker, error) {
	return s.cache.Stickers(ctx, albumID)
}

func (s *CollectionService) CreateAlbum(ctx context.Context, name, description string, year, totalStickers int) (*models.Album, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("album name is required")
	}
	album := &models.Album{
		ID:            uuid.New().String(),
		Name:          name,
		Description:   description,
		Year:          year,
		TotalStickers: totalStickers,
	}
	if err := s.albums.Create(ctx, album); err != nil {
		return nil, err
	}
	s.albumsChanged()
	return album, nil
}

func (s *CollectionService) UpdateAlbum(ctx context.Context, album *models.Album) error {
	if err := s.albums.Update(ctx, album); err != nil {
		return err
	}
	s.albumsChanged()
	return nil
}

// RecycleAlbum soft-deletes; the album moves to the recycle bin view and
// can be restored until purged.
func (s *CollectionService) RecycleAlbum(ctx context.Context, albumID string) error {
	if err := s.albums.Recycle(ctx, albumID); err != nil {
		return err
	}
	if s.prefs.LastSelectedAlbum() == albumID {
		s.prefs.SetLastSelectedAlbum("")
	}
	s.albumsChanged()
	return nil
}

func (s *CollectionService) RestoreAlbum(ctx context.Context, albumID string) error {
	if err := s.albums.Restore(ctx, albumID); err != nil {
		return err
	}
	s.albumsChanged()
	return nil
}

// PurgeAlbum permanently deletes a recycled album and its stickers.
func (s *CollectionService) PurgeAlbum(ctx context.Context, albumID string) error {
	if err := s.albums.Purge(ctx, albumID); err != nil {
		return err
	}
	s.cache.InvalidateStickers(albumID)
	s.albumsChanged()
	return nil
}

func (s *CollectionService) RecycledAlbums(ctx context.Context) ([]*models.Album, error) {
	return s.albums.GetRecycled(ctx)
}

func (s *CollectionService) albumsChanged() {
	s.cache.InvalidateAlbums()
	s.bus.PublishNow(events.AlbumDataChanged{})
}

// AddSticker creates a single sticker by hand. Number uniqueness within
// the album is checked before the write.
func (s *CollectionService) AddSticker(ctx context.Context, albumID string, number models.StickerNumber, name, team, category string) (*models.Sticker, error) {
	if albumID == "" {
		return nil, ErrNoAlbumSelected
	}
	if number.IsZero() {
		return nil, fmt.Errorf("sticker number is required")
	}
	if name == "" {
		name = "Sticker " + number.String()
	}
	if team == "" {
		team = "Unknown"
	}

	sticker := &models.Sticker{
		ID:       uuid.New().String(),
		AlbumID:  albumID,
		Number:   number,
		Name:     name,
		Team:     team,
		Category: category,
	}
	if err := s.stickers.Create(ctx, sticker); err != nil {
		return nil, err
	}

	s.stickersChanged(albumID, "create", 1)
	return sticker, nil
}

// ToggleOwned flips ownership. Un-owning resets duplicate bookkeeping,
// the one canonical rule for the owned/duplicate relationship.
func (s *CollectionService) ToggleOwned(ctx context.Context, stickerID string) (*models.Sticker, error) {
	sticker, err := s.stickers.GetByID(ctx, stickerID)
	if err != nil {
		return nil, err
	}

	becameOwned := !sticker.IsOwned
	sticker.SetOwned(becameOwned)
	if err := s.stickers.Update(ctx, sticker); err != nil {
		return nil, err
	}

	if becameOwned && s.log != nil {
		s.log.Record(intake.Entry{
			AlbumID:     sticker.AlbumID,
			Source:      intake.SourceManual,
			NewStickers: []models.StickerNumber{sticker.Number},
		})
	}
	s.stickersChanged(sticker.AlbumID, "toggle", 1)
	return sticker, nil
}

// AddDuplicate records another copy of a sticker.
func (s *CollectionService) AddDuplicate(ctx context.Context, stickerID string) (*models.Sticker, error) {
	sticker, err := s.stickers.GetByID(ctx, stickerID)
	if err != nil {
		return nil, err
	}

	wasOwned := sticker.IsOwned
	sticker.AddDuplicate()
	if err := s.stickers.Update(ctx, sticker); err != nil {
		return nil, err
	}

	if s.log != nil {
		entry := intake.Entry{AlbumID: sticker.AlbumID, Source: intake.SourceManual}
		switch {
		case !wasOwned:
			entry.NewStickers = []models.StickerNumber{sticker.Number}
		case sticker.DuplicateCount == 1:
			entry.NewDuplicates = []models.StickerNumber{sticker.Number}
		default:
			entry.UpdatedDuplicates = []models.StickerNumber{sticker.Number}
		}
		s.log.Record(entry)
	}
	s.stickersChanged(sticker.AlbumID, "duplicate", 1)
	return sticker, nil
}

// BulkIntake records a batch of acquired stickers by number, the pack
// purchase path. Each number resolves against the album and gets the
// owned/duplicate rule applied; the whole batch lands as one intake
// entry splitting first-time owns from new and incremented duplicates.
// Numbers not in the album are skipped, the rest still land.
func (s *CollectionService) BulkIntake(ctx context.Context, albumID, source string, numbers []models.StickerNumber) (intake.Entry, error) {
	if albumID == "" {
		return intake.Entry{}, ErrNoAlbumSelected
	}
	if len(numbers) == 0 {
		return intake.Entry{}, fmt.Errorf("no sticker numbers to record")
	}
	if source == "" {
		source = intake.SourcePack
	}

	entry := intake.Entry{AlbumID: albumID, Source: source}
	for _, num := range numbers {
		sticker, err := s.stickers.GetByNumber(ctx, albumID, num)
		if err != nil {
			slog.Warn("Intake references unknown sticker",
				slog.String("type", "cmd"),
				slog.String("album_id", albumID),
				slog.String("number", num.String()),
				slog.Any("error", err),
			)
			continue
		}

		wasOwned := sticker.IsOwned
		sticker.AddDuplicate()
		if err := s.stickers.Update(ctx, sticker); err != nil {
			return entry, fmt.Errorf("failed to record sticker %s: %w", num, err)
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

	if entry.Total() == 0 {
		return entry, fmt.Errorf("no sticker numbers matched album %s", albumID)
	}
	if s.log != nil {
		entry = s.log.Record(entry)
	}
	s.stickersChanged(albumID, "intake", entry.Total())
	return entry, nil
}

func (s *CollectionService) RemoveDuplicate(ctx context.Context, stickerID string) (*models.Sticker, error) {
	sticker, err := s.stickers.GetByID(ctx, stickerID)
	if err != nil {
		return nil, err
	}
	sticker.RemoveDuplicate()
	if err := s.stickers.Update(ctx, sticker); err != nil {
		return nil, err
	}
	s.stickersChanged(sticker.AlbumID, "duplicate", 1)
	return sticker, nil
}

func (s *CollectionService) DeleteSticker(ctx context.Context, stickerID string) error {
	sticker, err := s.stickers.GetByID(ctx, stickerID)
	if err != nil {
		return err
	}
	if err := s.stickers.Delete(ctx, stickerID); err != nil {
		return err
	}
	s.stickersChanged(sticker.AlbumID, "delete", 1)
	return nil
}

// RenameTeam rewrites a team name across an album's stickers and keeps
// the starred-teams preference attached to the new name.
func (s *CollectionService) RenameTeam(ctx context.Context, albumID, oldName, newName, newLogo string) (int64, error) {
	if oldName == newName && newLogo == "" {
		return 0, nil
	}
	changed, err := s.stickers.UpdateTeam(ctx, albumID, oldName, newName, newLogo)
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		s.prefs.RenameStarredTeam(oldName, newName)
		s.cache.InvalidateStickers(albumID)
		s.bus.PublishNow(events.TeamsDataChanged{
			AlbumID: albumID,
			OldName: oldName,
			NewName: newName,
		})
		s.bus.Publish(events.StickerDataChanged{
			AlbumID: albumID,
			Action:  "team-rename",
			Count:   int(changed),
		})
	}
	return changed, nil
}

func (s *CollectionService) stickersChanged(albumID, action string, count int) {
	s.cache.InvalidateStickers(albumID)
	s.bus.Publish(events.StickerDataChanged{
		AlbumID: albumID,
		Action:  action,
		Count:   count,
	})
}

// stickerSearchSource adapts a sticker list for fuzzy matching over the
// combined number, name and team text.
type stickerSearchSource []*models.Sticker

func (s stickerSearchSource) String(i int) string {
	st := s[i]
	return st.Number.String() + " " + st.Name + " " + st.Team
}

func (s stickerSearchSource) Len() int { return len(s) }

// SearchStickers fuzzy-matches a query against one album's stickers,
// best matches first. An empty query returns the full album.
func (s *CollectionService) SearchStickers(ctx context.Context, albumID, query string) ([]*models.Sticker, error) {
	stickers, err := s.cache.Stickers(ctx, albumID)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return stickers, nil
	}

	matches := fuzzy.FindFrom(query, stickerSearchSource(stickers))
	out := make([]*models.Sticker, len(matches))
	for i, m := range matches {
		out[i] = stickers[m.Index]
	}
	return out, nil
}

// RecomputeUserStats rebuilds the per-collector counters from sticker
// state across all live albums and persists them.
func (s *CollectionService) RecomputeUserStats(ctx context.Context, userID, userName string) (*models.User, error) {
	albums, err := s.cache.Albums(ctx)
	if err != nil {
		return nil, err
	}

	user := &models.User{ID: userID, Name: userName}
	for _, album := range albums {
		stickers, err := s.cache.Stickers(ctx, album.ID)
		if err != nil {
			return nil, err
		}
		for _, st := range stickers {
			user.TotalStickers++
			if st.IsOwned {
				user.OwnedStickers++
			} else {
				user.NeededStickers++
			}
			user.DuplicateStickers += st.DuplicateCount
		}
	}

	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, err
	}
	s.bus.PublishNow(events.InventoryDataChanged{})

	slog.Debug("User stats recomputed",
		slog.String("type", "cmd"),
		slog.String("user_id", userID),
		slog.Int("total", user.TotalStickers),
		slog.Int("owned", user.OwnedStickers),
		slog.Int("albums", len(albums)),
	)
	return user, nil
}
