package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stickerbook/manager/stickerbook/database/models"
	"github.com/stickerbook/manager/stickerbook/database/repositories"
	"github.com/stickerbook/manager/stickerbook/events"
	"github.com/stickerbook/manager/stickerbook/intake"
	"github.com/stickerbook/manager/stickerbook/store"
)

type fakeAlbumRepo struct {
	mu     sync.Mutex
	albums map[string]*models.Album
}

func newFakeAlbumRepo() *fakeAlbumRepo {
	return &fakeAlbumRepo{albums: make(map[string]*models.Album)}
}

func (r *fakeAlbumRepo) Create(ctx context.Context, album *models.Album) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *album
	r.albums[album.ID] = &cp
	return nil
}

func (r *fakeAlbumRepo) GetByID(ctx context.Context, id string) (*models.Album, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.albums[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, &repositories.NotFoundError{Entity: "album", ID: id}
}

func (r *fakeAlbumRepo) GetAll(ctx context.Context) ([]*models.Album, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Album
	for _, a := range r.albums {
		if !a.IsDeleted {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeAlbumRepo) GetRecycled(ctx context.Context) ([]*models.Album, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Album
	for _, a := range r.albums {
		if a.IsDeleted {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeAlbumRepo) Update(ctx context.Context, album *models.Album) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.albums[album.ID]; !ok {
		return &repositories.NotFoundError{Entity: "album", ID: album.ID}
	}
	cp := *album
	r.albums[album.ID] = &cp
	return nil
}

func (r *fakeAlbumRepo) setDeleted(id string, deleted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.albums[id]
	if !ok {
		return &repositories.NotFoundError{Entity: "album", ID: id}
	}
	a.IsDeleted = deleted
	return nil
}

func (r *fakeAlbumRepo) Recycle(ctx context.Context, id string) error { return r.setDeleted(id, true) }
func (r *fakeAlbumRepo) Restore(ctx context.Context, id string) error { return r.setDeleted(id, false) }

func (r *fakeAlbumRepo) Purge(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.albums[id]; !ok {
		return &repositories.NotFoundError{Entity: "album", ID: id}
	}
	delete(r.albums, id)
	return nil
}

func (r *fakeAlbumRepo) SetTotalStickers(ctx context.Context, id string, total int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.albums[id]; ok {
		a.TotalStickers = total
	}
	return nil
}

type fakeStickerRepo struct {
	mu       sync.Mutex
	stickers map[string]*models.Sticker
	fetches  int
}

func newFakeStickerRepo() *fakeStickerRepo {
	return &fakeStickerRepo{stickers: make(map[string]*models.Sticker)}
}

func (r *fakeStickerRepo) Create(ctx context.Context, sticker *models.Sticker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.stickers {
		if st.AlbumID == sticker.AlbumID && st.Number == sticker.Number && !st.IsDeleted {
			return &repositories.ConflictError{Entity: "sticker", Field: "number", Value: sticker.Number.String()}
		}
	}
	cp := *sticker
	r.stickers[sticker.ID] = &cp
	return nil
}

func (r *fakeStickerRepo) GetByID(ctx context.Context, id string) (*models.Sticker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.stickers[id]; ok {
		cp := *st
		return &cp, nil
	}
	return nil, &repositories.NotFoundError{Entity: "sticker", ID: id}
}

func (r *fakeStickerRepo) GetByAlbumID(ctx context.Context, albumID string) ([]*models.Sticker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches++
	var out []*models.Sticker
	for _, st := range r.stickers {
		if st.AlbumID == albumID && !st.IsDeleted {
			cp := *st
			out = append(out, &cp)
		}
	}
	models.SortStickers(out)
	return out, nil
}

func (r *fakeStickerRepo) GetByNumber(ctx context.Context, albumID string, number models.StickerNumber) (*models.Sticker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.stickers {
		if st.AlbumID == albumID && st.Number == number && !st.IsDeleted {
			cp := *st
			return &cp, nil
		}
	}
	return nil, &repositories.NotFoundError{Entity: "sticker", ID: number.String()}
}

func (r *fakeStickerRepo) NumberExists(ctx context.Context, albumID string, number models.StickerNumber) (bool, error) {
	_, err := r.GetByNumber(ctx, albumID, number)
	if err != nil {
		if repositories.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *fakeStickerRepo) Update(ctx context.Context, sticker *models.Sticker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stickers[sticker.ID]; !ok {
		return &repositories.NotFoundError{Entity: "sticker", ID: sticker.ID}
	}
	cp := *sticker
	r.stickers[sticker.ID] = &cp
	return nil
}

func (r *fakeStickerRepo) BulkUpsert(ctx context.Context, stickers []*models.Sticker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range stickers {
		cp := *st
		r.stickers[st.ID] = &cp
	}
	return nil
}

func (r *fakeStickerRepo) UpdateTeam(ctx context.Context, albumID, oldTeam, newTeam, newLogo string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var changed int64
	for _, st := range r.stickers {
		if st.AlbumID == albumID && st.Team == oldTeam && !st.IsDeleted {
			st.Team = newTeam
			if newLogo != "" {
				st.TeamLogo = newLogo
			}
			changed++
		}
	}
	return changed, nil
}

func (r *fakeStickerRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.stickers[id]
	if !ok {
		return &repositories.NotFoundError{Entity: "sticker", ID: id}
	}
	st.IsDeleted = true
	return nil
}

func (r *fakeStickerRepo) DeleteByAlbum(ctx context.Context, albumID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.stickers {
		if st.AlbumID == albumID {
			st.IsDeleted = true
		}
	}
	return nil
}

func (r *fakeStickerRepo) CountByAlbum(ctx context.Context, albumID string) (int, error) {
	all, _ := r.GetByAlbumID(ctx, albumID)
	return len(all), nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, &repositories.NotFoundError{Entity: "user", ID: id}
}

func (r *fakeUserRepo) Upsert(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) UpdateStats(ctx context.Context, id string, total, owned, needed, duplicates int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return &repositories.NotFoundError{Entity: "user", ID: id}
	}
	u.TotalStickers, u.OwnedStickers, u.NeededStickers, u.DuplicateStickers = total, owned, needed, duplicates
	return nil
}

type fakeExchangeRepo struct {
	mu     sync.Mutex
	offers map[string]*models.ExchangeOffer
}

func newFakeExchangeRepo() *fakeExchangeRepo {
	return &fakeExchangeRepo{offers: make(map[string]*models.ExchangeOffer)}
}

func (r *fakeExchangeRepo) Create(ctx context.Context, offer *models.ExchangeOffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if offer.Status == "" {
		offer.Status = models.OfferPending
	}
	cp := *offer
	r.offers[offer.ID] = &cp
	return nil
}

func (r *fakeExchangeRepo) GetByID(ctx context.Context, id string) (*models.ExchangeOffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.offers[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, &repositories.NotFoundError{Entity: "exchange offer", ID: id}
}

func (r *fakeExchangeRepo) GetByAlbumID(ctx context.Context, albumID string) ([]*models.ExchangeOffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ExchangeOffer
	for _, o := range r.offers {
		if o.AlbumID == albumID && !o.IsDeleted {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeExchangeRepo) GetActiveByAlbumID(ctx context.Context, albumID string) ([]*models.ExchangeOffer, error) {
	all, err := r.GetByAlbumID(ctx, albumID)
	if err != nil {
		return nil, err
	}
	var out []*models.ExchangeOffer
	for _, o := range all {
		switch o.Status {
		case models.OfferPending, models.OfferActive, models.OfferAccepted:
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *fakeExchangeRepo) UpdateStatus(ctx context.Context, id string, status models.OfferStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[id]
	if !ok {
		return &repositories.NotFoundError{Entity: "exchange offer", ID: id}
	}
	o.Status = status
	return nil
}

func (r *fakeExchangeRepo) Update(ctx context.Context, offer *models.ExchangeOffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.offers[offer.ID]; !ok {
		return &repositories.NotFoundError{Entity: "exchange offer", ID: offer.ID}
	}
	cp := *offer
	r.offers[offer.ID] = &cp
	return nil
}

func (r *fakeExchangeRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[id]
	if !ok {
		return &repositories.NotFoundError{Entity: "exchange offer", ID: id}
	}
	o.IsDeleted = true
	return nil
}

// testEnv wires the services against in-memory repositories and a real
// cache, bus, preference store and intake log rooted in a temp dir.
type testEnv struct {
	albums   *fakeAlbumRepo
	stickers *fakeStickerRepo
	users    *fakeUserRepo
	offers   *fakeExchangeRepo
	cache    *store.Cache
	bus      *events.Bus
	prefs    *store.Preferences
	log      *intake.Log

	collection *CollectionService
	exchange   *ExchangeService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mirror, err := store.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	env := &testEnv{
		albums:   newFakeAlbumRepo(),
		stickers: newFakeStickerRepo(),
		users:    newFakeUserRepo(),
		offers:   newFakeExchangeRepo(),
		bus:      events.NewBus(0),
		prefs:    store.NewPreferences(mirror),
		log:      intake.NewLog(mirror),
	}
	env.cache = store.NewCache(env.albums, env.stickers, mirror, nil)
	env.collection = NewCollectionService(env.albums, env.stickers, env.users, env.cache, env.bus, env.prefs, env.log)
	env.exchange = NewExchangeService(env.offers, env.stickers, env.cache, env.bus, env.log)
	t.Cleanup(env.bus.Close)
	return env
}

func (env *testEnv) seedSticker(t *testing.T, st *models.Sticker) *models.Sticker {
	t.Helper()
	if err := env.stickers.Create(context.Background(), st); err != nil {
		t.Fatalf("seed sticker: %v", err)
	}
	return st
}
