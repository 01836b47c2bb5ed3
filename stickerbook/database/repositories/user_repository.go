package repositories

import (
	"context"

	"github.com/stickerbook/manager/stickerbook/database/models"
	"github.com/uptrace/bun"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Upsert(ctx context.Context, user *models.User) error
	UpdateStats(ctx context.Context, id string, total, owned, needed, duplicates int) error
}

type userRepository struct {
	db   *bun.DB
	base *BaseRepository
}

func NewUserRepository(db *bun.DB) UserRepository {
	return &userRepository{db: db, base: NewBaseRepository(db)}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, r.base.HandleErrorWithID("get", "user", id, err)
	}
	return user, nil
}

func (r *userRepository) Upsert(ctx context.Context, user *models.User) error {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.NewInsert().
		Model(user).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("avatar = EXCLUDED.avatar").
		Set("totalstickers = EXCLUDED.totalstickers").
		Set("ownedstickers = EXCLUDED.ownedstickers").
		Set("neededstickers = EXCLUDED.neededstickers").
		Set("duplicatestickers = EXCLUDED.duplicatestickers").
		Set("location = EXCLUDED.location").
		Set("phone = EXCLUDED.phone").
		Exec(ctx)
	return r.base.HandleErrorWithID("upsert", "user", user.ID, err)
}

func (r *userRepository) UpdateStats(ctx context.Context, id string, total, owned, needed, duplicates int) error {
	ctx, cancel := r.base.WithTimeout(ctx)
	defer cancel()

	res, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("totalstickers = ?", total).
		Set("ownedstickers = ?", owned).
		Set("neededstickers = ?", needed).
		Set("duplicatestickers = ?", duplicates).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return r.base.HandleErrorWithID("update stats", "user", id, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return &NotFoundError{Entity: "user", ID: id}
	}
	return nil
}
