package models

import (
	"github.com/uptrace/bun"
)

// User holds the per-collector counters shown on the profile page. The row is
// recomputed from sticker state after every mutation, never edited directly.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                string `bun:"id,pk" json:"id"`
	Name              string `bun:"name,notnull" json:"name"`
	Avatar            string `bun:"avatar" json:"avatar,omitempty"`
	TotalStickers     int    `bun:"totalstickers" json:"totalStickers"`
	OwnedStickers     int    `bun:"ownedstickers" json:"ownedStickers"`
	NeededStickers    int    `bun:"neededstickers" json:"neededStickers"`
	DuplicateStickers int    `bun:"duplicatestickers" json:"duplicateStickers"`
	Location          string `bun:"location" json:"location,omitempty"`
	Phone             string `bun:"phone" json:"phone,omitempty"`
}
