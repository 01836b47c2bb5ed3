package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Album struct {
	bun.BaseModel `bun:"table:albums,alias:a"`

	ID            string    `bun:"id,pk" json:"id"`
	Name          string    `bun:"name,notnull" json:"name"`
	Description   string    `bun:"description" json:"description"`
	Year          int       `bun:"year" json:"year"`
	TotalStickers int       `bun:"totalstickers" json:"totalStickers"`
	CoverImage    string    `bun:"coverimage" json:"coverImage,omitempty"`
	IsDeleted     bool      `bun:"isdeleted,notnull,default:false" json:"isDeleted"`
	LastModified  time.Time `bun:"lastmodified,notnull" json:"lastModified"`
	CreatedAt     time.Time `bun:"createdat,notnull,default:current_timestamp" json:"-"`
	UpdatedAt     time.Time `bun:"updatedat,notnull" json:"-"`

	// Relations
	Stickers []*Sticker `bun:"rel:has-many,join:id=albumid" json:"-"`
}

func (a *Album) Touch() {
	now := time.Now()
	a.LastModified = now
	a.UpdatedAt = now
}
