package models

import (
	"sort"
	"time"

	"github.com/uptrace/bun"
)

type Sticker struct {
	bun.BaseModel `bun:"table:stickers,alias:s"`

	ID             string        `bun:"id,pk" json:"id"`
	AlbumID        string        `bun:"albumid,notnull" json:"albumId"`
	Number         StickerNumber `bun:"number,notnull" json:"number"`
	Name           string        `bun:"name,notnull" json:"name"`
	Team           string        `bun:"team" json:"team"`
	TeamLogo       string        `bun:"teamlogo" json:"teamLogo,omitempty"`
	Category       string        `bun:"category" json:"category"`
	ImageURL       string        `bun:"imageurl" json:"imageUrl,omitempty"`
	IsOwned        bool          `bun:"isowned,notnull,default:false" json:"isOwned"`
	IsDuplicate    bool          `bun:"isduplicate,notnull,default:false" json:"isDuplicate"`
	DuplicateCount int           `bun:"duplicatecount,notnull,default:0" json:"duplicateCount"`
	IsDeleted      bool          `bun:"isdeleted,notnull,default:false" json:"isDeleted"`
	LastModified   time.Time     `bun:"lastmodified,notnull" json:"lastModified"`
	CreatedAt      time.Time     `bun:"createdat,notnull,default:current_timestamp" json:"-"`
	UpdatedAt      time.Time     `bun:"updatedat,notnull" json:"-"`

	// Relations
	Album *Album `bun:"rel:belongs-to,join:albumid=id" json:"-"`
}

func (s *Sticker) Touch() {
	now := time.Now()
	s.LastModified = now
	s.UpdatedAt = now
}

// SetOwned applies the canonical ownership rule: un-owning a sticker always
// resets its duplicate bookkeeping.
func (s *Sticker) SetOwned(owned bool) {
	s.IsOwned = owned
	if !owned {
		s.DuplicateCount = 0
	}
	s.IsDuplicate = s.DuplicateCount > 0
	s.Touch()
}

// AddDuplicate increments the duplicate counter. Duplicates only make sense
// on owned stickers; calling it on an unowned sticker marks it owned first.
func (s *Sticker) AddDuplicate() {
	if !s.IsOwned {
		s.IsOwned = true
	} else {
		s.DuplicateCount++
	}
	s.IsDuplicate = s.DuplicateCount > 0
	s.Touch()
}

func (s *Sticker) RemoveDuplicate() {
	if s.DuplicateCount > 0 {
		s.DuplicateCount--
	}
	s.IsDuplicate = s.DuplicateCount > 0
	s.Touch()
}

// SortStickers orders stickers in album order: numeric numbers ascending,
// then lettered codes.
func SortStickers(stickers []*Sticker) {
	sort.SliceStable(stickers, func(i, j int) bool {
		return stickers[i].Number.Less(stickers[j].Number)
	})
}
