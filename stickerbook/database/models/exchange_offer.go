package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OfferStatus string

const (
	OfferPending   OfferStatus = "pending"
	OfferAccepted  OfferStatus = "accepted"
	OfferDeclined  OfferStatus = "declined"
	OfferActive    OfferStatus = "active"
	OfferCompleted OfferStatus = "completed"
)

// ExchangeOffer references stickers by number rather than id; the numbers are
// resolved against the album when the offer is written, relying on the
// (albumid, number) uniqueness enforced at the backend.
type ExchangeOffer struct {
	bun.BaseModel `bun:"table:exchange_offers,alias:eo"`

	ID                 string      `bun:"id,pk" json:"id"`
	AlbumID            string      `bun:"albumid,notnull" json:"albumId"`
	UserName           string      `bun:"username,notnull" json:"userName"`
	UserAvatar         string      `bun:"useravatar" json:"userAvatar,omitempty"`
	OfferedStickerIDs  []string    `bun:"offeredstickerid,type:jsonb" json:"offeredStickerId"`
	OfferedStickerName string      `bun:"offeredstickername" json:"offeredStickerName"`
	WantedStickerIDs   []string    `bun:"wantedstickerid,type:jsonb" json:"wantedStickerId"`
	WantedStickerName  string      `bun:"wantedstickername" json:"wantedStickerName"`
	Status             OfferStatus `bun:"status,notnull" json:"status"`
	ExchangeMethod     string      `bun:"exchangemethod" json:"exchangeMethod"`
	Location           string      `bun:"location" json:"location"`
	Phone              string      `bun:"phone" json:"phone"`
	Color              string      `bun:"color" json:"color"`
	IsDeleted          bool        `bun:"isdeleted,notnull,default:false" json:"isDeleted"`
	LastModified       time.Time   `bun:"lastmodified,notnull" json:"lastModified"`
	CreatedAt          time.Time   `bun:"createdat,notnull,default:current_timestamp" json:"-"`
	UpdatedAt          time.Time   `bun:"updatedat,notnull" json:"-"`
}

func (o *ExchangeOffer) Touch() {
	now := time.Now()
	o.LastModified = now
	o.UpdatedAt = now
}

// WantedNumbers parses the denormalized number references.
func (o *ExchangeOffer) WantedNumbers() []StickerNumber {
	return parseNumbers(o.WantedStickerIDs)
}

func (o *ExchangeOffer) OfferedNumbers() []StickerNumber {
	return parseNumbers(o.OfferedStickerIDs)
}

func parseNumbers(raw []string) []StickerNumber {
	out := make([]StickerNumber, 0, len(raw))
	for _, r := range raw {
		out = append(out, ParseStickerNumber(r))
	}
	return out
}
