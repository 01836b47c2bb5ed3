package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// StickerNumber is the position of a sticker inside an album. Most numbers
// are plain integers, but publishers also issue lettered codes ("L5", "P12")
// for special pages. Codes always sort after every numeric sticker, grouped
// by letter prefix and then numeric suffix.
type StickerNumber struct {
	Code string // non-empty for alphanumeric codes
	Num  int    // set when the number is numeric
}

var (
	numericChars = regexp.MustCompile(`^[0-9.\-]+$`)
	leadingAlpha = regexp.MustCompile(`^[A-Za-z]+`)
	digitRun     = regexp.MustCompile(`[0-9]+`)
)

// ParseStickerNumber classifies a raw number field. A value containing any
// character outside [0-9.-] is kept verbatim as a code; everything else is
// parsed as an integer with non-numeric residue stripped. Values that still
// fail to parse fall back to the original string.
func ParseStickerNumber(raw string) StickerNumber {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return StickerNumber{}
	}
	if !numericChars.MatchString(raw) {
		return StickerNumber{Code: raw}
	}
	digits := digitRun.FindString(raw)
	v, err := strconv.Atoi(digits)
	if err != nil {
		return StickerNumber{Code: raw}
	}
	return StickerNumber{Num: v}
}

func NumberOf(v int) StickerNumber     { return StickerNumber{Num: v} }
func CodeOf(code string) StickerNumber { return StickerNumber{Code: code} }

func (n StickerNumber) IsCode() bool { return n.Code != "" }

func (n StickerNumber) IsZero() bool { return n.Code == "" && n.Num == 0 }

func (n StickerNumber) String() string {
	if n.IsCode() {
		return n.Code
	}
	return strconv.Itoa(n.Num)
}

// Less orders numeric numbers first, then codes by letter prefix and numeric
// suffix ("L5" < "L12" < "P1").
func (n StickerNumber) Less(o StickerNumber) bool {
	if n.IsCode() != o.IsCode() {
		return !n.IsCode()
	}
	if !n.IsCode() {
		return n.Num < o.Num
	}
	np, ns := splitCode(n.Code)
	op, os := splitCode(o.Code)
	if np != op {
		return np < op
	}
	if ns != os {
		return ns < os
	}
	return n.Code < o.Code
}

func splitCode(code string) (string, int) {
	prefix := strings.ToUpper(leadingAlpha.FindString(code))
	suffix := 0
	if d := digitRun.FindString(code); d != "" {
		suffix, _ = strconv.Atoi(d)
	}
	return prefix, suffix
}

// MarshalJSON keeps the wire shape of the original records: numeric numbers
// serialize as JSON numbers, codes as strings.
func (n StickerNumber) MarshalJSON() ([]byte, error) {
	if n.IsCode() {
		return json.Marshal(n.Code)
	}
	return json.Marshal(n.Num)
}

func (n *StickerNumber) UnmarshalJSON(data []byte) error {
	var v int
	if err := json.Unmarshal(data, &v); err == nil {
		*n = StickerNumber{Num: v}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("sticker number must be a number or string: %w", err)
	}
	*n = ParseStickerNumber(s)
	return nil
}

// Value implements driver.Valuer; the backend column is text.
func (n StickerNumber) Value() (driver.Value, error) {
	return n.String(), nil
}

func (n *StickerNumber) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*n = StickerNumber{}
	case string:
		*n = ParseStickerNumber(v)
	case []byte:
		*n = ParseStickerNumber(string(v))
	case int64:
		*n = StickerNumber{Num: int(v)}
	default:
		return fmt.Errorf("cannot scan %T into StickerNumber", src)
	}
	return nil
}
