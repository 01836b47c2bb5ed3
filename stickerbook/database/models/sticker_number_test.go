package models

import (
	"encoding/json"
	"sort"
	"testing"
)

func TestParseStickerNumber(t *testing.T) {
	tests := []struct {
		raw  string
		want StickerNumber
	}{
		{"1", NumberOf(1)},
		{"600", NumberOf(600)},
		{"007", NumberOf(7)},
		{" 42 ", NumberOf(42)},
		{"L5", CodeOf("L5")},
		{"P12", CodeOf("P12")},
		{"12a", CodeOf("12a")},
		{"א1", CodeOf("א1")},
		{"", StickerNumber{}},
	}
	for _, tt := range tests {
		if got := ParseStickerNumber(tt.raw); got != tt.want {
			t.Errorf("ParseStickerNumber(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}
}

func TestStickerNumberOrdering(t *testing.T) {
	nums := []StickerNumber{
		CodeOf("P1"),
		NumberOf(100),
		CodeOf("L12"),
		NumberOf(2),
		CodeOf("L5"),
		NumberOf(30),
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i].Less(nums[j]) })

	want := []StickerNumber{
		NumberOf(2), NumberOf(30), NumberOf(100),
		CodeOf("L5"), CodeOf("L12"), CodeOf("P1"),
	}
	for i := range want {
		if nums[i] != want[i] {
			t.Fatalf("position %d = %v, want %v (full: %v)", i, nums[i], want[i], nums)
		}
	}
}

func TestStickerNumberJSON(t *testing.T) {
	// Numeric numbers serialize as JSON numbers, codes as strings.
	raw, err := json.Marshal(NumberOf(42))
	if err != nil || string(raw) != "42" {
		t.Errorf("numeric marshal = %s, err %v", raw, err)
	}
	raw, err = json.Marshal(CodeOf("L5"))
	if err != nil || string(raw) != `"L5"` {
		t.Errorf("code marshal = %s, err %v", raw, err)
	}

	var n StickerNumber
	if err := json.Unmarshal([]byte("42"), &n); err != nil || n != NumberOf(42) {
		t.Errorf("number unmarshal = %+v, err %v", n, err)
	}
	if err := json.Unmarshal([]byte(`"L5"`), &n); err != nil || n != CodeOf("L5") {
		t.Errorf("code unmarshal = %+v, err %v", n, err)
	}
	// A quoted digit string is still numeric.
	if err := json.Unmarshal([]byte(`"17"`), &n); err != nil || n != NumberOf(17) {
		t.Errorf("quoted number unmarshal = %+v, err %v", n, err)
	}
	if err := json.Unmarshal([]byte("true"), &n); err == nil {
		t.Error("bool accepted as sticker number")
	}
}

func TestStickerNumberSQL(t *testing.T) {
	v, err := NumberOf(42).Value()
	if err != nil || v != "42" {
		t.Errorf("Value() = %v, err %v", v, err)
	}

	var n StickerNumber
	if err := n.Scan("L5"); err != nil || n != CodeOf("L5") {
		t.Errorf("Scan(string) = %+v, err %v", n, err)
	}
	if err := n.Scan([]byte("12")); err != nil || n != NumberOf(12) {
		t.Errorf("Scan([]byte) = %+v, err %v", n, err)
	}
	if err := n.Scan(int64(7)); err != nil || n != NumberOf(7) {
		t.Errorf("Scan(int64) = %+v, err %v", n, err)
	}
	if err := n.Scan(3.14); err == nil {
		t.Error("float accepted by Scan")
	}
}
