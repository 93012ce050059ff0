package project

import "unicode/utf16"

// Palette is the fixed set of derived event colors. Order matters: the
// index is part of the color contract shared with the web client.
var Palette = [10]string{
	"#4f46e5",
	"#0ea5e9",
	"#0891b2",
	"#0d9488",
	"#8b5cf6",
	"#ec4899",
	"#f59e0b",
	"#84cc16",
	"#ef4444",
	"#ea580c",
}

// TitleHash folds title over UTF-16 code units with
// hash = c + ((hash << 5) - hash), where the shift runs on the 32-bit
// truncation of hash and the subtraction does not truncate. This matches
// the JavaScript reduction bit for bit.
func TitleHash(title string) int64 {
	var h int64
	for _, c := range utf16.Encode([]rune(title)) {
		shifted := int64(int32(uint32(int32(h)) << 5))
		h = int64(c) + (shifted - h)
	}
	return h
}

// DeriveColor picks a palette color for an event without an explicit one.
// The same title always yields the same color.
func DeriveColor(title string) string {
	h := TitleHash(title)
	if h < 0 {
		h = -h
	}
	return Palette[h%int64(len(Palette))]
}
