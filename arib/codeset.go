package arib

import (
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/width"
)

// GraphicSetKind names one of the character repertoires a G0-G3 designation
// register can point at.
type GraphicSetKind int

const (
	GraphicKanji GraphicSetKind = iota
	GraphicAlphanumeric
	GraphicHiragana
	GraphicKatakana
	GraphicDRCS
	GraphicMacro
	GraphicUndefined
)

// GraphicSet is the value of a designation register (G0-G3): which
// repertoire it names, and for DRCS, which of the 16 DRCS slots.
type GraphicSet struct {
	Kind      GraphicSetKind
	DRCSIndex int // 0-15, meaningful only when Kind == GraphicDRCS
}

// TwoByte reports whether characters from this set are encoded as two bytes
// rather than one. Kanji is always two-byte; DRCS slot 0 is conventionally
// the two-byte DRCS mapping set, the rest are one-byte.
func (g GraphicSet) TwoByte() bool {
	if g.Kind == GraphicKanji {
		return true
	}
	if g.Kind == GraphicDRCS {
		return g.DRCSIndex == 0
	}
	return false
}

var eucjpDecoder = japanese.EUCJP.NewDecoder()

// decodeJISRow decodes a JIS X 0208 character addressed by (row, col), each
// in 0x21-0x7E, by reusing the EUC-JP decoder: EUC-JP represents the same
// repertoire as two bytes with the high bit set, so OR-ing 0x80 into both
// bytes turns a raw JIS code into a valid EUC-JP sequence. row/col outside
// JIS X 0208's defined cells decode to the replacement rune, which the
// caller treats the same as any other unrecognized character.
func decodeJISRow(row, col byte) string {
	out, err := eucjpDecoder.Bytes([]byte{row | 0x80, col | 0x80})
	if err != nil || len(out) == 0 {
		return "�"
	}
	return string(out)
}

// DecodeKanji decodes a two-byte Kanji (JIS X 0208) code point. This covers
// the kana, alphanumerics, punctuation, and kanji JIS X 0208 actually
// defines; ARIB's additional extension rows (85-94, non-standard symbols)
// fall back to the replacement rune U+FFFD, much as an unrecognized DRCS
// glyph falls back to its own replacement glyph.
func DecodeKanji(b1, b2 byte) string {
	return decodeJISRow(b1, b2)
}

// DecodeHiragana decodes a one-byte Hiragana code: ARIB's single-byte
// Hiragana designation indexes the same repertoire as JIS X 0208 row 4, one
// character per code instead of a (row, col) pair.
func DecodeHiragana(c byte) string {
	return decodeJISRow(0x24, c)
}

// DecodeKatakana decodes a one-byte Katakana code against JIS X 0208 row 5,
// the same way DecodeHiragana reuses row 4.
func DecodeKatakana(c byte) string {
	return decodeJISRow(0x25, c)
}

// DecodeAlphanumeric maps a one-byte Alphanumeric code to its fullwidth
// Unicode form, the form ARIB broadcasts actually render (e.g. 'A' becomes
// U+FF21 "Ａ"), using the same halfwidth/fullwidth fold the rest of the
// Japanese-text-processing ecosystem uses instead of a hand-rolled offset
// table.
func DecodeAlphanumeric(c byte) string {
	return width.Widen.String(string(rune(c)))
}
