package arib

import (
	"fmt"

	"github.com/kaiseki-av/aribcc/ariberr"
)

// C0/C1 control codes this decoder recognizes by name.
const (
	c0NUL  = 0x00
	c0BEL  = 0x07
	c0APB  = 0x08
	c0APF  = 0x09
	c0APD  = 0x0A
	c0APU  = 0x0B
	c0CS   = 0x0C
	c0APR  = 0x0D
	c0LS1  = 0x0E
	c0LS0  = 0x0F
	c0PAPF = 0x16
	c0APS  = 0x1C
	c0SS2  = 0x19
	c0ESC  = 0x1B
	c0SS3  = 0x1D
	c0RS   = 0x1E
	c0US   = 0x1F

	c1BKF  = 0x80
	c1RDF  = 0x81
	c1GRF  = 0x82
	c1YLF  = 0x83
	c1BLF  = 0x84
	c1MGF  = 0x85
	c1CNF  = 0x86
	c1WHF  = 0x87
	c1SSZ  = 0x88
	c1MSZ  = 0x89
	c1NSZ  = 0x8A
	c1SZX  = 0x8B
	c1COL  = 0x90
	c1FLC  = 0x91
	c1CDC  = 0x92
	c1POL  = 0x93
	c1HLC  = 0x94
	c1MACRO = 0x95
	c1PRA  = 0x97
	c1ACS  = 0x9F
	c1TIME = 0x9D
	c1CSI  = 0x9B

	// colClearMarker is COL's first parameter byte when a second parameter
	// follows (colour-control-clear form); any other first-byte value is the
	// single-parameter colour-map-assignment form, per ARIB STD-B24 Table
	// 9-10.
	colClearMarker = 0x20
)

// c1ParamCounts gives the number of parameter bytes that follow a C1 control
// code this decoder doesn't otherwise special-case. Those bytes are
// consumed and the control is emitted as UnknownToken.
var c1ParamCounts = map[byte]int{
	c1SZX: 1,
	c1FLC: 1,
	c1CDC: 2,
	c1POL: 1,
	c1HLC: 1,
	c1PRA: 1,
	c1ACS: 1,
	c1TIME: 2,
}

// Designation final bytes (ARIB STD-B24 Table 7-3), shared between the
// one-byte and two-byte designation forms (ESC ( / ) / * / + Fe vs
// ESC $ [( / ) / * /+] Fe).
const (
	finalKanji        = 0x42
	finalAlphanumeric = 0x4A
	finalHiragana     = 0x30
	finalKatakana     = 0x31
	finalMacro        = 0x70
	finalDRCSBase     = 0x40 // DRCS index = final byte - finalDRCSBase, 0x40-0x4F
)

// designatedSet maps a designation final byte to a graphic set. Kanji (0x42)
// and Alphanumeric (0x4A) are matched before the DRCS range, so DRCS slots 2
// and 10 are never designated.

func designatedSet(final byte) GraphicSet {
	switch {
	case final == finalKanji:
		return GraphicSet{Kind: GraphicKanji}
	case final == finalAlphanumeric:
		return GraphicSet{Kind: GraphicAlphanumeric}
	case final == finalHiragana:
		return GraphicSet{Kind: GraphicHiragana}
	case final == finalKatakana:
		return GraphicSet{Kind: GraphicKatakana}
	case final == finalMacro:
		return GraphicSet{Kind: GraphicMacro}
	case final >= finalDRCSBase && final <= finalDRCSBase+0x0F:
		return GraphicSet{Kind: GraphicDRCS, DRCSIndex: int(final - finalDRCSBase)}
	default:
		return GraphicSet{Kind: GraphicUndefined}
	}
}

// DRCSTable maps a (DRCS slot, character code) pair to the substitute text
// a DRCS character renders as, populated from DRCS1Byte Data Units seen
// earlier in the stream.
type DRCSTable map[DRCSKey]string

// DRCSKey identifies a DRCS character by the designation slot it was
// encountered through and its two-byte character code.
type DRCSKey struct {
	Slot int
	Code uint16
}

// NewDRCSKey builds a DRCSTable key.
func NewDRCSKey(slot int, code uint16) DRCSKey {
	return DRCSKey{Slot: slot, Code: code}
}

// Decoder holds G0-G3/GL/GR designation state for statement byte streams.
// Unless Persistent is set, Decode resets that state at the start of every
// call, so designations do not carry from one StatementBody Data Unit to the
// next (matching the reference implementation's observed behavior); set
// Persistent to keep designation state across calls to Decode instead.
type Decoder struct {
	g          [4]GraphicSet
	gl, gr     int // index into g[], which register GL/GR currently point at
	Persistent bool
	drcs       DRCSTable
}

// NewDecoder returns a Decoder with ARIB's default designations: G0=Kanji,
// G1=Alphanumeric, G2=Hiragana, G3=Katakana, GL=G0, GR=G2.
func NewDecoder() *Decoder {
	d := &Decoder{}
	d.reset()
	return d
}

func (d *Decoder) reset() {
	d.g[0] = GraphicSet{Kind: GraphicKanji}
	d.g[1] = GraphicSet{Kind: GraphicAlphanumeric}
	d.g[2] = GraphicSet{Kind: GraphicHiragana}
	d.g[3] = GraphicSet{Kind: GraphicKatakana}
	d.gl = 0
	d.gr = 2
}

// SetDRCSTable installs the DRCS substitute lookup this decoder consults
// for DRCS character codes. Callers populate it from DRCS1Byte Data Units
// observed earlier in the stream.
func (d *Decoder) SetDRCSTable(t DRCSTable) {
	d.drcs = t
}

// Decode consumes a StatementBody payload and returns the CaptionTokens it
// produces. If Persistent is false (the default), G0-G3/GL/GR state resets
// to ARIB defaults before decoding, matching the reference implementation's
// per-PES reconstruction.
func (d *Decoder) Decode(payload []byte) ([]CaptionToken, error) {
	if !d.Persistent {
		d.reset()
	}

	var tokens []CaptionToken
	i := 0
	for i < len(payload) {
		b := payload[i]
		i++

		switch {
		case b == 0x20:
			tokens = append(tokens, SpaceToken{})

		case b <= 0x1F:
			tok, consumed, err := d.decodeC0(payload, i, b)
			if err != nil {
				return tokens, err
			}
			i += consumed
			if tok != nil {
				tokens = append(tokens, tok)
			}

		case b == 0x7F:
			// DEL, ignored.

		case b >= 0x21 && b <= 0x7E:
			tok, consumed := d.decodeGraphic(payload, i, b, d.g[d.gl])
			i += consumed
			tokens = append(tokens, tok)

		case b >= 0x80 && b <= 0x9F:
			tok, consumed, err := d.decodeC1(payload, i, b)
			if err != nil {
				return tokens, err
			}
			i += consumed
			if tok != nil {
				tokens = append(tokens, tok)
			}

		case b >= 0xA0 && b <= 0xFF:
			tok, consumed := d.decodeGraphic(payload, i, b&0x7F, d.g[d.gr])
			i += consumed
			tokens = append(tokens, tok)
		}
	}
	return tokens, nil
}

// decodeGraphic decodes one character from set starting at code (already
// masked into 0x21-0x7E), consuming a second byte from payload[pos:] if set
// is two-byte. Returns the token and the number of extra bytes consumed
// beyond the code byte itself.
func (d *Decoder) decodeGraphic(payload []byte, pos int, code byte, set GraphicSet) (CaptionToken, int) {
	if set.TwoByte() {
		var second byte
		consumed := 0
		if pos < len(payload) {
			second = payload[pos] & 0x7F
			consumed = 1
		}
		return d.decodeTwoByte(set, code, second), consumed
	}
	return d.decodeOneByte(set, code), 0
}

func (d *Decoder) decodeTwoByte(set GraphicSet, b1, b2 byte) CaptionToken {
	switch set.Kind {
	case GraphicKanji:
		return CharToken{Kind: CharKanji, Text: DecodeKanji(b1, b2)}
	case GraphicDRCS:
		code := uint16(b1)<<8 | uint16(b2)
		return CharToken{Kind: CharDRCS, Text: d.lookupDRCS(set.DRCSIndex, code)}
	default:
		return UnknownToken{Code: b1}
	}
}

func (d *Decoder) decodeOneByte(set GraphicSet, b byte) CaptionToken {
	switch set.Kind {
	case GraphicHiragana:
		return CharToken{Kind: CharHiragana, Text: DecodeHiragana(b)}
	case GraphicKatakana:
		return CharToken{Kind: CharKatakana, Text: DecodeKatakana(b)}
	case GraphicAlphanumeric:
		return CharToken{Kind: CharAlphanumeric, Text: DecodeAlphanumeric(b)}
	case GraphicDRCS:
		return CharToken{Kind: CharDRCS, Text: d.lookupDRCS(set.DRCSIndex, uint16(b))}
	default:
		return UnknownToken{Code: b}
	}
}

func (d *Decoder) lookupDRCS(slot int, code uint16) string {
	if d.drcs == nil {
		return drcsReplacementGlyph
	}
	if s, ok := d.drcs[DRCSKey{Slot: slot, Code: code}]; ok {
		return s
	}
	return drcsReplacementGlyph
}

// decodeC0 handles a C0 control code b already consumed from payload[pos-1].
// Returns the token (nil if none), the number of extra bytes consumed
// beyond b itself, and an error for unrecoverable conditions.
func (d *Decoder) decodeC0(payload []byte, pos int, b byte) (CaptionToken, int, error) {
	switch b {
	case c0CS:
		return ClearScreenToken{}, 0, nil

	case c0APS:
		if pos+2 > len(payload) {
			return nil, 0, fmt.Errorf("%w: truncated APS", ariberr.ErrDecodeError)
		}
		row := int(payload[pos])
		col := int(payload[pos+1])
		return PositionToken{Row: row, Col: col}, 2, nil

	case c0PAPF:
		if pos+1 > len(payload) {
			return nil, 0, fmt.Errorf("%w: truncated PAPF", ariberr.ErrDecodeError)
		}
		return UnknownToken{Code: b}, 1, nil

	case c0ESC:
		return d.decodeEscape(payload, pos)

	case c0LS0:
		d.gl = 0
		return nil, 0, nil
	case c0LS1:
		d.gl = 1
		return nil, 0, nil

	case c0SS2:
		return d.decodeSingleShift(payload, pos, 2)
	case c0SS3:
		return d.decodeSingleShift(payload, pos, 3)

	case c0NUL, c0BEL, c0APB, c0APF, c0APD, c0APU, c0APR, c0RS, c0US:
		return UnknownToken{Code: b}, 0, nil

	default:
		return UnknownToken{Code: b}, 0, nil
	}
}

// decodeSingleShift decodes one character from G[reg] regardless of the
// current GL/GR invocation, per SS2/SS3 semantics, returning the extra
// bytes consumed beyond the SS2/SS3 code itself.
func (d *Decoder) decodeSingleShift(payload []byte, pos, reg int) (CaptionToken, int, error) {
	if pos >= len(payload) {
		return nil, 0, fmt.Errorf("%w: truncated single-shift", ariberr.ErrDecodeError)
	}
	code := payload[pos] & 0x7F
	tok, extra := d.decodeGraphic(payload, pos+1, code, d.g[reg])
	return tok, 1 + extra, nil
}

// decodeC1 mirrors decodeC0 for the 0x80-0x9F range.
func (d *Decoder) decodeC1(payload []byte, pos int, b byte) (CaptionToken, int, error) {
	switch b {
	case c1BKF:
		return ColorToken{Color: ColorBlack}, 0, nil
	case c1RDF:
		return ColorToken{Color: ColorRed}, 0, nil
	case c1GRF:
		return ColorToken{Color: ColorGreen}, 0, nil
	case c1YLF:
		return ColorToken{Color: ColorYellow}, 0, nil
	case c1BLF:
		return ColorToken{Color: ColorBlue}, 0, nil
	case c1MGF:
		return ColorToken{Color: ColorMagenta}, 0, nil
	case c1CNF:
		return ColorToken{Color: ColorCyan}, 0, nil
	case c1WHF:
		return ColorToken{Color: ColorWhite}, 0, nil

	case c1SSZ:
		return SizeToken{Size: SizeSmall}, 0, nil
	case c1MSZ:
		return SizeToken{Size: SizeMedium}, 0, nil
	case c1NSZ:
		return SizeToken{Size: SizeNormal}, 0, nil

	case c1COL:
		return d.decodeCOL(payload, pos)

	case c1CSI:
		return d.decodeCSI(payload, pos)

	case c1MACRO:
		// Macro definitions are an explicit non-goal; this decoder can't
		// know the definition's length without interpreting it, so
		// treat it as an unrecoverable position for this statement.
		return nil, 0, fmt.Errorf("%w: MACRO control is unsupported", ariberr.ErrDecodeError)

	default:
		if n, ok := c1ParamCounts[b]; ok {
			if pos+n > len(payload) {
				return nil, 0, fmt.Errorf("%w: truncated params for control 0x%02X", ariberr.ErrDecodeError, b)
			}
			return UnknownToken{Code: b}, n, nil
		}
		return UnknownToken{Code: b}, 0, nil
	}
}

// decodeCOL handles the C1 COL control's variable parameter count: one
// parameter byte for the colour-map-assignment form, or two when the first
// parameter byte is colClearMarker (colour-control-clear form), per ARIB
// STD-B24 Table 9-10.
func (d *Decoder) decodeCOL(payload []byte, pos int) (CaptionToken, int, error) {
	if pos >= len(payload) {
		return nil, 0, fmt.Errorf("%w: truncated COL", ariberr.ErrDecodeError)
	}
	if payload[pos] != colClearMarker {
		return UnknownToken{Code: c1COL}, 1, nil
	}
	if pos+1 >= len(payload) {
		return nil, 1, fmt.Errorf("%w: truncated COL", ariberr.ErrDecodeError)
	}
	return UnknownToken{Code: c1COL}, 2, nil
}

// decodeCSI accumulates a Control Sequence Introducer's parameter bytes
// (0x30-0x3F and separators) up to and including its final byte
// (0x40-0x7E), per ARIB STD-B24's CSI syntax. The accumulated text
// (parameters plus final byte, not including CSI itself) becomes a
// CSIToken; the formatter interprets specific final bytes (position and
// rendering sequences) and ignores the rest.
func (d *Decoder) decodeCSI(payload []byte, pos int) (CaptionToken, int, error) {
	start := pos
	i := pos
	for {
		if i >= len(payload) {
			return nil, i - pos, fmt.Errorf("%w: unterminated CSI sequence", ariberr.ErrDecodeError)
		}
		b := payload[i]
		i++
		if b >= 0x40 && b <= 0x7E {
			return CSIToken{Raw: string(payload[start:i])}, i - pos, nil
		}
	}
}

// decodeEscape interprets an ESC designation/invocation sequence starting
// at payload[pos:] (the ESC byte itself is already consumed). Returns the
// number of bytes consumed beyond the ESC byte.
func (d *Decoder) decodeEscape(payload []byte, pos int) (CaptionToken, int, error) {
	if pos >= len(payload) {
		return nil, 0, fmt.Errorf("%w: truncated escape sequence", ariberr.ErrDecodeError)
	}
	b := payload[pos]

	switch b {
	case 0x6E: // LS2
		d.gl = 2
		return nil, 1, nil
	case 0x6F: // LS3
		d.gl = 3
		return nil, 1, nil
	case 0x7E: // LS1R
		d.gr = 1
		return nil, 1, nil
	case 0x7D: // LS2R
		d.gr = 2
		return nil, 1, nil
	case 0x7C: // LS3R
		d.gr = 3
		return nil, 1, nil

	case 0x24: // two-byte designation
		return d.decodeDesignation(payload, pos+1, true)

	case 0x28, 0x29, 0x2A, 0x2B: // one-byte designation to G0..G3
		reg := int(b - 0x28)
		if pos+1 >= len(payload) {
			return nil, 1, fmt.Errorf("%w: truncated designation", ariberr.ErrDecodeError)
		}
		d.g[reg] = designatedSet(payload[pos+1])
		return nil, 2, nil

	default:
		return nil, 1, fmt.Errorf("%w: unrecognized escape 0x%02X", ariberr.ErrDecodeError, b)
	}
}

// decodeDesignation handles the body of a two-byte (ESC $ ...) designation,
// which may target G0 directly (ESC $ Fe) or name a register explicitly
// (ESC $ ( / ) / * / + Fe). pos points just past the $.
func (d *Decoder) decodeDesignation(payload []byte, pos int, twoByte bool) (CaptionToken, int, error) {
	if pos >= len(payload) {
		return nil, 1, fmt.Errorf("%w: truncated two-byte designation", ariberr.ErrDecodeError)
	}
	b := payload[pos]

	if b == 0x28 || b == 0x29 || b == 0x2A || b == 0x2B {
		reg := int(b - 0x28)
		if pos+1 >= len(payload) {
			return nil, 2, fmt.Errorf("%w: truncated two-byte designation", ariberr.ErrDecodeError)
		}
		d.g[reg] = designatedSet(payload[pos+1])
		return nil, 3, nil
	}

	// ESC $ Fe: implicitly designates G0.
	d.g[0] = designatedSet(b)
	return nil, 2, nil
}
