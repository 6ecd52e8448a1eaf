package arib

// CaptionToken is the tagged-variant output of the statement decoder. The
// unexported marker method forces every concrete type to live in this
// package, so the set of kinds is closed. assfmt's Formatter.Handle switches
// over them and returns an error at run time for a kind it has no case for.
type CaptionToken interface {
	captionToken()
}

// CharKind distinguishes which repertoire a CharToken's text came from.
type CharKind int

const (
	CharKanji CharKind = iota
	CharHiragana
	CharKatakana
	CharAlphanumeric
	CharDRCS
)

// CharToken carries one decoded character (or DRCS substitute string).
type CharToken struct {
	Kind CharKind
	Text string
}

func (CharToken) captionToken() {}

// SpaceToken is the SP (0x20) control.
type SpaceToken struct{}

func (SpaceToken) captionToken() {}

// TextSize names the three caption text sizes ARIB supports.
type TextSize int

const (
	SizeSmall TextSize = iota
	SizeMedium
	SizeNormal
)

// SizeToken is MSZ/NSZ/SSZ.
type SizeToken struct {
	Size TextSize
}

func (SizeToken) captionToken() {}

// Color names the eight ARIB foreground color codes (BKF..WHF).
type Color int

const (
	ColorBlack Color = iota
	ColorRed
	ColorGreen
	ColorYellow
	ColorBlue
	ColorMagenta
	ColorCyan
	ColorWhite
)

// ColorToken is a BKF/RDF/GRF/YLF/BLF/MGF/CNF/WHF color-change control.
type ColorToken struct {
	Color Color
}

func (ColorToken) captionToken() {}

// PositionToken is APS (Active Position Set): move the caret to (Row, Col).
type PositionToken struct {
	Row, Col int
}

func (PositionToken) captionToken() {}

// ClearScreenToken is CS (Clear Screen): flush accumulated lines.
type ClearScreenToken struct{}

func (ClearScreenToken) captionToken() {}

// CSIToken is a Control Sequence Introducer (0x9B) sequence: raw holds the
// parameter bytes and the final byte, e.g. `170;389 a`.
type CSIToken struct {
	Raw string
}

func (CSIToken) captionToken() {}

// UnknownToken is any recognized-but-inert control code (cursor movement,
// COL, timing, etc.) the formatter has no display behavior for. It still
// gets emitted, rather than silently dropped, so a caller inspecting the
// full token stream can see it happened.
type UnknownToken struct {
	Code byte
}

func (UnknownToken) captionToken() {}
