package assfmt

import "github.com/kaiseki-av/aribcc/arib"

// ClosedCaptionArea describes the pixel rectangle ARIB closed captions are
// laid out within, and the per-character/per-line cell size that rectangle
// is divided into. The defaults match ARIB STD-B24's standard-density 960x540
// profile; the CSI area/dimension/spacing sequences (§4.5) can reconfigure
// these fields mid-stream, an enhancement over the reference implementation
// which ignores them.
type ClosedCaptionArea struct {
	ULX, ULY           int
	Width, Height      int
	CharWidth, CharHeight int
	CharSpacing, LineSpacing int
}

// NewClosedCaptionArea returns the ARIB standard-density default area.
func NewClosedCaptionArea() *ClosedCaptionArea {
	return &ClosedCaptionArea{
		ULX: 170, ULY: 30,
		Width: 620, Height: 480,
		CharWidth: 36, CharHeight: 36,
		CharSpacing: 4, LineSpacing: 24,
	}
}

// RowColToPos computes the ASS pixel position of the upper-left corner of
// cell (row, col), row/col being 0-indexed from ARIB's lower-left origin;
// the `+1` on row converts to ASS's upper-left origin. size scales the cell
// width (MEDIUM, SMALL) and height (SMALL only).
func (a *ClosedCaptionArea) RowColToPos(row, col int, size arib.TextSize) (x, y int) {
	w := a.CharWidth + a.CharSpacing
	h := a.CharHeight + a.LineSpacing

	switch size {
	case arib.SizeMedium:
		w /= 2
	case arib.SizeSmall:
		w /= 2
		h /= 2
	}

	x = a.ULX + col*w
	y = a.ULY + (row+1)*h
	return x, y
}
