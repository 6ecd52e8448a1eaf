package assfmt

import (
	"fmt"

	"github.com/kaiseki-av/aribcc/arib"
)

// colorRGB gives the (r, g, b) byte triple ARIB's eight foreground color
// controls map to.
var colorRGB = map[arib.Color][3]byte{
	arib.ColorBlack:   {0x00, 0x00, 0x00},
	arib.ColorRed:     {0xff, 0x00, 0x00},
	arib.ColorGreen:   {0x00, 0xff, 0x00},
	arib.ColorYellow:  {0xff, 0xff, 0x00},
	arib.ColorBlue:    {0x00, 0x00, 0xff},
	arib.ColorMagenta: {0xff, 0x00, 0xff},
	arib.ColorCyan:    {0x00, 0xff, 0xff},
	arib.ColorWhite:   {0xff, 0xff, 0xff},
}

// colorOverride renders an ARIB color as an ASS primary-color override tag.
// ASS packs colors bb-gg-rr, the reverse of the usual rr-gg-bb order.
func colorOverride(c arib.Color) string {
	rgb := colorRGB[c]
	return fmt.Sprintf("{\\c&H%02x%02x%02x&}", rgb[2], rgb[1], rgb[0])
}
