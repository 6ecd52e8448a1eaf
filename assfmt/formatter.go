// Package assfmt turns a stream of arib.CaptionTokens, each paired with the
// elapsed stream time it occurred at, into an ASS v4.00+ subtitle file.
package assfmt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kaiseki-av/aribcc/arib"
	"github.com/kaiseki-av/aribcc/ariberr"
)

func styleResetTag(size arib.TextSize) string {
	switch size {
	case arib.SizeMedium:
		return `{\rmedium}`
	case arib.SizeSmall:
		return `{\rsmall}`
	default:
		return `{\rnormal}`
	}
}

// Formatter accumulates Dialog line buffers between Clear Screen tokens and
// writes ASS Dialogue events to an output file opened lazily on first use.
type Formatter struct {
	outPath string
	tmax    float64

	area *ClosedCaptionArea

	out io.WriteCloser
	w   *bufio.Writer

	lines  []strings.Builder
	active int // index into lines of the buffer new text appends to

	currentTextSize arib.TextSize
	currentColor    string

	elapsedAtLastFlush float64
	currentElapsed     float64

	dialoguesWritten int

	// openFile, when set, replaces os.Create for testing.
	openFile func(path string) (io.WriteCloser, error)
}

// NewFormatter returns a Formatter that writes to outPath (created lazily)
// and caps Dialogue duration at tmax seconds.
func NewFormatter(outPath string, tmax float64) *Formatter {
	f := &Formatter{
		outPath:         outPath,
		tmax:            tmax,
		area:            NewClosedCaptionArea(),
		currentTextSize: arib.SizeNormal,
		currentColor:    colorOverride(arib.ColorWhite),
	}
	f.lines = []strings.Builder{{}}
	return f
}

// DialoguesWritten returns the number of Dialogue lines emitted so far.
func (f *Formatter) DialoguesWritten() int { return f.dialoguesWritten }

func (f *Formatter) ensureOpen() error {
	if f.out != nil {
		return nil
	}
	var wc io.WriteCloser
	var err error
	if f.openFile != nil {
		wc, err = f.openFile(f.outPath)
	} else {
		wc, err = os.Create(f.outPath)
	}
	if err != nil {
		return &ariberr.FileOpenError{Path: f.outPath, Err: err}
	}
	f.out = wc
	f.w = bufio.NewWriter(wc)
	if _, err := f.w.WriteString(scriptHeader); err != nil {
		return fmt.Errorf("ariberr: writing ASS header: %w", err)
	}
	return nil
}

// Close flushes and closes the output file, if one was opened.
func (f *Formatter) Close() error {
	if f.out == nil {
		return nil
	}
	if err := f.w.Flush(); err != nil {
		return err
	}
	return f.out.Close()
}

func (f *Formatter) activeBuffer() *strings.Builder {
	return &f.lines[f.active]
}

func (f *Formatter) startNewLine(prefix string) {
	var b strings.Builder
	b.WriteString(prefix)
	f.lines = append(f.lines, b)
	f.active = len(f.lines) - 1
}

// Handle applies one CaptionToken observed at elapsedS seconds into the
// stream.
func (f *Formatter) Handle(tok arib.CaptionToken, elapsedS float64) error {
	f.currentElapsed = elapsedS

	switch t := tok.(type) {
	case arib.CharToken:
		f.activeBuffer().WriteString(t.Text)

	case arib.SpaceToken:
		f.activeBuffer().WriteString(" ")

	case arib.SizeToken:
		f.currentTextSize = t.Size
		f.activeBuffer().WriteString(styleResetTag(t.Size))
		f.activeBuffer().WriteString(f.currentColor)

	case arib.ColorToken:
		f.currentColor = colorOverride(t.Color)
		f.activeBuffer().WriteString(f.currentColor)

	case arib.PositionToken:
		x, y := f.area.RowColToPos(t.Row, t.Col, f.currentTextSize)
		f.startNewLine(fmt.Sprintf("%s%s{\\pos(%d,%d)}", styleResetTag(f.currentTextSize), f.currentColor, x, y))

	case arib.CSIToken:
		f.handleCSI(t)

	case arib.ClearScreenToken:
		return f.flush()

	case arib.UnknownToken:
		// No display behavior; preserved in the token stream upstream
		// for callers that want to inspect it, nothing to render here.

	default:
		return fmt.Errorf("assfmt: unrecognized token type %T", tok)
	}
	return nil
}

func (f *Formatter) handleCSI(t arib.CSIToken) {
	params, final, ok := csiParams(t.Raw)
	if !ok {
		return
	}

	switch final {
	case csiFinalPosition:
		if len(params) < 2 {
			return
		}
		f.startNewLine(fmt.Sprintf("%s%s{\\pos(%d,%d)}{\\an1}", styleResetTag(f.currentTextSize), f.currentColor, params[0], params[1]))

	case csiFinalAreaSet:
		if len(params) < 4 {
			return
		}
		f.area.ULX, f.area.ULY, f.area.Width, f.area.Height = params[0], params[1], params[2], params[3]

	case csiFinalDimensions:
		if len(params) < 2 {
			return
		}
		f.area.Width, f.area.Height = params[0], params[1]

	case csiFinalCharDims:
		if len(params) < 2 {
			return
		}
		f.area.CharWidth, f.area.CharHeight = params[0], params[1]

	case csiFinalHSpacing:
		if len(params) < 1 {
			return
		}
		f.area.CharSpacing = params[0]

	case csiFinalVSpacing:
		if len(params) < 1 {
			return
		}
		f.area.LineSpacing = params[0]

	case csiFinalWritingMode:
		// Vertical writing is out of scope; the mode is acknowledged and
		// otherwise ignored.
	}
}

// flush emits accumulated Dialog buffers as Dialogue events, then resets
// formatter state to ARIB's post-Clear-Screen defaults.
func (f *Formatter) flush() error {
	start := f.elapsedAtLastFlush
	end := f.currentElapsed
	if end > start+f.tmax {
		end = start + f.tmax
	}

	hasContent := false
	for _, b := range f.lines {
		if b.Len() > 0 {
			hasContent = true
			break
		}
	}

	if start != end && hasContent {
		if err := f.ensureOpen(); err != nil {
			return err
		}
		startStr := asstime(start)
		endStr := asstime(end)
		for i := len(f.lines) - 1; i >= 0; i-- {
			text := f.lines[i].String()
			if text == "" {
				continue
			}
			if _, err := fmt.Fprintf(f.w, "Dialogue: 0,%s,%s,normal,,0000,0000,0000,,%s\\N\n", startStr, endStr, text); err != nil {
				return err
			}
			f.dialoguesWritten++
		}
	}

	f.lines = []strings.Builder{{}}
	f.active = 0
	f.elapsedAtLastFlush = f.currentElapsed
	f.currentTextSize = arib.SizeNormal
	f.currentColor = colorOverride(arib.ColorWhite)
	return nil
}
