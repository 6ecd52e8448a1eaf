package assfmt

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/kaiseki-av/aribcc/arib"
)

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

func newTestFormatter(buf *bytes.Buffer) *Formatter {
	f := NewFormatter("unused.ass", 5)
	f.openFile = func(string) (io.WriteCloser, error) {
		return nopCloser{buf}, nil
	}
	return f
}

func TestAsstimeFormatting(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00:00.00"},
		{3723.45, "1:02:03.45"},
	}
	for _, c := range cases {
		if got := asstime(c.seconds); got != c.want {
			t.Errorf("asstime(%v) = %q, want %q", c.seconds, got, c.want)
		}
	}
}

func TestRowColToPos(t *testing.T) {
	area := NewClosedCaptionArea()

	x, y := area.RowColToPos(0, 0, arib.SizeNormal)
	if x != 170 || y != 90 {
		t.Errorf("NORMAL (0,0) = (%d,%d), want (170,90)", x, y)
	}

	x, y = area.RowColToPos(2, 3, arib.SizeNormal)
	if x != 170+3*40 || y != 30+3*60 {
		t.Errorf("NORMAL (2,3) = (%d,%d), want (%d,%d)", x, y, 170+3*40, 30+3*60)
	}

	x, _ = area.RowColToPos(0, 3, arib.SizeMedium)
	if x != 170+3*20 {
		t.Errorf("MEDIUM x = %d, want %d", x, 170+3*20)
	}

	x, y = area.RowColToPos(1, 2, arib.SizeSmall)
	if x != 170+2*20 || y != 30+2*30 {
		t.Errorf("SMALL (1,2) = (%d,%d), want (%d,%d)", x, y, 170+2*20, 30+2*30)
	}
}

func TestFormatterSimpleClearScreenFlush(t *testing.T) {
	var buf bytes.Buffer
	f := newTestFormatter(&buf)

	for _, c := range "ABC" {
		f.Handle(arib.CharToken{Kind: arib.CharAlphanumeric, Text: string(c)}, 0)
	}
	if err := f.Handle(arib.ClearScreenToken{}, 1.0); err != nil {
		t.Fatalf("Handle CS: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "0:00:00.00,0:00:01.00") {
		t.Errorf("output missing expected timestamps: %s", out)
	}
	if !strings.Contains(out, "ABC") {
		t.Errorf("output missing text: %s", out)
	}
	if f.DialoguesWritten() != 1 {
		t.Errorf("DialoguesWritten = %d, want 1", f.DialoguesWritten())
	}
}

func TestFormatterCapsDurationAtTmax(t *testing.T) {
	var buf bytes.Buffer
	f := newTestFormatter(&buf)

	f.Handle(arib.CharToken{Kind: arib.CharAlphanumeric, Text: "X"}, 0)
	f.Handle(arib.ClearScreenToken{}, 10.0)

	out := buf.String()
	if !strings.Contains(out, "0:00:00.00,0:00:05.00") {
		t.Errorf("expected duration capped at tmax=5: %s", out)
	}
}

func TestFormatterEmptyBufferProducesNoFileOrDialogue(t *testing.T) {
	var buf bytes.Buffer
	f := newTestFormatter(&buf)

	if err := f.Handle(arib.ClearScreenToken{}, 1.0); err != nil {
		t.Fatalf("Handle CS: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output written for an empty buffer, got: %s", buf.String())
	}
}

func TestFormatterCSIPositionAndAlignment(t *testing.T) {
	var buf bytes.Buffer
	f := newTestFormatter(&buf)

	f.Handle(arib.CSIToken{Raw: "170;389 a"}, 0)
	f.Handle(arib.CharToken{Kind: arib.CharAlphanumeric, Text: "X"}, 0)
	f.Handle(arib.ClearScreenToken{}, 2.0)

	out := buf.String()
	if !strings.Contains(out, `{\pos(170,389)}{\an1}`) {
		t.Errorf("output missing position/alignment override: %s", out)
	}
	if !strings.Contains(out, "X") {
		t.Errorf("output missing text: %s", out)
	}
}

func TestFormatterColorOverridePersists(t *testing.T) {
	var buf bytes.Buffer
	f := newTestFormatter(&buf)

	f.Handle(arib.ColorToken{Color: arib.ColorBlack}, 0)
	f.Handle(arib.CharToken{Kind: arib.CharAlphanumeric, Text: "Y"}, 0)
	f.Handle(arib.ClearScreenToken{}, 1.0)

	out := buf.String()
	if !strings.Contains(out, `{\c&H000000&}Y`) {
		t.Errorf("expected black color override before Y: %s", out)
	}
}

func TestFormatterDRCSSubstituteTextAppears(t *testing.T) {
	var buf bytes.Buffer
	f := newTestFormatter(&buf)

	f.Handle(arib.CharToken{Kind: arib.CharDRCS, Text: "♬"}, 0)
	f.Handle(arib.ClearScreenToken{}, 1.0)

	if !strings.Contains(buf.String(), "♬") {
		t.Errorf("expected DRCS substitute text in output: %s", buf.String())
	}
}

func TestFormatterMultipleLinesEmittedInReverseOrder(t *testing.T) {
	var buf bytes.Buffer
	f := newTestFormatter(&buf)

	f.Handle(arib.CharToken{Kind: arib.CharAlphanumeric, Text: "first"}, 0)
	f.Handle(arib.PositionToken{Row: 1, Col: 0}, 0)
	f.Handle(arib.CharToken{Kind: arib.CharAlphanumeric, Text: "second"}, 0)
	f.Handle(arib.ClearScreenToken{}, 1.0)

	out := buf.String()
	firstIdx := strings.Index(out, "first")
	secondIdx := strings.Index(out, "second")
	if firstIdx == -1 || secondIdx == -1 || secondIdx > firstIdx {
		t.Errorf("expected 'second' line before 'first' line (reverse order): %s", out)
	}
}
