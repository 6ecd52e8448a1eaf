package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kaiseki-av/aribcc/arib"
)

const testCaptionPID = 0x30

// buildTSPacket assembles one 188-byte TS packet. If hasPCR, a minimal
// adaptation field carrying pcr27M is written ahead of payload.
func buildTSPacket(pid uint16, pusi bool, cc uint8, payload []byte, hasPCR bool, pcr27M int64) []byte {
	pkt := make([]byte, 188)
	pkt[0] = 0x47
	pkt[1] = byte(pid >> 8 & 0x1F)
	if pusi {
		pkt[1] |= 0x40
	}
	pkt[2] = byte(pid)

	offset := 4
	if hasPCR {
		pkt[3] = 0x30 | (cc & 0x0F) // adaptation field + payload present
		pkt[4] = 7                  // adaptation_field_length (flags + 6 PCR bytes)
		pkt[5] = 0x10               // PCR_flag
		base := pcr27M / 300
		ext := pcr27M % 300
		pkt[6] = byte(base >> 25)
		pkt[7] = byte(base >> 17)
		pkt[8] = byte(base >> 9)
		pkt[9] = byte(base >> 1)
		pkt[10] = byte((base&1)<<7) | 0x7E | byte(ext>>8&0x01)
		pkt[11] = byte(ext)
		offset = 12
	} else {
		pkt[3] = 0x10 | (cc & 0x0F) // payload only
	}

	n := copy(pkt[offset:], payload)
	for i := offset + n; i < len(pkt); i++ {
		pkt[i] = 0xFF
	}
	return pkt
}

// buildPCRPacket builds a TS packet carrying only an adaptation field (no
// payload), used to stamp a PCR value onto the stream's elapsed-time clock
// without affecting a PID's payload continuity counter.
func buildPCRPacket(pid uint16, pcr27M int64) []byte {
	pkt := make([]byte, 188)
	pkt[0] = 0x47
	pkt[1] = byte(pid >> 8 & 0x1F)
	pkt[2] = byte(pid)
	pkt[3] = 0x20 // adaptation field only, no payload

	pkt[4] = 183 // adaptation_field_length fills the rest of the packet
	pkt[5] = 0x10
	base := pcr27M / 300
	ext := pcr27M % 300
	pkt[6] = byte(base >> 25)
	pkt[7] = byte(base >> 17)
	pkt[8] = byte(base >> 9)
	pkt[9] = byte(base >> 1)
	pkt[10] = byte((base&1)<<7) | 0x7E | byte(ext>>8&0x01)
	pkt[11] = byte(ext)
	for i := 12; i < len(pkt); i++ {
		pkt[i] = 0xFF
	}
	return pkt
}

func withPointerField(section []byte) []byte {
	out := make([]byte, 0, len(section)+1)
	out = append(out, 0x00)
	return append(out, section...)
}

func crcAppend(section []byte) []byte {
	// A zeroed CRC trailer fails PAT/PMT CRC verification, so these
	// sections exercise the "drop corrupt section, keep demuxing" path;
	// caption PID discovery then falls back to locking onto the first PID
	// that yields a parseable Data Group, which this test also covers.
	return append(append([]byte{}, section...), 0, 0, 0, 0)
}

func buildPATSection(pmtPID uint16) []byte {
	section := []byte{
		0x00,       // table_id
		0xB0, 0x00, // section_length placeholder, filled below
		0x00, 0x01, // transport_stream_id
		0xC1,       // version/current_next
		0x00, 0x00, // section_number, last_section_number
		0x00, 0x01, // program_number = 1
		byte(0xE0 | pmtPID>>8), byte(pmtPID),
	}
	secLen := len(section) - 3 + 4 // remaining bytes after length field, plus CRC
	section[1] = 0xB0 | byte(secLen>>8)
	section[2] = byte(secLen)
	return crcAppend(section)
}

func buildPMTSection(pcrPID, esPID uint16) []byte {
	// One elementary stream, stream_type 0x06, with a stream-identifier
	// descriptor (tag 0x52) carrying component_tag 0x87 so the
	// caption-PID fast path recognizes it.
	descriptor := []byte{0x52, 0x01, 0x87}
	esLoop := []byte{
		0x06, // stream_type: ARIB caption
		byte(0xE0 | esPID>>8), byte(esPID),
		0xF0, byte(len(descriptor)),
	}
	esLoop = append(esLoop, descriptor...)

	section := []byte{
		0x02,       // table_id
		0xB0, 0x00, // section_length placeholder
		0x00, 0x01, // program_number
		0xC1,       // version/current_next
		0x00, 0x00, // section_number, last_section_number
		byte(0xE0 | pcrPID>>8), byte(pcrPID),
		0xF0, 0x00, // program_info_length = 0
	}
	section = append(section, esLoop...)
	secLen := len(section) - 3 + 4
	section[1] = 0xB0 | byte(secLen>>8)
	section[2] = byte(secLen)
	return crcAppend(section)
}

func buildPESPayload(dataGroupBytes []byte) []byte {
	headerDataLen := byte(0)
	pesLen := 3 + int(headerDataLen) + len(dataGroupBytes)
	out := []byte{
		0x00, 0x00, 0x01, // start code prefix
		0xBD, // private_stream_1
		byte(pesLen >> 8), byte(pesLen),
		0x80, 0x00, // flags
		headerDataLen,
	}
	return append(out, dataGroupBytes...)
}

// buildDataGroup wraps a Caption Statement body (tmd=0, no time field, one
// StatementBody Data Unit containing unitPayload) in a Data Group header and
// trailing CRC (unchecked).
func buildDataGroup(unitPayload []byte) []byte {
	unit := []byte{0x1F, 0x20}
	size := len(unitPayload)
	unit = append(unit, byte(size>>16), byte(size>>8), byte(size))
	unit = append(unit, unitPayload...)

	body := []byte{0x00} // tmd = 0
	loopLen := len(unit)
	body = append(body, byte(loopLen>>16), byte(loopLen>>8), byte(loopLen))
	body = append(body, unit...)

	dg := []byte{0x04} // data_group_id = 1 (statement), version 0, link 0
	dg = append(dg, byte(len(body)>>8), byte(len(body)))
	dg = append(dg, body...)
	dg = append(dg, 0x00, 0x00) // CRC, unchecked
	return dg
}

func TestPipelineEndToEndSimpleCaption(t *testing.T) {
	var ts []byte

	pat := withPointerField(buildPATSection(0x10))
	ts = append(ts, buildTSPacket(0x0000, true, 0, pat, false, 0)...)

	pmt := withPointerField(buildPMTSection(testCaptionPID, testCaptionPID))
	ts = append(ts, buildTSPacket(0x10, true, 0, pmt, false, 0)...)

	ts = append(ts, buildPCRPacket(testCaptionPID, 0)...)
	ts = append(ts, buildPCRPacket(testCaptionPID, 27_000_000)...)

	statement := []byte{0x0E, 'A', 'B', 'C', 0x0C} // LS1 (Alphanumeric into GL), "ABC", then Clear Screen
	pes := buildPESPayload(buildDataGroup(statement))
	ts = append(ts, buildTSPacket(testCaptionPID, true, 0, pes, false, 0)...)

	outPath := filepath.Join(t.TempDir(), "out.ass")

	ctx := context.Background()
	p := New(ctx, bytes.NewReader(ts), Options{OutFile: outPath, TimeMax: 5})

	if err := p.Run(ctx, int64(len(ts)), nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if p.DialoguesWritten() != 1 {
		t.Fatalf("DialoguesWritten = %d, want 1", p.DialoguesWritten())
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading output file: %v", err)
	}
	if !strings.Contains(string(out), "ＡＢＣ") {
		t.Errorf("output missing caption text: %s", out)
	}
	if !strings.Contains(string(out), "0:00:00.00,0:00:01.00") {
		t.Errorf("output missing expected timestamps: %s", out)
	}
}

// buildUnit wraps payload in one DataUnit's unit-separator/type/size header.
// buildDataGroupFromUnits wraps one or more of these in a single Data Group,
// unlike buildDataGroup which wraps exactly one implicit StatementBody unit.
func buildUnit(unitType byte, payload []byte) []byte {
	unit := []byte{0x1F, unitType}
	size := len(payload)
	unit = append(unit, byte(size>>16), byte(size>>8), byte(size))
	return append(unit, payload...)
}

func buildDataGroupFromUnits(units ...[]byte) []byte {
	var loop []byte
	for _, u := range units {
		loop = append(loop, u...)
	}
	body := []byte{0x00} // tmd = 0
	body = append(body, byte(len(loop)>>16), byte(len(loop)>>8), byte(len(loop)))
	body = append(body, loop...)

	dg := []byte{0x04}
	dg = append(dg, byte(len(body)>>8), byte(len(body)))
	dg = append(dg, body...)
	dg = append(dg, 0x00, 0x00)
	return dg
}

// TestPipelineDropsEntirePESOnStatementDecodeError verifies that when a
// later Data Unit within a PES's statement fails to decode (here, the
// unsupported MACRO control), no tokens from any Data Unit in that PES -
// including ones that decoded successfully before the failure - reach the
// formatter. A subsequent, well-formed PES is then processed normally,
// confirming the pipeline drops only the offending PES and continues.
func TestPipelineDropsEntirePESOnStatementDecodeError(t *testing.T) {
	var ts []byte

	// First PES: "AB" decodes fine, then a second unit containing an
	// unsupported MACRO control fails. The whole PES must be dropped, so
	// "AB" must never reach the formatter. LS1 puts Alphanumeric into GL.
	badDG := buildDataGroupFromUnits(
		buildUnit(arib.UnitTypeStatementBody, []byte{0x0E, 'A', 'B'}),
		buildUnit(arib.UnitTypeStatementBody, []byte{0x95}),
	)
	ts = append(ts, buildPCRPacket(testCaptionPID, 0)...)
	ts = append(ts, buildTSPacket(testCaptionPID, true, 0, buildPESPayload(badDG), false, 0)...)

	ts = append(ts, buildPCRPacket(testCaptionPID, 27_000_000)...)

	// Second PES: well-formed, must still produce output.
	goodStatement := []byte{0x0E, 'X', 'Y', 0x0C}
	ts = append(ts, buildTSPacket(testCaptionPID, true, 1, buildPESPayload(buildDataGroup(goodStatement)), false, 0)...)

	outPath := filepath.Join(t.TempDir(), "out.ass")
	ctx := context.Background()
	p := New(ctx, bytes.NewReader(ts), Options{OutFile: outPath, TimeMax: 5, PID: testCaptionPID})

	if err := p.Run(ctx, int64(len(ts)), nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p.DialoguesWritten() != 1 {
		t.Fatalf("DialoguesWritten = %d, want 1", p.DialoguesWritten())
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading output file: %v", err)
	}
	if strings.Contains(string(out), "ＡＢ") {
		t.Errorf("output contains text from the dropped PES: %s", out)
	}
	if !strings.Contains(string(out), "ＸＹ") {
		t.Errorf("output missing text from the well-formed PES: %s", out)
	}
}

// TestPipelineDropsEntirePESOnMalformedUnitLoop verifies a Caption Statement
// whose declared data_unit_loop_length overruns the available bytes (a
// MalformedUnit condition) drops the whole PES instead of partially
// formatting whatever was parsed before the error.
func TestPipelineDropsEntirePESOnMalformedUnitLoop(t *testing.T) {
	unit := buildUnit(arib.UnitTypeStatementBody, []byte("Z"))
	body := []byte{0x00, 0xFF, 0xFF, 0xFF} // tmd=0, absurd loop length
	body = append(body, unit...)
	dg := []byte{0x04}
	dg = append(dg, byte(len(body)>>8), byte(len(body)))
	dg = append(dg, body...)
	dg = append(dg, 0x00, 0x00)

	var ts []byte
	ts = append(ts, buildTSPacket(testCaptionPID, true, 0, buildPESPayload(dg), false, 0)...)

	outPath := filepath.Join(t.TempDir(), "out.ass")
	ctx := context.Background()
	p := New(ctx, bytes.NewReader(ts), Options{OutFile: outPath, TimeMax: 5, PID: testCaptionPID})

	if err := p.Run(ctx, int64(len(ts)), nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p.DialoguesWritten() != 0 {
		t.Fatalf("DialoguesWritten = %d, want 0 for a dropped malformed PES", p.DialoguesWritten())
	}
	if _, err := os.Stat(outPath); !os.IsNotExist(err) {
		t.Errorf("expected no output file for a PES that never produced a Dialogue")
	}
}
