// Package arib decodes ARIB STD-B24 closed-caption data: the Data Group
// container hierarchy, the stateful G0-G3 multi-graphic-set byte stream
// decoder, and DRCS custom-glyph recognition. It produces a stream of
// CaptionTokens consumed by package assfmt.
package arib

import "fmt"

// DataGroup is the outermost ARIB container carried by a PES payload: a
// one-byte id/version header, a 16-bit payload size, the payload itself,
// and a trailing 16-bit CRC that ParseDataGroup reads into CRC but does not
// verify.
type DataGroup struct {
	DataGroupID      uint8 // 6 bits
	DataGroupVersion uint8 // 2 bits
	DataGroupLink    uint8
	DataGroupSize    uint16
	Payload          []byte
	CRC              uint16
}

// IsManagement reports whether this Data Group carries Caption Management
// Data rather than Caption Statement Data, per the low bit of data_group_id.
func (g *DataGroup) IsManagement() bool {
	return g.DataGroupID&0x01 == 0
}

// ParseDataGroup reads a single Data Group from a PES payload. b is the
// elementary-stream payload starting at the Data Group header (i.e. the PES
// header has already been skipped by the caller).
func ParseDataGroup(b []byte) (*DataGroup, error) {
	if len(b) < 5 {
		return nil, fmt.Errorf("arib: data group too short (%d bytes)", len(b))
	}

	g := &DataGroup{
		DataGroupID:      b[0] >> 2,
		DataGroupVersion: (b[0] >> 1) & 0x01,
		DataGroupLink:    b[0] & 0x01,
	}
	g.DataGroupSize = uint16(b[1])<<8 | uint16(b[2])

	end := 3 + int(g.DataGroupSize)
	if end+2 > len(b) {
		return nil, fmt.Errorf("arib: data group size %d exceeds available %d bytes", g.DataGroupSize, len(b)-3)
	}
	g.Payload = b[3:end]
	g.CRC = uint16(b[end])<<8 | uint16(b[end+1])

	return g, nil
}

// Language describes one entry of a Caption Management Data language
// record.
type Language struct {
	Tag            uint8
	DisplayMode    uint8 // DMF
	DisplayCond    uint8 // optional DC byte, 0 if absent
	ISO639Code     string
	Format         uint8 // high 4 bits of the format/rollup byte
	TimeControl    uint8
	RollupMode     uint8 // low 2 bits
}

// CaptionManagement is a parsed Caption Management Data body.
type CaptionManagement struct {
	TMD       uint8
	OTM       uint64 // 36-bit offset time, valid only when TMD == 2
	Languages []Language
	Units     []DataUnit
}

// CaptionStatement is a parsed Caption Statement Data body.
type CaptionStatement struct {
	TMD   uint8
	STM   uint64 // 36-bit presentation time, valid only when TMD in {1,2}
	Units []DataUnit
}

// DisplayFormat maps a Caption Management language format code (the high
// nibble of the format/rollup byte) to the writing-mode description ARIB
// Table 9-11 assigns it. Codes 0x0-0xD have a description; 0xE and 0xF
// return "reserved".
func DisplayFormat(code uint8) string {
	switch code {
	case 0x0:
		return "horizontal, standard density"
	case 0x1:
		return "vertical, standard density"
	case 0x2:
		return "horizontal, high density"
	case 0x3:
		return "vertical, high density"
	case 0x4:
		return "horizontal, western language"
	case 0x5:
		return "horizontal, 1920x1080"
	case 0x6:
		return "vertical, 1920x1080"
	case 0x7:
		return "horizontal, 960x540"
	case 0x8:
		return "vertical, 960x540"
	case 0x9:
		return "horizontal, 720x480"
	case 0xA:
		return "vertical, 720x480"
	case 0xB:
		return "horizontal, 1280x720"
	case 0xC:
		return "vertical, 1280x720"
	case 0xD:
		return "horizontal, 2nd-screen"
	default:
		return "reserved"
	}
}
