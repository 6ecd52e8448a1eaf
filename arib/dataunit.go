package arib

import (
	"fmt"

	"github.com/kaiseki-av/aribcc/ariberr"
	"github.com/kaiseki-av/aribcc/bitreader"
)

const unitSeparator = 0x1F

// Data Unit type tags (ARIB STD-B24 Table 9-10).
const (
	UnitTypeStatementBody = 0x20
	UnitTypeDRCS1Byte     = 0x30
)

// DataUnit is one { unit_separator, type, size, payload } record inside a
// Caption Statement or Caption Management body.
type DataUnit struct {
	Type    uint8
	Payload []byte
}

// Size returns the on-wire size of the unit: 1 separator + 1 type + 3 size
// bytes + len(Payload).
func (u DataUnit) Size() int {
	return 5 + len(u.Payload)
}

// parseDataUnits reads DataUnit records from r until exactly budget bytes
// have been consumed. A unit whose separator byte isn't 0x1F is a malformed
// stream; the caller drops the enclosing PES and continues with the next.
func parseDataUnits(r *bitreader.Reader, budget int) ([]DataUnit, error) {
	var units []DataUnit
	consumed := 0
	for consumed < budget {
		if r.Len() < 5 {
			return units, fmt.Errorf("%w: truncated before unit header", ariberr.ErrMalformedUnit)
		}
		sep := r.Byte()
		if sep != unitSeparator {
			return units, fmt.Errorf("%w: separator 0x%02X, want 0x%02X", ariberr.ErrMalformedUnit, sep, unitSeparator)
		}
		typ := r.Byte()
		size := int(r.Uint(3))
		if r.Len() < size {
			return units, fmt.Errorf("%w: unit declares %d bytes, %d available", ariberr.ErrMalformedUnit, size, r.Len())
		}
		payload := r.Bytes(size)
		units = append(units, DataUnit{Type: typ, Payload: payload})
		consumed += 5 + size
	}
	return units, nil
}

// timeGroup36 reads a 36-bit time value followed by 4 reserved bits, the
// layout shared by Caption Statement's STM and Caption Management's OTM.
func timeGroup36(r *bitreader.Reader) uint64 {
	return r.Uint(5) >> 4
}

// ParseCaptionStatement parses a Caption Statement Data body (the payload of
// a DataGroup whose IsManagement is false).
func ParseCaptionStatement(body []byte) (*CaptionStatement, error) {
	r := bitreader.New(body)
	if r.Len() < 1 {
		return nil, fmt.Errorf("%w: empty statement body", ariberr.ErrMalformedUnit)
	}

	tmd := r.Byte() >> 6
	cs := &CaptionStatement{TMD: tmd}

	if tmd == 1 || tmd == 2 {
		cs.STM = timeGroup36(r)
	}

	length := int(r.Uint(3))
	if r.Overflow() {
		return nil, fmt.Errorf("%w: truncated statement header", ariberr.ErrMalformedUnit)
	}

	units, err := parseDataUnits(r, length)
	cs.Units = units
	if err != nil {
		return cs, err
	}
	return cs, nil
}

// ParseCaptionManagement parses a Caption Management Data body (the payload
// of a DataGroup whose IsManagement is true).
func ParseCaptionManagement(body []byte) (*CaptionManagement, error) {
	r := bitreader.New(body)
	if r.Len() < 1 {
		return nil, fmt.Errorf("%w: empty management body", ariberr.ErrMalformedUnit)
	}

	tmd := r.Byte() >> 6
	cm := &CaptionManagement{TMD: tmd}

	if tmd == 2 {
		cm.OTM = timeGroup36(r)
	}

	numLanguages := int(r.Byte())
	for i := 0; i < numLanguages && !r.Overflow(); i++ {
		b := r.Byte()
		tag := b >> 5
		dmf := b & 0x0F
		var dc uint8
		if dmf == 0x0C || dmf == 0x0D || dmf == 0x0E {
			dc = r.Byte()
		}
		iso639 := string(r.Bytes(3))
		fr := r.Byte()
		cm.Languages = append(cm.Languages, Language{
			Tag:         tag,
			DisplayMode: dmf,
			DisplayCond: dc,
			ISO639Code:  iso639,
			Format:      fr >> 4,
			TimeControl: (fr >> 2) & 0x03,
			RollupMode:  fr & 0x03,
		})
	}

	length := int(r.Uint(3))
	if r.Overflow() {
		return nil, fmt.Errorf("%w: truncated management header", ariberr.ErrMalformedUnit)
	}

	units, err := parseDataUnits(r, length)
	cm.Units = units
	if err != nil {
		return cm, err
	}
	return cm, nil
}
