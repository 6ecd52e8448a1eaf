package mpegts

import "fmt"

const (
	packetSize = 188
	syncByte   = 0x47
	pidPAT     = 0x0000
)

// Packet is a parsed 188-byte MPEG-TS transport stream packet.
type Packet struct {
	Header  PacketHeader
	Payload []byte
}

// PacketHeader contains the parsed header fields of a transport stream packet.
type PacketHeader struct {
	PID                       uint16
	ContinuityCounter         uint8
	HasAdaptationField        bool
	HasPayload                bool
	PayloadUnitStartIndicator bool
	TransportErrorIndicator   bool
	DiscontinuityIndicator    bool
	PCR27M                    int64
	HasPCR                    bool
}

func parsePacket(buf []byte) (*Packet, error) {
	if len(buf) != packetSize {
		return nil, fmt.Errorf("mpegts: packet size %d, expected %d", len(buf), packetSize)
	}
	if buf[0] != syncByte {
		return nil, fmt.Errorf("mpegts: invalid sync byte 0x%02X", buf[0])
	}

	p := &Packet{}
	p.Header.TransportErrorIndicator = buf[1]&0x80 != 0
	p.Header.PayloadUnitStartIndicator = buf[1]&0x40 != 0
	p.Header.PID = uint16(buf[1]&0x1F)<<8 | uint16(buf[2])
	p.Header.HasAdaptationField = buf[3]&0x20 != 0
	p.Header.HasPayload = buf[3]&0x10 != 0
	p.Header.ContinuityCounter = buf[3] & 0x0F

	offset := 4

	if p.Header.HasAdaptationField {
		if offset >= packetSize {
			return p, nil
		}
		afLen := int(buf[offset])
		afStart := offset + 1
		if afLen > 0 && afStart < packetSize {
			p.Header.DiscontinuityIndicator = buf[afStart]&0x80 != 0
			pcrFlag := buf[afStart]&0x10 != 0
			if pcrFlag && afStart+6 <= packetSize {
				pcrBytes := buf[afStart+1 : afStart+7]
				base := int64(pcrBytes[0])<<25 | int64(pcrBytes[1])<<17 | int64(pcrBytes[2])<<9 |
					int64(pcrBytes[3])<<1 | int64(pcrBytes[4])>>7
				ext := int64(pcrBytes[4]&0x01)<<8 | int64(pcrBytes[5])
				p.Header.HasPCR = true
				p.Header.PCR27M = base*300 + ext
			}
		}
		offset += 1 + afLen
		if offset > packetSize {
			offset = packetSize
		}
	}

	if p.Header.HasPayload && offset < packetSize {
		p.Payload = make([]byte, packetSize-offset)
		copy(p.Payload, buf[offset:])
	}

	return p, nil
}

// ExtractPCR reads the Program Clock Reference from a raw 188-byte TS
// packet's adaptation field, returning the 27 MHz composite value
// (base*300 + extension) and whether one was present. Callers derive an
// elapsed-time clock from successive values themselves (see the original
// ts2ass.py's OnTSPacket, which calls its own get_pcr the same way) rather
// than the demuxer owning a clock.
func ExtractPCR(raw []byte) (pcr27M int64, ok bool) {
	p, err := parsePacket(raw)
	if err != nil {
		return 0, false
	}
	return p.Header.PCR27M, p.Header.HasPCR
}
