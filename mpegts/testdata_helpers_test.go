package mpegts

import "strings"

// makePacket builds a single 188-byte TS packet. payload is placed starting
// immediately after the 4-byte header (no adaptation field).
func makePacket(pid uint16, cc uint8, pusi bool, payload []byte) []byte {
	pkt := make([]byte, packetSize)
	pkt[0] = syncByte
	pkt[1] = byte(pid >> 8 & 0x1F)
	if pusi {
		pkt[1] |= 0x40
	}
	pkt[2] = byte(pid)
	pkt[3] = 0x10 | (cc & 0x0F) // no adaptation field, has payload
	n := copy(pkt[4:], payload)
	for i := 4 + n; i < packetSize; i++ {
		pkt[i] = 0xFF
	}
	return pkt
}

// makePacketWithPCR builds a packet carrying only a PCR in its adaptation
// field (no payload), mirroring a TS's periodic PCR-only packets.
func makePacketWithPCR(pid uint16, cc uint8, pcr27M int64) []byte {
	pkt := make([]byte, packetSize)
	pkt[0] = syncByte
	pkt[1] = byte(pid >> 8 & 0x1F)
	pkt[2] = byte(pid)
	pkt[3] = 0x20 | (cc & 0x0F) // adaptation field only, no payload
	pkt[4] = 183                // adaptation field length (fills the packet)
	pkt[5] = 0x10                // PCR_flag set
	base := pcr27M / 300
	ext := pcr27M % 300
	pkt[6] = byte(base >> 25)
	pkt[7] = byte(base >> 17)
	pkt[8] = byte(base >> 9)
	pkt[9] = byte(base >> 1)
	pkt[10] = byte((base&1)<<7) | 0x7E | byte(ext>>8&0x01)
	pkt[11] = byte(ext)
	for i := 12; i < packetSize; i++ {
		pkt[i] = 0xFF
	}
	return pkt
}

func crcAppended(section []byte) []byte {
	withZeroCRC := append(append([]byte{}, section...), 0, 0, 0, 0)
	crc := computeCRC32(withZeroCRC[:len(withZeroCRC)-4])
	out := withZeroCRC[:len(withZeroCRC)-4]
	return append(out, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
}

func buildPATSection(tsID uint16, programs []PATProgram) []byte {
	body := []byte{
		byte(tsID >> 8), byte(tsID),
		0xC1, // reserved(2)=11, version=0, current_next=1
		0x00, // section_number
		0x00, // last_section_number
	}
	for _, p := range programs {
		body = append(body, byte(p.ProgramNumber>>8), byte(p.ProgramNumber),
			byte(0xE0|p.ProgramMapPID>>8&0x1F), byte(p.ProgramMapPID))
	}
	sectionLength := len(body) + 4 // + CRC
	section := []byte{tableIDPAT, byte(0x80 | sectionLength>>8&0x0F), byte(sectionLength)}
	section = append(section, body...)
	return crcAppended(section)
}

func buildPMTSection(programNumber, pcrPID uint16, streams []PMTElementaryStream) []byte {
	body := []byte{
		byte(programNumber >> 8), byte(programNumber),
		0xC1,
		0x00,
		0x00,
		byte(0xE0 | pcrPID>>8&0x1F), byte(pcrPID),
		0xF0, 0x00, // program_info_length = 0
	}
	for _, es := range streams {
		var descs []byte
		if es.IsCaption {
			descs = []byte{descriptorTagStreamID, 0x01, componentTagCaption}
		}
		body = append(body, es.StreamType,
			byte(0xE0|es.ElementaryPID>>8&0x1F), byte(es.ElementaryPID),
			byte(0xF0|len(descs)>>8&0x0F), byte(len(descs)))
		body = append(body, descs...)
	}
	sectionLength := len(body) + 4
	section := []byte{tableIDPMT, byte(0x80 | sectionLength>>8&0x0F), byte(sectionLength)}
	section = append(section, body...)
	return crcAppended(section)
}

func withPointerField(section []byte) []byte {
	return append([]byte{0x00}, section...)
}

func buildPESPayload(streamID byte, body []byte) []byte {
	payload := []byte{0x00, 0x00, 0x01, streamID}
	// PES_packet_length (set to 0, unbounded, as many real streams do).
	payload = append(payload, 0x00, 0x00)
	// Optional header: marker bits, flags, PES_header_data_length=0.
	payload = append(payload, 0x80, 0x00, 0x00)
	payload = append(payload, body...)
	return payload
}

// stuffedESPayload is the ES payload the demuxer reports for body sent as a
// single makePacket(buildPESPayload(...)) packet: with PES_packet_length 0
// the payload runs to the end of the TS packet, so body is followed by the
// 0xFF fill makePacket writes after the 4-byte TS header and 9-byte PES
// header.
func stuffedESPayload(body string) string {
	return body + strings.Repeat("\xff", packetSize-4-9-len(body))
}
