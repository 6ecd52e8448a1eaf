package mpegts

import "fmt"

// streamIDsWithoutOptionalHeader lists PES stream_ids that carry no optional
// header (PES_header_data_length byte), per ISO/IEC 13818-1 Table 2-21.
var streamIDsWithoutOptionalHeader = map[byte]bool{
	0xBC: true, // program_stream_map
	0xBE: true, // padding_stream
	0xBF: true, // private_stream_2
	0xF0: true, // ECM
	0xF1: true, // EMM
	0xF2: true, // DSMCC_stream
	0xF8: true, // ITU-T Rec. H.222.1 type E
	0xFF: true, // program_stream_directory
}

func isPESPayload(payload []byte) bool {
	return len(payload) >= 4 && payload[0] == 0x00 && payload[1] == 0x00 && payload[2] == 0x01
}

// PESUnit is a reassembled Packetized Elementary Stream packet. Payload holds
// the whole packet, start code and header included, up to the end of its
// last TS packet; PES_packet_length is not used to trim it. HeaderSize is
// the byte offset of the ES payload within Payload (9 plus the
// PES_header_data_length byte at offset 8 for streams carrying one).
type PESUnit struct {
	StreamID   byte
	HeaderSize int
	Payload    []byte
}

func parsePESUnit(payload []byte) (*PESUnit, error) {
	if !isPESPayload(payload) {
		return nil, fmt.Errorf("mpegts: not a PES start code")
	}
	if len(payload) < 6 {
		return nil, fmt.Errorf("mpegts: PES payload too short")
	}

	streamID := payload[3]

	if streamIDsWithoutOptionalHeader[streamID] {
		return &PESUnit{StreamID: streamID, HeaderSize: 6, Payload: payload}, nil
	}

	if len(payload) < 9 {
		return nil, fmt.Errorf("mpegts: PES payload too short for optional header")
	}

	headerSize := 9 + int(payload[8])
	if headerSize > len(payload) {
		return nil, fmt.Errorf("mpegts: PES header size %d exceeds payload %d", headerSize, len(payload))
	}

	return &PESUnit{StreamID: streamID, HeaderSize: headerSize, Payload: payload}, nil
}
