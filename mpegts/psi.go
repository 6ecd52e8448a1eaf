package mpegts

import "fmt"

const (
	tableIDPAT = 0x00
	tableIDPMT = 0x02

	streamTypeARIBCaption = 0x06
	descriptorTagStreamID = 0x52
	componentTagCaption   = 0x87
)

// PATData is a parsed Program Association Table section.
type PATData struct {
	Programs []PATProgram
}

// PATProgram maps a program number to its PMT PID.
type PATProgram struct {
	ProgramNumber uint16
	ProgramMapPID uint16
}

// PMTData is a parsed Program Map Table section.
type PMTData struct {
	ElementaryStreams []PMTElementaryStream
}

// PMTElementaryStream describes one elementary stream entry in a PMT,
// including whether its stream-identifier descriptor (tag 0x52) marks it as
// an ARIB caption component (component_tag 0x87).
type PMTElementaryStream struct {
	ElementaryPID uint16
	StreamType    uint8
	IsCaption     bool
}

func isPSIPayload(pid uint16, pm *programMap) bool {
	return pid == pidPAT || pm.isPMTPID(pid)
}

func parsePSI(payload []byte, pid uint16, pm *programMap) ([]*Unit, error) {
	if len(payload) < 1 {
		return nil, fmt.Errorf("mpegts: PSI payload too short")
	}

	pointerField := int(payload[0])
	offset := 1 + pointerField
	if offset >= len(payload) {
		return nil, fmt.Errorf("mpegts: PSI pointer field out of range")
	}

	var results []*Unit

	for offset < len(payload) {
		tableID := payload[offset]
		if tableID == 0xFF {
			break
		}
		if offset+3 > len(payload) {
			break
		}
		if payload[offset+1]&0x80 == 0 {
			break
		}

		sectionLength := int(payload[offset+1]&0x0F)<<8 | int(payload[offset+2])
		sectionEnd := offset + 3 + sectionLength
		if sectionEnd > len(payload) {
			break
		}

		sectionData := payload[offset:sectionEnd]

		switch tableID {
		case tableIDPAT:
			pat, err := parsePATSection(sectionData)
			if err != nil {
				return results, err
			}
			results = append(results, &Unit{Kind: UnitPAT, PID: pid, PAT: pat})

		case tableIDPMT:
			pmt, err := parsePMTSection(sectionData)
			if err != nil {
				return results, err
			}
			results = append(results, &Unit{Kind: UnitPMT, PID: pid, PMT: pmt})
		}

		offset = sectionEnd
	}

	return results, nil
}

func parsePATSection(data []byte) (*PATData, error) {
	if err := verifyCRC32(data); err != nil {
		return nil, fmt.Errorf("mpegts: PAT %w", err)
	}
	if len(data) < 12 {
		return nil, fmt.Errorf("mpegts: PAT too short")
	}

	sectionLength := int(data[1]&0x0F)<<8 | int(data[2])
	entryStart := 8
	entryEnd := 3 + sectionLength - 4
	if entryEnd > len(data)-4 {
		entryEnd = len(data) - 4
	}

	pat := &PATData{}
	for i := entryStart; i+4 <= entryEnd; i += 4 {
		programNumber := uint16(data[i])<<8 | uint16(data[i+1])
		pmtPID := uint16(data[i+2]&0x1F)<<8 | uint16(data[i+3])
		if programNumber == 0 {
			continue // NIT PID
		}
		pat.Programs = append(pat.Programs, PATProgram{
			ProgramNumber: programNumber,
			ProgramMapPID: pmtPID,
		})
	}
	return pat, nil
}

func parsePMTSection(data []byte) (*PMTData, error) {
	if err := verifyCRC32(data); err != nil {
		return nil, fmt.Errorf("mpegts: PMT %w", err)
	}
	if len(data) < 16 {
		return nil, fmt.Errorf("mpegts: PMT too short")
	}

	sectionLength := int(data[1]&0x0F)<<8 | int(data[2])
	sectionEnd := 3 + sectionLength

	programInfoLength := int(data[10]&0x0F)<<8 | int(data[11])
	offset := 12 + programInfoLength

	pmt := &PMTData{}
	for offset+5 <= sectionEnd-4 {
		streamType := data[offset]
		elementaryPID := uint16(data[offset+1]&0x1F)<<8 | uint16(data[offset+2])
		esInfoLength := int(data[offset+3]&0x0F)<<8 | int(data[offset+4])

		descStart := offset + 5
		descEnd := descStart + esInfoLength
		if descEnd > len(data) {
			descEnd = len(data)
		}

		isCaption := streamType == streamTypeARIBCaption && hasCaptionDescriptor(data[descStart:descEnd])

		pmt.ElementaryStreams = append(pmt.ElementaryStreams, PMTElementaryStream{
			ElementaryPID: elementaryPID,
			StreamType:    streamType,
			IsCaption:     isCaption,
		})

		offset = descEnd
	}
	return pmt, nil
}

// hasCaptionDescriptor walks a descriptor loop looking for a
// stream_identifier_descriptor (tag 0x52) whose component_tag is 0x87, the
// conventional ARIB marker for a closed-caption component.
func hasCaptionDescriptor(descs []byte) bool {
	i := 0
	for i+2 <= len(descs) {
		tag := descs[i]
		length := int(descs[i+1])
		bodyStart := i + 2
		bodyEnd := bodyStart + length
		if bodyEnd > len(descs) {
			return false
		}
		if tag == descriptorTagStreamID && length >= 1 && descs[bodyStart] == componentTagCaption {
			return true
		}
		i = bodyEnd
	}
	return false
}
