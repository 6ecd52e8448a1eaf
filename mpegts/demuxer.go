package mpegts

import (
	"context"
	"errors"
	"io"
)

// UnitKind identifies which field of a Unit is populated.
type UnitKind int

const (
	UnitPES UnitKind = iota
	UnitPAT
	UnitPMT
)

// Unit is one item produced by the demuxer's pull loop. Exactly one of PES,
// PAT, or PMT is non-nil, selected by Kind.
type Unit struct {
	Kind UnitKind
	PID  uint16
	PES  *PESUnit
	PAT  *PATData
	PMT  *PMTData
}

// Demuxer reads MPEG-TS packets from a reader and produces Units containing
// parsed PAT, PMT, and PES payloads. It is a pull model: the caller drives
// it by calling NextUnit (or Run, which wraps the loop with callbacks) until
// io.EOF.
type Demuxer struct {
	ctx            context.Context
	reader         io.Reader
	readBuf        []byte
	pool           *packetPool
	programMap     *programMap
	dataBuffer     []*Unit
	pktSize        int
	eof            bool
	eofData        []*Unit
	bytesRead      int64
	captionPID     uint16
	captionPIDSeen bool
}

// NewDemuxer creates a new MPEG-TS demuxer reading from r.
func NewDemuxer(ctx context.Context, r io.Reader, opts ...func(*Demuxer)) *Demuxer {
	pm := newProgramMap()
	d := &Demuxer{
		ctx:        ctx,
		reader:     r,
		pktSize:    packetSize,
		programMap: pm,
		pool:       newPacketPool(pm),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.readBuf = make([]byte, d.pktSize)
	return d
}

// DemuxerOptPacketSize sets the TS packet size (default 188).
func DemuxerOptPacketSize(size int) func(*Demuxer) {
	return func(d *Demuxer) { d.pktSize = size }
}

// CaptionPID returns the PID discovered via a PMT stream-identifier
// descriptor (tag 0x52, component_tag 0x87), if any PMT seen so far carried
// one. This is the optional fast path described in the TS demuxer's PAT/PMT
// discovery: a caller doing PID auto-detection can prefer this over
// scanning every PID's Management Data.
func (d *Demuxer) CaptionPID() (uint16, bool) {
	return d.captionPID, d.captionPIDSeen
}

// BytesRead returns the number of input bytes consumed so far.
func (d *Demuxer) BytesRead() int64 {
	return d.bytesRead
}

// NextUnit returns the next parsed unit from the stream. Returns io.EOF
// when all data has been consumed.
func (d *Demuxer) NextUnit() (*Unit, error) {
	for {
		if len(d.dataBuffer) > 0 {
			u := d.dataBuffer[0]
			d.dataBuffer = d.dataBuffer[1:]
			return u, nil
		}

		if d.eof {
			if len(d.eofData) > 0 {
				u := d.eofData[0]
				d.eofData = d.eofData[1:]
				return u, nil
			}
			return nil, io.EOF
		}

		if d.ctx.Err() != nil {
			return nil, d.ctx.Err()
		}

		n, err := io.ReadFull(d.reader, d.readBuf)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				d.bytesRead += int64(n)
				d.eof = true
				d.drainPool()
				continue
			}
			return nil, err
		}
		d.bytesRead += int64(n)

		pkt, err := parsePacket(d.readBuf)
		if err != nil {
			continue // resync: skip this packet and read the next
		}

		flushed := d.pool.add(pkt)
		if flushed == nil {
			continue
		}

		results, err := d.processPackets(flushed)
		if err != nil {
			continue // drop corrupt section/PES, keep demuxing
		}
		d.learnCaptionPID(results)
		if len(results) == 0 {
			continue
		}

		d.dataBuffer = results[1:]
		return results[0], nil
	}
}

func (d *Demuxer) drainPool() {
	for _, packets := range d.pool.dump() {
		results, err := d.processPackets(packets)
		if err != nil {
			continue
		}
		d.learnCaptionPID(results)
		d.eofData = append(d.eofData, results...)
	}
}

func (d *Demuxer) learnCaptionPID(units []*Unit) {
	for _, u := range units {
		if u.PAT != nil {
			for _, p := range u.PAT.Programs {
				d.programMap.addPMTPID(p.ProgramMapPID)
			}
		}
		if u.PMT != nil && !d.captionPIDSeen {
			for _, es := range u.PMT.ElementaryStreams {
				if es.IsCaption {
					d.captionPID = es.ElementaryPID
					d.captionPIDSeen = true
					break
				}
			}
		}
	}
}

func (d *Demuxer) processPackets(packets []*Packet) ([]*Unit, error) {
	if len(packets) == 0 {
		return nil, nil
	}

	pid := packets[0].Header.PID

	var payload []byte
	for _, p := range packets {
		payload = append(payload, p.Payload...)
	}
	if len(payload) == 0 {
		return nil, nil
	}

	if isPSIPayload(pid, d.programMap) {
		return parsePSI(payload, pid, d.programMap)
	}

	if isPESPayload(payload) {
		pes, err := parsePESUnit(payload)
		if err != nil {
			return nil, err
		}
		return []*Unit{{Kind: UnitPES, PID: pid, PES: pes}}, nil
	}

	return nil, nil
}

// ProgressFunc reports demux progress in bytes read of bytesTotal (0 if the
// total size is unknown).
type ProgressFunc func(bytesRead, bytesTotal int64)

// TSPacketFunc is invoked with each raw 188-byte TS packet before it is
// parsed, so a caller can extract PCR (see ExtractPCR) or otherwise inspect
// the raw stream.
type TSPacketFunc func(raw []byte)

// ESPacketFunc is invoked once per reassembled elementary-stream payload for
// a PID, with the byte offset at which the ES payload begins within
// payload (9 + PES_header_data_length for streams carrying a PES header).
type ESPacketFunc func(pid uint16, payload []byte, headerSize int) error

// Run drives the demuxer to completion, invoking onProgress after every TS
// packet, onTSPacket with each packet's raw bytes before parsing, and
// onESPacket for every reassembled PES payload. Any callback may be nil.
// bytesTotal is passed through to onProgress unchanged; pass 0 if unknown.
func (d *Demuxer) Run(ctx context.Context, bytesTotal int64, onProgress ProgressFunc, onTSPacket TSPacketFunc, onESPacket ESPacketFunc) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		n, err := io.ReadFull(d.reader, d.readBuf)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				d.bytesRead += int64(n)
				break
			}
			return err
		}
		d.bytesRead += int64(n)

		raw := make([]byte, len(d.readBuf))
		copy(raw, d.readBuf)

		if onTSPacket != nil {
			onTSPacket(raw)
		}
		if onProgress != nil {
			onProgress(d.bytesRead, bytesTotal)
		}

		pkt, err := parsePacket(raw)
		if err != nil {
			continue
		}

		flushed := d.pool.add(pkt)
		if flushed == nil {
			continue
		}
		if err := d.emit(flushed, onESPacket); err != nil {
			return err
		}
	}

	for _, packets := range d.pool.dump() {
		if err := d.emit(packets, onESPacket); err != nil {
			return err
		}
	}
	return nil
}

func (d *Demuxer) emit(packets []*Packet, onESPacket ESPacketFunc) error {
	units, err := d.processPackets(packets)
	if err != nil {
		return nil // drop corrupt section/PES, keep demuxing
	}
	d.learnCaptionPID(units)
	if onESPacket == nil {
		return nil
	}
	for _, u := range units {
		if u.Kind == UnitPES && u.PES != nil {
			if err := onESPacket(u.PID, u.PES.Payload, u.PES.HeaderSize); err != nil {
				return err
			}
		}
	}
	return nil
}
