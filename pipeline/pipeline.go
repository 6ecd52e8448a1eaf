// Package pipeline wires the MPEG-TS demuxer, the ARIB statement decoder,
// and the ASS formatter into the single-threaded conversion pipeline
// described for cmd/aribass: demux drives synchronously, every callback
// runs to completion before the next TS packet is read, and all shared
// mutable state (the elapsed-time clock, the DRCS table, formatter state,
// output file handle) lives in one Pipeline value.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kaiseki-av/aribcc/arib"
	"github.com/kaiseki-av/aribcc/ariberr"
	"github.com/kaiseki-av/aribcc/assfmt"
	"github.com/kaiseki-av/aribcc/mpegts"
)

const pcrClockHz = 27_000_000

// Options configures a Pipeline's behavior; all fields have usable zero
// values except OutFile, which the caller must set.
type Options struct {
	// OutFile is the path the ASS output is written to.
	OutFile string
	// PID is the caption elementary stream PID to read, or -1 to
	// auto-detect from a PMT stream-identifier descriptor or, failing
	// that, the first PID carrying a parseable Data Group.
	PID int
	// TimeMax caps a Dialogue event's duration in seconds.
	TimeMax float64
	// TimeOffset is added to every computed elapsed time.
	TimeOffset float64
	// Log receives per-PES decode diagnostics at slog.Debug.
	Log *slog.Logger
}

// Pipeline owns the demuxer, decoder, DRCS table, and formatter for one
// conversion run.
type Pipeline struct {
	log *slog.Logger

	demuxer   *mpegts.Demuxer
	decoder   *arib.Decoder
	formatter *assfmt.Formatter

	pid          int // -1 until locked onto a PID
	pidExplicit  bool
	timeOffset   float64

	pcrStart    int64
	pcrStartSet bool
	elapsedS    float64

	drcs arib.DRCSTable

	tokensSeen int
}

// New constructs a Pipeline reading TS data from r.
func New(ctx context.Context, r io.Reader, opts Options) *Pipeline {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	tmax := opts.TimeMax
	if tmax <= 0 {
		tmax = 5
	}

	p := &Pipeline{
		log:         log,
		demuxer:     mpegts.NewDemuxer(ctx, r),
		decoder:     arib.NewDecoder(),
		formatter:   assfmt.NewFormatter(opts.OutFile, tmax),
		pid:         opts.PID,
		pidExplicit: opts.PID >= 0,
		timeOffset:  opts.TimeOffset,
		drcs:        make(arib.DRCSTable),
	}
	p.decoder.SetDRCSTable(p.drcs)
	return p
}

// DialoguesWritten returns the number of ASS Dialogue lines the formatter
// has emitted so far.
func (p *Pipeline) DialoguesWritten() int { return p.formatter.DialoguesWritten() }

// PID reports the caption elementary stream PID the pipeline locked onto,
// if any. A caller distinguishes "no ARIB subtitle content found" (ok ==
// false: no PID was ever discovered) from "no nonempty caption content
// found" (ok == true but DialoguesWritten() == 0), mirroring the
// reference implementation's two sequential checks.
func (p *Pipeline) PID() (int, bool) { return p.pid, p.pid >= 0 }

// Run drives the demuxer to completion, decoding caption statements on the
// chosen PID and feeding their tokens to the formatter. bytesTotal is
// passed through to onProgress (0 if unknown).
func (p *Pipeline) Run(ctx context.Context, bytesTotal int64, onProgress mpegts.ProgressFunc) error {
	err := p.demuxer.Run(ctx, bytesTotal, onProgress, p.onTSPacket, p.onESPacket)
	if err != nil {
		return err
	}
	return p.formatter.Close()
}

func (p *Pipeline) onTSPacket(raw []byte) {
	pcr, ok := mpegts.ExtractPCR(raw)
	if !ok {
		return
	}
	if !p.pcrStartSet {
		p.pcrStart = pcr
		p.pcrStartSet = true
	}
	p.elapsedS = float64(pcr-p.pcrStart)/pcrClockHz + p.timeOffset
}

func (p *Pipeline) onESPacket(pid uint16, payload []byte, headerSize int) error {
	if p.pidExplicit && int(pid) != p.pid {
		return nil
	}
	if !p.pidExplicit && p.pid < 0 {
		if cp, ok := p.demuxer.CaptionPID(); ok {
			p.pid = int(cp)
		}
	}
	if p.pid >= 0 && int(pid) != p.pid {
		return nil
	}
	if headerSize > len(payload) {
		return nil
	}

	dg, err := arib.ParseDataGroup(payload[headerSize:])
	if err != nil {
		p.logDecodeIssue("data group", err)
		return nil
	}

	if p.pid < 0 {
		p.pid = int(pid)
	}

	// A malformed Data Unit loop means the whole PES is untrustworthy: the
	// caption management/statement parsers return whatever units they
	// managed to read before the error alongside it, but a partial unit
	// list is not processed — the entire PES is logged and dropped, per
	// §7 ("the offending PES is dropped, processing continues"), matching
	// the reference implementation's eager-parse-then-format architecture
	// (the full _data_units list is built before any formatting begins).
	var units []arib.DataUnit
	if dg.IsManagement() {
		cm, err := arib.ParseCaptionManagement(dg.Payload)
		if err != nil {
			p.logDecodeIssue("caption management", err)
			return nil
		}
		units = cm.Units
	} else {
		cs, err := arib.ParseCaptionStatement(dg.Payload)
		if err != nil {
			p.logDecodeIssue("caption statement", err)
			return nil
		}
		units = cs.Units
	}

	return p.processUnits(units)
}

// processUnits decodes every Data Unit in a PES's unit loop before handing
// any tokens to the formatter. If a StatementBody unit fails to decode, the
// whole PES is dropped — no tokens from any unit in this loop reach the
// formatter — rather than emitting a truncated prefix of the caption line.
func (p *Pipeline) processUnits(units []arib.DataUnit) error {
	var tokens []arib.CaptionToken
	for _, u := range units {
		switch u.Type {
		case arib.UnitTypeDRCS1Byte:
			p.registerDRCS(u.Payload)

		case arib.UnitTypeStatementBody:
			toks, err := p.decoder.Decode(u.Payload)
			if err != nil {
				p.logDecodeIssue("statement", err)
				return nil
			}
			tokens = append(tokens, toks...)
		}
	}
	for _, tok := range tokens {
		p.tokensSeen++
		if err := p.formatter.Handle(tok, p.elapsedS); err != nil {
			return fmt.Errorf("pipeline: formatting token: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) registerDRCS(payload []byte) {
	chars, err := arib.ParseDRCS1Byte(payload)
	if err != nil {
		p.logDecodeIssue("DRCS", err)
	}
	for _, ch := range chars {
		if len(ch.Fonts) == 0 {
			continue
		}
		// Only the first font-depth alternative is kept, see DRCSCharacter's
		// doc; broadcast DRCS is observed mapped into G0's two-byte slot.
		substitute := arib.LookupDRCSSubstitute(ch.Fonts[0].Hash)
		p.drcs[arib.NewDRCSKey(0, ch.CharacterCode)] = substitute
	}
}

func (p *Pipeline) logDecodeIssue(what string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, ariberr.ErrMalformedUnit) || errors.Is(err, ariberr.ErrDecodeError) || errors.Is(err, ariberr.ErrUnsupportedDRCS) {
		p.log.Debug("dropping malformed caption data", "what", what, "error", err)
		return
	}
	p.log.Debug("caption decode issue", "what", what, "error", err)
}
