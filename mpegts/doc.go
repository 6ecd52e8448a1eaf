// Package mpegts demultiplexes an MPEG-2 Transport Stream into elementary
// stream payloads. It reassembles PES packets from 188-byte TS packets on a
// per-PID basis, optionally tracks PAT/PMT sections to discover a candidate
// caption PID, and exposes PCR extraction so callers can derive an elapsed
// presentation clock without the demuxer itself owning any clock state.
package mpegts
