// Package ariberr defines the error kinds produced while demuxing and
// decoding an ARIB caption stream, so callers can tell a fatal condition
// (bad input, can't open output) from a recoverable one (one malformed PES,
// dropped and logged) via errors.Is/errors.As.
package ariberr

import "errors"

// Sentinel errors identifying the recoverable decode-time error kinds. Wrap
// these with fmt.Errorf("...: %w", ErrX) so errors.Is still matches.
var (
	// ErrMalformedPacket marks a TS packet that failed structural
	// validation (bad sync byte, truncated adaptation field).
	ErrMalformedPacket = errors.New("ariberr: malformed TS packet")

	// ErrMalformedUnit marks a Data Unit whose unit_separator byte was
	// not 0x1F, or whose declared size ran past the available bytes.
	ErrMalformedUnit = errors.New("ariberr: malformed data unit")

	// ErrDecodeError marks a statement byte stream that hit an
	// unrecoverable condition mid-decode (e.g. a truncated control or
	// escape sequence, or the unsupported MACRO control).
	ErrDecodeError = errors.New("ariberr: caption decode error")

	// ErrUnsupportedDRCS marks a DRCS font record whose mode byte isn't
	// 0 or 1 (uncompressed bitmap depths this implementation handles).
	ErrUnsupportedDRCS = errors.New("ariberr: unsupported DRCS font mode")
)

// FileOpenError wraps a failure to create the output ASS file, keeping the
// path around for the user-facing message.
type FileOpenError struct {
	Path string
	Err  error
}

func (e *FileOpenError) Error() string {
	return "ariberr: cannot open output file " + e.Path + ": " + e.Err.Error()
}

func (e *FileOpenError) Unwrap() error { return e.Err }
