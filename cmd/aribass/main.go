// Command aribass converts an ARIB STD-B24 closed-caption track carried in
// an MPEG-2 transport stream into an ASS subtitle file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kaiseki-av/aribcc/pipeline"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("aribass", flag.ContinueOnError)
	outFlag := fs.String("o", "", "output .ass path (default <infile>.ass)")
	fs.StringVar(outFlag, "outfile", "", "output .ass path (default <infile>.ass)")
	pidFlag := fs.Int("p", -1, "caption elementary stream PID (default: auto-detect)")
	fs.IntVar(pidFlag, "pid", -1, "caption elementary stream PID (default: auto-detect)")
	verboseFlag := fs.Bool("v", false, "verbose: progress line and debug logging")
	fs.BoolVar(verboseFlag, "verbose", false, "verbose: progress line and debug logging")
	quietFlag := fs.Bool("q", false, "quiet: suppress stdout diagnostics")
	fs.BoolVar(quietFlag, "quiet", false, "quiet: suppress stdout diagnostics")
	tmaxFlag := fs.Int("t", 5, "maximum Dialogue duration in seconds")
	fs.IntVar(tmaxFlag, "tmax", 5, "maximum Dialogue duration in seconds")
	offsetFlag := fs.Float64("m", 0.0, "time offset in seconds added to every timestamp")
	fs.Float64Var(offsetFlag, "timeoffset", 0.0, "time offset in seconds added to every timestamp")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: aribass [flags] <infile>\n\n")
		fmt.Fprintf(os.Stderr, "Converts an ARIB STD-B24 closed-caption track to an ASS subtitle file.\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 1
	}
	inFile := fs.Arg(0)

	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}
	if lv := os.Getenv("ARIBASS_LOG_LEVEL"); lv != "" {
		if parsed, err := parseLogLevel(lv); err == nil {
			level = parsed
		}
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	outFile := *outFlag
	if outFile == "" {
		outFile = inFile + ".ass"
	}

	in, err := os.Open(inFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "*** No ARIB subtitle content was found in file %s ***\n", inFile)
		logger.Debug("opening input file", "error", err)
		return 1
	}
	defer in.Close()

	info, err := in.Stat()
	var totalSize int64
	if err == nil {
		totalSize = info.Size()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	p := pipeline.New(ctx, in, pipeline.Options{
		OutFile:    outFile,
		PID:        *pidFlag,
		TimeMax:    float64(*tmaxFlag),
		TimeOffset: *offsetFlag,
		Log:        logger,
	})

	var progress func(read, total int64)
	if *verboseFlag {
		progress = func(read, total int64) {
			renderProgress(read, total)
		}
	}

	if err := p.Run(ctx, totalSize, progress); err != nil {
		fmt.Fprintf(os.Stderr, "*** No ARIB subtitle content was found in file %s ***\n", inFile)
		logger.Error("pipeline failed", "error", err)
		return 1
	}
	if *verboseFlag {
		fmt.Fprintln(os.Stderr)
	}

	if _, found := p.PID(); !found {
		fmt.Fprintf(os.Stderr, "*** No ARIB subtitle content was found in file %s ***\n", inFile)
		return 1
	}
	if p.DialoguesWritten() == 0 {
		fmt.Fprintf(os.Stderr, "*** No nonempty ARIB closed caption content found in file %s ***\n", inFile)
		return 1
	}

	if !*quietFlag {
		fmt.Fprintf(os.Stdout, "wrote %d caption line(s) to %s\n", p.DialoguesWritten(), outFile)
	}
	return 0
}

func renderProgress(read, total int64) {
	if total <= 0 {
		fmt.Fprintf(os.Stderr, "\rprocessed %d bytes", read)
		return
	}
	pct := float64(read) / float64(total) * 100
	fmt.Fprintf(os.Stderr, "\r%5.1f%%", pct)
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unrecognized log level %q", s)
	}
}
