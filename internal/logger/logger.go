// Package logger provides the process-wide logger for kimchi.
// Debug, Info, Skip and banner output is gated on verbose mode (--verbose or
// VERBOSE=true); warnings are always written because they describe work that
// was dropped.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

type level int

const (
	levelDebug level = iota
	levelInfo
	levelSkip
	levelWarn
)

var prefixes = [...]string{
	levelDebug: "[DEBUG] ",
	levelInfo:  "[INFO] ",
	levelSkip:  "[SKIP] ",
	levelWarn:  "[WARN] ",
}

var (
	mu      sync.Mutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.Lock()
	defer mu.Unlock()
	return verbose
}

// SetOutput redirects all log output. Defaults to os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// emit writes one line. The lock also keeps lines from concurrent
// ingestion workers from interleaving.
func emit(l level, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if l < levelWarn && !verbose {
		return
	}
	fmt.Fprintf(output, prefixes[l]+format+"\n", args...)
}

// Debug logs pipeline detail.
func Debug(format string, args ...any) {
	emit(levelDebug, format, args...)
}

// Info logs progress milestones.
func Info(format string, args ...any) {
	emit(levelInfo, format, args...)
}

// Warn logs dropped work: failed batches, unreadable files, bad prompts.
func Warn(format string, args ...any) {
	emit(levelWarn, format, args...)
}

// Skip records an input the loader or chunker passed over, with its reason.
func Skip(path, reason string) {
	emit(levelSkip, "%s: %s", path, reason)
}

// Section prints a section header.
func Section(name string) {
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Banner prints a section header followed by aligned name/value rows, e.g.
// the pipeline settings at startup. pairs alternates names and values; a
// trailing name without a value is dropped.
func Banner(title string, pairs ...string) {
	mu.Lock()
	defer mu.Unlock()
	if !verbose {
		return
	}
	width := 0
	for i := 0; i+1 < len(pairs); i += 2 {
		width = max(width, len(pairs[i]))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n=== %s ===\n", title)
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(&b, "  %-*s  %s\n", width+1, pairs[i]+":", pairs[i+1])
	}
	fmt.Fprint(output, b.String())
}
