// Package runtime locates a usable Python interpreter on the host and
// validates it against the minimum version the worker tools require.
package runtime

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	goruntime "runtime"
	"strings"
	"time"

	"github.com/hashicorp/go-version"

	"aetherd/pkg/logging"
)

// For mocking in tests
var (
	execCommandContext = exec.CommandContext
	lookPath           = exec.LookPath
)

// DefaultProbeTimeout bounds a single candidate probe.
const DefaultProbeTimeout = 10 * time.Second

var versionPattern = regexp.MustCompile(`Python (\d+\.\d+(?:\.\d+)?)`)

// Runtime describes the detected host interpreter.
type Runtime struct {
	// Command is the invocation that worked, e.g. ["python3"] or ["py", "-3"].
	Command []string
	// Path is the absolute interpreter path when it could be resolved,
	// otherwise the bare command name.
	Path string
	// Version is the parsed interpreter version, e.g. "3.11.4".
	Version string
}

// NotFoundError is returned when no candidate satisfies the minimum version.
// This is the only fatal, boot-aborting failure in the system.
type NotFoundError struct {
	MinVersion string
	Tried      []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no Python >= %s found (tried: %s)", e.MinVersion, strings.Join(e.Tried, ", "))
}

// Detector probes an ordered list of interpreter invocations; the first one
// meeting the minimum version wins.
type Detector struct {
	minVersion   *version.Version
	candidates   [][]string
	probeTimeout time.Duration
}

// NewDetector creates a detector enforcing the given minimum version
// (e.g. "3.9").
func NewDetector(minVersion string) (*Detector, error) {
	min, err := version.NewVersion(minVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid minimum runtime version %q: %w", minVersion, err)
	}
	return &Detector{
		minVersion:   min,
		candidates:   defaultCandidates(),
		probeTimeout: DefaultProbeTimeout,
	}, nil
}

func defaultCandidates() [][]string {
	candidates := [][]string{{"python3"}, {"python"}}
	if goruntime.GOOS == "windows" {
		// The py launcher is the reliable entry point on Windows hosts
		candidates = append([][]string{{"py", "-3"}}, candidates...)
	}
	return candidates
}

// Detect runs the candidate probes in order and returns the first acceptable
// runtime, with its command resolved to an absolute path where possible.
func (d *Detector) Detect(ctx context.Context) (Runtime, error) {
	tried := make([]string, 0, len(d.candidates))

	for _, candidate := range d.candidates {
		tried = append(tried, strings.Join(candidate, " "))

		ver, err := d.probe(ctx, candidate)
		if err != nil {
			logging.Debug("RuntimeDetector", "Candidate %v failed: %v", candidate, err)
			continue
		}

		parsed, err := version.NewVersion(ver)
		if err != nil || parsed.LessThan(d.minVersion) {
			logging.Debug("RuntimeDetector", "Candidate %v version %s below minimum %s", candidate, ver, d.minVersion)
			continue
		}

		rt := Runtime{Command: candidate, Path: candidate[0], Version: ver}
		if abs, err := lookPath(candidate[0]); err == nil {
			rt.Path = abs
		}

		logging.Info("RuntimeDetector", "Using %s (Python %s)", rt.Path, rt.Version)
		return rt, nil
	}

	return Runtime{}, &NotFoundError{MinVersion: d.minVersion.String(), Tried: tried}
}

// probe runs `<candidate> --version` under the probe timeout and parses the
// reported version.
func (d *Detector) probe(ctx context.Context, candidate []string) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, d.probeTimeout)
	defer cancel()

	args := append(append([]string{}, candidate[1:]...), "--version")
	cmd := execCommandContext(probeCtx, candidate[0], args...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("probe %s: %w", candidate[0], err)
	}

	match := versionPattern.FindStringSubmatch(string(out))
	if match == nil {
		return "", fmt.Errorf("probe %s: unrecognized version output %q", candidate[0], strings.TrimSpace(string(out)))
	}
	return match[1], nil
}

// InterpreterPath returns the interpreter inside a virtualenv directory for
// the current platform.
func InterpreterPath(envDir string) string {
	if goruntime.GOOS == "windows" {
		return filepath.Join(envDir, "Scripts", "python.exe")
	}
	return filepath.Join(envDir, "bin", "python")
}
