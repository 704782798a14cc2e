// Package doctor provides environment preflight checks for narrator.
package doctor

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/example/go-narrator/internal/config"
	"github.com/example/go-narrator/internal/onnx"
	"github.com/example/go-narrator/internal/playback"
	"github.com/example/go-narrator/internal/tokenizer"
	"github.com/example/go-narrator/internal/voice"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// Runtime locates the ONNX Runtime library.
	Runtime func() (onnx.RuntimeInfo, error)
	// APIVersion is the ORT C API version the runner will request.
	APIVersion int
	// ModelPath is the acoustic model file to verify on disk.
	ModelPath string
	// Vocabulary loads the tokenizer resource and returns its size.
	Vocabulary func() (int, error)
	// VoiceFiles are the voice profile paths to verify.
	VoiceFiles []string
	// VoiceErr reports a voice ID that did not resolve to a profile.
	VoiceErr error
	// Devices enumerates playback devices. Nil skips the check.
	Devices func() ([]playback.Device, error)
}

// FromConfig builds the checks for cfg against the real runtime, tokenizer,
// voice and audio backends.
func FromConfig(cfg config.Config) Config {
	dc := Config{
		Runtime:    func() (onnx.RuntimeInfo, error) { return onnx.DetectRuntime(cfg.Runtime) },
		APIVersion: cfg.Runtime.ORTAPIVersion,
		ModelPath:  cfg.Paths.ModelPath,
		Vocabulary: func() (int, error) {
			v, err := tokenizer.LoadVocabulary(cfg.Paths.VocabPath)
			if err != nil {
				return 0, err
			}
			return v.Len(), nil
		},
	}

	if p, err := voice.Resolve(cfg.Paths.VoicesManifest, cfg.Paths.Voice, cfg.Paths.VoicePath); err != nil {
		dc.VoiceErr = err
	} else {
		dc.VoiceFiles = []string{p}
	}

	if sink, err := config.NormalizeSink(cfg.TTS.Sink); err == nil && sink == config.SinkMalgo {
		dc.Devices = playback.ListDevices
	}

	return dc
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- onnx runtime -----------------------------------------------------
	if cfg.Runtime != nil {
		info, err := cfg.Runtime()
		switch {
		case err != nil:
			res.fail(fmt.Sprintf("onnx runtime: %v", err))
			fmt.Fprintf(w, "%s onnx runtime: not found (%v)\n", FailMark, err)
		default:
			if verErr := checkRuntimeVersion(info.Version, cfg.APIVersion); verErr != nil {
				res.fail(fmt.Sprintf("onnx runtime version: %v", verErr))
				fmt.Fprintf(w, "%s onnx runtime %s: %v\n", FailMark, info.Version, verErr)
			} else {
				fmt.Fprintf(w, "%s onnx runtime: %s (%s)\n", PassMark, info.LibraryPath, info.Version)
			}
		}
	}

	// ---- model ------------------------------------------------------------
	if cfg.ModelPath != "" {
		checkFile(&res, w, "model", cfg.ModelPath)
	}

	// ---- vocabulary -------------------------------------------------------
	if cfg.Vocabulary != nil {
		n, err := cfg.Vocabulary()
		if err != nil {
			res.fail(fmt.Sprintf("vocabulary: %v", err))
			fmt.Fprintf(w, "%s vocabulary: %v\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s vocabulary: %d entries\n", PassMark, n)
		}
	}

	// ---- voice profiles ---------------------------------------------------
	if cfg.VoiceErr != nil {
		res.fail(fmt.Sprintf("voice: %v", cfg.VoiceErr))
		fmt.Fprintf(w, "%s voice: %v\n", FailMark, cfg.VoiceErr)
	}
	for _, path := range cfg.VoiceFiles {
		if _, err := voice.LoadStyle(path); err != nil {
			res.fail(fmt.Sprintf("voice profile %q: %v", path, err))
			fmt.Fprintf(w, "%s voice profile %s: %v\n", FailMark, path, err)
		} else {
			fmt.Fprintf(w, "%s voice profile: %s\n", PassMark, path)
		}
	}

	// ---- playback devices -------------------------------------------------
	if cfg.Devices != nil {
		devices, err := cfg.Devices()
		switch {
		case err != nil:
			res.fail(fmt.Sprintf("playback devices: %v", err))
			fmt.Fprintf(w, "%s playback devices: %v\n", FailMark, err)
		case len(devices) == 0:
			res.fail("playback devices: none found")
			fmt.Fprintf(w, "%s playback devices: none found\n", FailMark)
		default:
			fmt.Fprintf(w, "%s playback devices: %d (default: %s)\n", PassMark, len(devices), defaultDevice(devices))
		}
	}

	return res
}

func checkFile(res *Result, w io.Writer, label, path string) {
	info, err := os.Stat(path)
	switch {
	case err != nil:
		res.fail(fmt.Sprintf("%s %q: %v", label, path, err))
		fmt.Fprintf(w, "%s %s %s: not found\n", FailMark, label, path)
	case info.IsDir():
		res.fail(fmt.Sprintf("%s %q: is a directory", label, path))
		fmt.Fprintf(w, "%s %s %s: is a directory\n", FailMark, label, path)
	default:
		fmt.Fprintf(w, "%s %s: %s\n", PassMark, label, path)
	}
}

func defaultDevice(devices []playback.Device) string {
	for _, d := range devices {
		if d.IsDefault {
			return d.Name
		}
	}
	return "none"
}

// checkRuntimeVersion returns an error if ver is too old to serve C API
// version api. ORT 1.N ships C API version N. Unknown versions pass.
func checkRuntimeVersion(ver string, api int) error {
	if ver == "" || ver == "unknown" || api <= 0 {
		return nil
	}

	major, minor, err := parseMajorMinor(ver)
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", ver, err)
	}
	if major != 1 {
		return fmt.Errorf("requires ONNX Runtime 1.x, got %d", major)
	}
	if minor < api {
		return fmt.Errorf("C API version %d requires ONNX Runtime >=1.%d, got 1.%d", api, api, minor)
	}
	return nil
}

func parseMajorMinor(ver string) (major, minor int, err error) {
	parts := strings.SplitN(ver, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("unexpected version format %q", ver)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad major in %q: %w", ver, err)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad minor in %q: %w", ver, err)
	}
	return major, minor, nil
}
