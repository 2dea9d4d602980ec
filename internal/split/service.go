package split

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ytget/yt-downloader-bot/internal/model"
	"github.com/ytget/yt-downloader-bot/internal/platform"
)

// FFmpeg constants for stream-copy splitting
const (
	// Executable and I/O constants
	FFmpegCommand       = "ffmpeg"
	FFprobeCommand      = "ffprobe"
	FFprobeLogLevel     = "error"
	FFprobeShowEntries  = "format=start_time,duration"
	FFprobeOutputFormat = "default=noprint_wrappers=1"

	// Copy every stream without re-encoding
	CopyCodec = "copy"
	MapAll    = "0"

	// Output naming
	PartsDirPrefix = "parts-"
	PartNameFormat = "part%03d"
)

// Splitting limits
const (
	// DefaultHeadroomPercent leaves room for container overhead that -fs
	// does not account for
	DefaultHeadroomPercent = 90
	// DurationEpsilon is the tail, in seconds, treated as already covered.
	// It is below one frame at any common frame rate.
	DurationEpsilon = 0.01
	// MaxParts guards against a tool that never advances
	MaxParts = 999
)

// Options configures the splitting service
type Options struct {
	FFmpeg          string
	FFprobe         string
	HeadroomPercent int
	Runner          CommandRunner
	Logger          *slog.Logger
}

// Service splits files by invoking ffmpeg and ffprobe
type Service struct {
	ffmpeg   string
	ffprobe  string
	headroom int
	runner   CommandRunner
	logger   *slog.Logger
}

// NewService creates a new splitting service
func NewService(opts Options) *Service {
	s := &Service{
		ffmpeg:   opts.FFmpeg,
		ffprobe:  opts.FFprobe,
		headroom: opts.HeadroomPercent,
		runner:   opts.Runner,
		logger:   opts.Logger,
	}
	if s.ffmpeg == "" {
		s.ffmpeg = FFmpegCommand
	}
	if s.ffprobe == "" {
		s.ffprobe = FFprobeCommand
	}
	if s.headroom <= 0 || s.headroom > 100 {
		s.headroom = DefaultHeadroomPercent
	}
	if s.runner == nil {
		s.runner = execRunner{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Split cuts path into parts of at most maxBytes each, in content order. A
// file that already fits is returned as its only part. On any failure the
// parts written so far are removed and an error wrapping
// model.ErrSplitFailure is returned.
func (s *Service) Split(ctx context.Context, path string, maxBytes int64) ([]string, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("%w: invalid part size %d", model.ErrSplitFailure, maxBytes)
	}

	size, err := platform.FileSize(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrSplitFailure, err)
	}
	if size <= maxBytes {
		return []string{path}, nil
	}

	_, total, err := s.probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrSplitFailure, err)
	}

	partsDir := generatePartsDir(path)
	if err := os.MkdirAll(partsDir, platform.DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrSplitFailure, err)
	}

	parts, err := s.splitInto(ctx, path, partsDir, total, maxBytes)
	if err != nil {
		os.RemoveAll(partsDir)
		return nil, fmt.Errorf("%w: %v", model.ErrSplitFailure, err)
	}

	s.logger.Info("split_done", "input", path, "size", size, "parts", len(parts))
	return parts, nil
}

// splitInto writes parts into dir until the whole input duration is covered.
// A stream-copy cut starts at the keyframe at or before the requested offset,
// so each part may repeat a little of the previous one. The next cut starts
// where the part really ends, never past it.
func (s *Service) splitInto(ctx context.Context, input, dir string, total float64, maxBytes int64) ([]string, error) {
	limit := maxBytes * int64(s.headroom) / 100
	ext := filepath.Ext(input)

	var parts []string
	offset := 0.0
	for offset < total-DurationEpsilon {
		if len(parts) >= MaxParts {
			return nil, fmt.Errorf("too many parts for %s", input)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		output := filepath.Join(dir, fmt.Sprintf(PartNameFormat, len(parts))+ext)
		args := s.BuildSegmentArgs(input, output, offset, limit)
		if _, err := s.runner.Run(ctx, s.ffmpeg, args...); err != nil {
			return nil, fmt.Errorf("failed to cut part %d: %w", len(parts), err)
		}

		partSize, err := platform.FileSize(output)
		if err != nil {
			return nil, fmt.Errorf("part %d missing: %w", len(parts), err)
		}
		if partSize == 0 {
			return nil, fmt.Errorf("part %d is empty", len(parts))
		}
		if partSize > maxBytes {
			return nil, fmt.Errorf("part %d is %d bytes, over the %d limit", len(parts), partSize, maxBytes)
		}

		// Timestamps are relative to the seek point: lead-in frames before
		// it have a negative start_time.
		start, duration, err := s.probe(ctx, output)
		if err != nil {
			return nil, fmt.Errorf("failed to probe part %d: %w", len(parts), err)
		}
		end := offset + start + duration
		if end <= offset {
			return nil, fmt.Errorf("part %d did not advance", len(parts))
		}

		parts = append(parts, output)
		offset = end
	}

	if len(parts) == 0 {
		return nil, fmt.Errorf("no parts produced for %s", input)
	}
	return parts, nil
}

// BuildSegmentArgs builds the ffmpeg arguments for one part starting at
// offset seconds and capped at limit bytes
func (s *Service) BuildSegmentArgs(inputPath, outputPath string, offset float64, limit int64) []string {
	return []string{
		"-y",                                           // Overwrite output file
		"-ss", strconv.FormatFloat(offset, 'f', 3, 64), // Start position
		"-i", inputPath, // Input file
		"-c", CopyCodec, // Stream copy, no re-encoding
		"-map", MapAll, // Keep every stream
		"-fs", strconv.FormatInt(limit, 10), // Stop at this many bytes
		outputPath, // Output file
	}
}

// BuildProbeArgs builds the ffprobe arguments that print a file's start time
// and duration as key=value lines
func (s *Service) BuildProbeArgs(path string) []string {
	return []string{"-v", FFprobeLogLevel, "-show_entries", FFprobeShowEntries, "-of", FFprobeOutputFormat, path}
}

// probe gets the start time and duration of a media file in seconds using
// ffprobe. A missing start time reads as zero.
func (s *Service) probe(ctx context.Context, path string) (start, duration float64, err error) {
	output, err := s.runner.Run(ctx, s.ffprobe, s.BuildProbeArgs(path)...)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to run ffprobe: %w", err)
	}
	return parseProbeOutput(string(output))
}

func parseProbeOutput(output string) (start, duration float64, err error) {
	found := false
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "start_time":
			if value == "N/A" {
				continue
			}
			if start, err = strconv.ParseFloat(value, 64); err != nil {
				return 0, 0, fmt.Errorf("failed to parse start_time %q: %w", value, err)
			}
		case "duration":
			if duration, err = strconv.ParseFloat(value, 64); err != nil {
				return 0, 0, fmt.Errorf("failed to parse duration %q: %w", value, err)
			}
			found = true
		}
	}
	if !found {
		return 0, 0, fmt.Errorf("no duration in ffprobe output %q", strings.TrimSpace(output))
	}
	return start, duration, nil
}

// generatePartsDir returns the directory holding the parts of inputPath,
// next to the input so it is removed together with the job's work dir
func generatePartsDir(inputPath string) string {
	return filepath.Join(filepath.Dir(inputPath), PartsDirPrefix+model.DisplayName(inputPath))
}

// execRunner runs tools with os/exec
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, lastLine(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// lastLine returns the last non-empty line of tool output
func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
