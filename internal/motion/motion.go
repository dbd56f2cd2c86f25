package motion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/flight-video-sync/internal/video"
)

const (
	DefaultThreshold      = 1.0
	DefaultTrailingStatic = 2
)

var (
	// ErrInsufficientFrames is returned when a source has fewer than 2 frames
	ErrInsufficientFrames = errors.New("at least 2 frames are required")

	// ErrFrameSize is returned when consecutive frames differ in size
	ErrFrameSize = errors.New("frame size mismatch")
)

// NoMotion is the proposal returned when no frame difference exceeds the threshold
var NoMotion = Proposal{}

// Proposal is a video window suggested by the Detector. The difference
// between frames i-1 and i is attributed to frame i, so Start is the first
// frame that differs from its predecessor.
type Proposal struct {
	Start  int  `json:"start"`  // First moving frame, 0 without motion
	End    int  `json:"end"`    // Last moving frame plus the trailing margin, 0 without motion
	Motion bool `json:"motion"` // False for the NoMotion sentinel
	Frames int  `json:"frames"` // Frames actually decoded during the scan

	// Differences[i-1] is the mean absolute grayscale difference between frames i-1 and i
	Differences []float64 `json:"-"`
}

// Times converts the proposal into video start/end times in seconds
func (p Proposal) Times(fps float64) (start, end float64) {
	return float64(p.Start) / fps, float64(p.End) / fps
}

func (p Proposal) String() string {
	if !p.Motion {
		return "no motion"
	}
	return fmt.Sprintf("frames [%d, %d)", p.Start, p.End)
}

// WithThreshold sets the mean absolute difference a frame must exceed to count as motion
func WithThreshold(threshold float64) func(d *Detector) {
	return func(d *Detector) {
		d.threshold = threshold
	}
}

// WithTrailingStatic sets the number of frames appended after the last moving frame
func WithTrailingStatic(frames int) func(d *Detector) {
	return func(d *Detector) {
		d.trailing = frames
	}
}

// WithLogger sets the logger for the detector
func WithLogger(logger *slog.Logger) func(d *Detector) {
	return func(d *Detector) {
		d.logger = logger
	}
}

// Detector scans a frame source for the first and last frame with motion.
// It never modifies the source.
type Detector struct {
	threshold float64
	trailing  int
	logger    *slog.Logger
}

func NewDetector(options ...func(d *Detector)) *Detector {
	d := Detector{
		threshold: DefaultThreshold,
		trailing:  DefaultTrailingStatic,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

// Detect streams the source once, keeping only the previous grayscale frame in memory
func (d *Detector) Detect(ctx context.Context, src video.Source) (p Proposal, err error) {
	r, err := src.Open(ctx)
	if err != nil {
		return NoMotion, fmt.Errorf("opening video: %w", err)
	}
	defer closeWithError(r, &err)

	var (
		prev, cur *grayFrame
		diffs     = make([]float64, 0, max(src.Len()-1, 0))
		frames    int
	)

	for r.Next(ctx) {
		cur = toGray(r.Current().Image, cur)
		frames++

		if prev != nil {
			diff, dErr := meanAbsDiff(prev, cur)
			if dErr != nil {
				return NoMotion, fmt.Errorf("frame %d: %w", frames-1, dErr)
			}
			diffs = append(diffs, diff)
		}

		prev, cur = cur, prev // reuse the older buffer for the next frame
	}
	if err = r.Error(); err != nil {
		return NoMotion, fmt.Errorf("reading frames: %w", err)
	}
	if frames < 2 {
		return NoMotion, fmt.Errorf("%w: %d given", ErrInsufficientFrames, frames)
	}

	p = Propose(diffs, d.threshold, d.trailing)
	p.Frames = frames

	d.logger.Info("motion scan complete",
		slog.String("frames", humanize.Comma(int64(frames))),
		slog.Float64("threshold", d.threshold),
		slog.String("proposal", p.String()))

	return p, nil
}

// Propose picks the window from precomputed frame differences
func Propose(diffs []float64, threshold float64, trailing int) Proposal {
	first, last := -1, -1
	for i, diff := range diffs {
		if diff > threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}

	if first < 0 {
		p := NoMotion
		p.Differences = diffs
		return p
	}

	return Proposal{
		Start:       first + 1,
		End:         last + 1 + trailing,
		Motion:      true,
		Differences: diffs,
	}
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
