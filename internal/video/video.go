package video

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrInvalidFPS is returned when a frame rate is not strictly positive
	ErrInvalidFPS = errors.New("frame rate must be positive")

	// ErrOutOfRange is returned when a frame range falls outside the source
	ErrOutOfRange = errors.New("frame range out of bounds")
)

// Frame is a single decoded video frame
type Frame struct {
	Index int         // Position within the source this frame was read from
	Time  float64     // Capture time in seconds from the start of the video
	Image image.Image // Decoded pixels
}

// Source is an ordered, restartable sequence of frames with a known
// capture rate. Frames are produced on demand, each call to Open starts
// from the first frame.
type Source interface {
	// FPS returns the nominal capture rate, always > 0
	FPS() float64

	// Len returns the number of frames Open will produce
	Len() int

	// Open starts a new pass over the frames
	Open(ctx context.Context) (Reader, error)
}

// Reader iterates over the frames of a single pass
type Reader interface {
	// Next advances to the next frame, returns false at the end of the
	// sequence or on error.
	Next(ctx context.Context) bool

	// Current returns the frame read by the last successful Next
	Current() *Frame

	// Error returns the error that stopped the iteration, if any
	Error() error

	// Close releases the resources of the pass. It is safe to call more than once.
	Close() error
}

// Collect reads every frame of a source into memory
func Collect(ctx context.Context, src Source) (frames []*Frame, err error) {
	r, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer closeWithError(r, &err)

	frames = make([]*Frame, 0, src.Len())
	for r.Next(ctx) {
		frames = append(frames, r.Current())
	}
	if err = r.Error(); err != nil {
		return nil, err
	}
	return frames, nil
}

// Count returns the number of frames a pass over src actually produces.
// Sources whose Len is exact are trusted, any other source is decoded once.
func Count(ctx context.Context, src Source) (n int, err error) {
	if e, ok := src.(interface{ ExactLen() bool }); ok && e.ExactLen() {
		return src.Len(), nil
	}

	r, err := src.Open(ctx)
	if err != nil {
		return 0, err
	}
	defer closeWithError(r, &err)

	for r.Next(ctx) {
		n++
	}
	if err = r.Error(); err != nil {
		return 0, err
	}
	return n, nil
}

// Duration returns the length of the source in seconds
func Duration(src Source) float64 {
	return float64(src.Len()) / src.FPS()
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
