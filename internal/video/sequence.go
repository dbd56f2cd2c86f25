package video

import (
	"context"
	"fmt"
	"image"
)

// Sequence is an in-memory Source
type Sequence struct {
	fps    float64
	images []image.Image
}

// NewSequence creates a Sequence over already decoded images
func NewSequence(fps float64, images ...image.Image) (*Sequence, error) {
	if !(fps > 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFPS, fps)
	}
	return &Sequence{fps: fps, images: images}, nil
}

func (s *Sequence) FPS() float64 {
	return s.fps
}

func (s *Sequence) Len() int {
	return len(s.images)
}

// ExactLen is always true, images are held in memory
func (s *Sequence) ExactLen() bool {
	return true
}

func (s *Sequence) Open(context.Context) (Reader, error) {
	return &sequenceReader{seq: s, pos: -1}, nil
}

type sequenceReader struct {
	seq     *Sequence
	pos     int
	current *Frame
	err     error
}

func (r *sequenceReader) Next(ctx context.Context) bool {
	if r.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		r.err = err
		return false
	}
	if r.pos+1 >= len(r.seq.images) {
		return false
	}

	r.pos++
	r.current = &Frame{
		Index: r.pos,
		Time:  float64(r.pos) / r.seq.fps,
		Image: r.seq.images[r.pos],
	}
	return true
}

func (r *sequenceReader) Current() *Frame {
	return r.current
}

func (r *sequenceReader) Error() error {
	return r.err
}

func (r *sequenceReader) Close() error {
	return nil
}
