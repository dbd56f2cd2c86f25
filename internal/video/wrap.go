package video

import (
	"context"
	"fmt"
)

// Stride keeps every n-th frame of a source, starting with the first one.
// The effective frame rate of the result is fps/n.
func Stride(src Source, n int) (Source, error) {
	if n < 1 {
		return nil, fmt.Errorf("stride must be at least 1: %d given", n)
	}
	if n == 1 {
		return src, nil
	}
	return &strided{src: src, n: n}, nil
}

type strided struct {
	src Source
	n   int
}

func (s *strided) FPS() float64 {
	return s.src.FPS() / float64(s.n)
}

func (s *strided) Len() int {
	return (s.src.Len() + s.n - 1) / s.n
}

func (s *strided) ExactLen() bool {
	return exactLen(s.src)
}

func (s *strided) Open(ctx context.Context) (Reader, error) {
	r, err := s.src.Open(ctx)
	if err != nil {
		return nil, err
	}
	return &stridedReader{Reader: r, n: s.n}, nil
}

type stridedReader struct {
	Reader

	n       int
	read    int
	current *Frame
}

func (r *stridedReader) Next(ctx context.Context) bool {
	for r.Reader.Next(ctx) {
		i := r.read
		r.read++
		if i%r.n != 0 {
			continue
		}

		f := *r.Reader.Current()
		f.Index = i / r.n
		r.current = &f
		return true
	}
	return false
}

func (r *stridedReader) Current() *Frame {
	return r.current
}

// SubRange exposes the frames [lo, hi) of a source, re-indexed from 0.
// Frame times keep their position in the original video. A pass never
// yields more than hi-lo frames, even when the source under-reports Len.
func SubRange(src Source, lo, hi int) (Source, error) {
	if lo < 0 || hi > src.Len() || lo >= hi {
		return nil, fmt.Errorf("%w: [%d, %d) of %d frames", ErrOutOfRange, lo, hi, src.Len())
	}
	if lo == 0 && hi == src.Len() && exactLen(src) {
		return src, nil
	}
	return &subRange{src: src, lo: lo, hi: hi}, nil
}

type subRange struct {
	src    Source
	lo, hi int
}

func (s *subRange) FPS() float64 {
	return s.src.FPS()
}

func (s *subRange) Len() int {
	return s.hi - s.lo
}

func (s *subRange) ExactLen() bool {
	return exactLen(s.src)
}

func (s *subRange) Open(ctx context.Context) (Reader, error) {
	r, err := s.src.Open(ctx)
	if err != nil {
		return nil, err
	}
	return &subRangeReader{Reader: r, lo: s.lo, hi: s.hi}, nil
}

type subRangeReader struct {
	Reader

	lo, hi  int
	read    int
	current *Frame
}

func (r *subRangeReader) Next(ctx context.Context) bool {
	for r.read < r.hi && r.Reader.Next(ctx) {
		i := r.read
		r.read++
		if i < r.lo {
			continue // decoded and dropped, sources are sequential
		}

		f := *r.Reader.Current()
		f.Index = i - r.lo
		r.current = &f
		return true
	}
	return false
}

func (r *subRangeReader) Current() *Frame {
	return r.current
}

func exactLen(src Source) bool {
	e, ok := src.(interface{ ExactLen() bool })
	return ok && e.ExactLen()
}
