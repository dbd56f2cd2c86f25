package video

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

const (
	FFmpegRuntime  = "ffmpeg"
	FFprobeRuntime = "ffprobe"
)

// Metadata describes the first video stream of a file
type Metadata struct {
	Codec    string  `json:"codec"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	Frames   int     `json:"frames"`
	Counted  bool    `json:"counted"`  // Frames were decoded, not read from the header
	Duration float64 `json:"duration"` // seconds
}

// WithLogger sets the logger for the source
func WithLogger(logger *slog.Logger) func(s *FFmpegSource) {
	return func(s *FFmpegSource) {
		s.logger = logger.With(slog.String("video", filepath.Base(s.path)))
	}
}

// WithFrameRate overrides the frame rate reported by ffprobe
func WithFrameRate(fps float64) func(s *FFmpegSource) {
	return func(s *FFmpegSource) {
		s.fpsOverride = fps
	}
}

// WithBinaries sets explicit ffmpeg and ffprobe paths instead of looking them up in PATH
func WithBinaries(ffmpegPath, ffprobePath string) func(s *FFmpegSource) {
	return func(s *FFmpegSource) {
		s.ffmpegPath = ffmpegPath
		s.ffprobePath = ffprobePath
	}
}

// WithFrameCounting makes ffprobe decode the stream to count frames exactly.
// It is slower but container frame counts are often missing or wrong.
func WithFrameCounting(enabled bool) func(s *FFmpegSource) {
	return func(s *FFmpegSource) {
		s.countFrames = enabled
	}
}

// FFmpegSource decodes a video file through an `ffmpeg` subprocess, streaming
// raw RGBA frames from its stdout. Only one frame is held in memory per reader.
type FFmpegSource struct {
	path        string
	ffmpegPath  string
	ffprobePath string
	countFrames bool
	fpsOverride float64

	meta   *Metadata
	logger *slog.Logger
}

// NewFFmpegSource locates the ffmpeg tools and probes the video
func NewFFmpegSource(ctx context.Context, path string, options ...func(s *FFmpegSource)) (*FFmpegSource, error) {
	s := FFmpegSource{
		path:   path,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&s)
	}

	var err error
	if s.ffmpegPath == "" {
		if s.ffmpegPath, err = FindRuntime(FFmpegRuntime); err != nil {
			return nil, err
		}
	}
	if s.ffprobePath == "" {
		if s.ffprobePath, err = FindRuntime(FFprobeRuntime); err != nil {
			return nil, err
		}
	}

	if s.meta, err = Probe(ctx, s.ffprobePath, path, s.countFrames); err != nil {
		return nil, fmt.Errorf("probing video: %w", err)
	}
	if s.fpsOverride > 0 {
		s.meta.FPS = s.fpsOverride
	}
	if !(s.meta.FPS > 0) {
		return nil, fmt.Errorf("%w: '%s' reports %v", ErrInvalidFPS, path, s.meta.FPS)
	}

	s.logger.Info("video probed",
		slog.String("codec", s.meta.Codec),
		slog.Int("width", s.meta.Width),
		slog.Int("height", s.meta.Height),
		slog.Float64("fps", s.meta.FPS),
		slog.Int("frames", s.meta.Frames))

	return &s, nil
}

// Metadata returns the probed stream description
func (s *FFmpegSource) Metadata() Metadata {
	return *s.meta
}

func (s *FFmpegSource) FPS() float64 {
	return s.meta.FPS
}

func (s *FFmpegSource) Len() int {
	return s.meta.Frames
}

// ExactLen reports whether Len comes from decoding the stream rather than
// from the container header, see WithFrameCounting.
func (s *FFmpegSource) ExactLen() bool {
	return s.meta.Counted
}

// Args returns the ffmpeg command line arguments used to decode the video
func (s *FFmpegSource) Args() []string {
	return []string{
		"-nostdin",
		"-v", "error",
		"-i", s.path,
		"-map", "0:v:0",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-", // always dump to stdout
	}
}

func (s *FFmpegSource) Open(ctx context.Context) (Reader, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, s.ffmpegPath, s.Args()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		cancel()
		return nil, NewRuntimeError(fmt.Sprintf("error starting %s: %s", FFmpegRuntime, err))
	}

	r := &ffmpegReader{
		src:    s,
		cmd:    cmd,
		cancel: cancel,
		stdout: stdout,
		pos:    -1,
	}

	r.wg.Add(1)
	go r.handleStderr(stderr)

	return r, nil
}

type ffmpegReader struct {
	src    *FFmpegSource
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdout io.Reader
	wg     sync.WaitGroup

	pos     int
	current *Frame
	err     error
	done    bool

	closeOnce sync.Once
}

func (r *ffmpegReader) Next(ctx context.Context) bool {
	if r.done || r.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		r.err = err
		return false
	}

	img := image.NewRGBA(image.Rect(0, 0, r.src.meta.Width, r.src.meta.Height))

	_, err := io.ReadFull(r.stdout, img.Pix)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		r.done = true
		r.err = r.wait()
		return false
	case errors.Is(err, io.ErrUnexpectedEOF):
		r.done = true
		r.err = errors.Join(fmt.Errorf("truncated frame %d", r.pos+1), r.wait())
		return false
	default:
		r.err = fmt.Errorf("reading frame %d: %w", r.pos+1, err)
		return false
	}

	r.pos++
	r.current = &Frame{
		Index: r.pos,
		Time:  float64(r.pos) / r.src.meta.FPS,
		Image: img,
	}
	return true
}

func (r *ffmpegReader) Current() *Frame {
	return r.current
}

func (r *ffmpegReader) Error() error {
	return r.err
}

// Close stops the decoder if it is still running
func (r *ffmpegReader) Close() error {
	r.closeOnce.Do(func() {
		if r.done {
			r.cancel()
			return
		}

		r.done = true
		r.cancel()
		r.wg.Wait()
		_ = r.cmd.Wait() // killed on purpose
	})
	return nil
}

// wait collects the exit status once stdout reached EOF
func (r *ffmpegReader) wait() error {
	r.wg.Wait()

	if err := r.cmd.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return NewRuntimeError(fmt.Sprintf("%s exited with error: %s", FFmpegRuntime, err))
	}
	return nil
}

// handleStderr logs decoder diagnostics
func (r *ffmpegReader) handleStderr(stderr io.Reader) {
	defer r.wg.Done()

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		r.src.logger.Warn(fmt.Sprintf("%s >> %s", FFmpegRuntime, line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		r.src.logger.Warn(fmt.Sprintf("error reading stderr: %s", err))
	}
}

type probeOutput struct {
	Streams []struct {
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		NbReadFrames string `json:"nb_read_frames"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe runs ffprobe on the first video stream of a file
func Probe(ctx context.Context, ffprobePath, path string, countFrames bool) (*Metadata, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name,width,height,r_frame_rate,avg_frame_rate,nb_frames,nb_read_frames:format=duration",
		"-print_format", "json",
	}
	if countFrames {
		args = append(args, "-count_frames")
	}
	args = append(args, path)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, ffprobePath, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, NewRuntimeError(fmt.Sprintf("%s failed: %s: %s", FFprobeRuntime, err, strings.TrimSpace(stderr.String())))
	}

	return parseProbe(out)
}

func parseProbe(data []byte) (*Metadata, error) {
	var p probeOutput
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding probe output: %w", err)
	}
	if len(p.Streams) == 0 {
		return nil, errors.New("no video stream found")
	}
	s := p.Streams[0]

	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", s.Width, s.Height)
	}

	meta := Metadata{
		Codec:  s.CodecName,
		Width:  s.Width,
		Height: s.Height,
	}

	for _, rate := range []string{s.RFrameRate, s.AvgFrameRate} {
		if fps, err := ParseFrameRate(rate); err == nil && fps > 0 {
			meta.FPS = fps
			break
		}
	}

	if d, err := strconv.ParseFloat(p.Format.Duration, 64); err == nil {
		meta.Duration = d
	}

	if n, err := strconv.Atoi(s.NbReadFrames); err == nil && n > 0 {
		meta.Frames, meta.Counted = n, true
	} else if n, err = strconv.Atoi(s.NbFrames); err == nil && n > 0 {
		meta.Frames = n
	}
	if meta.Frames == 0 && meta.Duration > 0 && meta.FPS > 0 {
		meta.Frames = int(math.Round(meta.Duration * meta.FPS))
	}

	return &meta, nil
}

// ParseFrameRate parses ffprobe rates such as "30000/1001" or "25"
func ParseFrameRate(s string) (float64, error) {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")

	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame rate %q: %w", s, err)
	}
	if !found {
		return n, nil
	}

	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame rate %q: %w", s, err)
	}
	if d == 0 {
		return 0, fmt.Errorf("invalid frame rate %q: zero denominator", s)
	}
	return n / d, nil
}
