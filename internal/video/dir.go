package video

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".bmp":  {},
	".tif":  {},
	".tiff": {},
	".webp": {},
}

// DirSource reads frames from a directory of still images, e.g. the output
// of `ffmpeg -i video.mp4 frames/%06d.png`. Files are ordered by name and
// decoded lazily.
type DirSource struct {
	fps   float64
	files []string
}

// NewDirSource lists the images of a directory
func NewDirSource(dir string, fps float64) (*DirSource, error) {
	if !(fps > 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFPS, fps)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading frame directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no image files found in '%s'", dir)
	}
	sort.Strings(files)

	return &DirSource{fps: fps, files: files}, nil
}

func (d *DirSource) FPS() float64 {
	return d.fps
}

func (d *DirSource) Len() int {
	return len(d.files)
}

func (d *DirSource) ExactLen() bool {
	return true
}

func (d *DirSource) Open(context.Context) (Reader, error) {
	return &dirReader{src: d, pos: -1}, nil
}

type dirReader struct {
	src     *DirSource
	pos     int
	current *Frame
	err     error
}

func (r *dirReader) Next(ctx context.Context) bool {
	if r.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		r.err = err
		return false
	}
	if r.pos+1 >= len(r.src.files) {
		return false
	}
	r.pos++

	img, err := decodeFile(r.src.files[r.pos])
	if err != nil {
		r.err = err
		return false
	}

	r.current = &Frame{
		Index: r.pos,
		Time:  float64(r.pos) / r.src.fps,
		Image: img,
	}
	return true
}

func (r *dirReader) Current() *Frame {
	return r.current
}

func (r *dirReader) Error() error {
	return r.err
}

func (r *dirReader) Close() error {
	return nil
}

func decodeFile(path string) (img image.Image, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening frame: %w", err)
	}
	defer closeWithError(f, &err)

	if img, _, err = image.Decode(f); err != nil {
		return nil, fmt.Errorf("decoding frame '%s': %w", path, err)
	}
	return img, nil
}
