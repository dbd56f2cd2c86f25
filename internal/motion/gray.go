package motion

import (
	"fmt"
	"image"
	"image/color"
)

// grayFrame is a tightly packed 8-bit luma buffer
type grayFrame struct {
	w, h int
	pix  []uint8
}

// toGray converts an image to luma using the ITU-R 601 weights, the same as
// color.GrayModel. The buffer of dst is reused when its size fits.
func toGray(img image.Image, dst *grayFrame) *grayFrame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if dst == nil || cap(dst.pix) < w*h {
		dst = &grayFrame{pix: make([]uint8, w*h)}
	}
	dst.w, dst.h = w, h
	dst.pix = dst.pix[:w*h]

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < h; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.pix[y*w:(y+1)*w], src.Pix[off:off+w])
		}
	case *image.RGBA:
		for y := 0; y < h; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			row := src.Pix[off : off+4*w]
			for x := 0; x < w; x++ {
				r, g, bl := uint32(row[4*x]), uint32(row[4*x+1]), uint32(row[4*x+2])
				dst.pix[y*w+x] = uint8((19595*r + 38470*g + 7471*bl + 1<<15) >> 16)
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.pix[y*w+x] = color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
			}
		}
	}

	return dst
}

// meanAbsDiff returns the mean absolute per-pixel difference of two frames
func meanAbsDiff(a, b *grayFrame) (float64, error) {
	if a.w != b.w || a.h != b.h {
		return 0, fmt.Errorf("%w: %dx%d and %dx%d", ErrFrameSize, a.w, a.h, b.w, b.h)
	}
	if len(a.pix) == 0 {
		return 0, nil
	}

	var sum uint64
	for i, v := range a.pix {
		if v > b.pix[i] {
			sum += uint64(v - b.pix[i])
		} else {
			sum += uint64(b.pix[i] - v)
		}
	}
	return float64(sum) / float64(len(a.pix)), nil
}
