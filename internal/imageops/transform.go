package imageops

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/nao1215/scantpaper/internal/model"
)

// newLike allocates a w x h image of a type that can hold src's pixels
// without losing depth. Bilevel and greyscale scans stay single channel.
func newLike(src image.Image, w, h int) draw.Image {
	r := image.Rect(0, 0, w, h)
	switch src.(type) {
	case *image.Gray:
		return image.NewGray(r)
	case *image.Gray16:
		return image.NewGray16(r)
	case *image.RGBA64, *image.NRGBA64:
		return image.NewNRGBA64(r)
	}
	return image.NewNRGBA(r)
}

// Rotate turns img clockwise by degrees, which must be a multiple of 90.
func Rotate(img image.Image, degrees int) (image.Image, error) {
	d := ((degrees % 360) + 360) % 360
	if d%90 != 0 {
		return nil, &model.ParameterError{Name: "angle", Value: degrees, Reason: "must be a multiple of 90"}
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var dst draw.Image
	if d == 90 || d == 270 {
		dst = newLike(img, h, w)
	} else {
		dst = newLike(img, w, h)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.At(b.Min.X+x, b.Min.Y+y)
			switch d {
			case 0:
				dst.Set(x, y, c)
			case 90:
				dst.Set(h-1-y, x, c)
			case 180:
				dst.Set(w-1-x, h-1-y, c)
			case 270:
				dst.Set(y, w-1-x, c)
			}
		}
	}
	return dst, nil
}

// Crop returns the w x h region at (x, y). The region must lie inside the
// image and have a positive area.
func Crop(img image.Image, x, y, w, h int) (image.Image, error) {
	b := img.Bounds()
	if w <= 0 || h <= 0 {
		return nil, &model.ParameterError{Name: "crop", Value: [4]int{x, y, w, h}, Reason: "width and height must be positive"}
	}
	if x < 0 || y < 0 || x+w > b.Dx() || y+h > b.Dy() {
		return nil, &model.ParameterError{Name: "crop", Value: [4]int{x, y, w, h}, Reason: "rectangle outside the page"}
	}
	return copyRect(img, image.Rect(b.Min.X+x, b.Min.Y+y, b.Min.X+x+w, b.Min.Y+y+h)), nil
}

// SplitDirection is the orientation of the cut line.
type SplitDirection string

const (
	// SplitVertical cuts along a vertical line into left and right halves.
	SplitVertical SplitDirection = "v"
	// SplitHorizontal cuts along a horizontal line into top and bottom halves.
	SplitHorizontal SplitDirection = "h"
)

// Split cuts img at position pixels from the left (vertical) or top
// (horizontal) edge. The first result is the left or top part.
func Split(img image.Image, dir SplitDirection, position int) (image.Image, image.Image, error) {
	b := img.Bounds()
	switch dir {
	case SplitVertical:
		if position <= 0 || position >= b.Dx() {
			return nil, nil, &model.ParameterError{Name: "position", Value: position, Reason: "must be inside the page width"}
		}
		mid := b.Min.X + position
		return copyRect(img, image.Rect(b.Min.X, b.Min.Y, mid, b.Max.Y)),
			copyRect(img, image.Rect(mid, b.Min.Y, b.Max.X, b.Max.Y)), nil
	case SplitHorizontal:
		if position <= 0 || position >= b.Dy() {
			return nil, nil, &model.ParameterError{Name: "position", Value: position, Reason: "must be inside the page height"}
		}
		mid := b.Min.Y + position
		return copyRect(img, image.Rect(b.Min.X, b.Min.Y, b.Max.X, mid)),
			copyRect(img, image.Rect(b.Min.X, mid, b.Max.X, b.Max.Y)), nil
	}
	return nil, nil, &model.ParameterError{Name: "direction", Value: dir, Reason: "must be v or h"}
}

func copyRect(img image.Image, r image.Rectangle) image.Image {
	dst := newLike(img, r.Dx(), r.Dy())
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// Negate inverts every colour channel. Alpha is kept.
func Negate(img image.Image) image.Image {
	b := img.Bounds()
	dst := newLike(img, b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			if a == 0 {
				dst.Set(x, y, color.NRGBA64{})
				continue
			}
			// un-premultiply, invert, keep alpha
			nr := 0xffff - r*0xffff/a
			ng := 0xffff - g*0xffff/a
			nb := 0xffff - bl*0xffff/a
			dst.Set(x, y, color.NRGBA64{R: uint16(nr), G: uint16(ng), B: uint16(nb), A: uint16(a)})
		}
	}
	return dst
}

// Threshold converts img to black and white. Pixels whose luminance is
// above percent of full scale become white, the rest black.
func Threshold(img image.Image, percent int) (*image.Gray, error) {
	if percent < 0 || percent > 100 {
		return nil, &model.ParameterError{Name: "threshold", Value: percent, Reason: "must be 0-100"}
	}
	limit := uint32(percent) * 0xffff / 100
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			lum := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16).Y
			if uint32(lum) > limit {
				dst.Pix[y*dst.Stride+x] = 0xff
			}
		}
	}
	return dst, nil
}

// Scale resizes img to w x h by averaging the source pixels that fall into
// each destination pixel. It is meant for downsampling.
func Scale(img image.Image, w, h int) (image.Image, error) {
	if w <= 0 || h <= 0 {
		return nil, &model.ParameterError{Name: "size", Value: [2]int{w, h}, Reason: "must be positive"}
	}
	b := img.Bounds()
	dst := newLike(img, w, h)
	for y := 0; y < h; y++ {
		y0 := b.Min.Y + y*b.Dy()/h
		y1 := max(b.Min.Y+(y+1)*b.Dy()/h, y0+1)
		for x := 0; x < w; x++ {
			x0 := b.Min.X + x*b.Dx()/w
			x1 := max(b.Min.X+(x+1)*b.Dx()/w, x0+1)
			var r, g, bl, a, n uint64
			for sy := y0; sy < y1; sy++ {
				for sx := x0; sx < x1; sx++ {
					cr, cg, cb, ca := img.At(sx, sy).RGBA()
					r += uint64(cr)
					g += uint64(cg)
					bl += uint64(cb)
					a += uint64(ca)
					n++
				}
			}
			dst.Set(x, y, color.RGBA64{R: uint16(r / n), G: uint16(g / n), B: uint16(bl / n), A: uint16(a / n)})
		}
	}
	return dst, nil
}

// Depth8 returns img with at most 8 bits per channel, converting 16-bit
// images. PDF writers handle only 8-bit samples.
func Depth8(img image.Image) image.Image {
	b := img.Bounds()
	switch img.(type) {
	case *image.Gray16:
		dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	case *image.RGBA64, *image.NRGBA64:
		dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}
	return img
}
