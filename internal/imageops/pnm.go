package imageops

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
)

// ErrPNM is returned for malformed or unsupported netpbm data.
var ErrPNM = errors.New("pnm: invalid format")

func init() {
	image.RegisterFormat("pnm", "P4", DecodePNM, DecodePNMConfig)
	image.RegisterFormat("pnm", "P5", DecodePNM, DecodePNMConfig)
	image.RegisterFormat("pnm", "P6", DecodePNM, DecodePNMConfig)
}

type pnmHeader struct {
	magic  string
	width  int
	height int
	maxval int
}

func readPNMHeader(r *bufio.Reader) (pnmHeader, error) {
	var h pnmHeader
	magic := make([]byte, 2)
	if _, err := io.ReadFull(r, magic); err != nil {
		return h, err
	}
	h.magic = string(magic)
	switch h.magic {
	case "P4", "P5", "P6":
	default:
		return h, fmt.Errorf("%w: unsupported magic %q", ErrPNM, h.magic)
	}

	fields := []*int{&h.width, &h.height}
	if h.magic != "P4" {
		fields = append(fields, &h.maxval)
	} else {
		h.maxval = 1
	}
	for _, f := range fields {
		n, err := readPNMInt(r)
		if err != nil {
			return h, err
		}
		*f = n
	}
	// exactly one whitespace byte separates the header from the raster
	if _, err := r.ReadByte(); err != nil {
		return h, err
	}
	if h.width <= 0 || h.height <= 0 || h.maxval <= 0 || h.maxval > 0xffff {
		return h, fmt.Errorf("%w: bad header %dx%d maxval %d", ErrPNM, h.width, h.height, h.maxval)
	}
	return h, nil
}

func readPNMInt(r *bufio.Reader) (int, error) {
	// skip whitespace and comments
	for {
		c, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if c == '#' {
			if _, err := r.ReadString('\n'); err != nil {
				return 0, err
			}
			continue
		}
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			continue
		}
		if err := r.UnreadByte(); err != nil {
			return 0, err
		}
		break
	}
	n, digits := 0, 0
	for {
		c, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if c < '0' || c > '9' {
			if digits == 0 {
				return 0, fmt.Errorf("%w: expected a number", ErrPNM)
			}
			return n, r.UnreadByte()
		}
		n = n*10 + int(c-'0')
		digits++
		if n > 1<<24 {
			return 0, fmt.Errorf("%w: number too large", ErrPNM)
		}
	}
}

// DecodePNMConfig returns the dimensions of a binary PBM, PGM or PPM image.
func DecodePNMConfig(r io.Reader) (image.Config, error) {
	h, err := readPNMHeader(bufio.NewReader(r))
	if err != nil {
		return image.Config{}, err
	}
	cfg := image.Config{Width: h.width, Height: h.height, ColorModel: color.GrayModel}
	switch {
	case h.magic == "P6" && h.maxval > 0xff:
		cfg.ColorModel = color.RGBA64Model
	case h.magic == "P6":
		cfg.ColorModel = color.RGBAModel
	case h.maxval > 0xff:
		cfg.ColorModel = color.Gray16Model
	}
	return cfg, nil
}

// DecodePNM decodes a binary PBM (P4), PGM (P5) or PPM (P6) image.
// Bilevel and greyscale images decode to *image.Gray (or *image.Gray16),
// colour images to *image.RGBA (or *image.RGBA64).
func DecodePNM(r io.Reader) (image.Image, error) {
	br := bufio.NewReader(r)
	h, err := readPNMHeader(br)
	if err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, h.width, h.height)
	wide := h.maxval > 0xff
	scale := func(v int) int { return v * 0xffff / h.maxval }

	switch h.magic {
	case "P4":
		img := image.NewGray(rect)
		row := make([]byte, (h.width+7)/8)
		for y := 0; y < h.height; y++ {
			if _, err := io.ReadFull(br, row); err != nil {
				return nil, fmt.Errorf("%w: short raster", ErrPNM)
			}
			for x := 0; x < h.width; x++ {
				// 1 is black in PBM
				if row[x/8]&(0x80>>(x%8)) == 0 {
					img.Pix[y*img.Stride+x] = 0xff
				}
			}
		}
		return img, nil

	case "P5":
		if wide {
			img := image.NewGray16(rect)
			buf := make([]byte, 2*h.width)
			for y := 0; y < h.height; y++ {
				if _, err := io.ReadFull(br, buf); err != nil {
					return nil, fmt.Errorf("%w: short raster", ErrPNM)
				}
				for x := 0; x < h.width; x++ {
					v := int(buf[2*x])<<8 | int(buf[2*x+1])
					img.SetGray16(x, y, color.Gray16{Y: uint16(scale(v))})
				}
			}
			return img, nil
		}
		img := image.NewGray(rect)
		for y := 0; y < h.height; y++ {
			row := img.Pix[y*img.Stride : y*img.Stride+h.width]
			if _, err := io.ReadFull(br, row); err != nil {
				return nil, fmt.Errorf("%w: short raster", ErrPNM)
			}
			if h.maxval != 0xff {
				for i, v := range row {
					row[i] = uint8(int(v) * 0xff / h.maxval)
				}
			}
		}
		return img, nil

	default: // P6
		if wide {
			img := image.NewRGBA64(rect)
			buf := make([]byte, 6*h.width)
			for y := 0; y < h.height; y++ {
				if _, err := io.ReadFull(br, buf); err != nil {
					return nil, fmt.Errorf("%w: short raster", ErrPNM)
				}
				for x := 0; x < h.width; x++ {
					p := buf[6*x:]
					img.SetRGBA64(x, y, color.RGBA64{
						R: uint16(scale(int(p[0])<<8 | int(p[1]))),
						G: uint16(scale(int(p[2])<<8 | int(p[3]))),
						B: uint16(scale(int(p[4])<<8 | int(p[5]))),
						A: 0xffff,
					})
				}
			}
			return img, nil
		}
		img := image.NewRGBA(rect)
		buf := make([]byte, 3*h.width)
		for y := 0; y < h.height; y++ {
			if _, err := io.ReadFull(br, buf); err != nil {
				return nil, fmt.Errorf("%w: short raster", ErrPNM)
			}
			for x := 0; x < h.width; x++ {
				i := y*img.Stride + 4*x
				for c := 0; c < 3; c++ {
					img.Pix[i+c] = uint8(int(buf[3*x+c]) * 0xff / h.maxval)
				}
				img.Pix[i+3] = 0xff
			}
		}
		return img, nil
	}
}

// EncodePNM writes img as an 8-bit binary PGM when it is greyscale and as
// a PPM otherwise. Transparency is flattened onto white.
func EncodePNM(w io.Writer, img image.Image) error {
	b := img.Bounds()
	bw := bufio.NewWriter(w)

	gray, isGray := img.(*image.Gray)
	if isGray {
		if _, err := fmt.Fprintf(bw, "P5\n%d %d\n255\n", b.Dx(), b.Dy()); err != nil {
			return err
		}
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := gray.PixOffset(b.Min.X, y)
			if _, err := bw.Write(gray.Pix[off : off+b.Dx()]); err != nil {
				return err
			}
		}
		return bw.Flush()
	}

	if _, err := fmt.Fprintf(bw, "P6\n%d %d\n255\n", b.Dx(), b.Dy()); err != nil {
		return err
	}
	px := make([]byte, 3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			// composite the premultiplied colour over white
			bg := 0xffff - a
			px[0] = uint8((r + bg) >> 8)
			px[1] = uint8((g + bg) >> 8)
			px[2] = uint8((bl + bg) >> 8)
			if _, err := bw.Write(px); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}
