package imageops

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"math"
	"strconv"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

const metersPerInch = 0.0254

// Resolution returns the horizontal and vertical resolution recorded in an
// encoded image, in dots per inch, or zeros when there is none.
func Resolution(format Format, data []byte) (float64, float64) {
	switch format {
	case FormatJPEG:
		if x, y := exifResolution(data); x > 0 && y > 0 {
			return x, y
		}
		return jfifResolution(data)
	case FormatPNG:
		return pngResolution(data)
	}
	return 0, 0
}

func exifResolution(data []byte) (float64, float64) {
	raw, err := exif.SearchAndExtractExif(data)
	if err != nil || raw == nil {
		return 0, 0
	}
	entries, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		return 0, 0
	}

	var x, y float64
	unit := 2.0
	seen := map[string]bool{}
	for _, e := range entries {
		// IFD0 comes first; later IFDs describe the thumbnail
		if seen[e.TagName] {
			continue
		}
		seen[e.TagName] = true
		switch e.TagName {
		case "XResolution":
			x = parseExifNumber(e.Formatted)
		case "YResolution":
			y = parseExifNumber(e.Formatted)
		case "ResolutionUnit":
			unit = parseExifNumber(e.Formatted)
		}
	}
	if unit == 3 {
		x, y = x*2.54, y*2.54
	}
	return roundDPI(x), roundDPI(y)
}

// parseExifNumber reads the first value of a formatted EXIF tag such as
// "[300/1]", "72/1" or "[2]".
func parseExifNumber(s string) float64 {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if f := strings.Fields(s); len(f) > 0 {
		s = f[0]
	}
	num, den, isRatio := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !isRatio {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

func jfifResolution(data []byte) (float64, float64) {
	if len(data) < 4 || data[0] != 0xff || data[1] != 0xd8 {
		return 0, 0
	}
	for i := 2; i+4 <= len(data); {
		if data[i] != 0xff {
			return 0, 0
		}
		marker := data[i+1]
		if marker == 0xda { // start of scan
			return 0, 0
		}
		segLen := int(binary.BigEndian.Uint16(data[i+2:]))
		p := i + 4
		if marker == 0xe0 && p+12 <= len(data) && bytes.Equal(data[p:p+5], []byte("JFIF\x00")) {
			units := data[p+7]
			x := float64(binary.BigEndian.Uint16(data[p+8:]))
			y := float64(binary.BigEndian.Uint16(data[p+10:]))
			switch units {
			case 1:
				return x, y
			case 2:
				return roundDPI(x * 2.54), roundDPI(y * 2.54)
			}
			return 0, 0
		}
		i += 2 + segLen
	}
	return 0, 0
}

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

func pngResolution(data []byte) (float64, float64) {
	if !bytes.HasPrefix(data, pngSignature) {
		return 0, 0
	}
	for i := len(pngSignature); i+8 <= len(data); {
		n := int(binary.BigEndian.Uint32(data[i:]))
		typ := string(data[i+4 : i+8])
		body := i + 8
		if body+n > len(data) {
			return 0, 0
		}
		switch typ {
		case "pHYs":
			if n != 9 || data[body+8] != 1 { // unit 1 is the metre
				return 0, 0
			}
			x := float64(binary.BigEndian.Uint32(data[body:])) * metersPerInch
			y := float64(binary.BigEndian.Uint32(data[body+4:])) * metersPerInch
			return roundDPI(x), roundDPI(y)
		case "IDAT", "IEND":
			return 0, 0
		}
		i = body + n + 4
	}
	return 0, 0
}

// withPNGResolution inserts a pHYs chunk right after IHDR.
func withPNGResolution(data []byte, xres, yres float64) ([]byte, error) {
	ihdrEnd := len(pngSignature) + 8 + 13 + 4
	if !bytes.HasPrefix(data, pngSignature) || len(data) < ihdrEnd || string(data[12:16]) != "IHDR" {
		return nil, errors.New("png: missing IHDR")
	}

	chunk := make([]byte, 8+9+4)
	binary.BigEndian.PutUint32(chunk[0:], 9)
	copy(chunk[4:], "pHYs")
	binary.BigEndian.PutUint32(chunk[8:], uint32(math.Round(xres/metersPerInch)))
	binary.BigEndian.PutUint32(chunk[12:], uint32(math.Round(yres/metersPerInch)))
	chunk[16] = 1
	binary.BigEndian.PutUint32(chunk[17:], crc32.ChecksumIEEE(chunk[4:17]))

	out := make([]byte, 0, len(data)+len(chunk))
	out = append(out, data[:ihdrEnd]...)
	out = append(out, chunk...)
	out = append(out, data[ihdrEnd:]...)
	return out, nil
}

// roundDPI drops the noise of the metre and centimetre conversions.
func roundDPI(v float64) float64 {
	return math.Round(v*100) / 100
}
