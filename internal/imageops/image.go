package imageops

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Format is an image file format.
type Format string

const (
	// FormatPNG is lossless and carries resolution in a pHYs chunk.
	FormatPNG Format = "png"
	// FormatJPEG is lossy and carries resolution in JFIF or EXIF.
	FormatJPEG Format = "jpeg"
	// FormatPNM is the binary netpbm family that unpaper reads and writes.
	FormatPNM Format = "pnm"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG, nil
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".pnm", ".pbm", ".pgm", ".ppm":
		return FormatPNM, nil
	}
	return "", fmt.Errorf("unsupported image format: %s", filepath.Ext(path))
}

// Extension returns the file extension used for the format.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatPNM:
		return ".pnm"
	}
	return ".png"
}

// Info is what the pipeline needs to know about an image file.
type Info struct {
	Format      Format
	Width       int
	Height      int
	XResolution float64
	YResolution float64
	Digest      string
}

// Probe reads the header, resolution and digest of an image file.
// Resolution is zero when the file does not record one.
func Probe(path string) (Info, error) {
	data, err := os.ReadFile(path) //nolint:gosec // paths come from the session directory or the user
	if err != nil {
		return Info{}, err
	}
	format, err := FormatFromPath(path)
	if err != nil {
		return Info{}, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	xres, yres := Resolution(format, data)
	return Info{
		Format:      format,
		Width:       cfg.Width,
		Height:      cfg.Height,
		XResolution: xres,
		YResolution: yres,
		Digest:      DigestBytes(data),
	}, nil
}

// Load decodes an image file.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // paths come from the session directory or the user
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// SaveOptions control how Save encodes an image.
type SaveOptions struct {
	// Quality is the JPEG quality, 1-100. Zero means 75.
	Quality int

	// XResolution and YResolution are recorded in PNG files so that
	// external tools see the right dpi. Zero writes no resolution.
	XResolution float64
	YResolution float64
}

// Save encodes img into path, choosing the format from the extension, and
// returns the SHA3-256 digest of the written bytes.
func Save(path string, img image.Image, opts SaveOptions) (string, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, img, format, opts); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return "", err
	}
	return DigestBytes(buf.Bytes()), nil
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format Format, opts SaveOptions) error {
	switch format {
	case FormatJPEG:
		q := opts.Quality
		if q <= 0 {
			q = 75
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: min(q, 100)})
	case FormatPNM:
		return EncodePNM(w, img)
	case FormatPNG:
		if opts.XResolution <= 0 || opts.YResolution <= 0 {
			return png.Encode(w, img)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return err
		}
		out, err := withPNGResolution(buf.Bytes(), opts.XResolution, opts.YResolution)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}
	return fmt.Errorf("unsupported image format: %s", format)
}

// Digest returns the hex SHA3-256 of a file.
func Digest(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // paths come from the session directory
	if err != nil {
		return "", err
	}
	return DigestBytes(data), nil
}

// DigestBytes returns the hex SHA3-256 of data.
func DigestBytes(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
