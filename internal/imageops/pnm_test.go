package imageops

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestDecodePNM(t *testing.T) {
	t.Parallel()

	t.Run("P4 bilevel with comment", func(t *testing.T) {
		t.Parallel()
		// 10 pixels wide: 1 byte + 2 bits per row
		data := append([]byte("P4\n# unpaper output\n10 2\n"), 0b10000000, 0b01000000, 0b00000000, 0b00000000)
		img, err := DecodePNM(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		g := img.(*image.Gray)
		if g.GrayAt(0, 0).Y != 0 {
			t.Error("expected first pixel black")
		}
		if g.GrayAt(1, 0).Y != 255 {
			t.Error("expected second pixel white")
		}
		if g.GrayAt(9, 0).Y != 0 {
			t.Error("expected tenth pixel black")
		}
		if g.GrayAt(9, 1).Y != 255 {
			t.Error("expected second row white")
		}
	})

	t.Run("P5 with small maxval scales up", func(t *testing.T) {
		t.Parallel()
		data := append([]byte("P5 2 1 15\n"), 0, 15)
		img, err := DecodePNM(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		g := img.(*image.Gray)
		if g.GrayAt(0, 0).Y != 0 || g.GrayAt(1, 0).Y != 255 {
			t.Errorf("unexpected pixels %v", g.Pix)
		}
	})

	t.Run("P5 16-bit", func(t *testing.T) {
		t.Parallel()
		data := append([]byte("P5\n1 1\n65535\n"), 0x12, 0x34)
		img, err := DecodePNM(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if img.(*image.Gray16).Gray16At(0, 0).Y != 0x1234 {
			t.Errorf("unexpected pixel %v", img.At(0, 0))
		}
	})

	t.Run("registered with image.Decode", func(t *testing.T) {
		t.Parallel()
		data := append([]byte("P6\n1 1\n255\n"), 1, 2, 3)
		img, format, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if format != "pnm" {
			t.Errorf("expected format pnm, got %s", format)
		}
		if got := img.(*image.RGBA).RGBAAt(0, 0); got != (color.RGBA{R: 1, G: 2, B: 3, A: 255}) {
			t.Errorf("unexpected pixel %v", got)
		}
	})

	invalid := map[string][]byte{
		"ascii variant":  []byte("P2\n1 1\n255\n0"),
		"short raster":   append([]byte("P5\n4 1\n255\n"), 1, 2),
		"zero width":     []byte("P5\n0 1\n255\n"),
		"missing number": []byte("P5\nx 1\n255\n"),
	}
	for name, data := range invalid {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := DecodePNM(bytes.NewReader(data)); !errors.Is(err, ErrPNM) {
				t.Errorf("expected ErrPNM, got %v", err)
			}
		})
	}
}

func TestEncodePNM(t *testing.T) {
	t.Parallel()

	t.Run("greyscale round trip", func(t *testing.T) {
		t.Parallel()
		src := gradient(7, 5)
		var buf bytes.Buffer
		if err := EncodePNM(&buf, src); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.HasPrefix(buf.Bytes(), []byte("P5\n7 5\n255\n")) {
			t.Errorf("unexpected header %q", buf.Bytes()[:12])
		}
		out, err := DecodePNM(&buf)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		samePixels(t, src, out)
	})

	t.Run("transparent colour is flattened on white", func(t *testing.T) {
		t.Parallel()
		src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
		var buf bytes.Buffer
		if err := EncodePNM(&buf, src); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.Equal(buf.Bytes(), append([]byte("P6\n1 1\n255\n"), 255, 255, 255)) {
			t.Errorf("unexpected output %v", buf.Bytes())
		}
	})
}
