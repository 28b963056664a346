package frame

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestReadRGBD(t *testing.T) {
	input := "2 2\n" +
		"10 11 13 500\n" +
		"255 255 255 0\n" +
		"0 0 0 65535\n" +
		"90 90 90 1234\n"

	f, err := ReadRGBD(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadRGBD: %v", err)
	}
	if f.Width != 2 || f.Height != 2 {
		t.Fatalf("dimensions: got %dx%d, want 2x2", f.Width, f.Height)
	}

	wantGray := []float32{11, 255, 0, 90}
	wantDepth := []float32{500, 0, 65535, 1234}
	for i := range wantGray {
		if f.Gray[i] != wantGray[i] {
			t.Errorf("gray[%d]: got %v, want %v", i, f.Gray[i], wantGray[i])
		}
		if f.Depth[i] != wantDepth[i] {
			t.Errorf("depth[%d]: got %v, want %v", i, f.Depth[i], wantDepth[i])
		}
	}
}

func TestReadRGBDErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"zero width", "0 4\n", ErrBadDimensions},
		{"color out of range", "1 1\n300 0 0 5\n", ErrBadSample},
		{"depth out of range", "1 1\n5 5 5 70000\n", ErrBadSample},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadRGBD(strings.NewReader(tt.input))
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := ReadRGBD(strings.NewReader("2 2\n1 2 3 4\n")); err == nil {
		t.Fatal("truncated input: expected error")
	}
}

func TestWriteRGBDRoundTrip(t *testing.T) {
	src, err := New(3, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := range src.Gray {
		src.Gray[i] = float32(i * 40)
		src.Depth[i] = float32(i * 1000)
	}

	var buf bytes.Buffer
	if err := WriteRGBD(&buf, src); err != nil {
		t.Fatalf("WriteRGBD: %v", err)
	}

	got, err := ReadRGBD(&buf)
	if err != nil {
		t.Fatalf("ReadRGBD: %v", err)
	}
	if got.Width != src.Width || got.Height != src.Height {
		t.Fatalf("dimensions: got %dx%d, want %dx%d",
			got.Width, got.Height, src.Width, src.Height)
	}
	for i := range src.Gray {
		if got.Gray[i] != src.Gray[i] {
			t.Errorf("gray[%d]: got %v, want %v", i, got.Gray[i], src.Gray[i])
		}
		if got.Depth[i] != src.Depth[i] {
			t.Errorf("depth[%d]: got %v, want %v", i, got.Depth[i], src.Depth[i])
		}
	}
}

func TestCrop(t *testing.T) {
	src, err := New(4, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := range src.Gray {
		src.Gray[i] = float32(i)
		src.Depth[i] = float32(100 + i)
	}

	out, err := src.Crop(1, 1, 2, 2)
	if err != nil {
		t.Fatalf("Crop: %v", err)
	}
	wantGray := []float32{5, 6, 9, 10}
	for i := range wantGray {
		if out.Gray[i] != wantGray[i] {
			t.Errorf("gray[%d]: got %v, want %v", i, out.Gray[i], wantGray[i])
		}
		if out.Depth[i] != wantGray[i]+100 {
			t.Errorf("depth[%d]: got %v, want %v", i, out.Depth[i], wantGray[i]+100)
		}
	}

	if _, err := src.Crop(3, 0, 2, 2); !errors.Is(err, ErrBadCrop) {
		t.Fatalf("out-of-bounds crop: got %v, want ErrBadCrop", err)
	}
	if _, err := src.Crop(0, 0, 0, 1); !errors.Is(err, ErrBadDimensions) {
		t.Fatalf("empty crop: got %v, want ErrBadDimensions", err)
	}
}
