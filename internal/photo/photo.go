// Package photo normalizes uploaded item photos: it sniffs the format,
// bounds the dimensions and stores everything as JPEG.
package photo

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Size limits.
const (
	MaxUploadBytes = 5 << 20
	MaxDimension   = 1024
	ThumbDimension = 256
)

// JPEGQuality is the compression quality of stored photos.
const JPEGQuality = 85

// MIME is the type every normalized photo is stored as.
const MIME = "image/jpeg"

var accepted = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// ErrUnsupported is returned for uploads that are not JPEG, PNG or WebP.
var ErrUnsupported = errors.New("unsupported image format")

// Photo is an encoded JPEG and its dimensions.
type Photo struct {
	Data   []byte
	Width  int
	Height int
}

// Normalize decodes an upload, scales it to fit MaxDimension and re-encodes
// it as JPEG. Transparent areas become white. The format is detected from
// the bytes; client supplied content types are ignored.
func Normalize(r io.Reader) (*Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("photo exceeds %d bytes", MaxUploadBytes)
	}

	if detected := http.DetectContentType(data); !accepted[detected] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding photo: %w", err)
	}
	return encode(fit(img, MaxDimension))
}

// Thumbnail scales an already normalized photo down to ThumbDimension.
func Thumbnail(data []byte) (*Photo, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding photo: %w", err)
	}
	return encode(fit(img, ThumbDimension))
}

func encode(img image.Image) (*Photo, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding photo: %w", err)
	}
	b := img.Bounds()
	return &Photo{Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}

// fit scales img so that neither side exceeds maxDim, keeping the aspect
// ratio, and flattens it onto a white background.
func fit(img image.Image, maxDim int) image.Image {
	src := img.Bounds()
	w, h := scaledSize(src.Dx(), src.Dy(), maxDim)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == src.Dx() && h == src.Dy() {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Over)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)
	return dst
}

func scaledSize(w, h, maxDim int) (int, int) {
	if w <= maxDim && h <= maxDim {
		return w, h
	}

	if w > h {
		h = h * maxDim / w
		w = maxDim
	} else {
		w = w * maxDim / h
		h = maxDim
	}
	return max(w, 1), max(h, 1)
}
