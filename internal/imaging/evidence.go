// Package imaging normalizes evidence photos attached to prórroga requests.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/http"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

const (
	MaxUploadBytes = 10 << 20
	MaxDimension   = 1280
	jpegQuality    = 82
)

var (
	ErrEmpty       = errors.New("la imagen está vacía")
	ErrTooLarge    = errors.New("la imagen supera los 10 MB")
	ErrUnsupported = errors.New("la imagen debe ser png, jpeg o webp")
	ErrDecode      = errors.New("no se pudo leer la imagen")
)

// Fit scales w x h down so the longer side is at most max, keeping the
// aspect ratio. Images already within bounds are returned unchanged.
func Fit(w, h, max int) (int, int) {
	if w <= max && h <= max {
		return w, h
	}
	if w >= h {
		nh := h * max / w
		if nh < 1 {
			nh = 1
		}
		return max, nh
	}
	nw := w * max / h
	if nw < 1 {
		nw = 1
	}
	return nw, max
}

// NormalizeEvidence decodes a png, jpeg or webp upload, downscales it to
// MaxDimension and re-encodes it as JPEG.
func NormalizeEvidence(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, ErrEmpty
	}
	if len(raw) > MaxUploadBytes {
		return nil, ErrTooLarge
	}
	switch http.DetectContentType(raw) {
	case "image/png", "image/jpeg", "image/webp":
	default:
		return nil, ErrUnsupported
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		decoded, webpErr := webp.Decode(bytes.NewReader(raw))
		if webpErr != nil {
			return nil, ErrDecode
		}
		img = decoded
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, ErrDecode
	}

	w, h := Fit(bounds.Dx(), bounds.Dy(), MaxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// JPEG has no alpha; flatten onto white.
	xdraw.Draw(dst, dst.Bounds(), image.White, image.Point{}, xdraw.Src)
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// EvidenceDataURL is NormalizeEvidence encoded for the imagenUrl field.
func EvidenceDataURL(raw []byte) (string, error) {
	jpg, err := NormalizeEvidence(raw)
	if err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpg), nil
}
