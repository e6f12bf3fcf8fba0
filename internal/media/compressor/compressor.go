package compressor

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
)

// ErrCompressionSkipped signals that the input was stored unchanged, either
// because it could not be decoded or because re-encoding would not shrink
// it. Uploads proceed normally on this error.
var ErrCompressionSkipped = errors.New("compression skipped")

const (
	DefaultMaxDimension = 2048
	DefaultJPEGQuality  = 82
)

// Compressor re-encodes uploaded photos as bounded-dimension JPEGs. It is a
// pure function of its input and settings.
type Compressor struct {
	maxDimension int
	quality      int
}

func New(maxDimension, quality int) *Compressor {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &Compressor{maxDimension: maxDimension, quality: quality}
}

// Detect sniffs the MIME type from content, falling back to the declared
// type when the bytes are not recognizable.
func Detect(data []byte, declared string) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return declared
	}
	return kind.MIME.Value
}

// IsSupportedImage reports whether the payload is an image format this
// service accepts.
func IsSupportedImage(data []byte) bool {
	kind, err := filetype.Match(data)
	if err != nil {
		return false
	}
	switch kind {
	case matchers.TypeJpeg, matchers.TypePng, matchers.TypeGif, matchers.TypeWebp, matchers.TypeTiff, matchers.TypeBmp, matchers.TypeHeif:
		return true
	}
	return false
}

// Compress decodes, downscales to the configured bound preserving aspect
// ratio, flattens transparency onto white, and re-encodes as JPEG. When the
// result would be no smaller than the input, or the input cannot be decoded,
// the original bytes come back untouched with ErrCompressionSkipped.
func (c *Compressor) Compress(data []byte, contentType string) ([]byte, string, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return data, contentType, fmt.Errorf("%w: decode: %v", ErrCompressionSkipped, err)
	}

	bounds := src.Bounds()
	if bounds.Dx() > c.maxDimension || bounds.Dy() > c.maxDimension {
		src = imaging.Fit(src, c.maxDimension, c.maxDimension, imaging.Lanczos)
	}

	// JPEG has no alpha channel; composite transparent sources onto white
	// before the lossy encode.
	flat := imaging.New(src.Bounds().Dx(), src.Bounds().Dy(), color.White)
	flat = imaging.OverlayCenter(flat, src, 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(c.quality)); err != nil {
		return data, contentType, fmt.Errorf("%w: encode: %v", ErrCompressionSkipped, err)
	}

	if buf.Len() >= len(data) {
		return data, contentType, ErrCompressionSkipped
	}
	return buf.Bytes(), "image/jpeg", nil
}
