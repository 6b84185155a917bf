package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/karte/backend/internal/infrastructure/config"
)

const jpegDataURLPrefix = "data:image/jpeg;base64,"

var (
	ErrImageTooLarge  = errors.New("image exceeds the size limit")
	ErrInvalidDataURL = errors.New("invalid image data URL")
)

// ImageEncoder turns uploaded comment images into the form stored inside
// records: a JPEG, at most MaxImageWidth pixels wide, as a base64 data URL.
type ImageEncoder struct {
	maxWidth int
	quality  int
	maxBytes int64
}

// NewImageEncoder creates an encoder from media configuration
func NewImageEncoder(cfg config.MediaConfig) *ImageEncoder {
	return &ImageEncoder{
		maxWidth: cfg.MaxImageWidth,
		quality:  cfg.JPEGQuality,
		maxBytes: cfg.MaxImageBytes,
	}
}

// Encode decodes any supported image format, downscales it when wider than
// the limit and re-encodes it as a JPEG data URL.
func (e *ImageEncoder) Encode(raw []byte) (string, error) {
	if e.maxBytes > 0 && int64(len(raw)) > e.maxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrImageTooLarge, len(raw), e.maxBytes)
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	if e.maxWidth > 0 && img.Bounds().Dx() > e.maxWidth {
		img = imaging.Resize(img, e.maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(e.quality)); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return jpegDataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeDataURL extracts the bytes of a base64 data URL as sent by the
// browser. Bare base64 without the data: header is accepted too.
func DecodeDataURL(s string) ([]byte, error) {
	payload := s
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 || !strings.HasSuffix(s[:comma], ";base64") {
			return nil, ErrInvalidDataURL
		}
		payload = s[comma+1:]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return data, nil
}
