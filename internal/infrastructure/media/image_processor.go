// Package media stores chat image attachments as WebP with a thumbnail.
package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path"
	"path/filepath"
	"regexp"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
)

const (
	// MaxUploadBytes bounds the decoded payload.
	MaxUploadBytes = 8 << 20
	maxDimension   = 1600
	thumbWidth     = 320
	webpQuality    = 85
)

var (
	ErrEmptyUpload       = errors.New("media: empty upload")
	ErrUnsupportedFormat = errors.New("media: unsupported image format")
	ErrTooLarge          = errors.New("media: upload too large")
)

var dataURLPattern = regexp.MustCompile(`^data:(image/(?:png|jpe?g|gif|webp));base64,`)

// ImageProcessor writes attachments under basePath and serves them from urlPrefix.
type ImageProcessor struct {
	basePath  string
	urlPrefix string
}

// NewImageProcessor creates a processor rooted at basePath (MEDIA_DIR).
func NewImageProcessor(basePath, urlPrefix string) *ImageProcessor {
	if urlPrefix == "" {
		urlPrefix = "/media"
	}
	return &ImageProcessor{basePath: basePath, urlPrefix: urlPrefix}
}

// BasePath is the directory the processor writes into.
func (p *ImageProcessor) BasePath() string {
	return p.basePath
}

// ProcessAttachment decodes a base64 data URL, downsizes it to at most 1600px
// on the long edge, and stores it plus a 320px wide thumbnail as WebP under
// attachments/<room>/<id>.
func (p *ImageProcessor) ProcessAttachment(dataURL, roomID, id string) (*edu.Attachment, error) {
	if dataURL == "" {
		return nil, ErrEmptyUpload
	}
	match := dataURLPattern.FindStringSubmatch(dataURL)
	if match == nil {
		return nil, ErrUnsupportedFormat
	}
	payload := dataURL[len(match[0]):]
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxUploadBytes {
		return nil, ErrTooLarge
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	img, err := decodeImage(match[1], decoded)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxDimension || bounds.Dy() > maxDimension {
		img = imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	}
	thumb := imaging.Resize(img, thumbWidth, 0, imaging.Lanczos)

	targetDir := filepath.Join(p.basePath, "attachments", roomID)
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	fullName := id + ".webp"
	thumbName := id + "_thumb.webp"
	if err := saveWebP(filepath.Join(targetDir, fullName), img); err != nil {
		return nil, err
	}
	if err := saveWebP(filepath.Join(targetDir, thumbName), thumb); err != nil {
		return nil, err
	}

	final := img.Bounds()
	return &edu.Attachment{
		URL:         path.Join(p.urlPrefix, "attachments", roomID, fullName),
		ThumbURL:    path.Join(p.urlPrefix, "attachments", roomID, thumbName),
		ContentType: "image/webp",
		Width:       final.Dx(),
		Height:      final.Dy(),
	}, nil
}

func decodeImage(mimeType string, data []byte) (image.Image, error) {
	if mimeType == "image/webp" {
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		return img, nil
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return img, nil
}

func saveWebP(fullPath string, img image.Image) error {
	if err := webp.Save(fullPath, img, &webp.Options{Quality: webpQuality}); err != nil {
		return fmt.Errorf("failed to save WebP %s: %w", filepath.Base(fullPath), err)
	}
	return nil
}
