package service

import (
	"fmt"

	"github.com/h2non/bimg"
)

// ImageProcessor normalizes device photos before they are sent to a vision
// model. It uses bimg (Go bindings for libvips), so libvips must be
// installed on the host.
type ImageProcessor struct {
	maxDimension int
	quality      int
}

// NewImageProcessor creates a processor that keeps the longest edge of an
// image at or below maxDimension pixels.
func NewImageProcessor(maxDimension int) *ImageProcessor {
	if maxDimension <= 0 {
		maxDimension = 1024
	}
	return &ImageProcessor{maxDimension: maxDimension, quality: 85}
}

// PrepareForVision validates imageData (any format libvips reads: JPEG, PNG,
// WebP, HEIF...) and returns it as a JPEG no larger than the configured
// dimension, together with its MIME type. Photos straight from a phone camera
// are several megapixels; vision models bill by tile and gain nothing from them.
func (p *ImageProcessor) PrepareForVision(imageData []byte) ([]byte, string, error) {
	if len(imageData) == 0 {
		return nil, "", fmt.Errorf("%w: empty image", ErrInvalidImage)
	}

	img := bimg.NewImage(imageData)
	size, err := img.Size()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	if size.Width <= 0 || size.Height <= 0 {
		return nil, "", fmt.Errorf("%w: image has no pixels", ErrInvalidImage)
	}

	// Setting only one side preserves the aspect ratio.
	opts := bimg.Options{
		Type:           bimg.JPEG,
		Quality:        p.quality,
		StripMetadata:  true,
		Flatten:        true,
		Background:     bimg.Color{R: 255, G: 255, B: 255},
		Interpretation: bimg.InterpretationSRGB,
	}
	if size.Width >= size.Height && size.Width > p.maxDimension {
		opts.Width = p.maxDimension
	} else if size.Height > size.Width && size.Height > p.maxDimension {
		opts.Height = p.maxDimension
	}

	out, err := img.Process(opts)
	if err != nil {
		return nil, "", fmt.Errorf("%w: converting image: %w", ErrInvalidImage, err)
	}

	return out, "image/jpeg", nil
}

