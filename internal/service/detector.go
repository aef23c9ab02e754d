package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fleveque/crm-service/internal/parser"
	"github.com/fleveque/crm-service/internal/provider"
)

// ErrInvalidImage means the client sent something that is not a decodable image.
var ErrInvalidImage = errors.New("invalid image")

// Detector identifies the device shown in a photo.
type Detector struct {
	processor *ImageProcessor
	describer provider.Describer
	logger    *zap.Logger
}

// NewDetector creates a detector.
func NewDetector(processor *ImageProcessor, describer provider.Describer, logger *zap.Logger) *Detector {
	return &Detector{
		processor: processor,
		describer: describer,
		logger:    logger,
	}
}

// DetectDevice decodes a base64 image (raw or as a data URL), asks the vision
// model what device it shows and returns the short device name.
//
// Errors wrap ErrInvalidImage for bad input, parser.ErrSchema for an empty
// answer, and the llm taxonomy for provider failures.
func (d *Detector) DetectDevice(ctx context.Context, encoded string) (string, error) {
	raw, err := decodeImage(encoded)
	if err != nil {
		return "", err
	}

	image, mimeType, err := d.processor.PrepareForVision(raw)
	if err != nil {
		return "", err
	}

	answer, err := d.describer.Describe(ctx, image, mimeType)
	if err != nil {
		return "", fmt.Errorf("describing image: %w", err)
	}

	device := cleanDeviceName(answer)
	if device == "" {
		return "", fmt.Errorf("%w: empty device name in %q", parser.ErrSchema, answer)
	}

	d.logger.Info("device detected",
		zap.String("device", device),
		zap.Int("image_bytes", len(raw)),
		zap.Int("sent_bytes", len(image)),
	)
	return device, nil
}

// decodeImage accepts padded or unpadded standard base64, optionally behind
// a "data:image/...;base64," prefix. Line breaks inside the payload are ignored.
func decodeImage(encoded string) ([]byte, error) {
	payload := strings.TrimSpace(encoded)
	if strings.HasPrefix(payload, "data:") {
		_, after, found := strings.Cut(payload, ",")
		if !found {
			return nil, fmt.Errorf("%w: malformed data URL", ErrInvalidImage)
		}
		payload = after
	}
	payload = strings.Join(strings.Fields(payload), "")
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return data, nil
}

// cleanDeviceName strips the quotes and punctuation vision models like to
// wrap a short answer in, and collapses whitespace.
func cleanDeviceName(answer string) string {
	name := strings.Join(strings.Fields(answer), " ")
	return strings.TrimSpace(strings.Trim(name, "\"'`*.!,;:"))
}
