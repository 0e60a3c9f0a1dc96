// imageprocessor.go - Khata photo intake and preprocessing for better handwriting recognition

package processor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
)

var (
	ErrEmptyImage       = errors.New("image is empty")
	ErrImageTooLarge    = errors.New("image exceeds the size limit")
	ErrUnsupportedImage = errors.New("unsupported image type")
)

// ImageBlob is one embeddable photo of a khata page.
type ImageBlob struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type"`
}

// Size returns the payload size in bytes
func (b ImageBlob) Size() int { return len(b.Data) }

// Options controls PrepareImage
type Options struct {
	Enhance      bool
	MaxDimension int
	MaxBytes     int
}

var supportedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// DetectMIMEType sniffs the content type, falling back to the declared one.
func DetectMIMEType(data []byte, declared string) string {
	sniffed := http.DetectContentType(data)
	if i := strings.Index(sniffed, ";"); i >= 0 {
		sniffed = sniffed[:i]
	}
	if supportedTypes[sniffed] {
		return sniffed
	}
	declared = strings.ToLower(strings.TrimSpace(declared))
	if supportedTypes[declared] && sniffed == "application/octet-stream" {
		return declared
	}
	return sniffed
}

// PrepareImage validates a raw upload and optionally enhances it.
// Images the decoder cannot handle (webp) are passed through untouched.
func PrepareImage(data []byte, declaredType string, opts Options) (ImageBlob, error) {
	if len(data) == 0 {
		return ImageBlob{}, ErrEmptyImage
	}
	if opts.MaxBytes > 0 && len(data) > opts.MaxBytes {
		return ImageBlob{}, fmt.Errorf("%w: %d bytes (max %d)", ErrImageTooLarge, len(data), opts.MaxBytes)
	}

	mimeType := DetectMIMEType(data, declaredType)
	if !supportedTypes[mimeType] {
		return ImageBlob{}, fmt.Errorf("%w: %s", ErrUnsupportedImage, mimeType)
	}

	original := ImageBlob{Data: data, MIMEType: mimeType}
	if !opts.Enhance || mimeType == "image/webp" {
		return original, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return ImageBlob{}, fmt.Errorf("failed to decode image: %w", err)
	}

	img = resizeToFit(img, opts.MaxDimension)

	qualityScore := analyzeImageQuality(img)
	switch {
	case qualityScore < 50:
		img = applyAggressiveEnhancement(img)
	case qualityScore < 75:
		img = applyStandardEnhancement(img)
	default:
		img = applyLightEnhancement(img)
	}

	var buf bytes.Buffer
	outType := "image/jpeg"
	if mimeType == "image/png" {
		err = png.Encode(&buf, img)
		outType = "image/png"
	} else {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	}
	if err != nil {
		return ImageBlob{}, fmt.Errorf("failed to encode processed image: %w", err)
	}

	return ImageBlob{Data: buf.Bytes(), MIMEType: outType}, nil
}

func resizeToFit(img image.Image, maxDimension int) image.Image {
	if maxDimension <= 0 {
		return img
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxDimension && height <= maxDimension {
		return img
	}
	if width > height {
		return imaging.Resize(img, maxDimension, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, maxDimension, imaging.Lanczos)
}

// analyzeImageQuality returns a 0-100 score from sampled brightness and contrast
func analyzeImageQuality(img image.Image) float64 {
	bounds := img.Bounds()

	var totalBrightness float64
	minBrightness := 255.0
	maxBrightness := 0.0
	pixelCount := 0

	step := 10
	if bounds.Dx() < 100 || bounds.Dy() < 100 {
		step = 1
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			r, g, b, _ := img.At(x, y).RGBA()
			brightness := (float64(r>>8) + float64(g>>8) + float64(b>>8)) / 3.0

			totalBrightness += brightness
			minBrightness = math.Min(minBrightness, brightness)
			maxBrightness = math.Max(maxBrightness, brightness)
			pixelCount++
		}
	}
	if pixelCount == 0 {
		return 0
	}

	avgBrightness := totalBrightness / float64(pixelCount)
	contrast := maxBrightness - minBrightness

	// Ideal page photo: mid brightness, wide contrast between ink and paper
	brightnessScore := 100.0 - math.Abs(avgBrightness-128.0)/1.28
	contrastScore := math.Min(contrast/2.0, 100.0)

	return (brightnessScore * 0.4) + (contrastScore * 0.6)
}

func applyLightEnhancement(img image.Image) image.Image {
	result := imaging.Sharpen(img, 1.5)
	result = imaging.Grayscale(result)
	return imaging.AdjustContrast(result, 20)
}

func applyStandardEnhancement(img image.Image) image.Image {
	result := imaging.Sharpen(img, 2.5)
	result = imaging.AdjustContrast(result, 40)
	result = imaging.Grayscale(result)
	return imaging.AdjustGamma(result, 1.1)
}

// applyAggressiveEnhancement for dim or washed-out pencil marks
func applyAggressiveEnhancement(img image.Image) image.Image {
	result := imaging.Sharpen(img, 3.5)
	result = imaging.AdjustContrast(result, 55)
	result = imaging.AdjustBrightness(result, 20)
	result = imaging.Grayscale(result)
	result = imaging.AdjustGamma(result, 1.25)
	result = imaging.Blur(result, 0.5)
	return imaging.Sharpen(result, 2.0)
}
