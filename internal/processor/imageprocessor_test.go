package processor

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(255)
			if (x+y)%7 == 0 {
				v = 20
			}
			img.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPrepareImageEnhancesAndResizes(t *testing.T) {
	data := samplePNG(t, 300, 120)

	blob, err := PrepareImage(data, "", Options{Enhance: true, MaxDimension: 150})
	require.NoError(t, err)
	assert.Equal(t, "image/png", blob.MIMEType)

	decoded, _, err := image.Decode(bytes.NewReader(blob.Data))
	require.NoError(t, err)
	assert.Equal(t, 150, decoded.Bounds().Dx())
}

func TestPrepareImagePassThrough(t *testing.T) {
	data := samplePNG(t, 10, 10)

	blob, err := PrepareImage(data, "image/png", Options{})
	require.NoError(t, err)
	assert.Equal(t, data, blob.Data)
}

func TestPrepareImageRejects(t *testing.T) {
	_, err := PrepareImage(nil, "", Options{})
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = PrepareImage(samplePNG(t, 40, 40), "", Options{MaxBytes: 10})
	assert.ErrorIs(t, err, ErrImageTooLarge)

	_, err = PrepareImage([]byte("I am not a picture of a khata"), "", Options{})
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestDetectMIMEType(t *testing.T) {
	assert.Equal(t, "image/png", DetectMIMEType(samplePNG(t, 2, 2), "image/jpeg"))
}
