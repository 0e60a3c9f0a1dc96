package api

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/bosocmputer/khata_ocr/internal/common"
	"github.com/bosocmputer/khata_ocr/internal/khata"
	"github.com/bosocmputer/khata_ocr/internal/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInline(t *testing.T) {
	raw := []byte("khata page")
	enc := base64.StdEncoding.EncodeToString(raw)

	data, mime, err := decodeInline(InlineImage{Data: "data:image/jpeg;base64," + enc})
	require.NoError(t, err)
	assert.Equal(t, raw, data)
	assert.Equal(t, "image/jpeg", mime)

	data, mime, err = decodeInline(InlineImage{Data: "  " + enc + "\n", MIMEType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, raw, data)
	assert.Equal(t, "image/png", mime)

	_, _, err = decodeInline(InlineImage{Data: "data:image/png," + enc})
	assert.Error(t, err)

	_, _, err = decodeInline(InlineImage{Data: "data:image/png;base64"})
	assert.Error(t, err)

	_, _, err = decodeInline(InlineImage{Data: "!!not base64!!"})
	assert.Error(t, err)
}

func imageServer(t *testing.T, body []byte, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFromRequestDownloadsURLs(t *testing.T) {
	var hits int32
	srv := imageServer(t, pngBytes(t), &hits)
	in := NewIntake(processor.Options{MaxBytes: 1 << 20}, khata.MaxImages)

	blobs, err := in.FromRequest(context.Background(), ExtractRequest{
		Images:    []InlineImage{{Data: base64.StdEncoding.EncodeToString(pngBytes(t))}},
		ImageURLs: []string{srv.URL + "/page2.png"},
	}, common.NewRequestContext(""))
	require.NoError(t, err)
	require.Len(t, blobs, 2)
	assert.Equal(t, "image/png", blobs[1].MIMEType)
	assert.Equal(t, int32(1), hits)
}

func TestFromRequestFailures(t *testing.T) {
	var hits int32
	srv := imageServer(t, pngBytes(t), &hits)
	in := NewIntake(processor.Options{MaxBytes: 64}, 2)

	_, err := in.FromRequest(context.Background(), ExtractRequest{
		ImageURLs: []string{srv.URL + "/a.png", srv.URL + "/b.png", srv.URL + "/c.png"},
	}, common.NewRequestContext(""))
	assert.ErrorIs(t, err, khata.ErrTooManyImages)
	assert.Equal(t, int32(0), hits)

	_, err = in.FromRequest(context.Background(), ExtractRequest{
		ImageURLs: []string{srv.URL + "/missing.png"},
	}, common.NewRequestContext(""))
	assert.ErrorIs(t, err, ErrBadImage)
	assert.Contains(t, err.Error(), "HTTP 404")

	_, err = in.FromRequest(context.Background(), ExtractRequest{
		Images: []InlineImage{{Data: base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", 10)))}},
	}, common.NewRequestContext(""))
	assert.ErrorIs(t, err, ErrBadImage)
}

func TestReadLimited(t *testing.T) {
	in := NewIntake(processor.Options{MaxBytes: 4}, 1)

	data, err := in.readLimited(strings.NewReader("abcd"))
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(data))

	_, err = in.readLimited(strings.NewReader("abcde"))
	assert.ErrorIs(t, err, processor.ErrImageTooLarge)
}
