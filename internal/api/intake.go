// intake.go - Collect khata images from multipart uploads, base64 and URLs

package api

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/bosocmputer/khata_ocr/internal/common"
	"github.com/bosocmputer/khata_ocr/internal/khata"
	"github.com/bosocmputer/khata_ocr/internal/processor"
)

// ErrBadImage marks an image the client sent that cannot be used
var ErrBadImage = errors.New("invalid image")

// Intake turns the three upload forms into prepared image blobs
type Intake struct {
	opts      processor.Options
	maxImages int
	client    *http.Client
}

// NewIntake creates an Intake. maxImages caps the count before any download.
func NewIntake(opts processor.Options, maxImages int) *Intake {
	return &Intake{
		opts:      opts,
		maxImages: maxImages,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (in *Intake) checkCount(n int) error {
	switch {
	case n == 0:
		return khata.ErrNoImages
	case in.maxImages > 0 && n > in.maxImages:
		return fmt.Errorf("%w (got %d)", khata.ErrTooManyImages, n)
	}
	return nil
}

// FromMultipart reads every file under the "images" field
func (in *Intake) FromMultipart(form *multipart.Form, reqCtx *common.RequestContext) ([]processor.ImageBlob, error) {
	files := form.File["images"]
	if err := in.checkCount(len(files)); err != nil {
		return nil, err
	}

	reqCtx.StartStep("image_intake")
	blobs := make([]processor.ImageBlob, 0, len(files))
	for i, fh := range files {
		data, err := in.readFile(fh)
		if err != nil {
			reqCtx.EndStep("failed", nil, err)
			return nil, fmt.Errorf("%w %d (%s): %w", ErrBadImage, i+1, fh.Filename, err)
		}
		blob, err := in.prepare(data, fh.Header.Get("Content-Type"), reqCtx)
		if err != nil {
			reqCtx.EndStep("failed", nil, err)
			return nil, fmt.Errorf("%w %d (%s): %w", ErrBadImage, i+1, fh.Filename, err)
		}
		blobs = append(blobs, blob)
	}
	reqCtx.EndStep("success", nil, nil)
	return blobs, nil
}

func (in *Intake) readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return in.readLimited(f)
}

// FromRequest decodes inline images, then downloads URLs, in that order
func (in *Intake) FromRequest(ctx context.Context, req ExtractRequest, reqCtx *common.RequestContext) ([]processor.ImageBlob, error) {
	if err := in.checkCount(len(req.Images) + len(req.ImageURLs)); err != nil {
		return nil, err
	}

	reqCtx.StartStep("image_intake")
	blobs := make([]processor.ImageBlob, 0, len(req.Images)+len(req.ImageURLs))
	for i, img := range req.Images {
		data, declared, err := decodeInline(img)
		if err == nil {
			var blob processor.ImageBlob
			blob, err = in.prepare(data, declared, reqCtx)
			blobs = append(blobs, blob)
		}
		if err != nil {
			reqCtx.EndStep("failed", nil, err)
			return nil, fmt.Errorf("%w %d: %w", ErrBadImage, i+1, err)
		}
	}

	for i, url := range req.ImageURLs {
		data, declared, err := in.download(ctx, url)
		if err == nil {
			var blob processor.ImageBlob
			blob, err = in.prepare(data, declared, reqCtx)
			blobs = append(blobs, blob)
		}
		if err != nil {
			reqCtx.EndStep("failed", nil, err)
			return nil, fmt.Errorf("%w %d (%s): %w", ErrBadImage, len(req.Images)+i+1, url, err)
		}
	}
	reqCtx.EndStep("success", nil, nil)
	return blobs, nil
}

func (in *Intake) prepare(data []byte, declared string, reqCtx *common.RequestContext) (processor.ImageBlob, error) {
	if in.opts.Enhance {
		reqCtx.StartSubStep("preprocess_images")
	}
	blob, err := processor.PrepareImage(data, declared, in.opts)
	if in.opts.Enhance {
		reqCtx.EndSubStep(fmt.Sprintf("%d → %d bytes", len(data), blob.Size()))
	}
	return blob, err
}

// decodeInline accepts "data:image/png;base64,...." or bare base64
func decodeInline(img InlineImage) ([]byte, string, error) {
	payload := strings.TrimSpace(img.Data)
	declared := img.MIMEType
	if strings.HasPrefix(payload, "data:") {
		comma := strings.Index(payload, ",")
		if comma < 0 {
			return nil, "", errors.New("malformed data URL")
		}
		meta := payload[len("data:"):comma]
		if !strings.HasSuffix(meta, ";base64") {
			return nil, "", errors.New("data URL is not base64 encoded")
		}
		if declared == "" {
			declared = strings.TrimSuffix(meta, ";base64")
		}
		payload = payload[comma+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64: %w", err)
	}
	return data, declared, nil
}

// download fetches an image URL, refusing bodies over the size limit
func (in *Intake) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := in.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	data, err := in.readLimited(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (in *Intake) readLimited(r io.Reader) ([]byte, error) {
	if in.opts.MaxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, int64(in.opts.MaxBytes)+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > in.opts.MaxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", processor.ErrImageTooLarge, in.opts.MaxBytes)
	}
	return data, nil
}
