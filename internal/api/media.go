package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"

	"github.com/onnwee/askaround/internal/model"
	"github.com/onnwee/askaround/internal/validate"
)

// ErrUploadSizeMismatch is returned when the reader length differs from
// the declared size.
var ErrUploadSizeMismatch = errors.New("upload size mismatch")

// UploadMedia uploads an image as multipart form field "file" and returns
// the stored asset. size must be the exact byte length of r.
func (c *Client) UploadMedia(ctx context.Context, filename, mimeType string, r io.Reader, size int64) (model.MediaAsset, error) {
	mt, err := validate.ImageUpload(mimeType, size)
	if err != nil {
		return model.MediaAsset{}, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename)))
	h.Set("Content-Type", mt)
	part, err := mw.CreatePart(h)
	if err != nil {
		return model.MediaAsset{}, fmt.Errorf("create upload part: %w", err)
	}
	n, err := io.Copy(part, io.LimitReader(r, validate.MaxImageBytes+1))
	if err != nil {
		return model.MediaAsset{}, fmt.Errorf("read upload: %w", err)
	}
	if n != size {
		return model.MediaAsset{}, fmt.Errorf("%w: read %d bytes, expected %d", ErrUploadSizeMismatch, n, size)
	}
	if err := mw.Close(); err != nil {
		return model.MediaAsset{}, fmt.Errorf("finish upload body: %w", err)
	}

	var out model.UploadResult
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/media/upload",
		body:        &buf,
		contentType: mw.FormDataContentType(),
	}, &out)
	return out.Asset, err
}
