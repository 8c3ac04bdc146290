package media

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openbasket/storefront-client/internal/rest"
	"github.com/openbasket/storefront-client/internal/session"
	pkgerrors "github.com/openbasket/storefront-client/pkg/errors"
	"github.com/openbasket/storefront-client/pkg/logger"
	"github.com/openbasket/storefront-client/pkg/validate"
)

type apiClient interface {
	Do(ctx context.Context, req rest.Request, out any) error
}

// Uploader implements the two-step media flow: ask the backend for a
// presigned destination, then push the bytes straight to storage. The
// second step deliberately bypasses the backend client so no bearer
// token or identity headers leak to the storage provider.
type Uploader struct {
	api      apiClient
	session  *session.Store
	logger   *logger.Logger
	storage  *http.Client
	maxBytes int64
}

type Options struct {
	API      apiClient
	Session  *session.Store
	Logger   *logger.Logger
	Storage  *http.Client
	Timeout  time.Duration
	MaxBytes int64
}

func NewUploader(opts Options) (*Uploader, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("api client required")
	}
	if opts.Session == nil {
		return nil, fmt.Errorf("session store required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	storage := opts.Storage
	if storage == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Minute
		}
		storage = &http.Client{Timeout: timeout}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	return &Uploader{
		api:      opts.API,
		session:  opts.Session,
		logger:   opts.Logger,
		storage:  storage,
		maxBytes: maxBytes,
	}, nil
}

type PresignInput struct {
	MediaType     string `json:"media_type" validate:"required,oneof=image video"`
	FileExtension string `json:"file_extension" validate:"required"`
}

// Presign holds the temporary destination returned by the backend.
// UploadURL accepts a single PUT; MediaURL is the public address to
// attach to the product afterwards.
type Presign struct {
	UploadURL string `json:"upload_url"`
	MediaURL  string `json:"media_url"`
}

func (u *Uploader) PresignUpload(ctx context.Context, input PresignInput) (*Presign, error) {
	if !u.session.Authenticated() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "sign in required")
	}
	input.FileExtension = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(input.FileExtension)), ".")
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	var presign Presign
	err := u.api.Do(ctx, rest.Request{Method: "POST", Path: "/api/media/presign-upload", Body: input}, &presign)
	if err != nil {
		return nil, err
	}
	if presign.UploadURL == "" || presign.MediaURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeBackend, "presign response missing urls")
	}
	return &presign, nil
}

// Upload PUTs the raw bytes to the presigned destination.
func (u *Uploader) Upload(ctx context.Context, uploadURL, contentType string, data []byte) error {
	if uploadURL == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "upload url required")
	}
	if len(data) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "upload body is empty")
	}
	if int64(len(data)) > u.maxBytes {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("upload exceeds %d byte limit", u.maxBytes))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building upload request")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.ContentLength = int64(len(data))

	resp, err := u.storage.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeTransport, err, "uploading media")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return pkgerrors.New(pkgerrors.CodeBackend,
			fmt.Sprintf("storage rejected upload with status %d", resp.StatusCode))
	}
	u.logger.Debug(ctx, "media upload complete")
	return nil
}

// UploadMedia runs the full presign-then-put sequence and returns the
// public media URL ready to attach to a product.
func (u *Uploader) UploadMedia(ctx context.Context, input PresignInput, contentType string, data []byte) (string, error) {
	presign, err := u.PresignUpload(ctx, input)
	if err != nil {
		return "", err
	}
	if err := u.Upload(ctx, presign.UploadURL, contentType, data); err != nil {
		return "", err
	}
	return presign.MediaURL, nil
}
