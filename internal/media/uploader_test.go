package media

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/openbasket/storefront-client/internal/rest"
	"github.com/openbasket/storefront-client/internal/session"
	pkgerrors "github.com/openbasket/storefront-client/pkg/errors"
	"github.com/openbasket/storefront-client/pkg/logger"
)

type fakeAPI struct {
	calls     []rest.Request
	responses map[string]any
}

func (f *fakeAPI) Do(ctx context.Context, req rest.Request, out any) error {
	f.calls = append(f.calls, req)
	if resp, ok := f.responses[req.Method+" "+req.Path]; ok && out != nil {
		encoded, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		return json.Unmarshal(encoded, out)
	}
	return nil
}

func newTestUploader(t *testing.T, api *fakeAPI, maxBytes int64) *Uploader {
	t.Helper()
	sess := session.NewStore()
	if err := sess.SetTokens("access-1", "refresh-1"); err != nil {
		t.Fatalf("seeding session: %v", err)
	}
	uploader, err := NewUploader(Options{
		API:      api,
		Session:  sess,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		MaxBytes: maxBytes,
	})
	if err != nil {
		t.Fatalf("building uploader: %v", err)
	}
	return uploader
}

func TestPresignNormalizesExtension(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{responses: map[string]any{
		"POST /api/media/presign-upload": map[string]string{
			"upload_url": "https://storage.example/put/abc",
			"media_url":  "https://cdn.example/media/abc.png",
		},
	}}
	uploader := newTestUploader(t, api, 0)

	presign, err := uploader.PresignUpload(context.Background(), PresignInput{
		MediaType:     "image",
		FileExtension: " .PNG ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if presign.MediaURL != "https://cdn.example/media/abc.png" {
		t.Fatalf("unexpected media url: %q", presign.MediaURL)
	}

	body, ok := api.calls[0].Body.(PresignInput)
	if !ok {
		t.Fatalf("unexpected body type %T", api.calls[0].Body)
	}
	if body.FileExtension != "png" {
		t.Fatalf("extension not normalized: %q", body.FileExtension)
	}
}

func TestPresignRejectsBadInput(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	uploader := newTestUploader(t, api, 0)

	_, err := uploader.PresignUpload(context.Background(), PresignInput{MediaType: "gif", FileExtension: "gif"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(api.calls) != 0 {
		t.Fatalf("invalid input must not reach the network, saw %d calls", len(api.calls))
	}
}

func TestPresignRequiresSession(t *testing.T) {
	t.Parallel()

	uploader, err := NewUploader(Options{
		API:     &fakeAPI{},
		Session: session.NewStore(),
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("building uploader: %v", err)
	}

	_, err = uploader.PresignUpload(context.Background(), PresignInput{MediaType: "image", FileExtension: "png"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthenticated {
		t.Fatalf("expected unauthenticated error, got %v", err)
	}
}

func TestUploadOmitsIdentityHeaders(t *testing.T) {
	t.Parallel()

	var gotHeaders http.Header
	var gotBody []byte
	router := chi.NewRouter()
	router.Put("/put/abc", func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})
	storage := httptest.NewServer(router)
	defer storage.Close()

	uploader := newTestUploader(t, &fakeAPI{}, 0)
	payload := []byte("fake image bytes")

	err := uploader.Upload(context.Background(), storage.URL+"/put/abc", "image/png", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(gotBody) != string(payload) {
		t.Fatal("uploaded bytes do not match")
	}
	if gotHeaders.Get("Content-Type") != "image/png" {
		t.Fatalf("content type not forwarded: %q", gotHeaders.Get("Content-Type"))
	}
	for _, forbidden := range []string{"Authorization", "X-Platform", "X-Device-Fingerprint", "X-Request-Id"} {
		if got := gotHeaders.Get(forbidden); got != "" {
			t.Fatalf("storage request must not carry %s, got %q", forbidden, got)
		}
	}
}

func TestUploadEnforcesSizeCap(t *testing.T) {
	t.Parallel()

	uploader := newTestUploader(t, &fakeAPI{}, 8)

	err := uploader.Upload(context.Background(), "https://storage.example/put/abc", "image/png", []byte("way past the cap"))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUploadSurfacesStorageRejection(t *testing.T) {
	t.Parallel()

	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer storage.Close()

	uploader := newTestUploader(t, &fakeAPI{}, 0)

	err := uploader.Upload(context.Background(), storage.URL+"/put/abc", "image/png", []byte("bytes"))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeBackend {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestUploadMediaReturnsPublicURL(t *testing.T) {
	t.Parallel()

	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer storage.Close()

	api := &fakeAPI{responses: map[string]any{
		"POST /api/media/presign-upload": map[string]string{
			"upload_url": storage.URL + "/put/xyz",
			"media_url":  "https://cdn.example/media/xyz.jpg",
		},
	}}
	uploader := newTestUploader(t, api, 0)

	mediaURL, err := uploader.UploadMedia(context.Background(), PresignInput{
		MediaType:     "image",
		FileExtension: "jpg",
	}, "image/jpeg", []byte("bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mediaURL != "https://cdn.example/media/xyz.jpg" {
		t.Fatalf("unexpected media url: %q", mediaURL)
	}
}
