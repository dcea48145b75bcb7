package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/labstack/echo/v4"
)

// pngHeader is enough of a PNG file for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func pngImage(t *testing.T) *Image {
	t.Helper()
	img, err := NewImage("photo.png", bytes.NewReader(pngHeader), 1<<20)
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	return img
}

func TestNewImage_Validation(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		max     int64
		wantErr error
	}{
		{"png", pngHeader, 1 << 20, nil},
		{"jpeg", []byte("\xff\xd8\xff\xe0\x00\x10JFIF"), 1 << 20, nil},
		{"gif", []byte("GIF89a......"), 1 << 20, nil},
		{"empty", nil, 1 << 20, ErrEmptyImage},
		{"text", []byte("hello, world"), 1 << 20, ErrUnsupportedImage},
		{"pdf", []byte("%PDF-1.4\n"), 1 << 20, ErrUnsupportedImage},
		{"too large", pngHeader, 4, ErrImageTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := NewImage("f", bytes.NewReader(tt.data), tt.max)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if err == nil && img.Ext() == "" {
				t.Errorf("expected an extension for %s", img.ContentType)
			}
		})
	}
}

func TestReadImage_FromMultipart(t *testing.T) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, _ := w.CreateFormFile("image", "cover.png")
	part.Write(pngHeader)
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("parse: %v", err)
	}
	fh := req.MultipartForm.File["image"][0]

	img, err := ReadImage(fh, 1<<20)
	if err != nil {
		t.Fatalf("ReadImage: %v", err)
	}
	if img.ContentType != "image/png" || img.FileName != "cover.png" {
		t.Errorf("unexpected image %+v", img)
	}

	if _, err := ReadImage(fh, 2); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("expected ErrImageTooLarge, got %v", err)
	}
}

func TestInMemoryStore_UploadGetDelete(t *testing.T) {
	store := NewInMemoryStore("http://localhost:8000/uploads")
	ctx := context.Background()

	url, err := store.Upload(ctx, pngImage(t))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(url, "http://localhost:8000/uploads/blogs/") || !strings.HasSuffix(url, ".png") {
		t.Errorf("unexpected url %s", url)
	}
	got, hash, ok := store.Get(url)
	if !ok || !bytes.Equal(got.Data, pngHeader) || len(hash) != 64 {
		t.Fatalf("stored image mismatch: ok=%v hash=%q", ok, hash)
	}

	if err := store.Delete(ctx, "https://elsewhere/x.png"); !errors.Is(err, ErrForeignURL) {
		t.Errorf("expected ErrForeignURL, got %v", err)
	}
	if err := store.Delete(ctx, url); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.Len() != 0 {
		t.Error("expected store to be empty")
	}
}

func TestInMemoryStore_ConcurrentUploads(t *testing.T) {
	store := NewInMemoryStore("")
	img := pngImage(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Upload(context.Background(), img); err != nil {
				t.Errorf("upload: %v", err)
			}
		}()
	}
	wg.Wait()
	if store.Len() != 50 {
		t.Errorf("expected 50 images, got %d", store.Len())
	}
}

// -- S3 --

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	deletes []*s3.DeleteObjectInput
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, f.err
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, in)
	return &s3.DeleteObjectOutput{}, f.err
}

func TestS3Store(t *testing.T) {
	fake := &fakeS3{}
	store := newS3Store(fake, "clinic-assets", "eu-west-1", "")
	ctx := context.Background()

	url, err := store.Upload(ctx, pngImage(t))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(fake.puts) != 1 {
		t.Fatalf("expected one PutObject, got %d", len(fake.puts))
	}
	put := fake.puts[0]
	if *put.Bucket != "clinic-assets" || !strings.HasPrefix(*put.Key, "blogs/") || *put.ContentType != "image/png" {
		t.Errorf("unexpected put %+v", put)
	}
	body, _ := io.ReadAll(put.Body)
	if !bytes.Equal(body, pngHeader) {
		t.Error("body mismatch")
	}
	if url != "https://clinic-assets.s3.eu-west-1.amazonaws.com/"+*put.Key {
		t.Errorf("unexpected url %s", url)
	}

	if err := store.Delete(ctx, url); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if *fake.deletes[0].Key != *put.Key {
		t.Errorf("deleted %s, want %s", *fake.deletes[0].Key, *put.Key)
	}
	if err := store.Delete(ctx, "https://cdn.other/blogs/x.png"); !errors.Is(err, ErrForeignURL) {
		t.Errorf("expected ErrForeignURL, got %v", err)
	}
}

func TestS3Store_PublicURLAndErrors(t *testing.T) {
	fake := &fakeS3{err: errors.New("access denied")}
	store := newS3Store(fake, "b", "us-east-1", "https://cdn.clinic.test/")

	if _, err := store.Upload(context.Background(), pngImage(t)); err == nil {
		t.Fatal("expected upload error")
	}
	if store.publicURL != "https://cdn.clinic.test" {
		t.Errorf("unexpected public url %s", store.publicURL)
	}
}

// -- Cloudinary --

type fakeCloudinary struct {
	uploads  []uploader.UploadParams
	destroys []uploader.DestroyParams
	result   uploader.UploadResult
	err      error
}

func (f *fakeCloudinary) Upload(_ context.Context, _ interface{}, p uploader.UploadParams) (*uploader.UploadResult, error) {
	f.uploads = append(f.uploads, p)
	if f.err != nil {
		return nil, f.err
	}
	res := f.result
	return &res, nil
}

func (f *fakeCloudinary) Destroy(_ context.Context, p uploader.DestroyParams) (*uploader.DestroyResult, error) {
	f.destroys = append(f.destroys, p)
	return &uploader.DestroyResult{Result: "ok"}, f.err
}

func TestCloudinaryStore(t *testing.T) {
	fake := &fakeCloudinary{result: uploader.UploadResult{SecureURL: "https://res.cloudinary.com/demo/image/upload/v1712/blogs/abc.png"}}
	store := &CloudinaryStore{api: fake}
	ctx := context.Background()

	url, err := store.Upload(ctx, pngImage(t))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != fake.result.SecureURL || fake.uploads[0].Folder != Folder {
		t.Errorf("unexpected upload url=%s params=%+v", url, fake.uploads[0])
	}

	if err := store.Delete(ctx, url); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if fake.destroys[0].PublicID != "blogs/abc" {
		t.Errorf("unexpected public id %q", fake.destroys[0].PublicID)
	}

	fake.result = uploader.UploadResult{Error: api.ErrorResp{Message: "Invalid image file"}}
	if _, err := store.Upload(ctx, pngImage(t)); err == nil || !strings.Contains(err.Error(), "Invalid image file") {
		t.Errorf("expected API error to surface, got %v", err)
	}
}

func TestCloudinaryPublicID(t *testing.T) {
	tests := []struct {
		url  string
		want string
		ok   bool
	}{
		{"https://res.cloudinary.com/demo/image/upload/v1712/blogs/abc.jpg", "blogs/abc", true},
		{"https://res.cloudinary.com/demo/image/upload/blogs/abc.jpg", "blogs/abc", true},
		{"https://res.cloudinary.com/demo/image/upload/vacation/abc.jpg", "vacation/abc", true},
		{"https://example.com/abc.jpg", "", false},
	}
	for _, tt := range tests {
		got, ok := cloudinaryPublicID(tt.url)
		if got != tt.want || ok != tt.ok {
			t.Errorf("cloudinaryPublicID(%q) = %q, %v; want %q, %v", tt.url, got, ok, tt.want, tt.ok)
		}
	}
}

func TestInMemoryStore_Serve(t *testing.T) {
	store := NewInMemoryStore("http://localhost:8000" + ServePrefix)
	url, err := store.Upload(context.Background(), pngImage(t))
	if err != nil {
		t.Fatal(err)
	}
	e := echo.New()
	store.RegisterRoutes(e)

	path := strings.TrimPrefix(url, "http://localhost:8000")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderContentType) != "image/png" {
		t.Fatalf("expected png, got %d %s", rec.Code, rec.Header().Get(echo.HeaderContentType))
	}
	if !bytes.Equal(rec.Body.Bytes(), pngHeader) {
		t.Error("body mismatch")
	}

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("If-None-Match", rec.Header().Get("ETag"))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("expected 304, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, ServePrefix+"/blogs/missing.png", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
