// Package blobstore uploads article images to an external asset host and
// returns the public URL stored with the article. Cloudinary and S3 are the
// production backends; InMemoryStore serves development and tests.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrEmptyImage       = apperr.New(apperr.ErrValidation, "image is empty")
	ErrImageTooLarge    = apperr.New(apperr.ErrValidation, "image exceeds the maximum upload size")
	ErrUnsupportedImage = apperr.New(apperr.ErrValidation, "image must be a JPEG, PNG, GIF or WebP file")
	ErrForeignURL       = fmt.Errorf("url does not belong to this image store")
)

// Folder groups article images on every backend.
const Folder = "blogs"

// AllowedContentTypes maps accepted image types to the extension used for
// stored object names.
var AllowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Image is an upload that passed validation.
type Image struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Ext returns the object name extension for the image's content type.
func (img *Image) Ext() string {
	return AllowedContentTypes[img.ContentType]
}

// ImageStore stores images and hands back their public URL.
type ImageStore interface {
	Upload(ctx context.Context, img *Image) (string, error)
	Delete(ctx context.Context, url string) error
}

// ReadImage reads a multipart file and validates it. The content type is
// sniffed from the bytes; the client's declared type is ignored.
func ReadImage(fh *multipart.FileHeader, maxSize int64) (*Image, error) {
	if fh.Size > maxSize {
		return nil, ErrImageTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return NewImage(fh.Filename, f, maxSize)
}

// NewImage reads at most maxSize bytes from r and validates the result.
func NewImage(fileName string, r io.Reader, maxSize int64) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if int64(len(data)) > maxSize {
		return nil, ErrImageTooLarge
	}

	contentType := http.DetectContentType(data)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	if _, ok := AllowedContentTypes[contentType]; !ok {
		return nil, ErrUnsupportedImage
	}
	return &Image{FileName: fileName, ContentType: contentType, Data: data}, nil
}

// objectName is the folder-qualified name used by the key based backends.
func objectName(img *Image) string {
	return Folder + "/" + uuid.New().String() + img.Ext()
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type storedImage struct {
	image Image
	hash  string
}

// InMemoryStore is a thread-safe ImageStore that keeps images in memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	images  map[string]*storedImage
}

// NewInMemoryStore returns a store whose URLs start with baseURL.
func NewInMemoryStore(baseURL string) *InMemoryStore {
	if baseURL == "" {
		baseURL = "memory://"
	}
	return &InMemoryStore{
		baseURL: strings.TrimSuffix(baseURL, "/") + "/",
		images:  make(map[string]*storedImage),
	}
}

func (s *InMemoryStore) Upload(_ context.Context, img *Image) (string, error) {
	url := s.baseURL + objectName(img)
	h := sha256.Sum256(img.Data)

	s.mu.Lock()
	s.images[url] = &storedImage{
		image: Image{FileName: img.FileName, ContentType: img.ContentType, Data: bytes.Clone(img.Data)},
		hash:  fmt.Sprintf("%x", h),
	}
	s.mu.Unlock()
	return url, nil
}

// Delete removes the image. Unknown URLs are ignored.
func (s *InMemoryStore) Delete(_ context.Context, url string) error {
	if !strings.HasPrefix(url, s.baseURL) {
		return ErrForeignURL
	}
	s.mu.Lock()
	delete(s.images, url)
	s.mu.Unlock()
	return nil
}

// Get returns a stored image and its SHA-256 hash.
func (s *InMemoryStore) Get(url string) (*Image, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.images[url]
	if !ok {
		return nil, "", false
	}
	img := stored.image
	return &img, stored.hash, true
}

func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}
