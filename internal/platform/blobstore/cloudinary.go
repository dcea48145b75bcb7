package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// cloudinaryUploader is the part of the Cloudinary upload API the store uses.
type cloudinaryUploader interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

// CloudinaryStore uploads images into the "blogs" folder of a Cloudinary
// account.
type CloudinaryStore struct {
	api cloudinaryUploader
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	return &CloudinaryStore{api: &cld.Upload}, nil
}

func (s *CloudinaryStore) Upload(ctx context.Context, img *Image) (string, error) {
	res, err := s.api.Upload(ctx, bytes.NewReader(img.Data), uploader.UploadParams{
		Folder:   Folder,
		PublicID: uuid.New().String(),
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	if res.SecureURL == "" {
		return "", fmt.Errorf("cloudinary upload: no url returned")
	}
	return res.SecureURL, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, url string) error {
	publicID, ok := cloudinaryPublicID(url)
	if !ok {
		return ErrForeignURL
	}
	res, err := s.api.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("cloudinary destroy: %w", err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("cloudinary destroy: %s", res.Error.Message)
	}
	return nil
}

// cloudinaryPublicID extracts "blogs/<id>" from a delivery URL such as
// https://res.cloudinary.com/<cloud>/image/upload/v1712/blogs/<id>.jpg.
func cloudinaryPublicID(url string) (string, bool) {
	_, rest, ok := strings.Cut(url, "/upload/")
	if !ok || rest == "" {
		return "", false
	}
	if first, after, found := strings.Cut(rest, "/"); found && len(first) > 1 && first[0] == 'v' && isDigits(first[1:]) {
		rest = after
	}
	rest = strings.TrimSuffix(rest, path.Ext(rest))
	return rest, rest != ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
