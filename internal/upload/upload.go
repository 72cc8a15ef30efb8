package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog/log"
)

const (
	Folder       = "wahret-zmen"
	MaxImageSize = 10 << 20
)

var (
	ErrNoFile          = errors.New("no image uploaded")
	ErrTooLarge        = errors.New("image exceeds the 10 MiB limit")
	ErrUnsupportedType = errors.New("only image files are accepted")
	ErrUpstream        = errors.New("image upload failed")
)

// Storage persists an image and returns its public URL.
type Storage interface {
	Store(ctx context.Context, r io.Reader, filename string) (string, error)
}

type CloudinaryStorage struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryStorage configures the client from a cloudinary:// URL.
func NewCloudinaryStorage(cloudinaryURL string) (*CloudinaryStorage, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("upload: invalid cloudinary url: %w", err)
	}
	return &CloudinaryStorage{cld: cld, folder: Folder}, nil
}

func (s *CloudinaryStorage) Store(ctx context.Context, r io.Reader, filename string) (string, error) {
	resp, err := s.cld.Upload.Upload(ctx, r, uploader.UploadParams{Folder: s.folder})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("%w: %s", ErrUpstream, resp.Error.Message)
	}

	log.Info().Str("file", filename).Str("public_id", resp.PublicID).Msg("upload: image stored")
	return resp.SecureURL, nil
}

// Unconfigured rejects every upload. It is used when no image host is set up.
type Unconfigured struct{}

func (Unconfigured) Store(context.Context, io.Reader, string) (string, error) {
	return "", fmt.Errorf("%w: no image host configured", ErrUpstream)
}

type Service interface {
	UploadImage(ctx context.Context, r io.Reader, filename, contentType string, size int64) (string, error)
}

type service struct {
	storage Storage
}

func NewService(storage Storage) Service {
	return &service{storage: storage}
}

func (s *service) UploadImage(ctx context.Context, r io.Reader, filename, contentType string, size int64) (string, error) {
	if r == nil {
		return "", ErrNoFile
	}
	if size > MaxImageSize {
		return "", ErrTooLarge
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return "", ErrUnsupportedType
	}

	url, err := s.storage.Store(ctx, r, filename)
	if err != nil {
		log.Error().Err(err).Str("file", filename).Msg("service: failed to upload image")
		if errors.Is(err, ErrUpstream) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return url, nil
}
