package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrUnsupportedContent = errors.New("unsupported content type")
)

const signedURLTTL = 5 * time.Minute

// Object kinds determine the key prefix and the accepted content types.
const (
	KindThumbnail    = "thumbnail"
	KindLectureVideo = "video"
	KindProfilePhoto = "photo"
)

var allowedContentTypes = map[string]map[string]bool{
	KindThumbnail: {
		"image/jpeg": true,
		"image/png":  true,
		"image/webp": true,
	},
	KindProfilePhoto: {
		"image/jpeg": true,
		"image/png":  true,
		"image/webp": true,
	},
	KindLectureVideo: {
		"video/mp4":       true,
		"video/webm":      true,
		"video/quicktime": true,
	},
}

type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type Service struct {
	storage ObjectStorage
}

type Object struct {
	Key string
	URL string
}

func NewService(storage ObjectStorage) *Service {
	return &Service{storage: storage}
}

func (s *Service) Upload(ctx context.Context, kind string, ownerID int64, fileName, contentType string, body io.Reader, size int64) (Object, error) {
	if ownerID <= 0 || body == nil || size <= 0 {
		return Object{}, ErrValidation
	}
	if s.storage == nil {
		return Object{}, fmt.Errorf("media storage is not configured")
	}

	allowed, ok := allowedContentTypes[kind]
	if !ok {
		return Object{}, ErrValidation
	}

	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if !allowed[contentType] {
		return Object{}, ErrUnsupportedContent
	}

	if err := s.storage.EnsureBucket(ctx); err != nil {
		return Object{}, fmt.Errorf("ensure bucket: %w", err)
	}

	key := buildObjectKey(kind, ownerID, fileName)
	if err := s.storage.PutObject(ctx, key, body, size, contentType); err != nil {
		return Object{}, fmt.Errorf("put object: %w", err)
	}

	url, err := s.storage.PresignGet(ctx, key, signedURLTTL)
	if err != nil {
		return Object{}, fmt.Errorf("presign object url: %w", err)
	}

	return Object{Key: key, URL: url}, nil
}

// ResolveURL signs a short lived download link for a stored object key.
func (s *Service) ResolveURL(ctx context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrValidation
	}
	if s.storage == nil {
		return "", fmt.Errorf("media storage is not configured")
	}

	url, err := s.storage.PresignGet(ctx, key, signedURLTTL)
	if err != nil {
		return "", fmt.Errorf("presign object url: %w", err)
	}

	return url, nil
}

func (s *Service) Remove(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrValidation
	}
	if s.storage == nil {
		return fmt.Errorf("media storage is not configured")
	}

	if err := s.storage.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	return nil
}

func buildObjectKey(kind string, ownerID int64, fileName string) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(fileName)))
	if ext == "" {
		ext = ".bin"
	}

	return fmt.Sprintf("%ss/%d/%s%s", kind, ownerID, uuid.NewString(), ext)
}
