package service

import (
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/storage"
	"storefront/internal/util"
	"storefront/pkg/apierror"
)

const (
	imageDir     = "image"
	UploadsRoute = "/uploads"
)

// ImageInput is one uploaded file as received from a multipart form.
type ImageInput struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}

type ImageService struct {
	store   storage.Storage
	maxSize int64
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewImageService(store storage.Storage, maxSize int64, m *metrics.Metrics) *ImageService {
	return &ImageService{store: store, maxSize: maxSize, metrics: m, now: time.Now}
}

// EnsureDir creates the image directory under the upload root.
func (s *ImageService) EnsureDir() error {
	return s.store.MkdirAll(path.Join("/", imageDir), 0o755)
}

// Save validates an uploaded image and stores it under a generated name. The
// returned path is the public one, /uploads/image/<name>.
func (s *ImageService) Save(input ImageInput) (model.UploadedImage, error) {
	img, err := s.save(input)
	s.metrics.ImageUpload(err == nil)
	return img, err
}

func (s *ImageService) save(input ImageInput) (model.UploadedImage, error) {
	safeName, err := util.SanitizeFilename(input.Filename, false)
	if err != nil {
		return model.UploadedImage{}, err
	}

	ext := strings.ToLower(filepath.Ext(safeName))
	if !util.IsImageExtension(ext) {
		return model.UploadedImage{}, apierror.BadRequest(
			fmt.Sprintf("Invalid file type: %s. Allowed: %s", ext, strings.Join(util.ImageExtensions, ", ")), safeName)
	}

	if input.Size > s.maxSize {
		return model.UploadedImage{}, apierror.TooLarge(
			fmt.Sprintf("image exceeds maximum size of %d bytes", s.maxSize), safeName)
	}

	mimeType, err := util.DetectMIME(input.Content)
	if err != nil {
		return model.UploadedImage{}, fmt.Errorf("sniff image: %w", err)
	}
	if !util.IsImageMIME(mimeType) {
		mimeType = util.MIMEForExtension(ext)
	}

	config, _, err := image.DecodeConfig(input.Content)
	if err != nil {
		return model.UploadedImage{}, apierror.Unsupported("file content is not a supported image", safeName)
	}
	if _, err := input.Content.Seek(0, io.SeekStart); err != nil {
		return model.UploadedImage{}, fmt.Errorf("rewind image: %w", err)
	}

	name, writer, err := s.createUnique(ext)
	if err != nil {
		return model.UploadedImage{}, err
	}

	written, copyErr := io.CopyBuffer(writer, io.LimitReader(input.Content, s.maxSize+1), make([]byte, 32*1024))
	closeErr := writer.Close()
	if copyErr == nil && written > s.maxSize {
		copyErr = apierror.TooLarge(fmt.Sprintf("image exceeds maximum size of %d bytes", s.maxSize), safeName)
	}
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = s.store.Remove(path.Join("/", imageDir, name))
		return model.UploadedImage{}, copyErr
	}

	return model.UploadedImage{
		Path:     path.Join(UploadsRoute, imageDir, name),
		Size:     written,
		MimeType: mimeType,
		Width:    config.Width,
		Height:   config.Height,
	}, nil
}

func (s *ImageService) createUnique(ext string) (string, *os.File, error) {
	for attempt := 0; attempt < 3; attempt++ {
		name := fmt.Sprintf("%d-%09d%s", s.now().UnixMilli(), rand.IntN(1_000_000_000), ext)
		file, err := s.store.Create(path.Join("/", imageDir, name))
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", nil, fmt.Errorf("create image file: %w", err)
		}
		return name, file, nil
	}

	return "", nil, fmt.Errorf("create image file: no free name")
}

// Remove deletes a stored image by its public path. Missing files and paths
// outside the image directory are ignored; failures are only logged.
func (s *ImageService) Remove(publicPath string) {
	clientPath, ok := s.clientPath(publicPath)
	if !ok {
		return
	}

	if err := s.store.Remove(clientPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to remove product image", "path", publicPath, "error", err)
	}
}

// Open returns a stored upload for serving. clientPath is relative to the
// upload root, e.g. /image/<name>.
func (s *ImageService) Open(clientPath string) (*os.File, fs.FileInfo, error) {
	info, err := s.store.Stat(clientPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, apierror.NotFound("file")
		}
		return nil, nil, err
	}
	if info.IsDir() {
		return nil, nil, apierror.NotFound("file")
	}

	file, err := s.store.OpenForRead(clientPath)
	if err != nil {
		return nil, nil, err
	}

	return file, info, nil
}

func (s *ImageService) clientPath(publicPath string) (string, bool) {
	prefix := path.Join(UploadsRoute, imageDir) + "/"
	if !strings.HasPrefix(publicPath, prefix) {
		return "", false
	}

	name := strings.TrimPrefix(publicPath, prefix)
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}

	return path.Join("/", imageDir, name), true
}
