package service

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront/internal/storage"
	"storefront/pkg/apierror"
)

func pngBytes(t *testing.T, w int, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func pngInput(t *testing.T, name string) ImageInput {
	t.Helper()
	data := pngBytes(t, 3, 2)
	return ImageInput{Filename: name, Size: int64(len(data)), Content: bytes.NewReader(data)}
}

func TestImageServiceSave(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store, err := storage.New(root)
	require.NoError(t, err)
	svc := NewImageService(store, 1<<20, nil)

	t.Run("stores a png under a generated name", func(t *testing.T) {
		img, err := svc.Save(pngInput(t, "shirt front.PNG"))
		require.NoError(t, err)
		require.Regexp(t, `^/uploads/image/\d+-\d{9}\.png$`, img.Path)
		require.Equal(t, "image/png", img.MimeType)
		require.Equal(t, 3, img.Width)
		require.Equal(t, 2, img.Height)

		onDisk := filepath.Join(root, "image", filepath.Base(img.Path))
		data, err := os.ReadFile(onDisk)
		require.NoError(t, err)
		require.EqualValues(t, img.Size, len(data))
	})

	t.Run("rejects a disallowed extension", func(t *testing.T) {
		_, err := svc.Save(ImageInput{Filename: "notes.pdf", Size: 4, Content: strings.NewReader("%PDF")})
		require.Equal(t, apierror.CodeBadRequest, apierror.CodeOf(err))
		require.ErrorContains(t, err, "Invalid file type: .pdf")
	})

	t.Run("rejects a renamed non-image", func(t *testing.T) {
		content := "definitely not an image"
		_, err := svc.Save(ImageInput{Filename: "fake.jpg", Size: int64(len(content)), Content: strings.NewReader(content)})
		require.Equal(t, apierror.CodeUnsupported, apierror.CodeOf(err))
	})

	t.Run("rejects oversized images", func(t *testing.T) {
		small := NewImageService(store, 10, nil)
		_, err := small.Save(pngInput(t, "big.png"))
		require.Equal(t, apierror.CodeTooLarge, apierror.CodeOf(err))
	})
}

func TestImageServiceRemove(t *testing.T) {
	t.Parallel()

	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	svc := NewImageService(store, 1<<20, nil)

	img, err := svc.Save(pngInput(t, "a.png"))
	require.NoError(t, err)

	svc.Remove(img.Path)
	_, _, err = svc.Open("/image/" + filepath.Base(img.Path))
	require.Equal(t, apierror.CodeNotFound, apierror.CodeOf(err))

	require.NotPanics(t, func() { svc.Remove(img.Path) })
}

func TestImageServiceRemoveIgnoresForeignPaths(t *testing.T) {
	t.Parallel()

	store := &storage.MockStorage{}
	svc := NewImageService(store, 1<<20, nil)

	svc.Remove("/etc/passwd")
	svc.Remove("/uploads/image/../../secret")
	svc.Remove("https://cdn.example.com/a.png")

	store.AssertNotCalled(t, "Remove", mock.Anything)
}

func TestImageServiceEnsureDir(t *testing.T) {
	t.Parallel()

	store := &storage.MockStorage{}
	store.On("MkdirAll", "/image", mock.Anything).Return(nil).Once()

	require.NoError(t, NewImageService(store, 1<<20, nil).EnsureDir())
	store.AssertExpectations(t)
}
