package util

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsImageExtension(t *testing.T) {
	t.Parallel()

	require.True(t, IsImageExtension(".png"))
	require.True(t, IsImageExtension(" .JPEG "))
	require.True(t, IsImageExtension(".tif"))
	require.False(t, IsImageExtension(".svg"))
	require.False(t, IsImageExtension(".pdf"))
	require.False(t, IsImageExtension(""))
}

func TestDetectMIMERewinds(t *testing.T) {
	t.Parallel()

	gif := []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")
	reader := bytes.NewReader(gif)

	mimeType, err := DetectMIME(reader)
	require.NoError(t, err)
	require.Equal(t, "image/gif", mimeType)
	require.True(t, IsImageMIME(mimeType))

	rest, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, gif, rest)
}

func TestMIMEForExtension(t *testing.T) {
	t.Parallel()

	require.Equal(t, "image/tiff", MIMEForExtension(".TIF"))
	require.Equal(t, "application/octet-stream", MIMEForExtension(".exe"))
}
