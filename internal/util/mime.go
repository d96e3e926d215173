package util

import (
	"io"
	"net/http"
	"strings"
)

// ImageExtensions are the upload extensions accepted for product images, in
// the order they are listed back to clients.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff", ".tif"}

// DetectMIME sniffs the first 512 bytes of r and rewinds it.
func DetectMIME(r io.ReadSeeker) (string, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	buffer := make([]byte, 512)
	n, err := io.ReadFull(r, buffer)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	return http.DetectContentType(buffer[:n]), nil
}

func IsImageMIME(mimeType string) bool {
	cleaned := strings.ToLower(strings.TrimSpace(mimeType))
	return strings.HasPrefix(cleaned, "image/")
}

func IsImageExtension(extension string) bool {
	cleaned := strings.ToLower(strings.TrimSpace(extension))
	for _, allowed := range ImageExtensions {
		if cleaned == allowed {
			return true
		}
	}
	return false
}

// MIMEForExtension is used when sniffing cannot tell (tiff has no
// net/http signature).
func MIMEForExtension(extension string) string {
	switch strings.ToLower(strings.TrimSpace(extension)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".tiff", ".tif":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}
