package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"storefront/internal/service"
)

type UploadHandler struct {
	images *service.ImageService
}

func NewUploadHandler(images *service.ImageService) *UploadHandler {
	return &UploadHandler{images: images}
}

// Serve streams a stored upload. Mounted at /uploads/*.
func (h *UploadHandler) Serve(w http.ResponseWriter, r *http.Request) {
	clientPath := "/" + strings.TrimPrefix(chi.URLParam(r, "*"), "/")

	file, info, err := h.images.Open(clientPath)
	if err != nil {
		writeError(w, err)
		return
	}
	defer file.Close()

	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}
