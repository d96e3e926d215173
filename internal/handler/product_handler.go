package handler

import (
	"encoding/json"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/model"
	"storefront/internal/service"
	"storefront/internal/validation"
	"storefront/pkg/apierror"
)

const (
	imagesField     = "images"
	multipartMemory = 8 << 20
)

type ProductHandler struct {
	service       *service.ProductService
	maxUploadSize int64
}

func NewProductHandler(service *service.ProductService, maxUploadSize int64) *ProductHandler {
	return &ProductHandler{service: service, maxUploadSize: maxUploadSize}
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateProductRequest
	files, cleanup, err := h.readProductBody(w, r, &payload, createFromForm)
	defer cleanup()
	if err != nil {
		writeError(w, err)
		return
	}

	product, err := h.service.Create(r.Context(), payload, files, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "Product created successfully", withAbsoluteImages(r, product), nil)
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		out = append(out, withAbsoluteImages(r, p))
	}

	writeSuccess(w, http.StatusOK, "Products retrieved successfully", out, nil)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Product retrieved successfully", withAbsoluteImages(r, product), nil)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.UpdateProductRequest
	files, cleanup, err := h.readProductBody(w, r, &payload, updateFromForm)
	defer cleanup()
	if err != nil {
		writeError(w, err)
		return
	}

	product, err := h.service.Update(r.Context(), id, payload, files, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Product updated successfully", withAbsoluteImages(r, product), nil)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), id, actorFromRequest(r)); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Product deleted successfully", map[string]any{"id": id}, nil)
}

// readProductBody fills dst from either a JSON body or a multipart form and
// returns the uploaded images. cleanup must always be called.
func (h *ProductHandler) readProductBody(
	w http.ResponseWriter,
	r *http.Request,
	dst any,
	fromForm func(form *multipart.Form, dst any) error,
) ([]service.ImageInput, func(), error) {
	noop := func() {}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return nil, noop, decodeJSON(w, r, dst)
	}
	if mediaType != "multipart/form-data" {
		return nil, noop, apierror.Unsupported("expected multipart/form-data or application/json body", mediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isPayloadTooLarge(err) {
			return nil, noop, apierror.TooLarge("request body exceeds MAX_UPLOAD_SIZE", "MAX_UPLOAD_SIZE")
		}
		return nil, noop, apierror.BadRequest("invalid multipart body", err.Error())
	}

	form := r.MultipartForm
	opened := make([]multipart.File, 0, len(form.File[imagesField]))
	cleanup := func() {
		for _, f := range opened {
			_ = f.Close()
		}
		_ = form.RemoveAll()
	}

	if err := fromForm(form, dst); err != nil {
		return nil, cleanup, err
	}
	if err := validation.Struct(dst); err != nil {
		return nil, cleanup, err
	}

	files := make([]service.ImageInput, 0, len(form.File[imagesField]))
	for _, header := range form.File[imagesField] {
		f, err := header.Open()
		if err != nil {
			return nil, cleanup, apierror.BadRequest("unreadable image", header.Filename)
		}
		opened = append(opened, f)
		files = append(files, service.ImageInput{Filename: header.Filename, Size: header.Size, Content: f})
	}

	return files, cleanup, nil
}

func createFromForm(form *multipart.Form, dst any) error {
	req := dst.(*model.CreateProductRequest)

	req.Name = formValue(form, "product_name")
	req.Description = formValue(form, "product_description")
	req.Badge = formValue(form, "badge")

	price, err := formFloat(form, "original_price")
	if err != nil {
		return err
	}
	if price != nil {
		req.OriginalPrice = *price
	}

	if req.DiscountPercentage, err = formFloat(form, "discount_percentage"); err != nil {
		return err
	}

	return formJSON(form, "sizes", &req.Sizes)
}

func updateFromForm(form *multipart.Form, dst any) error {
	req := dst.(*model.UpdateProductRequest)

	req.Name = formOptional(form, "product_name")
	req.Description = formOptional(form, "product_description")
	req.Badge = formOptional(form, "badge")

	var err error
	if req.OriginalPrice, err = formFloat(form, "original_price"); err != nil {
		return err
	}
	if req.DiscountPercentage, err = formFloat(form, "discount_percentage"); err != nil {
		return err
	}
	if err := formJSON(form, "sizes", &req.Sizes); err != nil {
		return err
	}

	req.RemoveImages, err = formList(form, "remove_images")
	return err
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

// formOptional distinguishes an absent field (nil) from an empty one.
func formOptional(form *multipart.Form, key string) *string {
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := strings.TrimSpace(values[0])
	return &v
}

func formFloat(form *multipart.Form, key string) (*float64, error) {
	raw := formValue(form, key)
	if raw == "" {
		return nil, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apierror.Validation(key+" must be a number", key)
	}
	return &v, nil
}

// formJSON decodes a field sent as a JSON document, e.g.
// sizes=[{"size":"md","stock_quantity":3}]. Absent fields leave dst alone.
func formJSON(form *multipart.Form, key string, dst any) error {
	raw := formValue(form, key)
	if raw == "" {
		return nil
	}

	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return apierror.Validation(key+" must be valid JSON", key)
	}
	return nil
}

// formList accepts either one JSON array or the field repeated once per item.
func formList(form *multipart.Form, key string) ([]string, error) {
	values := form.Value[key]
	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		var out []string
		if err := json.Unmarshal([]byte(values[0]), &out); err != nil {
			return nil, apierror.Validation(key+" must be valid JSON", key)
		}
		return out, nil
	}

	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

// withAbsoluteImages renders stored image paths as URLs on the host the
// request came in on.
func withAbsoluteImages(r *http.Request, p model.Product) model.Product {
	base := requestScheme(r) + "://" + r.Host
	images := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		if strings.HasPrefix(img, "/") {
			img = base + img
		}
		images = append(images, img)
	}
	p.Images = images
	return p
}

func requestScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if proto := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		return strings.ToLower(strings.Split(proto, ",")[0])
	}
	return "http"
}
