//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"storefront/internal/model"
)

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func productForm(t *testing.T, fields map[string]string, images int) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, form.WriteField(k, v))
	}

	for i := range images {
		part, err := form.CreateFormFile("images", "photo"+strconv.Itoa(i)+".png")
		require.NoError(t, err)
		require.NoError(t, png.Encode(part, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	}
	require.NoError(t, form.Close())

	return &body, form.FormDataContentType()
}

func TestProductLifecycle(t *testing.T) {
	server, _ := newServer(t, nil)
	admin := newClient(t)
	login(t, admin, server.URL, adminName, adminPassword)

	body, contentType := productForm(t, map[string]string{
		"product_name":        "Linen shirt",
		"product_description": "Breathable summer linen shirt",
		"original_price":      "80",
		"discount_percentage": "25",
		"sizes":               `[{"size":"md","stock_quantity":2},{"size":"lg","stock_quantity":3}]`,
		"badge":               "new",
	}, 2)
	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/v1/products", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)

	resp, env := do(t, admin, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)

	var created model.Product
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Equal(t, 5, created.Quantity)
	require.True(t, created.IsAvailable)
	require.NotNil(t, created.DiscountedPrice)
	require.InDelta(t, 60.0, *created.DiscountedPrice, 0.001)
	require.Len(t, created.Images, 2)
	require.Len(t, created.Sizes, 2)

	imgResp, err := http.Get(created.Images[0])
	require.NoError(t, err)
	t.Cleanup(func() { _ = imgResp.Body.Close() })
	require.Equal(t, http.StatusOK, imgResp.StatusCode)
	require.Equal(t, "image/png", imgResp.Header.Get("Content-Type"))

	resp, env = doJSON(t, newClient(t), http.MethodGet, server.URL+"/api/v1/products", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []model.Product
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)

	removed, _ := json.Marshal([]string{created.Images[0]})
	body, contentType = productForm(t, map[string]string{
		"original_price": "100",
		"remove_images":  string(removed),
	}, 1)
	req, err = http.NewRequest(http.MethodPatch, server.URL+"/api/v1/products/"+itoa(created.ID), body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)

	resp, env = do(t, admin, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	var updated model.Product
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	require.Equal(t, 5, updated.Quantity)
	require.InDelta(t, 75.0, *updated.DiscountedPrice, 0.001)
	require.Len(t, updated.Images, 2)
	require.NotContains(t, updated.Images, created.Images[0])

	goneResp, err := http.Get(created.Images[0])
	require.NoError(t, err)
	t.Cleanup(func() { _ = goneResp.Body.Close() })
	require.Equal(t, http.StatusNotFound, goneResp.StatusCode)

	resp, _ = doJSON(t, admin, http.MethodDelete, server.URL+"/api/v1/products/"+itoa(created.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, admin, http.MethodGet, server.URL+"/api/v1/products/"+itoa(created.ID), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProductRejectsTooManyImages(t *testing.T) {
	server, _ := newServer(t, nil)
	admin := newClient(t)
	login(t, admin, server.URL, adminName, adminPassword)

	body, contentType := productForm(t, map[string]string{
		"product_name":        "Linen shirt",
		"product_description": "Breathable summer linen shirt",
		"original_price":      "80",
		"sizes":               `[{"size":"md","stock_quantity":2}]`,
	}, 5)
	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/v1/products", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)

	resp, _ := do(t, admin, req)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
