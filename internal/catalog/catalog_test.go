package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type memCatalog struct {
	products map[string]*domain.Product
	media    map[string]*domain.ProductMedia
	seq      int
}

func newMemCatalog() *memCatalog {
	img := "https://cdn.example.com/tea.jpg"
	return &memCatalog{
		products: map[string]*domain.Product{
			"p1": {ID: "p1", Name: "Tea", Price: decimal.NewFromInt(250), IsActive: true, ImageURL: &img},
			"p2": {ID: "p2", Name: "Retired", Price: decimal.NewFromInt(10)},
		},
		media: map[string]*domain.ProductMedia{},
	}
}

func (m *memCatalog) List(_ context.Context, activeOnly bool) ([]domain.Product, error) {
	out := []domain.Product{}
	for _, p := range m.products {
		if p.IsActive || !activeOnly {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memCatalog) GetByID(_ context.Context, id string) (*domain.Product, error) {
	if p, ok := m.products[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memCatalog) Create(_ context.Context, p *domain.Product) error {
	m.seq++
	p.ID = "new"
	m.products[p.ID] = p
	return nil
}

func (m *memCatalog) Update(_ context.Context, id string, patch ProductPatch) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	patch.apply(p)
	cp := *p
	return &cp, nil
}

func (m *memCatalog) Delete(_ context.Context, id string) (bool, error) {
	_, ok := m.products[id]
	delete(m.products, id)
	return ok, nil
}

func (m *memCatalog) Commit(_ context.Context, media *domain.ProductMedia) error {
	m.seq++
	media.ID = "m" + string(rune('0'+m.seq))
	m.media[media.ID] = media
	return nil
}

func (m *memCatalog) ListMedia(productID string) []domain.ProductMedia {
	var out []domain.ProductMedia
	for _, md := range m.media {
		if md.ProductID == productID {
			out = append(out, *md)
		}
	}
	return out
}

type mediaView struct{ *memCatalog }

func (v mediaView) Commit(ctx context.Context, media *domain.ProductMedia) error {
	return v.memCatalog.Commit(ctx, media)
}

func (v mediaView) List(_ context.Context, productID string) ([]domain.ProductMedia, error) {
	return v.ListMedia(productID), nil
}

func (v mediaView) Delete(_ context.Context, id string) (*domain.ProductMedia, error) {
	md, ok := v.media[id]
	if !ok {
		return nil, nil
	}
	delete(v.media, id)
	return md, nil
}

func newTestHandler() (*Handler, *memCatalog) {
	store := newMemCatalog()
	return NewHandler(store, mediaView{store}, slog.Default()), store
}

func TestHandleListActive(t *testing.T) {
	h, _ := newTestHandler()

	rec := httptest.NewRecorder()
	h.HandleListActive(rec, httptest.NewRequest(http.MethodGet, "/products", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Products []domain.Product `json:"products"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Products, 1)
	assert.Equal(t, "p1", body.Products[0].ID)

	rec = httptest.NewRecorder()
	h.HandleListAll(rec, httptest.NewRequest(http.MethodGet, "/admin/products", nil))
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Len(t, body.Products, 2)
}

func TestHandleGet(t *testing.T) {
	h, _ := newTestHandler()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products/{id}", h.HandleGet)

	for id, status := range map[string]int{"p1": http.StatusOK, "p2": http.StatusNotFound, "nope": http.StatusNotFound} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/"+id, nil))
		assert.Equal(t, status, rec.Code, id)
	}
}

func TestHandleCreate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"valid", `{"name":" Green Tea ","price":"120.50","stock_quantity":4}`, http.StatusOK, ""},
		{"missing name", `{"name":"  ","price":1}`, http.StatusBadRequest, "Name is required"},
		{"missing price", `{"name":"Tea"}`, http.StatusBadRequest, "Price must be a number"},
		{"negative price", `{"name":"Tea","price":-1}`, http.StatusBadRequest, "Price must be a number"},
		{"negative stock", `{"name":"Tea","price":1,"stock_quantity":-2}`, http.StatusBadRequest, "Stock must be a number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, store := newTestHandler()

			rec := httptest.NewRecorder()
			h.HandleCreate(rec, httptest.NewRequest(http.MethodPost, "/admin/products/create", strings.NewReader(tt.body)))

			assert.Equal(t, tt.status, rec.Code)
			if tt.message != "" {
				assert.Contains(t, rec.Body.String(), tt.message)
				return
			}
			created := store.products["new"]
			require.NotNil(t, created)
			assert.Equal(t, "Green Tea", created.Name)
			assert.Equal(t, defaultCategory, created.Category)
			assert.True(t, created.IsActive)
			assert.Nil(t, created.ImageURL)
		})
	}
}

func TestHandleUpdate(t *testing.T) {
	h, store := newTestHandler()

	rec := httptest.NewRecorder()
	h.HandleUpdate(rec, httptest.NewRequest(http.MethodPost, "/admin/products/update",
		strings.NewReader(`{"id":"p1","price":"300","category":"  ","image_url":""}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	p := store.products["p1"]
	assert.Equal(t, "300", p.Price.String())
	assert.Equal(t, defaultCategory, p.Category)
	assert.Nil(t, p.ImageURL)
	assert.Equal(t, "Tea", p.Name)

	for body, status := range map[string]int{
		`{"id":"p1"}`:                 http.StatusBadRequest,
		`{"price":1}`:                 http.StatusBadRequest,
		`{"id":"p1","name":""}`:       http.StatusBadRequest,
		`{"id":"missing","price":"1"}`: http.StatusNotFound,
	} {
		rec := httptest.NewRecorder()
		h.HandleUpdate(rec, httptest.NewRequest(http.MethodPost, "/admin/products/update", strings.NewReader(body)))
		assert.Equal(t, status, rec.Code, body)
	}
}

func TestHandleDelete(t *testing.T) {
	h, store := newTestHandler()

	rec := httptest.NewRecorder()
	h.HandleDelete(rec, httptest.NewRequest(http.MethodPost, "/admin/products/delete", strings.NewReader(`{"id":"p2"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, store.products, "p2")

	rec = httptest.NewRecorder()
	h.HandleDelete(rec, httptest.NewRequest(http.MethodPost, "/admin/products/delete", strings.NewReader(`{"id":"p2"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleMedia(t *testing.T) {
	h, store := newTestHandler()

	rec := httptest.NewRecorder()
	h.HandleCommitMedia(rec, httptest.NewRequest(http.MethodPost, "/admin/products/media/commit", strings.NewReader(
		`{"product_id":"p1","media_type":"gif","storage_path":"p1/a.jpg","public_url":"https://cdn/a.jpg","sort_order":1}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	media := store.ListMedia("p1")
	require.Len(t, media, 1)
	assert.Equal(t, domain.MediaTypeImage, media[0].MediaType)

	rec = httptest.NewRecorder()
	h.HandleListMedia(rec, httptest.NewRequest(http.MethodGet, "/admin/products/media?product_id=p1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "p1/a.jpg")

	rec = httptest.NewRecorder()
	h.HandleDeleteMedia(rec, httptest.NewRequest(http.MethodPost, "/admin/products/media/delete", strings.NewReader(`{"id":"`+media[0].ID+`"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, store.ListMedia("p1"))

	t.Run("rejections", func(t *testing.T) {
		cases := []struct {
			handler http.HandlerFunc
			body    string
			status  int
		}{
			{h.HandleCommitMedia, `{"product_id":"p1","public_url":"x"}`, http.StatusBadRequest},
			{h.HandleCommitMedia, `{"product_id":"p1","storage_path":"x"}`, http.StatusBadRequest},
			{h.HandleCommitMedia, `{"product_id":"ghost","storage_path":"x","public_url":"y"}`, http.StatusNotFound},
			{h.HandleDeleteMedia, `{"id":"unknown"}`, http.StatusNotFound},
			{h.HandleDeleteMedia, `{}`, http.StatusBadRequest},
		}
		for _, c := range cases {
			rec := httptest.NewRecorder()
			c.handler(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(c.body)))
			assert.Equal(t, c.status, rec.Code, c.body)
		}
	})
}
