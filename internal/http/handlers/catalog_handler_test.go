package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/uptech/buykit/internal/domain"
)

func TestListProducts_ReturnsCachedList(t *testing.T) {
	cat := &fakeCatalog{products: []domain.Product{
		{ID: "com.store.pro", Title: "Pro", Price: 9.99, CurrencyCode: "USD", DisplayPrice: "$9.99"},
		{ID: "com.store.coins", Title: "Coins", Price: 1.99, CurrencyCode: "USD", DisplayPrice: "$1.99"},
	}}
	h := newTestHandlers(t, cat, nil, nil, nil)

	r := newTestRouter()
	r.GET("/products", h.ListProducts)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET /products = %d", w.Code)
	}
	var got []domain.Product
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(got) != 2 || got[0].ID != "com.store.pro" || got[0].DisplayPrice != "$9.99" {
		t.Fatalf("unexpected products: %+v", got)
	}
}

func TestListProducts_EmptyCache(t *testing.T) {
	h := newTestHandlers(t, &fakeCatalog{}, nil, nil, nil)

	r := newTestRouter()
	r.GET("/products", h.ListProducts)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET /products = %d", w.Code)
	}
	var got []domain.Product
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list, got %+v", got)
	}
}

func TestGetProduct_FoundAndMissing(t *testing.T) {
	cat := &fakeCatalog{products: []domain.Product{
		{ID: "com.store.pro", Title: "Pro"},
	}}
	h := newTestHandlers(t, cat, nil, nil, nil)

	r := newTestRouter()
	r.GET("/products/:id", h.GetProduct)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/products/com.store.pro", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("found: expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/products/com.store.none", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing: expected 404, got %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Code != ErrCodeNotFound {
		t.Fatalf("expected %q, got %q", ErrCodeNotFound, resp.Code)
	}
}

func TestRefreshProducts_TriggersLoad(t *testing.T) {
	cat := &fakeCatalog{}
	h := newTestHandlers(t, cat, nil, nil, nil)

	r := newTestRouter()
	r.POST("/products/refresh", h.RefreshProducts)

	body := `{"product_ids": [" com.store.pro ", "", "com.store.coins"]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/products/refresh", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d body=%s", w.Code, w.Body.String())
	}
	// Blank entries dropped, whitespace trimmed.
	if len(cat.loadedIDs) != 2 || cat.loadedIDs[0] != "com.store.pro" || cat.loadedIDs[1] != "com.store.coins" {
		t.Fatalf("unexpected load ids: %v", cat.loadedIDs)
	}
}

func TestRefreshProducts_BadBodies(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", "not-json"},
		{"missing field", `{}`},
		{"only blank ids", `{"product_ids": ["", "  "]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cat := &fakeCatalog{}
			h := newTestHandlers(t, cat, nil, nil, nil)

			r := newTestRouter()
			r.POST("/products/refresh", h.RefreshProducts)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/products/refresh", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if cat.loadedIDs != nil {
				t.Fatalf("load should not run on bad input")
			}
		})
	}
}
