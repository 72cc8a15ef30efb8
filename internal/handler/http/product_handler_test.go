package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	boutiqueHttp "github.com/vasiliy-maslov/boutique-api/internal/handler/http"
	"github.com/vasiliy-maslov/boutique-api/internal/product"
)

func newProductRouter(svc *MockProductService) *chi.Mux {
	r := chi.NewRouter()
	boutiqueHttp.NewProductHandler(svc).RegisterRoutes(r, allowAll)
	return r
}

func TestProductHandler_handleListProducts_Filters(t *testing.T) {
	trending := true

	tests := []struct {
		name       string
		query      string
		wantFilter *product.ListFilter
		wantStatus int
	}{
		{name: "no_filter", query: "", wantFilter: &product.ListFilter{}, wantStatus: http.StatusOK},
		{name: "category_and_trending", query: "?category=caftan&trending=true", wantFilter: &product.ListFilter{Category: "caftan", Trending: &trending}, wantStatus: http.StatusOK},
		{name: "bad_trending", query: "?trending=maybe", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockProductService)
			if tt.wantFilter != nil {
				mockService.On("ListProducts", mock.Anything, *tt.wantFilter).
					Return([]product.Product{{Title: "Jebba"}}, nil).Once()
			}

			rr := httptest.NewRecorder()
			newProductRouter(mockService).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products"+tt.query, nil))

			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			mockService.AssertExpectations(t)
		})
	}
}

func TestProductHandler_handleCreateProduct(t *testing.T) {
	mockService := new(MockProductService)
	created := &product.Product{ID: uuid.Must(uuid.NewV4()), Title: "Jebba", StockQuantity: 15}

	wantInput := product.Input{
		Title:       "Jebba",
		Description: "Hand embroidered",
		Category:    "jebba",
		OldPrice:    200,
		NewPrice:    160,
		Trending:    true,
		Colors: []product.ColorInput{
			{ColorName: "Red", Image: "red.jpg", Stock: 10},
			{ColorName: "Blue", Image: "blue.jpg", Stock: 5},
		},
	}
	mockService.On("CreateProduct", mock.Anything, wantInput).Return(created, nil).Once()

	body := `{
		"title": "Jebba", "description": "Hand embroidered", "category": "jebba",
		"oldPrice": 200, "newPrice": 160, "trending": true,
		"colors": [
			{"colorName": "Red", "image": "red.jpg", "stock": 10},
			{"colorName": "Blue", "image": "blue.jpg", "stock": 5}
		]
	}`
	rr := httptest.NewRecorder()
	newProductRouter(mockService).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/products", bytes.NewBufferString(body)))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var got product.Product
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, 15, got.StockQuantity)
	mockService.AssertExpectations(t)
}

func TestProductHandler_handleCreateProduct_Validation(t *testing.T) {
	mockService := new(MockProductService)

	body := `{"title": "Jebba", "description": "d", "category": "c", "oldPrice": 10, "newPrice": 5, "colors": [{"colorName": "Red", "image": "", "stock": -1}]}`
	rr := httptest.NewRecorder()
	newProductRouter(mockService).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/products", bytes.NewBufferString(body)))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	got := decodeBody(t, rr)
	assert.Equal(t, "Validation failed", got["error"])
	assert.Equal(t, map[string]interface{}{"Image": "required", "Stock": "min=0"}, got["details"])
	mockService.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
}

func TestProductHandler_handleDeleteProduct(t *testing.T) {
	id := uuid.Must(uuid.NewV4())

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "deleted", wantStatus: http.StatusOK},
		{name: "in_use", err: product.ErrProductInUse, wantStatus: http.StatusConflict},
		{name: "missing", err: product.ErrProductNotFound, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockProductService)
			if tt.err != nil {
				mockService.On("DeleteProduct", mock.Anything, id).Return(nil, tt.err).Once()
			} else {
				mockService.On("DeleteProduct", mock.Anything, id).Return(&product.Product{ID: id}, nil).Once()
			}

			rr := httptest.NewRecorder()
			newProductRouter(mockService).ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/products/"+id.String(), nil))

			require.Equal(t, tt.wantStatus, rr.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestProductHandler_handleUpdatePrice(t *testing.T) {
	id := uuid.Must(uuid.NewV4())

	tests := []struct {
		name       string
		body       string
		setup      func(m *MockProductService)
		wantStatus int
		wantPrice  float64
	}{
		{
			name: "discounted",
			body: `{"percentage": 20}`,
			setup: func(m *MockProductService) {
				m.On("UpdatePriceByPercentage", mock.Anything, id, 20.0).Return(160.0, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantPrice:  160,
		},
		{
			name: "zero_is_allowed",
			body: `{"percentage": 0}`,
			setup: func(m *MockProductService) {
				m.On("UpdatePriceByPercentage", mock.Anything, id, 0.0).Return(200.0, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantPrice:  200,
		},
		{name: "missing", body: `{}`, setup: func(m *MockProductService) {}, wantStatus: http.StatusBadRequest},
		{name: "above_100", body: `{"percentage": 120}`, setup: func(m *MockProductService) {}, wantStatus: http.StatusBadRequest},
		{
			name: "unknown_product",
			body: `{"percentage": 10}`,
			setup: func(m *MockProductService) {
				m.On("UpdatePriceByPercentage", mock.Anything, id, 10.0).Return(0.0, product.ErrProductNotFound).Once()
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockProductService)
			tt.setup(mockService)

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPut, "/products/"+id.String()+"/price", bytes.NewBufferString(tt.body))
			newProductRouter(mockService).ServeHTTP(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.wantStatus == http.StatusOK {
				var got boutiqueHttp.PriceResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
				assert.Equal(t, tt.wantPrice, got.FinalPrice)
			}
			mockService.AssertExpectations(t)
		})
	}
}
