package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	boutiqueHttp "github.com/vasiliy-maslov/boutique-api/internal/handler/http"
	"github.com/vasiliy-maslov/boutique-api/internal/mail"
	"github.com/vasiliy-maslov/boutique-api/internal/order"
	"github.com/vasiliy-maslov/boutique-api/internal/product"
)

func newOrderRouter(svc *MockOrderService) *chi.Mux {
	r := chi.NewRouter()
	boutiqueHttp.NewOrderHandler(svc).RegisterRoutes(r, allowAll)
	return r
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

const validOrderBody = `{
	"name": "Amira",
	"email": "amira@example.com",
	"phone": "+21620000000",
	"address": {"street": "1 Rue de Marseille", "city": "Tunis", "country": "Tunisia", "zipcode": "1000"},
	"products": [
		{"productId": "7c9e6679-7425-40de-944b-e07fc1f90ae7", "quantity": 3, "color": {"colorName": "Red", "image": "red.jpg"}}
	],
	"totalPrice": 150
}`

func TestOrderHandler_handleCreateOrder_Success(t *testing.T) {
	mockService := new(MockOrderService)
	productID := uuid.FromStringOrNil("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	created := &order.Order{ID: uuid.Must(uuid.NewV4()), Name: "Amira", Email: "amira@example.com", TotalPrice: 150}

	mockService.On("CreateOrder", mock.Anything, mock.MatchedBy(func(in order.CreateInput) bool {
		return in.Name == "Amira" &&
			in.Address.City == "Tunis" &&
			len(in.Products) == 1 &&
			in.Products[0].ProductID == productID &&
			in.Products[0].Quantity == 3 &&
			in.Products[0].Color != nil &&
			in.Products[0].Color.ColorName.Plain == "Red" &&
			in.TotalPrice == 150
	})).Return(created, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(validOrderBody))
	rr := httptest.NewRecorder()
	newOrderRouter(mockService).ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var got order.Order
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	mockService.AssertExpectations(t)
}

func TestOrderHandler_handleCreateOrder_Rejected(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		serviceErr  error
		wantStatus  int
		wantDetails map[string]interface{}
		wantError   string
	}{
		{
			name:       "malformed_json",
			body:       `{"name": `,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown_field",
			body:       `{"name": "a", "coupon": "FREE"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "validation",
			body:       `{"name": "", "email": "not-an-email", "phone": "1", "address": {"city": "Tunis", "country": "TN"}, "products": [], "totalPrice": 1}`,
			wantStatus: http.StatusBadRequest,
			wantDetails: map[string]interface{}{
				"Name":     "required",
				"Email":    "email",
				"Products": "min=1",
			},
		},
		{
			name:       "missing_product",
			body:       validOrderBody,
			serviceErr: product.ErrProductNotFound,
			wantStatus: http.StatusNotFound,
			wantError:  "product not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockOrderService)
			if tt.serviceErr != nil {
				mockService.On("CreateOrder", mock.Anything, mock.Anything).Return(nil, tt.serviceErr).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()
			newOrderRouter(mockService).ServeHTTP(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			body := decodeBody(t, rr)
			if tt.wantDetails != nil {
				assert.Equal(t, "Validation failed", body["error"])
				if diff := cmp.Diff(tt.wantDetails, body["details"]); diff != "" {
					t.Errorf("validation details mismatch (-want +got):\n%s", diff)
				}
			}
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
			}
			if tt.serviceErr == nil {
				mockService.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestOrderHandler_handleGetOrderByID(t *testing.T) {
	id := uuid.Must(uuid.NewV4())

	tests := []struct {
		name       string
		path       string
		setup      func(m *MockOrderService)
		wantStatus int
		wantError  string
	}{
		{
			name: "found",
			path: "/orders/" + id.String(),
			setup: func(m *MockOrderService) {
				m.On("GetOrderByID", mock.Anything, id).Return(&order.Order{ID: id}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "not_found",
			path: "/orders/" + id.String(),
			setup: func(m *MockOrderService) {
				m.On("GetOrderByID", mock.Anything, id).Return(nil, order.ErrOrderNotFound).Once()
			},
			wantStatus: http.StatusNotFound,
			wantError:  "order not found",
		},
		{
			name:       "invalid_id",
			path:       "/orders/not-a-uuid",
			setup:      func(m *MockOrderService) {},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid id parameter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockOrderService)
			tt.setup(mockService)

			rr := httptest.NewRecorder()
			newOrderRouter(mockService).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeBody(t, rr)["error"])
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestOrderHandler_handleGetOrdersByEmail(t *testing.T) {
	mockService := new(MockOrderService)
	mockService.On("GetOrdersByEmail", mock.Anything, "amira@example.com").
		Return([]order.Order{{Email: "amira@example.com"}, {Email: "amira@example.com"}}, nil).Once()
	mockService.On("GetOrdersByEmail", mock.Anything, "nobody@example.com").
		Return(nil, order.ErrOrderNotFound).Once()

	router := newOrderRouter(mockService)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/email/amira@example.com", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var orders []order.Order
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &orders))
	assert.Len(t, orders, 2)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/email/nobody@example.com", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	mockService.AssertExpectations(t)
}

func TestOrderHandler_handleListOrders_EmptyIsArray(t *testing.T) {
	mockService := new(MockOrderService)
	mockService.On("ListOrders", mock.Anything).Return(nil, nil).Once()

	rr := httptest.NewRecorder()
	newOrderRouter(mockService).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestOrderHandler_handleRemoveProduct(t *testing.T) {
	orderID := uuid.Must(uuid.NewV4())
	productKey := uuid.Must(uuid.NewV4()).String() + "|Red"
	body := `{"orderId": "` + orderID.String() + `", "productKey": "` + productKey + `", "quantityToRemove": 2}`

	tests := []struct {
		name        string
		body        string
		setup       func(m *MockOrderService)
		wantStatus  int
		wantMessage string
		wantOrder   bool
	}{
		{
			name: "quantity_reduced",
			body: body,
			setup: func(m *MockOrderService) {
				m.On("RemoveLineQuantity", mock.Anything, orderID, productKey, 2).
					Return(&order.Order{ID: orderID, TotalPrice: 50}, false, nil).Once()
			},
			wantStatus:  http.StatusOK,
			wantMessage: "Product quantity updated successfully",
			wantOrder:   true,
		},
		{
			name: "order_emptied",
			body: body,
			setup: func(m *MockOrderService) {
				m.On("RemoveLineQuantity", mock.Anything, orderID, productKey, 2).Return(nil, true, nil).Once()
			},
			wantStatus:  http.StatusOK,
			wantMessage: "Order deleted because it has no products left",
		},
		{
			name: "too_many",
			body: body,
			setup: func(m *MockOrderService) {
				m.On("RemoveLineQuantity", mock.Anything, orderID, productKey, 2).Return(nil, false, order.ErrInvalidQuantity).Once()
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "line_missing",
			body: body,
			setup: func(m *MockOrderService) {
				m.On("RemoveLineQuantity", mock.Anything, orderID, productKey, 2).Return(nil, false, order.ErrProductNotInOrder).Once()
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "zero_quantity",
			body:       `{"orderId": "` + orderID.String() + `", "productKey": "` + productKey + `", "quantityToRemove": 0}`,
			setup:      func(m *MockOrderService) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockOrderService)
			tt.setup(mockService)

			rr := httptest.NewRecorder()
			newOrderRouter(mockService).ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/orders/remove-product", bytes.NewBufferString(tt.body)))

			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.wantMessage != "" {
				got := decodeBody(t, rr)
				assert.Equal(t, tt.wantMessage, got["message"])
				_, hasOrder := got["order"]
				assert.Equal(t, tt.wantOrder, hasOrder)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestOrderHandler_handleUpdateOrder(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	paid := true

	mockService := new(MockOrderService)
	mockService.On("UpdateOrderFlags", mock.Anything, id, order.FlagsPatch{
		IsPaid:          &paid,
		ProductProgress: map[string]int{"p|Red": 40},
	}).Return(&order.Order{ID: id, IsPaid: true}, nil).Once()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/orders/"+id.String(), bytes.NewBufferString(`{"isPaid": true, "productProgress": {"p|Red": 40}}`))
	newOrderRouter(mockService).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, true, decodeBody(t, rr)["isPaid"])
	mockService.AssertExpectations(t)

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/orders/"+id.String(), bytes.NewBufferString(`{"productProgress": {"p|Red": 140}}`))
	newOrderRouter(mockService).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOrderHandler_handleDeleteOrder(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	mockService := new(MockOrderService)
	mockService.On("DeleteOrder", mock.Anything, id).Return(nil).Once()

	rr := httptest.NewRecorder()
	newOrderRouter(mockService).ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/orders/"+id.String(), nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Order deleted successfully", decodeBody(t, rr)["message"])
	mockService.AssertExpectations(t)
}

func TestOrderHandler_handleNotify(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	body := `{"orderId": "` + id.String() + `", "email": "amira@example.com", "productKey": "k|Red", "progress": 100, "articleIndex": 2}`

	tests := []struct {
		name       string
		body       string
		serviceErr error
		called     bool
		wantStatus int
	}{
		{name: "sent", body: body, called: true, wantStatus: http.StatusOK},
		{name: "mail_failure", body: body, serviceErr: mail.ErrDelivery, called: true, wantStatus: http.StatusBadGateway},
		{name: "progress_missing", body: `{"orderId": "` + id.String() + `", "email": "amira@example.com", "productKey": "k|Red"}`, wantStatus: http.StatusBadRequest},
		{name: "progress_out_of_range", body: `{"orderId": "` + id.String() + `", "email": "amira@example.com", "productKey": "k|Red", "progress": 101}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockOrderService)
			if tt.called {
				mockService.On("SendProgressNotification", mock.Anything, order.ProgressRequest{
					OrderID:      id,
					Email:        "amira@example.com",
					ProductKey:   "k|Red",
					Progress:     100,
					ArticleIndex: 2,
				}).Return(tt.serviceErr).Once()
			}

			rr := httptest.NewRecorder()
			newOrderRouter(mockService).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/orders/notify", bytes.NewBufferString(tt.body)))

			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			mockService.AssertExpectations(t)
		})
	}
}
