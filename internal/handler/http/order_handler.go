package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/boutique-api/internal/order"
)

type AddressRequest struct {
	Street  string `json:"street"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state"`
	Country string `json:"country" validate:"required"`
	Zipcode string `json:"zipcode"`
}

type OrderLineRequest struct {
	ProductID  uuid.UUID             `json:"productId"`
	Quantity   int                   `json:"quantity" validate:"required,min=1"`
	Color      *order.ColorSelection `json:"color,omitempty"`
	CoverImage string                `json:"coverImage,omitempty"`
}

type CreateOrderRequest struct {
	Name       string             `json:"name" validate:"required"`
	Email      string             `json:"email" validate:"required,email"`
	Phone      string             `json:"phone" validate:"required"`
	Address    AddressRequest     `json:"address"`
	Products   []OrderLineRequest `json:"products" validate:"required,min=1,dive"`
	TotalPrice float64            `json:"totalPrice" validate:"gte=0"`
}

type RemoveProductRequest struct {
	OrderID          uuid.UUID `json:"orderId"`
	ProductKey       string    `json:"productKey" validate:"required"`
	QuantityToRemove int       `json:"quantityToRemove" validate:"required,min=1"`
}

type UpdateOrderRequest struct {
	IsPaid          *bool          `json:"isPaid,omitempty"`
	IsDelivered     *bool          `json:"isDelivered,omitempty"`
	ProductProgress map[string]int `json:"productProgress,omitempty" validate:"omitempty,dive,min=0,max=100"`
}

type NotifyRequest struct {
	OrderID      uuid.UUID `json:"orderId"`
	Email        string    `json:"email" validate:"required,email"`
	ProductKey   string    `json:"productKey" validate:"required"`
	Progress     *int      `json:"progress" validate:"required,min=0,max=100"`
	ArticleIndex int       `json:"articleIndex,omitempty" validate:"min=0"`
}

type RemoveProductResponse struct {
	Message string       `json:"message"`
	Order   *order.Order `json:"order,omitempty"`
}

type OrderHandler struct {
	service  order.Service
	validate *validator.Validate
}

func NewOrderHandler(service order.Service) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router, requireAdmin func(http.Handler) http.Handler) {
	router.Post("/orders", h.handleCreateOrder)
	router.Get("/orders/email/{email}", h.handleGetOrdersByEmail)
	router.Get("/orders/{id}", h.handleGetOrderByID)

	router.Group(func(r chi.Router) {
		r.Use(requireAdmin)
		r.Get("/orders", h.handleListOrders)
		r.Patch("/orders/remove-product", h.handleRemoveProduct)
		r.Post("/orders/notify", h.handleNotify)
		r.Patch("/orders/{id}", h.handleUpdateOrder)
		r.Delete("/orders/{id}", h.handleDeleteOrder)
	})
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	input := order.CreateInput{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
		Address: order.Address{
			Street:  req.Address.Street,
			City:    req.Address.City,
			State:   req.Address.State,
			Country: req.Address.Country,
			Zipcode: req.Address.Zipcode,
		},
		TotalPrice: req.TotalPrice,
	}
	for _, li := range req.Products {
		input.Products = append(input.Products, order.LineInput{
			ProductID:  li.ProductID,
			Quantity:   li.Quantity,
			Color:      li.Color,
			CoverImage: li.CoverImage,
		})
	}

	created, err := h.service.CreateOrder(r.Context(), input)
	if err != nil {
		respondWithServiceError(w, err, "Failed to create order")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *OrderHandler) handleGetOrderByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	o, err := h.service.GetOrderByID(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to fetch order")
		return
	}

	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleGetOrdersByEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(chi.URLParam(r, "email"))
	if email == "" {
		respondWithError(w, http.StatusBadRequest, "Email parameter is required")
		return
	}

	orders, err := h.service.GetOrdersByEmail(r.Context(), email)
	if err != nil {
		respondWithServiceError(w, err, "Failed to fetch orders")
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to fetch orders")
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}

	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleRemoveProduct(w http.ResponseWriter, r *http.Request) {
	var req RemoveProductRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	updated, deleted, err := h.service.RemoveLineQuantity(r.Context(), req.OrderID, req.ProductKey, req.QuantityToRemove)
	if err != nil {
		respondWithServiceError(w, err, "Failed to remove product from order")
		return
	}

	if deleted {
		log.Info().Stringer("order_id", req.OrderID).Msg("handler: order emptied and deleted")
		respondWithJSON(w, http.StatusOK, RemoveProductResponse{Message: "Order deleted because it has no products left"})
		return
	}

	respondWithJSON(w, http.StatusOK, RemoveProductResponse{
		Message: "Product quantity updated successfully",
		Order:   updated,
	})
}

func (h *OrderHandler) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateOrderRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	updated, err := h.service.UpdateOrderFlags(r.Context(), id, order.FlagsPatch{
		IsPaid:          req.IsPaid,
		IsDelivered:     req.IsDelivered,
		ProductProgress: req.ProductProgress,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to update order")
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *OrderHandler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteOrder(r.Context(), id); err != nil {
		respondWithServiceError(w, err, "Failed to delete order")
		return
	}
	logAdminAction(r, "order.delete", id)

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Order deleted successfully"})
}

func (h *OrderHandler) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req NotifyRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	err := h.service.SendProgressNotification(r.Context(), order.ProgressRequest{
		OrderID:      req.OrderID,
		Email:        req.Email,
		ProductKey:   req.ProductKey,
		Progress:     *req.Progress,
		ArticleIndex: req.ArticleIndex,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to send notification")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Notification sent successfully"})
}
