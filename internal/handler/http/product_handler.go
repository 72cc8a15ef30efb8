package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/boutique-api/internal/product"
)

type ColorRequest struct {
	ID        uuid.UUID `json:"id,omitempty"`
	ColorName string    `json:"colorName" validate:"required"`
	Image     string    `json:"image" validate:"required"`
	Stock     int       `json:"stock" validate:"min=0"`
}

// ProductRequest carries catalog texts in English only; the other locales
// are derived on save.
type ProductRequest struct {
	Title       string         `json:"title" validate:"required"`
	Description string         `json:"description" validate:"required"`
	Category    string         `json:"category" validate:"required"`
	OldPrice    float64        `json:"oldPrice" validate:"gte=0"`
	NewPrice    float64        `json:"newPrice" validate:"gte=0"`
	Trending    bool           `json:"trending"`
	Colors      []ColorRequest `json:"colors" validate:"required,min=1,dive"`
}

type PriceRequest struct {
	Percentage *float64 `json:"percentage" validate:"required,gte=0,lte=100"`
}

type PriceResponse struct {
	Message    string  `json:"message"`
	FinalPrice float64 `json:"finalPrice"`
}

type ProductHandler struct {
	service  product.Service
	validate *validator.Validate
}

func NewProductHandler(service product.Service) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *ProductHandler) RegisterRoutes(router chi.Router, requireAdmin func(http.Handler) http.Handler) {
	router.Get("/products", h.handleListProducts)
	router.Get("/products/{id}", h.handleGetProduct)

	router.Group(func(r chi.Router) {
		r.Use(requireAdmin)
		r.Post("/products", h.handleCreateProduct)
		r.Put("/products/{id}", h.handleUpdateProduct)
		r.Delete("/products/{id}", h.handleDeleteProduct)
		r.Put("/products/{id}/price", h.handleUpdatePrice)
	})
}

func (req ProductRequest) toInput() product.Input {
	input := product.Input{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		OldPrice:    req.OldPrice,
		NewPrice:    req.NewPrice,
		Trending:    req.Trending,
	}
	for _, c := range req.Colors {
		input.Colors = append(input.Colors, product.ColorInput{
			ID:        c.ID,
			ColorName: c.ColorName,
			Image:     c.Image,
			Stock:     c.Stock,
		})
	}
	return input
}

func (h *ProductHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := product.ListFilter{Category: strings.TrimSpace(query.Get("category"))}

	if raw := query.Get("trending"); raw != "" {
		trending, err := strconv.ParseBool(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid trending parameter")
			return
		}
		filter.Trending = &trending
	}

	products, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, err, "Failed to fetch products")
		return
	}
	if products == nil {
		products = []product.Product{}
	}

	respondWithJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to fetch product")
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	created, err := h.service.CreateProduct(r.Context(), req.toInput())
	if err != nil {
		respondWithServiceError(w, err, "Failed to create product")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *ProductHandler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req ProductRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	updated, err := h.service.UpdateProduct(r.Context(), id, req.toInput())
	if err != nil {
		respondWithServiceError(w, err, "Failed to update product")
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *ProductHandler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	deleted, err := h.service.DeleteProduct(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to delete product")
		return
	}
	logAdminAction(r, "product.delete", id)

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Product deleted successfully",
		"product": deleted,
	})
}

func (h *ProductHandler) handleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req PriceRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	finalPrice, err := h.service.UpdatePriceByPercentage(r.Context(), id, *req.Percentage)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update product price")
		return
	}

	respondWithJSON(w, http.StatusOK, PriceResponse{
		Message:    "Price updated successfully",
		FinalPrice: finalPrice,
	})
}
